// Package queue holds users waiting for a chat partner, in join order.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
)

type Entry struct {
	UserID          uint
	Gender          string
	PreferredGender string
	Country         string
	JoinedAt        time.Time

	seq uint64
}

// Seq is the entry's insertion position; lower joined earlier.
func (e Entry) Seq() uint64 { return e.seq }

type Queue struct {
	mu      sync.Mutex
	entries []Entry
	nextSeq uint64
	now     func() time.Time
}

func New() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue adds e at the back, replacing any earlier entry for the same user.
// The stored copy is returned with its join time and sequence filled in.
func (q *Queue) Enqueue(e Entry) Entry {
	e.PreferredGender = models.NormalizeRequestedGender(e.PreferredGender)
	e.Country = models.NormalizeCountry(e.Country)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(e.UserID)
	q.nextSeq++
	e.seq = q.nextSeq
	e.JoinedAt = q.now()
	q.entries = append(q.entries, e)
	return e
}

// Dequeue removes the user's entry. It reports whether one existed.
func (q *Queue) Dequeue(userID uint) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(userID)
}

func (q *Queue) Contains(userID uint) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(userID) >= 0
}

// Get returns the user's current entry.
func (q *Queue) Get(userID uint) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexLocked(userID); i >= 0 {
		return q.entries[i], true
	}
	return Entry{}, false
}

// Candidates returns, in join order, every other entry compatible with the
// requester on gender (both directions) and country.
func (q *Queue) Candidates(requester Entry) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.UserID == requester.UserID {
			continue
		}
		if Compatible(requester, e) {
			out = append(out, e)
		}
	}
	return out
}

// Compatible applies the queue filter for requester looking at entry.
func Compatible(requester, entry Entry) bool {
	if !wants(entry.PreferredGender, requester.Gender) {
		return false
	}
	if !wants(requester.PreferredGender, entry.Gender) {
		return false
	}
	if entry.Country != "" && entry.Country != models.NormalizeCountry(requester.Country) {
		return false
	}
	return true
}

func wants(preferred, gender string) bool {
	if preferred == "" || preferred == models.RequestedGenderAny {
		return true
	}
	return preferred == gender
}

// TakePair removes both users only when both are queued. It is the commit
// primitive of a match: at most one caller can take a given entry.
func (q *Queue) TakePair(a, b uint) (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ia, ib := q.indexLocked(a), q.indexLocked(b)
	if a == b || ia < 0 || ib < 0 {
		return Entry{}, Entry{}, false
	}
	ea, eb := q.entries[ia], q.entries[ib]
	q.removeLocked(a)
	q.removeLocked(b)
	return ea, eb, true
}

// Restore puts taken entries back at their original positions. Entries whose
// user has re-joined in the meantime are dropped.
func (q *Queue) Restore(entries ...Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range entries {
		if q.indexLocked(e.UserID) >= 0 {
			continue
		}
		q.entries = append(q.entries, e)
	}
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].seq < q.entries[j].seq
	})
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the queue in join order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Drain empties the queue and returns what it held.
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

func (q *Queue) indexLocked(userID uint) int {
	for i := range q.entries {
		if q.entries[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (q *Queue) removeLocked(userID uint) bool {
	i := q.indexLocked(userID)
	if i < 0 {
		return false
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return true
}
