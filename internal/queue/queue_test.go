package queue

import (
	"sync"
	"testing"
)

func TestQueue_EnqueueIsIdempotent(t *testing.T) {
	q := New()
	q.Enqueue(Entry{UserID: 1})
	q.Enqueue(Entry{UserID: 2})
	again := q.Enqueue(Entry{UserID: 1, Country: "de"})

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	snap := q.Snapshot()
	if snap[0].UserID != 2 || snap[1].UserID != 1 {
		t.Errorf("re-join should move the user to the back, got %v then %v", snap[0].UserID, snap[1].UserID)
	}
	if again.Country != "DE" || again.PreferredGender != "any" {
		t.Errorf("entry not normalized: %+v", again)
	}
}

func TestQueue_DequeueIdempotent(t *testing.T) {
	q := New()
	q.Enqueue(Entry{UserID: 1})

	if !q.Dequeue(1) {
		t.Error("first Dequeue() = false, want true")
	}
	if q.Dequeue(1) {
		t.Error("second Dequeue() = true, want false")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_Candidates(t *testing.T) {
	tests := []struct {
		name      string
		requester Entry
		entry     Entry
		want      bool
	}{
		{
			name:      "Both any",
			requester: Entry{UserID: 1, Gender: "male"},
			entry:     Entry{UserID: 2, Gender: "female"},
			want:      true,
		},
		{
			name:      "Entry wants requester gender",
			requester: Entry{UserID: 1, Gender: "male"},
			entry:     Entry{UserID: 2, Gender: "female", PreferredGender: "male"},
			want:      true,
		},
		{
			name:      "Entry wants other gender",
			requester: Entry{UserID: 1, Gender: "male"},
			entry:     Entry{UserID: 2, Gender: "female", PreferredGender: "female"},
			want:      false,
		},
		{
			name:      "Requester wants other gender",
			requester: Entry{UserID: 1, Gender: "male", PreferredGender: "female"},
			entry:     Entry{UserID: 2, Gender: "male"},
			want:      false,
		},
		{
			name:      "Entry country matches",
			requester: Entry{UserID: 1, Country: "DE"},
			entry:     Entry{UserID: 2, Country: "de"},
			want:      true,
		},
		{
			name:      "Entry country differs",
			requester: Entry{UserID: 1, Country: "FR"},
			entry:     Entry{UserID: 2, Country: "DE"},
			want:      false,
		},
		{
			name:      "Entry without country",
			requester: Entry{UserID: 1, Country: "FR"},
			entry:     Entry{UserID: 2},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			q.Enqueue(tt.entry)
			stored := q.Enqueue(tt.requester)

			got := q.Candidates(stored)
			if (len(got) == 1) != tt.want {
				t.Errorf("Candidates() = %v, want match %v", got, tt.want)
			}
			for _, c := range got {
				if c.UserID == tt.requester.UserID {
					t.Error("Candidates() returned the requester")
				}
			}
		})
	}
}

func TestQueue_CandidatesJoinOrder(t *testing.T) {
	q := New()
	for _, id := range []uint{4, 2, 3} {
		q.Enqueue(Entry{UserID: id})
	}
	got := q.Candidates(Entry{UserID: 1})
	want := []uint{4, 2, 3}
	for i := range want {
		if got[i].UserID != want[i] {
			t.Fatalf("Candidates() order = %v, want %v", got, want)
		}
	}
}

func TestQueue_TakePairAndRestore(t *testing.T) {
	q := New()
	for _, id := range []uint{1, 2, 3} {
		q.Enqueue(Entry{UserID: id})
	}

	a, b, ok := q.TakePair(1, 3)
	if !ok {
		t.Fatal("TakePair(1,3) failed")
	}
	if _, _, ok := q.TakePair(1, 2); ok {
		t.Fatal("TakePair succeeded with an already taken user")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	q.Restore(b, a)
	snap := q.Snapshot()
	if len(snap) != 3 || snap[0].UserID != 1 || snap[1].UserID != 2 || snap[2].UserID != 3 {
		t.Errorf("Restore() order = %v, want 1,2,3", snap)
	}
}

func TestQueue_ConcurrentTakePair(t *testing.T) {
	q := New()
	for id := uint(1); id <= 3; id++ {
		q.Enqueue(Entry{UserID: id})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, partner := range []uint{2, 3} {
		wg.Add(1)
		go func(p uint) {
			defer wg.Done()
			if _, _, ok := q.TakePair(1, p); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(partner)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("user 1 was taken %d times, want exactly once", wins)
	}
}
