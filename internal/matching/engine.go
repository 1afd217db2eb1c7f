// Package matching pairs queued users into chat sessions.
package matching

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/metrics"
	"github.com/omis-2025/strangerwave-sub000/internal/queue"
	"github.com/omis-2025/strangerwave-sub000/internal/scoring"
	"github.com/omis-2025/strangerwave-sub000/internal/session"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

// User states as seen by the engine
const (
	StateNone   = "none"
	StateQueued = "queued"
	StateActive = "active"
)

// maxCommitAttempts bounds how often one scan retries after losing a
// candidate to a concurrent match.
const maxCommitAttempts = 3

type Preferences struct {
	PreferredGender string
	Country         string
}

type Options struct {
	DefaultWeights scoring.Weights
	ProfileTTL     time.Duration
	RescanInterval time.Duration
}

type Engine struct {
	// commit guards every queue <-> session transition
	commit sync.Mutex

	queue      *queue.Queue
	sessions   *session.Manager
	users      store.UserMetricsStore
	algorithms store.AlgorithmStore
	notifier   session.Notifier
	profiles   *profileCache

	defaults       scoring.Weights
	rescanInterval time.Duration
	log            *zap.SugaredLogger
}

func NewEngine(
	q *queue.Queue,
	sessions *session.Manager,
	users store.UserMetricsStore,
	algorithms store.AlgorithmStore,
	notifier session.Notifier,
	opts Options,
) *Engine {
	if opts.DefaultWeights == (scoring.Weights{}) {
		opts.DefaultWeights = scoring.DefaultWeights()
	}
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = 5 * time.Second
	}
	return &Engine{
		queue:          q,
		sessions:       sessions,
		users:          users,
		algorithms:     algorithms,
		notifier:       notifier,
		profiles:       newProfileCache(users, opts.ProfileTTL),
		defaults:       opts.DefaultWeights,
		rescanInterval: opts.RescanInterval,
		log:            logger.Named("matching"),
	}
}

// Join queues the user and immediately tries to find them a partner.
func (e *Engine) Join(ctx context.Context, userID uint, prefs Preferences) error {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodeCollaboratorFailure, "failed to load user")
	}
	if user.IsBanned {
		return errors.New(errors.ErrCodePolicyRejection, "you are banned and cannot join the queue")
	}

	e.commit.Lock()
	if e.sessions.IsActive(userID) {
		e.commit.Unlock()
		return errors.New(errors.ErrCodeAlreadyInSession, "you are already in a chat")
	}
	entry := e.queue.Enqueue(queue.Entry{
		UserID:          userID,
		Gender:          user.Gender,
		PreferredGender: prefs.PreferredGender,
		Country:         prefs.Country,
	})
	e.commit.Unlock()

	e.profiles.Invalidate(userID)
	metrics.QueueLength.Set(float64(e.queue.Len()))
	e.log.Debugw("user queued", "user_id", userID, "preferred_gender", entry.PreferredGender, "country", entry.Country)

	e.notifier.Send(userID, events.QueueJoined{})
	e.scan(ctx, userID, e.loadWeights(ctx))
	return nil
}

// Leave removes the user from the queue. It reports whether they were queued.
func (e *Engine) Leave(userID uint) bool {
	e.commit.Lock()
	removed := e.queue.Dequeue(userID)
	e.commit.Unlock()

	if removed {
		metrics.QueueLength.Set(float64(e.queue.Len()))
	}
	return removed
}

// State reports whether the user is idle, queued or chatting.
func (e *Engine) State(userID uint) string {
	e.commit.Lock()
	defer e.commit.Unlock()

	switch {
	case e.sessions.IsActive(userID):
		return StateActive
	case e.queue.Contains(userID):
		return StateQueued
	default:
		return StateNone
	}
}

// Rescan re-evaluates every queued user in join order with one weight
// snapshot.
func (e *Engine) Rescan(ctx context.Context) int {
	w := e.loadWeights(ctx)
	matched := 0
	for _, entry := range e.queue.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		if e.scan(ctx, entry.UserID, w) {
			matched++
		}
	}
	e.profiles.Prune()
	return matched
}

// Run rescans the queue periodically until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.queue.Len() < 2 {
				continue
			}
			if n := e.Rescan(ctx); n > 0 {
				e.log.Infow("periodic rescan matched users", "sessions", n)
			}
		}
	}
}

// Serve lets the engine run under a supervisor.
func (e *Engine) Serve(ctx context.Context) error {
	return e.Run(ctx)
}

func (e *Engine) String() string {
	return "matching-engine"
}

// Shutdown empties the queue and tells every waiting user.
func (e *Engine) Shutdown() int {
	e.commit.Lock()
	drained := e.queue.Drain()
	e.commit.Unlock()

	for _, entry := range drained {
		e.notifier.Send(entry.UserID, events.QueueLeft{})
	}
	metrics.QueueLength.Set(0)
	return len(drained)
}

type weightSnapshot struct {
	weights     scoring.Weights
	algorithmID *uint
}

func (e *Engine) loadWeights(ctx context.Context) weightSnapshot {
	alg, err := e.algorithms.ActiveAlgorithm(ctx)
	if err != nil {
		e.log.Warnw("failed to load matching algorithm, using defaults", "error", err)
		return weightSnapshot{weights: e.defaults}
	}
	if alg == nil {
		return weightSnapshot{weights: e.defaults}
	}
	id := alg.ID
	return weightSnapshot{weights: scoring.WeightsFrom(alg, e.defaults), algorithmID: &id}
}

// scan looks for the best partner of a queued user and commits the match.
func (e *Engine) scan(ctx context.Context, userID uint, w weightSnapshot) bool {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		requester, ok := e.queue.Get(userID)
		if !ok {
			return false
		}
		candidates := e.queue.Candidates(requester)
		if len(candidates) == 0 {
			return false
		}

		reqProfile, banned, err := e.profiles.Get(ctx, userID)
		if err != nil {
			e.log.Warnw("failed to load requester profile", "user_id", userID, "error", err)
			return false
		}
		if banned {
			e.Leave(userID)
			return false
		}

		best, score, found := e.pickBest(ctx, reqProfile, candidates, w.weights)
		if !found {
			return false
		}

		s, outcome := e.tryCommit(ctx, requester.UserID, best.UserID, score, w.algorithmID)
		switch outcome {
		case commitOK:
			e.afterCommit(ctx, s)
			return true
		case commitLostRace:
			metrics.MatchCommitFailures.WithLabelValues("lost_race").Inc()
			continue
		default:
			return false
		}
	}
	return false
}

// pickBest returns the strictly highest scoring candidate. Candidates arrive
// in join order, so an equal score never displaces an earlier entry.
func (e *Engine) pickBest(ctx context.Context, requester scoring.Profile, candidates []queue.Entry, w scoring.Weights) (queue.Entry, float64, bool) {
	var (
		best      queue.Entry
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		p, banned, err := e.profiles.Get(ctx, c.UserID)
		if err != nil {
			e.log.Warnw("skipping candidate, profile unavailable", "user_id", c.UserID, "error", err)
			continue
		}
		if banned {
			continue
		}
		s := scoring.Score(requester, p, w)
		if !found || s > bestScore {
			best, bestScore, found = c, s, true
		}
	}
	return best, bestScore, found
}

type commitOutcome int

const (
	commitOK commitOutcome = iota
	commitLostRace
	commitFailed
)

func (e *Engine) tryCommit(ctx context.Context, a, b uint, score float64, algorithmID *uint) (*session.Session, commitOutcome) {
	e.commit.Lock()
	defer e.commit.Unlock()

	if e.sessions.IsActive(a) || e.sessions.IsActive(b) {
		return nil, commitLostRace
	}
	ea, eb, ok := e.queue.TakePair(a, b)
	if !ok {
		return nil, commitLostRace
	}

	s, err := e.sessions.Create(ctx, a, b, score, algorithmID)
	if err != nil {
		e.queue.Restore(ea, eb)
		metrics.MatchCommitFailures.WithLabelValues("store_error").Inc()
		e.log.Errorw("match commit failed, users stay queued", "user_a", a, "user_b", b, "error", err)
		return nil, commitFailed
	}
	return s, commitOK
}

func (e *Engine) afterCommit(ctx context.Context, s *session.Session) {
	now := time.Now()
	for _, uid := range []uint{s.UserA, s.UserB} {
		if err := e.users.TouchLastMatched(ctx, uid, now); err != nil {
			e.log.Warnw("failed to record last match time", "user_id", uid, "error", err)
		}
	}
	e.profiles.Invalidate(s.UserA, s.UserB)

	pct := scoring.Percent(s.Score)
	e.notifier.Send(s.UserA, events.MatchFound{SessionID: s.ID, PartnerID: s.UserB, MatchScore: pct})
	e.notifier.Send(s.UserB, events.MatchFound{SessionID: s.ID, PartnerID: s.UserA, MatchScore: pct})

	metrics.RecordMatch(s.Score)
	metrics.QueueLength.Set(float64(e.queue.Len()))
	e.log.Infow("users matched", "session_id", s.ID, "user_a", s.UserA, "user_b", s.UserB, "match_score", pct)
}
