// Package session owns active chat pairings from creation to their single end.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/metrics"
	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/internal/scoring"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

// End reasons
const (
	ReasonDisconnect     = "disconnect"
	ReasonConnectionLost = "connection_lost"
	ReasonBanned         = "banned"
	ReasonShutdown       = "shutdown"
)

const (
	BannedMessage        = "You have been banned for violating the community guidelines"
	PartnerBannedMessage = "Your chat partner was removed for violating the community guidelines"
)

// Notifier delivers events to connected users.
type Notifier interface {
	Send(userID uint, e events.Event) bool
}

type Session struct {
	ID          uint
	UserA       uint
	UserB       uint
	StartedAt   time.Time
	Score       float64
	AlgorithmID *uint

	relay  sync.Mutex
	ended  atomic.Bool
	countA atomic.Int64
	countB atomic.Int64
}

func (s *Session) PartnerOf(userID uint) uint {
	switch userID {
	case s.UserA:
		return s.UserB
	case s.UserB:
		return s.UserA
	}
	return 0
}

func (s *Session) Has(userID uint) bool {
	return userID != 0 && (userID == s.UserA || userID == s.UserB)
}

func (s *Session) Ended() bool {
	return s.ended.Load()
}

// MessageCounts returns how many messages each side has sent.
func (s *Session) MessageCounts() (a, b int) {
	return int(s.countA.Load()), int(s.countB.Load())
}

// WithRelayLock runs fn while holding the session's relay lock, so messages
// are persisted and forwarded in one order seen by both peers.
func (s *Session) WithRelayLock(fn func() error) error {
	s.relay.Lock()
	defer s.relay.Unlock()
	return fn()
}

type Manager struct {
	mu     sync.Mutex
	byID   map[uint]*Session
	byUser map[uint]*Session

	sessions store.SessionStore
	users    store.UserMetricsStore
	notifier Notifier
	now      func() time.Time
	log      *zap.SugaredLogger
}

func NewManager(sessions store.SessionStore, users store.UserMetricsStore, notifier Notifier) *Manager {
	return &Manager{
		byID:     make(map[uint]*Session),
		byUser:   make(map[uint]*Session),
		sessions: sessions,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Named("session"),
	}
}

// Create persists a new active session for a and b and makes it visible to
// lookups. It fails when either user already has an active session.
func (m *Manager) Create(ctx context.Context, a, b uint, score float64, algorithmID *uint) (*Session, error) {
	if a == b {
		return nil, errors.New(errors.ErrCodeValidation, "cannot pair a user with themselves")
	}

	m.mu.Lock()
	busy := m.byUser[a] != nil || m.byUser[b] != nil
	m.mu.Unlock()
	if busy {
		return nil, errors.New(errors.ErrCodeAlreadyInSession, "user already in a session")
	}

	record := &models.ChatSession{
		UserAID:     a,
		UserBID:     b,
		StartedAt:   m.now(),
		Active:      true,
		MatchScore:  score,
		AlgorithmID: algorithmID,
	}
	if err := m.sessions.CreateSession(ctx, record); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCollaboratorFailure, "failed to create session")
	}

	s := &Session{
		ID:          record.ID,
		UserA:       a,
		UserB:       b,
		StartedAt:   record.StartedAt,
		Score:       score,
		AlgorithmID: algorithmID,
	}

	m.mu.Lock()
	if m.byUser[a] != nil || m.byUser[b] != nil {
		m.mu.Unlock()
		return nil, errors.New(errors.ErrCodeAlreadyInSession, "user already in a session")
	}
	m.byID[s.ID] = s
	m.byUser[a] = s
	m.byUser[b] = s
	count := len(m.byID)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	m.log.Infow("session created", "session_id", s.ID, "user_a", a, "user_b", b, "score", score)
	return s, nil
}

// ActiveFor returns the user's active session.
func (m *Manager) ActiveFor(userID uint) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	return s, ok
}

func (m *Manager) IsActive(userID uint) bool {
	_, ok := m.ActiveFor(userID)
	return ok
}

func (m *Manager) Get(sessionID uint) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	return s, ok
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// RecordMessage counts a delivered message toward the session's quality score.
func (m *Manager) RecordMessage(sessionID, senderID uint) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	switch senderID {
	case s.UserA:
		s.countA.Add(1)
	case s.UserB:
		s.countB.Add(1)
	}
}

// End terminates the session once. Later calls, and calls racing the
// winning one, return false and change nothing.
func (m *Manager) End(ctx context.Context, sessionID, initiatorID uint, reason string) bool {
	s, ok := m.Get(sessionID)
	if !ok {
		return false
	}

	// An in-flight relay either delivers before the end or sees Ended().
	// The relay lock is taken before m.mu, matching RecordMessage.
	swapped := false
	_ = s.WithRelayLock(func() error {
		swapped = s.ended.CompareAndSwap(false, true)
		return nil
	})
	if !swapped {
		return false
	}

	m.mu.Lock()
	delete(m.byID, s.ID)
	if m.byUser[s.UserA] == s {
		delete(m.byUser, s.UserA)
	}
	if m.byUser[s.UserB] == s {
		delete(m.byUser, s.UserB)
	}
	count := len(m.byID)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	m.finish(ctx, s, initiatorID, reason)
	return true
}

// EndForUser ends the user's active session, if any.
func (m *Manager) EndForUser(ctx context.Context, userID uint, reason string) bool {
	s, ok := m.ActiveFor(userID)
	if !ok {
		return false
	}
	return m.End(ctx, s.ID, userID, reason)
}

// EndAll ends every active session, used on shutdown.
func (m *Manager) EndAll(ctx context.Context, reason string) int {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	n := 0
	for _, id := range ids {
		if m.End(ctx, id, 0, reason) {
			n++
		}
	}
	return n
}

func (m *Manager) finish(ctx context.Context, s *Session, initiatorID uint, reason string) {
	endedAt := m.now()
	duration := endedAt.Sub(s.StartedAt)
	if duration < 0 {
		duration = 0
	}
	countA, countB := s.MessageCounts()
	quality := scoring.MatchQuality(duration, countA, countB)

	record := &models.ChatSession{
		ID:                s.ID,
		UserAID:           s.UserA,
		UserBID:           s.UserB,
		StartedAt:         s.StartedAt,
		EndedAt:           &endedAt,
		Active:            false,
		MatchScore:        s.Score,
		MatchQualityScore: &quality,
		AlgorithmID:       s.AlgorithmID,
		EndReason:         reason,
	}
	if err := m.sessions.EndSession(ctx, record); err != nil {
		m.log.Errorw("failed to persist session end", "session_id", s.ID, "error", err)
	}

	delta := models.MetricsDelta{ChatDurationSeconds: duration.Seconds(), StartedAt: s.StartedAt}
	for _, uid := range []uint{s.UserA, s.UserB} {
		if err := m.users.UpdateInteractionMetrics(ctx, uid, delta); err != nil {
			m.log.Warnw("failed to update interaction metrics", "user_id", uid, "error", err)
		}
	}

	m.notifyEnd(s, initiatorID, reason)

	metrics.RecordSessionEnd(reason, duration)
	m.log.Infow("session ended",
		"session_id", s.ID,
		"reason", reason,
		"initiator", initiatorID,
		"duration_seconds", duration.Seconds(),
		"quality", quality,
	)
}

func (m *Manager) notifyEnd(s *Session, initiatorID uint, reason string) {
	if !s.Has(initiatorID) {
		m.notifier.Send(s.UserA, events.Disconnected{})
		m.notifier.Send(s.UserB, events.Disconnected{})
		return
	}

	partnerID := s.PartnerOf(initiatorID)
	if reason == ReasonBanned {
		m.notifier.Send(partnerID, events.PartnerBanned{Message: PartnerBannedMessage})
		m.notifier.Send(initiatorID, events.Banned{Reason: BannedMessage})
		return
	}
	m.notifier.Send(partnerID, events.PartnerDisconnected{})
	m.notifier.Send(initiatorID, events.Disconnected{})
}
