package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

// MemoryStore keeps everything in process memory. Returned records are
// copies, so callers may mutate them freely.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[uint]*models.User
	metrics    map[uint]*models.InteractionMetrics
	interests  map[uint][]models.UserInterest
	sessions   map[uint]*models.ChatSession
	messages   map[uint][]models.Message
	algorithms []models.MatchingAlgorithm

	nextUserID     uint
	nextSessionID  uint
	nextMessageID  uint
	nextInterestID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uint]*models.User),
		metrics:   make(map[uint]*models.InteractionMetrics),
		interests: make(map[uint][]models.UserInterest),
		sessions:  make(map[uint]*models.ChatSession),
		messages:  make(map[uint][]models.Message),
	}
}

var _ Store = (*MemoryStore)(nil)

// PutUser inserts or replaces a user. A zero ID is assigned the next free id.
func (s *MemoryStore) PutUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := u.BeforeSave(nil); err != nil {
		u.Gender = ""
		_ = u.BeforeSave(nil)
	}
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Interests = nil
	s.users[u.ID] = &u

	out := u
	return &out
}

// PutMetrics inserts or replaces a metrics row.
func (s *MemoryStore) PutMetrics(m models.InteractionMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.UserID] = &m
}

// SetInterests replaces a user's interests, keeping the given order.
func (s *MemoryStore) SetInterests(userID uint, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]models.UserInterest, 0, len(names))
	for _, n := range names {
		s.nextInterestID++
		i := models.UserInterest{ID: s.nextInterestID, UserID: userID, Name: n, Weight: 1}
		if err := i.BeforeSave(nil); err != nil {
			continue
		}
		list = append(list, i)
	}
	s.interests[userID] = list
}

// PutAlgorithm adds an algorithm row; an active row deactivates the others.
func (s *MemoryStore) PutAlgorithm(a models.MatchingAlgorithm) *models.MatchingAlgorithm {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		a.ID = uint(len(s.algorithms) + 1)
	}
	if a.Active {
		for i := range s.algorithms {
			s.algorithms[i].Active = false
		}
	}
	s.algorithms = append(s.algorithms, a)
	out := a
	return &out
}

func (s *MemoryStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) IsBanned(ctx context.Context, userID uint) (bool, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsBanned, nil
}

func (s *MemoryStore) GetInteractionMetrics(ctx context.Context, userID uint) (*models.InteractionMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[userID]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) UpdateInteractionMetrics(ctx context.Context, userID uint, delta models.MetricsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[userID]
	if !ok {
		m = &models.InteractionMetrics{UserID: userID}
		s.metrics[userID] = m
	}
	m.Apply(delta)
	m.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetInterests(ctx context.Context, userID uint) ([]models.UserInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.interests[userID]
	out := make([]models.UserInterest, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) AdjustInterestWeight(ctx context.Context, userID uint, name string, delta float64) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New(errors.ErrCodeValidation, "interest name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.interests[userID]
	for i := range list {
		if list[i].Name == name {
			list[i].Weight = models.ClampWeight(list[i].Weight + delta)
			list[i].UpdatedAt = time.Now()
			return nil
		}
	}

	s.nextInterestID++
	s.interests[userID] = append(list, models.UserInterest{
		ID:     s.nextInterestID,
		UserID: userID,
		Name:   name,
		Weight: models.ClampWeight(delta),
	})
	return nil
}

func (s *MemoryStore) BanUser(ctx context.Context, userID uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "user not found")
	}
	u.IsBanned = true
	u.BanReason = reason
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) TouchLastMatched(ctx context.Context, userID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "user not found")
	}
	u.LastMatchedAt = &at
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSessionID++
	session.ID = s.nextSessionID
	session.CreatedAt = time.Now()
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *MemoryStore) EndSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "session not found")
	}
	existing.Active = false
	existing.EndedAt = session.EndedAt
	existing.EndReason = session.EndReason
	existing.MatchQualityScore = session.MatchQualityScore
	return nil
}

func (s *MemoryStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[msg.SessionID]; !ok {
		return errors.New(errors.ErrCodeNotFound, "session not found")
	}
	s.nextMessageID++
	msg.ID = s.nextMessageID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

func (s *MemoryStore) ActiveAlgorithm(ctx context.Context) (*models.MatchingAlgorithm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.algorithms) - 1; i >= 0; i-- {
		if s.algorithms[i].Active {
			out := s.algorithms[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindOrCreateTelegramUser(ctx context.Context, telegramID int64, displayName string) (*models.User, error) {
	s.mu.RLock()
	for _, u := range s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			out := *u
			s.mu.RUnlock()
			return &out, nil
		}
	}
	s.mu.RUnlock()

	tid := telegramID
	return s.PutUser(models.User{TelegramID: &tid, DisplayName: displayName}), nil
}

// Session returns a copy of a stored session.
func (s *MemoryStore) Session(id uint) (*models.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	out := *sess
	return &out, true
}

// Sessions returns copies of all stored sessions ordered by id.
func (s *MemoryStore) Sessions() []models.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChatSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Messages returns the messages of a session in the order they were saved.
func (s *MemoryStore) Messages(sessionID uint) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out
}
