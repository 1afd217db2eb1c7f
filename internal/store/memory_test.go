package store

import (
	"context"
	"testing"
	"time"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

func TestMemoryStore_GetUser(t *testing.T) {
	s := NewMemoryStore()
	u := s.PutUser(models.User{Gender: "Male", Country: "de"})
	ctx := context.Background()

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Gender != models.GenderMale || got.Country != "DE" {
		t.Errorf("profile not normalized: %+v", got)
	}

	_, err = s.GetUser(ctx, 999)
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("GetUser(999) error = %v, want NOT_FOUND", err)
	}
}

func TestMemoryStore_AdjustInterestWeight(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.SetInterests(1, "Music")

	tests := []struct {
		name   string
		input  string
		delta  float64
		lookup string
		want   float64
	}{
		{name: "Existing interest", input: "MUSIC", delta: 0.1, lookup: "music", want: 1.1},
		{name: "New interest", input: "tech", delta: 0.02, lookup: "tech", want: 0.02},
		{name: "Capped at five", input: "music", delta: 10, lookup: "music", want: models.MaxInterestWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AdjustInterestWeight(ctx, 1, tt.input, tt.delta); err != nil {
				t.Fatalf("AdjustInterestWeight() error = %v", err)
			}
			list, _ := s.GetInterests(ctx, 1)
			for _, i := range list {
				if i.Name == tt.lookup {
					if diff := i.Weight - tt.want; diff > 1e-9 || diff < -1e-9 {
						t.Errorf("weight = %v, want %v", i.Weight, tt.want)
					}
					return
				}
			}
			t.Errorf("interest %q not found", tt.lookup)
		})
	}

	if err := s.AdjustInterestWeight(ctx, 1, "  ", 1); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("empty name error = %v, want VALIDATION_ERROR", err)
	}
}

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess := &models.ChatSession{UserAID: 1, UserBID: 2, StartedAt: time.Now(), Active: true}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.ID == 0 {
		t.Fatal("CreateSession() did not assign an id")
	}

	msg := &models.Message{SessionID: sess.ID, SenderID: 1, Content: "hello"}
	if err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if err := s.SaveMessage(ctx, &models.Message{SessionID: 42}); err == nil {
		t.Error("SaveMessage() into unknown session should fail")
	}

	ended := time.Now()
	q := 0.5
	sess.EndedAt, sess.Active, sess.MatchQualityScore, sess.EndReason = &ended, false, &q, "disconnect"
	if err := s.EndSession(ctx, sess); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	stored, ok := s.Session(sess.ID)
	if !ok || stored.Active || stored.EndedAt == nil || *stored.MatchQualityScore != 0.5 {
		t.Errorf("stored session = %+v", stored)
	}
	if len(s.Messages(sess.ID)) != 1 {
		t.Errorf("Messages() len = %d, want 1", len(s.Messages(sess.ID)))
	}
}

func TestMemoryStore_MetricsAndBan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := s.PutUser(models.User{})

	m, err := s.GetInteractionMetrics(ctx, u.ID)
	if err != nil || m != nil {
		t.Fatalf("GetInteractionMetrics() = %v, %v; want nil, nil", m, err)
	}

	if err := s.UpdateInteractionMetrics(ctx, u.ID, models.MetricsDelta{ChatDurationSeconds: 60, StartedAt: time.Now()}); err != nil {
		t.Fatalf("UpdateInteractionMetrics() error = %v", err)
	}
	m, _ = s.GetInteractionMetrics(ctx, u.ID)
	if m == nil || m.TotalChats != 1 || m.AvgChatDurationSeconds != 60 {
		t.Errorf("metrics = %+v", m)
	}

	if err := s.BanUser(ctx, u.ID, "toxicity"); err != nil {
		t.Fatalf("BanUser() error = %v", err)
	}
	banned, _ := s.IsBanned(ctx, u.ID)
	if !banned {
		t.Error("IsBanned() = false after BanUser")
	}
}

func TestMemoryStore_ActiveAlgorithmAndAccounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if a, _ := s.ActiveAlgorithm(ctx); a != nil {
		t.Errorf("ActiveAlgorithm() = %+v, want nil", a)
	}
	s.PutAlgorithm(models.MatchingAlgorithm{Name: "v1", Active: true, InterestWeight: 1})
	s.PutAlgorithm(models.MatchingAlgorithm{Name: "v2", Active: true, InterestWeight: 0.8})
	a, _ := s.ActiveAlgorithm(ctx)
	if a == nil || a.Name != "v2" {
		t.Errorf("ActiveAlgorithm() = %+v, want v2", a)
	}

	first, _ := s.FindOrCreateTelegramUser(ctx, 777, "anon")
	second, _ := s.FindOrCreateTelegramUser(ctx, 777, "anon")
	if first.ID != second.ID {
		t.Errorf("FindOrCreateTelegramUser created a duplicate: %d vs %d", first.ID, second.ID)
	}
}
