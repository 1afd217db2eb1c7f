// Package moderation decides whether a chat message may be delivered and
// whether its sender should be banned on the spot.
package moderation

import (
	"context"
	"strings"

	"github.com/omis-2025/strangerwave-sub000/internal/config"
)

type Verdict struct {
	Flagged       bool
	ToxicityScore float64
	ShouldAutoBan bool
	Reason        string
}

type Gate interface {
	Evaluate(ctx context.Context, senderID uint, content string) (Verdict, error)
}

// Noop approves everything. It is used when no provider is configured.
type Noop struct{}

func (Noop) Evaluate(ctx context.Context, senderID uint, content string) (Verdict, error) {
	return Verdict{}, nil
}

// Chain asks every gate and keeps the most severe verdict. It only fails
// when no gate produced a verdict.
type Chain []Gate

func (c Chain) Evaluate(ctx context.Context, senderID uint, content string) (Verdict, error) {
	var (
		worst   Verdict
		lastErr error
		ok      bool
	)
	for _, g := range c {
		v, err := g.Evaluate(ctx, senderID, content)
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		if moreSevere(v, worst) {
			worst = v
		}
	}
	if !ok && lastErr != nil {
		return Verdict{}, lastErr
	}
	return worst, nil
}

func moreSevere(a, b Verdict) bool {
	if a.ShouldAutoBan != b.ShouldAutoBan {
		return a.ShouldAutoBan
	}
	if a.Flagged != b.Flagged {
		return a.Flagged
	}
	return a.ToxicityScore > b.ToxicityScore
}

// FromConfig builds the gate described by cfg: a word list gate, an HTTP
// provider, both chained, or Noop when neither is configured.
func FromConfig(cfg *config.Config) (Gate, error) {
	var gates Chain

	if path := strings.TrimSpace(cfg.ModerationWordList); path != "" {
		terms, err := LoadWordList(path)
		if err != nil {
			return nil, err
		}
		gates = append(gates, NewKeywordGate(terms, cfg.ModerationAutoBanThreshold))
	}

	if cfg.ModerationURL != "" {
		gates = append(gates, NewHTTPGate(HTTPConfig{
			URL:              cfg.ModerationURL,
			APIKey:           cfg.ModerationAPIKey,
			AutoBanThreshold: cfg.ModerationAutoBanThreshold,
		}))
	}

	switch len(gates) {
	case 0:
		return Noop{}, nil
	case 1:
		return gates[0], nil
	default:
		return gates, nil
	}
}
