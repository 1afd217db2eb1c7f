package moderation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

type HTTPConfig struct {
	URL              string
	APIKey           string
	AutoBanThreshold float64
	Timeout          time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPGate calls a moderation API shaped like the OpenAI moderation
// endpoint. A circuit breaker stops calls while the provider keeps failing.
type HTTPGate struct {
	cfg    HTTPConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker[Verdict]
}

type moderationRequest struct {
	Input  string `json:"input"`
	User   string `json:"user,omitempty"`
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

func NewHTTPGate(cfg HTTPConfig) *HTTPGate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.AutoBanThreshold <= 0 {
		cfg.AutoBanThreshold = 1
	}

	g := &HTTPGate{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	g.cb = gobreaker.NewCircuitBreaker[Verdict](gobreaker.Settings{
		Name:        "moderation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

func (g *HTTPGate) Evaluate(ctx context.Context, senderID uint, content string) (Verdict, error) {
	return g.cb.Execute(func() (Verdict, error) {
		return g.call(ctx, senderID, content)
	})
}

func (g *HTTPGate) call(ctx context.Context, senderID uint, content string) (Verdict, error) {
	body, err := json.Marshal(moderationRequest{Input: content, User: userField(senderID)})
	if err != nil {
		return Verdict{}, fmt.Errorf("encode moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Verdict{}, fmt.Errorf("moderation provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Verdict{}, fmt.Errorf("decode moderation response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return Verdict{}, fmt.Errorf("moderation response has no results")
	}

	r := parsed.Results[0]
	var top float64
	var topCategory string
	for category, score := range r.CategoryScores {
		if score > top || (score == top && category < topCategory) {
			top, topCategory = score, category
		}
	}

	return Verdict{
		Flagged:       r.Flagged || top >= g.cfg.AutoBanThreshold,
		ToxicityScore: top,
		ShouldAutoBan: top >= g.cfg.AutoBanThreshold,
		Reason:        topCategory,
	}, nil
}

// userField formats the sender for the provider's string "user" field.
func userField(senderID uint) string {
	if senderID == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(senderID), 10)
}
