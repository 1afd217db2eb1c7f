// Package translation detects message languages and translates messages
// into the recipient's preferred language.
package translation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/omis-2025/strangerwave-sub000/internal/config"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

type Gate interface {
	DetectLanguage(ctx context.Context, content string) (string, error)
	Translate(ctx context.Context, content, from, to string) (string, error)
}

// Noop detects nothing and returns content unchanged.
type Noop struct{}

func (Noop) DetectLanguage(ctx context.Context, content string) (string, error) {
	return "", nil
}

func (Noop) Translate(ctx context.Context, content, from, to string) (string, error) {
	return content, nil
}

// FromConfig returns a LibreTranslate client when TRANSLATION_URL is set.
func FromConfig(cfg *config.Config) Gate {
	if strings.TrimSpace(cfg.TranslationURL) == "" {
		return Noop{}
	}
	return NewHTTPGate(cfg.TranslationURL, cfg.TranslationAPIKey)
}

// HTTPGate talks to a LibreTranslate compatible server.
type HTTPGate struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[string]
}

func NewHTTPGate(baseURL, apiKey string) *HTTPGate {
	return &HTTPGate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 3 * time.Second},
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "translation",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

type detectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (g *HTTPGate) DetectLanguage(ctx context.Context, content string) (string, error) {
	return g.cb.Execute(func() (string, error) {
		var out []detection
		if err := g.post(ctx, "/detect", detectRequest{Q: content, APIKey: g.apiKey}, &out); err != nil {
			return "", err
		}
		best := detection{}
		for _, d := range out {
			if d.Confidence > best.Confidence {
				best = d
			}
		}
		if best.Language == "" {
			return "", fmt.Errorf("language not detected")
		}
		return strings.ToLower(best.Language), nil
	})
}

func (g *HTTPGate) Translate(ctx context.Context, content, from, to string) (string, error) {
	if from == "" {
		from = "auto"
	}
	return g.cb.Execute(func() (string, error) {
		var out translateResponse
		req := translateRequest{Q: content, Source: from, Target: to, Format: "text", APIKey: g.apiKey}
		if err := g.post(ctx, "/translate", req, &out); err != nil {
			return "", err
		}
		return out.TranslatedText, nil
	})
}

func (g *HTTPGate) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("translation provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
