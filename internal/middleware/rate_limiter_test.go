package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_CheckUserLimit(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		burst     int
		attempts  int
		want      int
	}{
		{name: "Burst of three", perMinute: 1, burst: 3, attempts: 5, want: 3},
		{name: "Zero burst still allows one", perMinute: 1, burst: 0, attempts: 3, want: 1},
		{name: "Unlimited", perMinute: 0, burst: 1, attempts: 50, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.perMinute, tt.burst, 1, 1)
			allowed := 0
			for i := 0; i < tt.attempts; i++ {
				if rl.CheckUserLimit(1) {
					allowed++
				}
			}
			if allowed != tt.want {
				t.Errorf("allowed %d of %d, want %d", allowed, tt.attempts, tt.want)
			}
			if !rl.CheckUserLimit(2) {
				t.Error("a different user should have their own bucket")
			}
		})
	}
}

func TestRateLimiter_LimitByIP(t *testing.T) {
	rl := NewRateLimiter(60, 10, 1, 2)
	h := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", codes, want)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, 1, 1)
	rl.CheckUserLimit(1)
	rl.CheckIPLimit("10.0.0.1")

	rl.cleanup(time.Now().Add(time.Second))

	rl.mu.Lock()
	users, ips := len(rl.userLimits), len(rl.ipLimits)
	rl.mu.Unlock()
	if users != 0 || ips != 0 {
		t.Errorf("after cleanup users=%d ips=%d, want 0", users, ips)
	}

	if !rl.CheckUserLimit(1) {
		t.Error("a cleaned-up user should start with a fresh bucket")
	}
}
