package matching

import (
	"context"
	"sync"
	"time"

	"github.com/omis-2025/strangerwave-sub000/internal/scoring"
	"github.com/omis-2025/strangerwave-sub000/internal/store"
)

type cachedProfile struct {
	profile  scoring.Profile
	banned   bool
	loadedAt time.Time
}

// profileCache keeps short-lived scoring profiles so a busy queue does not
// reload every candidate from the store on every scan.
type profileCache struct {
	mu      sync.Mutex
	entries map[uint]cachedProfile
	ttl     time.Duration
	users   store.UserMetricsStore
	now     func() time.Time
}

func newProfileCache(users store.UserMetricsStore, ttl time.Duration) *profileCache {
	return &profileCache{
		entries: make(map[uint]cachedProfile),
		ttl:     ttl,
		users:   users,
		now:     time.Now,
	}
}

// Get returns the user's profile and whether the user is banned.
func (c *profileCache) Get(ctx context.Context, userID uint) (scoring.Profile, bool, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		cp, ok := c.entries[userID]
		c.mu.Unlock()
		if ok && c.now().Sub(cp.loadedAt) < c.ttl {
			return cp.profile, cp.banned, nil
		}
	}

	user, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return scoring.Profile{}, false, err
	}
	interests, err := c.users.GetInterests(ctx, userID)
	if err != nil {
		return scoring.Profile{}, false, err
	}
	m, err := c.users.GetInteractionMetrics(ctx, userID)
	if err != nil {
		return scoring.Profile{}, false, err
	}

	names := make([]string, 0, len(interests))
	for _, i := range interests {
		if i.Weight > 0 {
			names = append(names, i.Name)
		}
	}
	p := scoring.Profile{UserID: userID, Interests: names, Metrics: m}

	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[userID] = cachedProfile{profile: p, banned: user.IsBanned, loadedAt: c.now()}
		c.mu.Unlock()
	}
	return p, user.IsBanned, nil
}

func (c *profileCache) Invalidate(userIDs ...uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
	}
}

// Prune drops expired entries.
func (c *profileCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, cp := range c.entries {
		if now.Sub(cp.loadedAt) >= c.ttl {
			delete(c.entries, id)
		}
	}
}
