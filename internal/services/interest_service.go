// Package services holds background work that enriches user profiles from
// chat activity.
package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/store"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

const (
	// mentionStep is the weight a single mention adds before the per-message cap.
	mentionStep = 0.2
	// nudgeScale converts the capped mention strength into a weight delta.
	nudgeScale = 0.1
	queueDepth = 256
)

// DefaultCatalog maps keywords found in chat text to the interest they count
// toward.
var DefaultCatalog = map[string]string{
	"music": "music", "song": "music", "songs": "music", "band": "music", "concert": "music", "guitar": "music",
	"movie": "movies", "movies": "movies", "film": "movies", "cinema": "movies", "series": "movies",
	"game": "gaming", "games": "gaming", "gaming": "gaming", "playstation": "gaming", "xbox": "gaming",
	"book": "books", "books": "books", "novel": "books", "reading": "books",
	"football": "sports", "soccer": "sports", "basketball": "sports", "gym": "sports", "running": "sports",
	"travel": "travel", "trip": "travel", "travelling": "travel", "traveling": "travel",
	"cooking": "food", "food": "food", "recipe": "food", "pizza": "food",
	"coding": "technology", "programming": "technology", "computer": "technology", "tech": "technology",
	"art": "art", "drawing": "art", "painting": "art", "photography": "art",
	"anime": "anime", "manga": "anime",
	"dog": "animals", "dogs": "animals", "cat": "animals", "cats": "animals",
}

// ExtractInterests counts catalog mentions in content per interest.
func ExtractInterests(content string, catalog map[string]string) map[string]int {
	found := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if interest, ok := catalog[w]; ok {
			found[interest]++
		}
	}
	return found
}

// MentionDelta is the weight added to an interest mentioned n times in one
// message.
func MentionDelta(occurrences int) float64 {
	strength := float64(occurrences) * mentionStep
	if strength > 1 {
		strength = 1
	}
	return strength * nudgeScale
}

type interestJob struct {
	userID  uint
	content string
}

// InterestService nudges interest weights from message text on a pool of
// workers. Jobs for one user always land on the same worker, so a user's
// updates apply in the order the messages were sent.
type InterestService struct {
	users   store.UserMetricsStore
	catalog map[string]string
	workers []chan interestJob

	wg  sync.WaitGroup
	log *zap.SugaredLogger
}

func NewInterestService(users store.UserMetricsStore, catalog map[string]string, workers int) *InterestService {
	if workers < 1 {
		workers = 1
	}
	if catalog == nil {
		catalog = DefaultCatalog
	}
	s := &InterestService{
		users:   users,
		catalog: catalog,
		workers: make([]chan interestJob, workers),
		log:     logger.Named("interests"),
	}
	for i := range s.workers {
		s.workers[i] = make(chan interestJob, queueDepth)
	}
	return s
}

// Enqueue schedules extraction for one message. It never blocks; when the
// user's worker is backed up the job is dropped.
func (s *InterestService) Enqueue(userID uint, content string) bool {
	if userID == 0 || strings.TrimSpace(content) == "" {
		return false
	}
	select {
	case s.workers[int(userID%uint(len(s.workers)))] <- interestJob{userID: userID, content: content}:
		return true
	default:
		s.log.Warnw("interest queue full, dropping job", "user_id", userID)
		return false
	}
}

// Process applies one message to the user's interests synchronously.
func (s *InterestService) Process(ctx context.Context, userID uint, content string) error {
	found := ExtractInterests(content, s.catalog)
	if len(found) == 0 {
		return nil
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.users.AdjustInterestWeight(ctx, userID, name, MentionDelta(found[name])); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the workers until ctx is cancelled.
func (s *InterestService) Serve(ctx context.Context) error {
	for _, jobs := range s.workers {
		s.wg.Add(1)
		go s.work(ctx, jobs)
	}
	<-ctx.Done()
	s.wg.Wait()
	return ctx.Err()
}

func (s *InterestService) String() string {
	return "interest-service"
}

func (s *InterestService) work(ctx context.Context, jobs <-chan interestJob) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			if err := s.Process(ctx, job.userID, job.content); err != nil {
				s.log.Warnw("interest update failed", "user_id", job.userID, "error", err)
			}
		}
	}
}
