package ports

import (
	"context"
	"time"
)

// Match is one ranked specialist candidate.
type Match struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	Specialization string  `json:"specialization,omitempty"`
	Experience     int     `json:"experience"`
	PricePerHour   float64 `json:"price_per_hour"`
	AvgRating      float64 `json:"avg_rating"`
	ReviewCount    int     `json:"review_count"`
	Score          float64 `json:"score"`
}

// MatchCache stores the last computed ranking. Implementations may be lossy.
//
// Every Invalidate bumps a generation counter. Set stores the ranking only if
// the generation still equals gen, so a ranking computed before an
// invalidation is never cached after it.
type MatchCache interface {
	Get(ctx context.Context) ([]Match, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, gen int64, matches []Match, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context) error
}

type MatchingService interface {
	Match(ctx context.Context, userID string) ([]Match, error)
}
