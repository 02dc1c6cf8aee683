package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	maxMatches     = 10
	reviewCountCap = 20
)

// Score ranks a specialist. Rating dominates, experience and review volume
// break near-ties; review volume stops counting after reviewCountCap.
func Score(avgRating float64, experienceYears, reviewCount int) float64 {
	if reviewCount > reviewCountCap {
		reviewCount = reviewCountCap
	}
	return avgRating*0.5 + float64(experienceYears)*0.1 + float64(reviewCount)*0.05
}

type matchingService struct {
	specialists ports.SpecialistRepository
	certs       ports.CertificationRepository
	reviews     ports.ReviewRepository
	users       ports.UserRepository
	cache       ports.MatchCache
	cacheTTL    time.Duration
	log         zerolog.Logger
}

// NewMatchingService returns a MatchingService. cache may be nil; a
// non-positive cacheTTL also disables caching.
func NewMatchingService(
	specialists ports.SpecialistRepository,
	certs ports.CertificationRepository,
	reviews ports.ReviewRepository,
	users ports.UserRepository,
	cache ports.MatchCache,
	cacheTTL time.Duration,
	log zerolog.Logger,
) ports.MatchingService {
	if cacheTTL <= 0 {
		cache = nil
	}
	return &matchingService{
		specialists: specialists,
		certs:       certs,
		reviews:     reviews,
		users:       users,
		cache:       cache,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// Match returns up to ten verified specialists ordered by score. The ranking
// does not depend on the requester, so one cached copy serves everyone.
func (s *matchingService) Match(ctx context.Context, userID string) ([]ports.Match, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("matching cache read failed, recomputing")
		} else if ok {
			return cached, nil
		}
	}

	gen, cacheable := int64(0), s.cache != nil
	if cacheable {
		var err error
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.log.Warn().Err(err).Msg("matching cache generation read failed, not caching")
			cacheable = false
		}
	}

	matches, err := s.rank(ctx)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, gen, matches, s.cacheTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("matching cache write failed")
		case !stored:
			s.log.Debug().Int64("generation", gen).Msg("ranking invalidated while computing, not cached")
		}
	}

	s.log.Debug().Str("user_id", userID).Int("matches", len(matches)).Msg("matching computed")
	return matches, nil
}

func (s *matchingService) rank(ctx context.Context) ([]ports.Match, error) {
	ids, err := s.certs.VerifiedSpecialistIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("verified specialists: %w", err)
	}
	if len(ids) == 0 {
		return []ports.Match{}, nil
	}

	specialists, err := s.specialists.List(ctx, ports.SpecialistFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("list specialists: %w", err)
	}
	stats, err := s.reviews.StatsBySpecialist(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}

	userIDs := make([]string, 0, len(specialists))
	for _, sp := range specialists {
		userIDs = append(userIDs, sp.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	matches := make([]ports.Match, 0, len(specialists))
	for _, sp := range specialists {
		st := stats[sp.ID]
		m := ports.Match{
			ID:             sp.ID,
			Specialization: sp.Specialization,
			Experience:     sp.Experience,
			PricePerHour:   sp.PricePerHour,
			AvgRating:      st.AvgRating,
			ReviewCount:    st.Count,
			Score:          Score(st.AvgRating, sp.Experience, st.Count),
		}
		if u, ok := users[sp.UserID]; ok {
			m.Name = u.Name
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches, nil
}
