package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type specialistService struct {
	specialists ports.SpecialistRepository
	certs       ports.CertificationRepository
	reviews     ports.ReviewRepository
	users       ports.UserRepository
	cache       ports.MatchCache
	log         zerolog.Logger
}

// NewSpecialistService returns a SpecialistService. cache may be nil; when set
// it is invalidated whenever a ranking input changes.
func NewSpecialistService(
	specialists ports.SpecialistRepository,
	certs ports.CertificationRepository,
	reviews ports.ReviewRepository,
	users ports.UserRepository,
	cache ports.MatchCache,
	log zerolog.Logger,
) ports.SpecialistService {
	return &specialistService{
		specialists: specialists,
		certs:       certs,
		reviews:     reviews,
		users:       users,
		cache:       cache,
		log:         log,
	}
}

func (s *specialistService) GetOwnProfile(ctx context.Context, userID string) (*ports.OwnProfile, error) {
	sp, err := s.specialists.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("own profile: %w", err)
	}
	certs, err := s.certs.ListBySpecialist(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("own profile: %w", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("own profile: %w", err)
	}
	return &ports.OwnProfile{Specialist: sp, Certifications: certs, Name: user.Name, Email: user.Email}, nil
}

// UpsertProfile creates or updates the caller's specialist profile. A
// certificate URL files a new PENDING certification for admin review.
func (s *specialistService) UpsertProfile(ctx context.Context, in ports.ProfileInput) (*domain.Specialist, error) {
	var fields []domain.FieldError
	if in.Experience < 0 {
		fields = append(fields, domain.FieldError{Field: "experience", Message: "experience must be 0 or greater"})
	}
	if in.PricePerHour < 0 {
		fields = append(fields, domain.FieldError{Field: "price_per_hour", Message: "price_per_hour must be 0 or greater"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	now := time.Now().UTC()
	sp, err := s.specialists.FindByUserID(ctx, in.UserID)
	switch {
	case errors.Is(err, domain.ErrSpecialistNotFound):
		sp = &domain.Specialist{ID: uuid.NewString(), UserID: in.UserID, IsAvailable: true, CreatedAt: now}
		applyProfile(sp, in, now)
		if err := s.specialists.Create(ctx, sp); err != nil {
			return nil, fmt.Errorf("upsert profile: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("upsert profile: %w", err)
	default:
		applyProfile(sp, in, now)
		if err := s.specialists.Update(ctx, sp); err != nil {
			return nil, fmt.Errorf("upsert profile: %w", err)
		}
	}

	if url := strings.TrimSpace(in.CertificateURL); url != "" {
		title := "Certificate"
		if sp.Specialization != "" {
			title = sp.Specialization
		}
		cert := &domain.Certification{
			ID:           uuid.NewString(),
			SpecialistID: sp.ID,
			Title:        title,
			Institution:  "Uploaded document",
			FileURL:      url,
			Status:       domain.CertificationPending,
			CreatedAt:    now,
		}
		if err := s.certs.Create(ctx, cert); err != nil {
			return nil, fmt.Errorf("upsert profile: certification: %w", err)
		}
		s.log.Info().Str("specialist_id", sp.ID).Str("certification_id", cert.ID).Msg("certification submitted")
	}

	s.invalidate(ctx)
	return sp, nil
}

func applyProfile(sp *domain.Specialist, in ports.ProfileInput, now time.Time) {
	sp.Biography = strings.TrimSpace(in.Biography)
	sp.Specialization = strings.TrimSpace(in.Specialization)
	sp.Experience = in.Experience
	sp.PricePerHour = in.PricePerHour
	if in.IsAvailable != nil {
		sp.IsAvailable = *in.IsAvailable
	}
	sp.UpdatedAt = now
}

// Browse lists specialists matching filter with their rating summary.
func (s *specialistService) Browse(ctx context.Context, filter ports.SpecialistFilter) ([]ports.SpecialistSummary, error) {
	list, err := s.specialists.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("browse: %w", err)
	}
	if len(list) == 0 {
		return []ports.SpecialistSummary{}, nil
	}
	summaries, err := s.summarize(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("browse: %w", err)
	}
	return summaries, nil
}

func (s *specialistService) summarize(ctx context.Context, list []*domain.Specialist) ([]ports.SpecialistSummary, error) {
	ids := make([]string, 0, len(list))
	userIDs := make([]string, 0, len(list))
	for _, sp := range list {
		ids = append(ids, sp.ID)
		userIDs = append(userIDs, sp.UserID)
	}

	stats, err := s.reviews.StatsBySpecialist(ctx, ids)
	if err != nil {
		return nil, err
	}
	verified, err := s.certs.VerifiedSpecialistIDs(ctx)
	if err != nil {
		return nil, err
	}
	verifiedSet := make(map[string]bool, len(verified))
	for _, id := range verified {
		verifiedSet[id] = true
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ports.SpecialistSummary, 0, len(list))
	for _, sp := range list {
		st := stats[sp.ID]
		sum := ports.SpecialistSummary{
			ID:             sp.ID,
			Specialization: sp.Specialization,
			Experience:     sp.Experience,
			PricePerHour:   sp.PricePerHour,
			IsAvailable:    sp.IsAvailable,
			Verified:       verifiedSet[sp.ID],
			AvgRating:      st.AvgRating,
			ReviewCount:    st.Count,
		}
		if u, ok := users[sp.UserID]; ok {
			sum.Name = u.Name
			sum.ProfilePhoto = u.ProfilePhoto
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetPublicProfile shows only verified certifications.
func (s *specialistService) GetPublicProfile(ctx context.Context, specialistID string) (*ports.PublicProfile, error) {
	sp, err := s.specialists.FindByID(ctx, specialistID)
	if err != nil {
		return nil, fmt.Errorf("public profile: %w", err)
	}
	summaries, err := s.summarize(ctx, []*domain.Specialist{sp})
	if err != nil {
		return nil, fmt.Errorf("public profile: %w", err)
	}
	certs, err := s.certs.ListBySpecialist(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("public profile: %w", err)
	}
	reviews, err := s.reviews.ListBySpecialist(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("public profile: %w", err)
	}

	public := make([]*domain.Certification, 0, len(certs))
	for _, c := range certs {
		if c.Status == domain.CertificationVerified {
			public = append(public, c)
		}
	}
	return &ports.PublicProfile{
		SpecialistSummary: summaries[0],
		Biography:         sp.Biography,
		Certifications:    public,
		Reviews:           reviews,
	}, nil
}

func (s *specialistService) AddReview(ctx context.Context, in ports.ReviewInput) (*domain.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, domain.NewValidationError("rating", "rating must be between 1 and 5")
	}
	sp, err := s.specialists.FindByID(ctx, in.SpecialistID)
	if err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}
	if sp.UserID == in.UserID {
		return nil, domain.ErrForbidden
	}

	review := &domain.Review{
		ID:           uuid.NewString(),
		SpecialistID: sp.ID,
		UserID:       in.UserID,
		Rating:       in.Rating,
		Comment:      strings.TrimSpace(in.Comment),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}

	s.invalidate(ctx)
	s.log.Info().Str("specialist_id", sp.ID).Int("rating", in.Rating).Msg("review added")
	return review, nil
}

func (s *specialistService) ListCertifications(ctx context.Context, status domain.CertificationStatus) ([]*domain.Certification, error) {
	if status == "" {
		status = domain.CertificationPending
	}
	switch status {
	case domain.CertificationPending, domain.CertificationVerified, domain.CertificationRejected:
	default:
		return nil, domain.NewValidationError("status", "status must be one of: PENDING VERIFIED REJECTED")
	}
	list, err := s.certs.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	return list, nil
}

// VerifyCertification records an admin decision. Decided certifications are
// immutable.
func (s *specialistService) VerifyCertification(ctx context.Context, in ports.VerifyInput) (*domain.Certification, error) {
	if !in.Status.IsTerminal() {
		return nil, domain.NewValidationError("status", "status must be one of: VERIFIED REJECTED")
	}

	current, err := s.certs.FindByID(ctx, in.CertificationID)
	if err != nil {
		return nil, fmt.Errorf("verify certification: %w", err)
	}
	if !current.Status.CanTransitionTo(in.Status) {
		return nil, fmt.Errorf("verify certification: %w", domain.ErrCertificationFinal)
	}

	updated, err := s.certs.Review(ctx, in.CertificationID, in.Status, in.AdminID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("verify certification: %w", err)
	}

	s.invalidate(ctx)
	s.log.Info().
		Str("certification_id", updated.ID).
		Str("specialist_id", updated.SpecialistID).
		Str("status", string(updated.Status)).
		Str("admin_id", in.AdminID).
		Msg("certification reviewed")
	return updated, nil
}

func (s *specialistService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("matching cache invalidation failed")
	}
}
