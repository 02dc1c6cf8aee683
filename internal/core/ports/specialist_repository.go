package ports

import (
	"context"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// SpecialistFilter carries the browse-page filters. Zero values mean "no filter".
type SpecialistFilter struct {
	Specialization string
	MinExperience  int
	MaxPrice       float64
	// IDs restricts the result to the given specialists when non-nil.
	IDs []string
	// OnlyAvailable keeps specialists with is_available=true.
	OnlyAvailable bool
}

// SpecialistRepository persists specialist profiles. List results are ordered
// by id ascending so callers get a deterministic base order.
type SpecialistRepository interface {
	Create(ctx context.Context, s *domain.Specialist) error
	Update(ctx context.Context, s *domain.Specialist) error
	FindByID(ctx context.Context, id string) (*domain.Specialist, error)
	FindByUserID(ctx context.Context, userID string) (*domain.Specialist, error)
	List(ctx context.Context, filter SpecialistFilter) ([]*domain.Specialist, error)
}

// CertificationRepository persists credentials and their review state.
type CertificationRepository interface {
	Create(ctx context.Context, c *domain.Certification) error
	FindByID(ctx context.Context, id string) (*domain.Certification, error)
	ListBySpecialist(ctx context.Context, specialistID string) ([]*domain.Certification, error)
	ListByStatus(ctx context.Context, status domain.CertificationStatus) ([]*domain.Certification, error)
	// VerifiedSpecialistIDs returns the ids of specialists holding at least one
	// VERIFIED certification.
	VerifiedSpecialistIDs(ctx context.Context) ([]string, error)
	// Review moves a PENDING certification to status. It returns
	// domain.ErrCertificationFinal when the certification is already terminal.
	Review(ctx context.Context, id string, status domain.CertificationStatus, reviewerID string, at time.Time) (*domain.Certification, error)
}

// ReviewRepository persists specialist reviews.
type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) error
	ListBySpecialist(ctx context.Context, specialistID string) ([]*domain.Review, error)
	// StatsBySpecialist aggregates rating mean and count for each id that has reviews.
	StatsBySpecialist(ctx context.Context, specialistIDs []string) (map[string]domain.ReviewStats, error)
}
