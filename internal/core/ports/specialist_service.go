package ports

import (
	"context"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// ProfileInput carries a specialist's self-edited profile.
type ProfileInput struct {
	UserID         string
	Biography      string
	Specialization string
	Experience     int
	PricePerHour   float64
	IsAvailable    *bool
	CertificateURL string
}

// OwnProfile is the specialist's private view of their profile.
type OwnProfile struct {
	Specialist     *domain.Specialist      `json:"specialist"`
	Certifications []*domain.Certification `json:"certifications"`
	Name           string                  `json:"name,omitempty"`
	Email          string                  `json:"email"`
}

// SpecialistSummary is the browse-list view of a specialist.
type SpecialistSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	ProfilePhoto   string  `json:"profile_photo,omitempty"`
	Specialization string  `json:"specialization,omitempty"`
	Experience     int     `json:"experience"`
	PricePerHour   float64 `json:"price_per_hour"`
	IsAvailable    bool    `json:"is_available"`
	Verified       bool    `json:"verified"`
	AvgRating      float64 `json:"avg_rating"`
	ReviewCount    int     `json:"review_count"`
}

// PublicProfile is the public detail page of a specialist.
type PublicProfile struct {
	SpecialistSummary
	Biography      string                  `json:"biography,omitempty"`
	Certifications []*domain.Certification `json:"certifications"`
	Reviews        []*domain.Review        `json:"reviews"`
}

// ReviewInput carries a new review.
type ReviewInput struct {
	UserID       string
	SpecialistID string
	Rating       int
	Comment      string
}

// VerifyInput carries an admin certification decision.
type VerifyInput struct {
	AdminID         string
	CertificationID string
	Status          domain.CertificationStatus
}

type SpecialistService interface {
	GetOwnProfile(ctx context.Context, userID string) (*OwnProfile, error)
	UpsertProfile(ctx context.Context, input ProfileInput) (*domain.Specialist, error)
	Browse(ctx context.Context, filter SpecialistFilter) ([]SpecialistSummary, error)
	GetPublicProfile(ctx context.Context, specialistID string) (*PublicProfile, error)
	AddReview(ctx context.Context, input ReviewInput) (*domain.Review, error)
	ListCertifications(ctx context.Context, status domain.CertificationStatus) ([]*domain.Certification, error)
	VerifyCertification(ctx context.Context, input VerifyInput) (*domain.Certification, error)
}
