package domain

import "time"

// CertificationStatus is the review state of a submitted credential.
type CertificationStatus string

const (
	CertificationPending  CertificationStatus = "PENDING"
	CertificationVerified CertificationStatus = "VERIFIED"
	CertificationRejected CertificationStatus = "REJECTED"
)

// IsTerminal reports whether no further review transition is allowed.
func (s CertificationStatus) IsTerminal() bool {
	return s == CertificationVerified || s == CertificationRejected
}

// CanTransitionTo reports whether an admin may move a certification from s to next.
// Only PENDING certifications can be reviewed.
func (s CertificationStatus) CanTransitionTo(next CertificationStatus) bool {
	return s == CertificationPending && next.IsTerminal()
}

// Specialist is the professional profile attached one-to-one to a User.
type Specialist struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	Biography      string    `json:"biography,omitempty" bson:"biography,omitempty"`
	Specialization string    `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Experience     int       `json:"experience" bson:"experience"`
	PricePerHour   float64   `json:"price_per_hour" bson:"price_per_hour"`
	IsAvailable    bool      `json:"is_available" bson:"is_available"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Certification is an admin-reviewed credential belonging to a Specialist.
type Certification struct {
	ID           string              `json:"id" bson:"_id"`
	SpecialistID string              `json:"specialist_id" bson:"specialist_id"`
	Title        string              `json:"title" bson:"title"`
	Institution  string              `json:"institution" bson:"institution"`
	FileURL      string              `json:"file_url,omitempty" bson:"file_url,omitempty"`
	Status       CertificationStatus `json:"status" bson:"status"`
	VerifiedAt   *time.Time          `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	VerifiedBy   string              `json:"verified_by,omitempty" bson:"verified_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
}

// Review is a seeker's rating of a specialist.
type Review struct {
	ID           string    `json:"id" bson:"_id"`
	SpecialistID string    `json:"specialist_id" bson:"specialist_id"`
	UserID       string    `json:"-" bson:"user_id"`
	Rating       int       `json:"rating" bson:"rating"`
	Comment      string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// ReviewStats aggregates the reviews of one specialist.
type ReviewStats struct {
	SpecialistID string  `bson:"_id"`
	AvgRating    float64 `bson:"avg_rating"`
	Count        int     `bson:"count"`
}
