package ports

import (
	"context"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *domain.Appointment) error
	// ListByUser returns the user's appointments, latest date first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Appointment, error)
}

// BookInput carries a new appointment request.
type BookInput struct {
	UserID       string
	SpecialistID string
	Date         time.Time
	Duration     int
	Notes        string
}

type AppointmentService interface {
	Book(ctx context.Context, input BookInput) (*domain.Appointment, error)
	List(ctx context.Context, userID string) ([]*domain.Appointment, error)
}
