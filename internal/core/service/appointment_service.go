package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type appointmentService struct {
	appointments ports.AppointmentRepository
	specialists  ports.SpecialistRepository
	log          zerolog.Logger
}

func NewAppointmentService(appointments ports.AppointmentRepository, specialists ports.SpecialistRepository, log zerolog.Logger) ports.AppointmentService {
	return &appointmentService{appointments: appointments, specialists: specialists, log: log}
}

// Book requests a session with a specialist. Appointments start PENDING.
func (s *appointmentService) Book(ctx context.Context, in ports.BookInput) (*domain.Appointment, error) {
	var fields []domain.FieldError
	if in.SpecialistID == "" {
		fields = append(fields, domain.FieldError{Field: "specialist_id", Message: "specialist_id is required"})
	}
	if in.Date.IsZero() {
		fields = append(fields, domain.FieldError{Field: "date", Message: "date is required"})
	}
	if in.Duration < 0 {
		fields = append(fields, domain.FieldError{Field: "duration", Message: "duration must be positive"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	sp, err := s.specialists.FindByID(ctx, in.SpecialistID)
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	duration := in.Duration
	if duration == 0 {
		duration = domain.DefaultAppointmentMinutes
	}
	a := &domain.Appointment{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		SpecialistID: sp.ID,
		Date:         in.Date.UTC(),
		Duration:     duration,
		Notes:        strings.TrimSpace(in.Notes),
		Status:       domain.AppointmentPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	s.log.Info().Str("appointment_id", a.ID).Str("specialist_id", sp.ID).Time("date", a.Date).Msg("appointment booked")
	return a, nil
}

func (s *appointmentService) List(ctx context.Context, userID string) ([]*domain.Appointment, error) {
	list, err := s.appointments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}
