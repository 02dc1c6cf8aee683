package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type AppointmentHandler struct {
	appointments ports.AppointmentService
}

func NewAppointmentHandler(appointments ports.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

type bookRequest struct {
	SpecialistID string `json:"specialist_id" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Duration     int    `json:"duration,omitempty" validate:"omitempty,gte=15,lte=480"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

type appointmentsResponse struct {
	Appointments []*domain.Appointment `json:"appointments"`
}

// Book handles POST /appointments.
//
// @Summary      Book a session with a specialist
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      bookRequest  true  "Booking; date is RFC 3339"
// @Success      201   {object}  domain.Appointment
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /appointments [post]
func (h *AppointmentHandler) Book(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return domain.NewValidationError("date", "date must be an RFC 3339 timestamp")
	}

	appt, err := h.appointments.Book(c.Request().Context(), ports.BookInput{
		UserID:       uid,
		SpecialistID: req.SpecialistID,
		Date:         date,
		Duration:     req.Duration,
		Notes:        req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

// List handles GET /appointments.
//
// @Summary      The caller's appointments
// @Tags         appointments
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  appointmentsResponse
// @Router       /appointments [get]
func (h *AppointmentHandler) List(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	list, err := h.appointments.List(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointmentsResponse{Appointments: list})
}
