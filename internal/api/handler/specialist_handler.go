package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// SpecialistHandler serves specialist profiles, browsing and reviews.
type SpecialistHandler struct {
	specialists ports.SpecialistService
}

func NewSpecialistHandler(specialists ports.SpecialistService) *SpecialistHandler {
	return &SpecialistHandler{specialists: specialists}
}

type profileRequest struct {
	Biography      string  `json:"biography" validate:"max=5000"`
	Specialization string  `json:"specialization" validate:"required,max=200"`
	Experience     int     `json:"experience" validate:"gte=0,lte=80"`
	PricePerHour   float64 `json:"price_per_hour" validate:"gte=0"`
	CertificateURL string  `json:"certificate_url,omitempty" validate:"omitempty,url"`
	IsAvailable    *bool   `json:"is_available,omitempty"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type specialistsResponse struct {
	Specialists []ports.SpecialistSummary `json:"specialists"`
}

// GetProfile handles GET /specialists/profile.
//
// @Summary      The caller's own specialist profile
// @Tags         specialists
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.OwnProfile
// @Failure      404  {object}  errorResponse
// @Router       /specialists/profile [get]
func (h *SpecialistHandler) GetProfile(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	profile, err := h.specialists.GetOwnProfile(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// UpsertProfile handles POST /specialists/profile. A certificate_url files a
// new certification for admin review.
//
// @Summary      Create or update the caller's specialist profile
// @Tags         specialists
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      profileRequest  true  "Profile"
// @Success      200   {object}  domain.Specialist
// @Failure      400   {object}  errorResponse
// @Router       /specialists/profile [post]
func (h *SpecialistHandler) UpsertProfile(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req profileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sp, err := h.specialists.UpsertProfile(c.Request().Context(), ports.ProfileInput{
		UserID:         uid,
		Biography:      req.Biography,
		Specialization: req.Specialization,
		Experience:     req.Experience,
		PricePerHour:   req.PricePerHour,
		IsAvailable:    req.IsAvailable,
		CertificateURL: req.CertificateURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sp)
}

// Browse handles GET /specialists.
//
// @Summary      Browse specialists
// @Tags         specialists
// @Produce      json
// @Param        specialization  query     string  false  "Case-insensitive substring"
// @Param        min_experience  query     int     false  "Minimum years of experience"
// @Param        max_price       query     number  false  "Maximum price per hour"
// @Success      200             {object}  specialistsResponse
// @Failure      400             {object}  errorResponse
// @Router       /specialists [get]
func (h *SpecialistHandler) Browse(c echo.Context) error {
	filter := ports.SpecialistFilter{Specialization: c.QueryParam("specialization")}

	var fields []domain.FieldError
	if v := c.QueryParam("min_experience"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, domain.FieldError{Field: "min_experience", Message: "min_experience must be a non-negative integer"})
		}
		filter.MinExperience = n
	}
	if v := c.QueryParam("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			fields = append(fields, domain.FieldError{Field: "max_price", Message: "max_price must be a non-negative number"})
		}
		filter.MaxPrice = f
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}

	list, err := h.specialists.Browse(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, specialistsResponse{Specialists: list})
}

// Get handles GET /specialists/:id.
//
// @Summary      Public specialist profile
// @Tags         specialists
// @Produce      json
// @Param        id   path      string  true  "Specialist id"
// @Success      200  {object}  ports.PublicProfile
// @Failure      404  {object}  errorResponse
// @Router       /specialists/{id} [get]
func (h *SpecialistHandler) Get(c echo.Context) error {
	profile, err := h.specialists.GetPublicProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// AddReview handles POST /specialists/:id/reviews.
//
// @Summary      Review a specialist
// @Tags         specialists
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Specialist id"
// @Param        body  body      reviewRequest  true  "Review"
// @Success      201   {object}  domain.Review
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /specialists/{id}/reviews [post]
func (h *SpecialistHandler) AddReview(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	review, err := h.specialists.AddReview(c.Request().Context(), ports.ReviewInput{
		UserID:       uid,
		SpecialistID: c.Param("id"),
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, review)
}
