package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// AdminHandler serves certification review. Routes are mounted behind
// RBAC(ADMIN).
type AdminHandler struct {
	specialists ports.SpecialistService
}

func NewAdminHandler(specialists ports.SpecialistService) *AdminHandler {
	return &AdminHandler{specialists: specialists}
}

type verifyRequest struct {
	CertificationID string `json:"certification_id" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=VERIFIED REJECTED"`
}

type certificationsResponse struct {
	Certifications []*domain.Certification `json:"certifications"`
}

// ListCertifications handles GET /admin/certifications.
//
// @Summary      Certifications awaiting review
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "PENDING (default), VERIFIED or REJECTED"
// @Success      200     {object}  certificationsResponse
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /admin/certifications [get]
func (h *AdminHandler) ListCertifications(c echo.Context) error {
	status := domain.CertificationStatus(c.QueryParam("status"))
	certs, err := h.specialists.ListCertifications(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, certificationsResponse{Certifications: certs})
}

// Verify handles POST /admin/verify.
//
// @Summary      Verify or reject a certification
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyRequest  true  "Decision"
// @Success      200   {object}  domain.Certification
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/verify [post]
func (h *AdminHandler) Verify(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req verifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	cert, err := h.specialists.VerifyCertification(c.Request().Context(), ports.VerifyInput{
		AdminID:         uid,
		CertificationID: req.CertificationID,
		Status:          domain.CertificationStatus(req.Status),
	})
	if err != nil {
		return err
	}
	metrics.CertificationsReviewedTotal.WithLabelValues(string(cert.Status)).Inc()
	return c.JSON(http.StatusOK, cert)
}
