package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/core/ports"
)

type MatchingHandler struct {
	matching ports.MatchingService
}

func NewMatchingHandler(matching ports.MatchingService) *MatchingHandler {
	return &MatchingHandler{matching: matching}
}

type matchesResponse struct {
	Matches []ports.Match `json:"matches"`
}

// Match handles GET /matching.
//
// @Summary      Top verified specialists for the caller
// @Description  score = avg_rating*0.5 + experience*0.1 + min(review_count,20)*0.05, at most 10 results.
// @Tags         matching
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  matchesResponse
// @Failure      401  {object}  errorResponse
// @Router       /matching [get]
func (h *MatchingHandler) Match(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	matches, err := h.matching.Match(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, matchesResponse{Matches: matches})
}
