package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type AssistantHandler struct {
	assistant ports.AssistantService
}

func NewAssistantHandler(assistant ports.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type chatTurnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantRequest struct {
	Message             string            `json:"message"`
	UserID              string            `json:"user_id,omitempty"`
	ConversationHistory []chatTurnRequest `json:"conversation_history,omitempty"`
}

// Chat handles POST /ai/chat.
//
// Provider failures still answer 200 with an apology in "response". The
// exchange is saved to the caller's assessment only when the request is
// authenticated and asks for it with user_id.
//
// @Summary      Talk to the support assistant
// @Tags         assistant
// @Accept       json
// @Produce      json
// @Param        body  body      assistantRequest  true  "Message and recent history"
// @Success      200   {object}  ports.AssistantReply
// @Failure      400   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /ai/chat [post]
func (h *AssistantHandler) Chat(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	history := make([]domain.ChatTurn, 0, len(req.ConversationHistory))
	for _, t := range req.ConversationHistory {
		history = append(history, domain.ChatTurn{Role: t.Role, Content: t.Content})
	}

	var userID string
	if req.UserID != "" {
		userID = optionalUserID(c)
	}

	start := time.Now()
	reply, err := h.assistant.Chat(c.Request().Context(), ports.AssistantInput{
		UserID:  userID,
		Message: req.Message,
		History: history,
	})
	if err != nil {
		return err
	}
	metrics.AssistantReplyDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if reply.Degraded {
		outcome = "degraded"
	}
	metrics.AssistantRepliesTotal.WithLabelValues(outcome).Inc()
	return c.JSON(http.StatusOK, reply)
}
