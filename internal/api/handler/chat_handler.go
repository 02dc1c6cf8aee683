package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// IdempotencyHeader lets clients retry an append without duplicating it.
const IdempotencyHeader = "Idempotency-Key"

// ChatHandler serves chat sessions and their message logs.
type ChatHandler struct {
	broker   ports.SessionBroker
	messages ports.MessageService
}

func NewChatHandler(broker ports.SessionBroker, messages ports.MessageService) *ChatHandler {
	return &ChatHandler{broker: broker, messages: messages}
}

type appendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type sessionsResponse struct {
	Sessions []ports.SessionView `json:"sessions"`
}

// CreateSession handles POST /chat/sessions.
//
// @Summary      Start a chat with the least busy verified specialist
// @Description  specialist_id is null when nobody is available; the session still exists.
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  ports.SessionView
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /chat/sessions [post]
func (h *ChatHandler) CreateSession(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	view, err := h.broker.CreateSeekerSession(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	metrics.ChatSessionsCreatedTotal.WithLabelValues("seeker").Inc()
	return c.JSON(http.StatusCreated, view)
}

// ListSessions handles GET /chat/sessions.
//
// @Summary      List the caller's chat sessions
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionsResponse
// @Failure      401  {object}  errorResponse
// @Router       /chat/sessions [get]
func (h *ChatHandler) ListSessions(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	views, err := h.broker.ListSessions(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionsResponse{Sessions: views})
}

// CloseSession handles POST /chat/sessions/:id/close.
//
// @Summary      Close an active chat session
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  ports.SessionView
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /chat/sessions/{id}/close [post]
func (h *ChatHandler) CloseSession(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	view, err := h.broker.CloseSession(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ListMessages handles GET /chat/messages?session_id=.
//
// @Summary      Full ordered transcript of a session
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        session_id  query     string  true  "Session id"
// @Success      200         {object}  ports.Transcript
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Router       /chat/messages [get]
func (h *ChatHandler) ListMessages(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	transcript, err := h.messages.List(c.Request().Context(), sessionID, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transcript)
}

// AppendMessage handles POST /chat/messages.
//
// @Summary      Append a message to a session
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                false  "Client retry key"
// @Param        body             body      appendMessageRequest  true   "Message"
// @Success      201              {object}  ports.MessageView
// @Failure      400              {object}  errorResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /chat/messages [post]
func (h *ChatHandler) AppendMessage(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req appendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.messages.Append(c.Request().Context(), ports.AppendInput{
		SessionID:      req.SessionID,
		UserID:         uid,
		Content:        req.Content,
		IdempotencyKey: c.Request().Header.Get(IdempotencyHeader),
	})
	if err != nil {
		return err
	}
	metrics.ChatMessagesAppendedTotal.WithLabelValues(string(msg.SenderRole)).Inc()
	return c.JSON(http.StatusCreated, msg)
}
