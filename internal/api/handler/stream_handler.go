package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxReadMessage = 1024
)

// SessionSubscriber delivers a signal whenever a session receives a message.
// The channel closes when ctx is done.
type SessionSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan struct{}, error)
}

// StreamHandler pushes transcript snapshots over a websocket. Every frame is
// the full ordered transcript, the same body GET /chat/messages returns.
type StreamHandler struct {
	messages ports.MessageService
	sub      SessionSubscriber
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreamHandler(messages ports.MessageService, sub SessionSubscriber, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		messages: messages,
		sub:      sub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /chat/stream?session_id=.
//
// @Summary      Live transcript over websocket
// @Description  Sends the full transcript on connect and after every new message. Browsers may authenticate with the access_token query parameter.
// @Tags         chat
// @Security     BearerAuth
// @Param        session_id    query  string  true   "Session id"
// @Param        access_token  query  string  false  "JWT when headers cannot be set"
// @Success      101
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /chat/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	// Access is checked before the upgrade so failures keep their HTTP status.
	if _, err := h.messages.Authorize(c.Request().Context(), sessionID, uid); err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals, err := h.sub.Subscribe(ctx, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("stream subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}

	metrics.ChatStreamsActive.Inc()
	defer metrics.ChatStreamsActive.Dec()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, sessionID, uid, signals)
	return nil
}

// readPump discards client frames and cancels the stream when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxReadMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, sessionID, uid string, signals <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	if !h.pushSnapshot(ctx, conn, sessionID, uid) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if !h.pushSnapshot(ctx, conn, sessionID, uid) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pushSnapshot re-reads the transcript through the access check, so a caller
// who stops being a party stops receiving data.
func (h *StreamHandler) pushSnapshot(ctx context.Context, conn *websocket.Conn, sessionID, uid string) bool {
	transcript, err := h.messages.List(ctx, sessionID, uid)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn().Err(err).Str("session_id", sessionID).Msg("stream snapshot failed")
		}
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(transcript) == nil
}
