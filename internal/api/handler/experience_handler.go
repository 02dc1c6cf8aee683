package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// ExperienceHandler serves anonymous experience posts, public specialist
// responses and the specialist-initiated chats that start from a post.
type ExperienceHandler struct {
	experiences ports.ExperienceService
	broker      ports.SessionBroker
}

func NewExperienceHandler(experiences ports.ExperienceService, broker ports.SessionBroker) *ExperienceHandler {
	return &ExperienceHandler{experiences: experiences, broker: broker}
}

type createPostRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	Published *bool  `json:"published,omitempty"`
}

type contentRequest struct {
	Content string `json:"content" validate:"required"`
}

type initiateChatRequest struct {
	InitialMessage string `json:"initial_message" validate:"required"`
}

type postsResponse struct {
	Posts []ports.PostView `json:"posts"`
}

type responsesResponse struct {
	Responses []ports.ResponseView `json:"responses"`
}

type postChatStatus struct {
	SessionID *string `json:"session_id"`
	Exists    bool    `json:"exists"`
}

// CreatePost handles POST /experiences.
//
// @Summary      Publish an anonymous experience
// @Tags         experiences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createPostRequest  true  "Post"
// @Success      201   {object}  ports.PostView
// @Failure      400   {object}  errorResponse
// @Router       /experiences [post]
func (h *ExperienceHandler) CreatePost(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req createPostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.experiences.CreatePost(c.Request().Context(), ports.CreatePostInput{
		UserID:    uid,
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

// ListPosts handles GET /experiences. Authors see is_owner on their posts.
//
// @Summary      List published experiences
// @Tags         experiences
// @Produce      json
// @Success      200  {object}  postsResponse
// @Router       /experiences [get]
func (h *ExperienceHandler) ListPosts(c echo.Context) error {
	posts, err := h.experiences.ListPosts(c.Request().Context(), optionalUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, postsResponse{Posts: posts})
}

// ListResponses handles GET /experiences/:postId/responses.
//
// @Summary      Public specialist responses to a post
// @Tags         experiences
// @Produce      json
// @Param        postId  path      string  true  "Post id"
// @Success      200     {object}  responsesResponse
// @Failure      404     {object}  errorResponse
// @Router       /experiences/{postId}/responses [get]
func (h *ExperienceHandler) ListResponses(c echo.Context) error {
	responses, err := h.experiences.ListResponses(c.Request().Context(), c.Param("postId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, responsesResponse{Responses: responses})
}

// CreateResponse handles POST /experiences/:postId/responses.
//
// @Summary      Respond publicly to a post
// @Tags         experiences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        postId  path      string          true  "Post id"
// @Param        body    body      contentRequest  true  "Response"
// @Success      201     {object}  ports.ResponseView
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Router       /experiences/{postId}/responses [post]
func (h *ExperienceHandler) CreateResponse(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req contentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.experiences.CreateResponse(c.Request().Context(), ports.CreateResponseInput{
		PostID:  c.Param("postId"),
		UserID:  uid,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// ChatStatus handles GET /experiences/:postId/chat.
//
// @Summary      Check for the caller's active chat on a post
// @Tags         experiences
// @Produce      json
// @Security     BearerAuth
// @Param        postId  path      string  true  "Post id"
// @Success      200     {object}  postChatStatus
// @Failure      403     {object}  errorResponse
// @Router       /experiences/{postId}/chat [get]
func (h *ExperienceHandler) ChatStatus(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}

	id, err := h.broker.FindPostSession(c.Request().Context(), c.Param("postId"), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, postChatStatus{SessionID: id, Exists: id != nil})
}

// InitiateChat handles POST /experiences/:postId/chat.
//
// @Summary      Start a private chat with a post's author
// @Description  The author is only ever shown as an anonymous pseudonym. A duplicate returns 409 with the existing session_id.
// @Tags         experiences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        postId  path      string               true  "Post id"
// @Param        body    body      initiateChatRequest  true  "First message"
// @Success      201     {object}  ports.PostChatResult
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Failure      409     {object}  errorResponse
// @Router       /experiences/{postId}/chat [post]
func (h *ExperienceHandler) InitiateChat(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req initiateChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.broker.InitiatePostChat(c.Request().Context(), ports.PostChatInput{
		PostID:         c.Param("postId"),
		UserID:         uid,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return countConflict(err)
	}
	metrics.ChatSessionsCreatedTotal.WithLabelValues("post_chat").Inc()
	return c.JSON(http.StatusCreated, res)
}

// Reply handles POST /experiences/:postId/reply.
//
// @Summary      Respond publicly and open a private chat in one step
// @Tags         experiences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        postId  path      string          true  "Post id"
// @Param        body    body      contentRequest  true  "Response"
// @Success      201     {object}  ports.ReplyResult
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Failure      409     {object}  errorResponse
// @Router       /experiences/{postId}/reply [post]
func (h *ExperienceHandler) Reply(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req contentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.broker.Reply(c.Request().Context(), ports.ReplyInput{
		PostID:  c.Param("postId"),
		UserID:  uid,
		Content: req.Content,
	})
	if err != nil {
		return countConflict(err)
	}
	metrics.ChatSessionsCreatedTotal.WithLabelValues("post_reply").Inc()
	return c.JSON(http.StatusCreated, res)
}

func countConflict(err error) error {
	var conflict *domain.SessionConflictError
	if errors.As(err, &conflict) {
		metrics.ChatSessionConflictsTotal.Inc()
	}
	return err
}
