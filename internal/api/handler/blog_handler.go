package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type BlogHandler struct {
	blog ports.BlogService
}

func NewBlogHandler(blog ports.BlogService) *BlogHandler {
	return &BlogHandler{blog: blog}
}

type publishRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	Published *bool  `json:"published,omitempty"`
}

type blogPostsResponse struct {
	Posts []*domain.BlogPost `json:"posts"`
}

// List handles GET /blog.
//
// @Summary      Published blog posts
// @Tags         blog
// @Produce      json
// @Success      200  {object}  blogPostsResponse
// @Router       /blog [get]
func (h *BlogHandler) List(c echo.Context) error {
	posts, err := h.blog.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, blogPostsResponse{Posts: posts})
}

// Get handles GET /blog/:slug.
//
// @Summary      One published blog post
// @Tags         blog
// @Produce      json
// @Param        slug  path      string  true  "Post slug"
// @Success      200   {object}  domain.BlogPost
// @Failure      404   {object}  errorResponse
// @Router       /blog/{slug} [get]
func (h *BlogHandler) Get(c echo.Context) error {
	post, err := h.blog.Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// Publish handles POST /blog.
//
// @Summary      Write a blog post
// @Tags         blog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      publishRequest  true  "Post"
// @Success      201   {object}  domain.BlogPost
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /blog [post]
func (h *BlogHandler) Publish(c echo.Context) error {
	uid, err := ctxUserID(c)
	if err != nil {
		return err
	}
	var req publishRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.blog.Publish(c.Request().Context(), ports.PublishInput{
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
