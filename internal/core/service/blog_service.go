package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type blogService struct {
	posts       ports.BlogRepository
	specialists ports.SpecialistRepository
	certs       ports.CertificationRepository
	log         zerolog.Logger
}

func NewBlogService(posts ports.BlogRepository, specialists ports.SpecialistRepository, certs ports.CertificationRepository, log zerolog.Logger) ports.BlogService {
	return &blogService{posts: posts, specialists: specialists, certs: certs, log: log}
}

func (s *blogService) Publish(ctx context.Context, in ports.PublishInput) (*domain.BlogPost, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	var fields []domain.FieldError
	if title == "" {
		fields = append(fields, domain.FieldError{Field: "title", Message: "title is required"})
	}
	if content == "" {
		fields = append(fields, domain.FieldError{Field: "content", Message: "content is required"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	sp, err := verifiedSpecialist(ctx, s.specialists, s.certs, in.UserID)
	if err != nil {
		return nil, err
	}

	published := true
	if in.Published != nil {
		published = *in.Published
	}
	id := uuid.NewString()
	post := &domain.BlogPost{
		ID:           id,
		SpecialistID: sp.ID,
		Title:        title,
		Slug:         makeSlug(title, id),
		Content:      content,
		Published:    published,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	s.log.Info().Str("slug", post.Slug).Str("specialist_id", sp.ID).Msg("blog post created")
	return post, nil
}

// makeSlug appends the first block of id so equal titles never collide.
func makeSlug(title, id string) string {
	suffix := strings.SplitN(id, "-", 2)[0]
	base := slug.Make(title)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Get hides drafts.
func (s *blogService) Get(ctx context.Context, slugValue string) (*domain.BlogPost, error) {
	post, err := s.posts.FindBySlug(ctx, slugValue)
	if err != nil {
		return nil, fmt.Errorf("get blog post: %w", err)
	}
	if !post.Published {
		return nil, fmt.Errorf("get blog post: %w", domain.ErrBlogPostNotFound)
	}
	return post, nil
}

func (s *blogService) List(ctx context.Context) ([]*domain.BlogPost, error) {
	list, err := s.posts.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	return list, nil
}
