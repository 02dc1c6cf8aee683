package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const maxTitleLen = 200

type experienceService struct {
	posts       ports.ExperienceRepository
	specialists ports.SpecialistRepository
	certs       ports.CertificationRepository
	users       ports.UserRepository
	log         zerolog.Logger
}

func NewExperienceService(
	posts ports.ExperienceRepository,
	specialists ports.SpecialistRepository,
	certs ports.CertificationRepository,
	users ports.UserRepository,
	log zerolog.Logger,
) ports.ExperienceService {
	return &experienceService{posts: posts, specialists: specialists, certs: certs, users: users, log: log}
}

func (s *experienceService) CreatePost(ctx context.Context, in ports.CreatePostInput) (*ports.PostView, error) {
	title := strings.TrimSpace(in.Title)
	var fields []domain.FieldError
	if title == "" {
		fields = append(fields, domain.FieldError{Field: "title", Message: "title is required"})
	} else if len([]rune(title)) > maxTitleLen {
		fields = append(fields, domain.FieldError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", maxTitleLen)})
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		fields = append(fields, domain.FieldError{Field: "content", Message: "content is required"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	published := true
	if in.Published != nil {
		published = *in.Published
	}

	now := time.Now().UTC()
	post := &domain.ExperiencePost{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     title,
		Content:   content,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.log.Info().Str("post_id", post.ID).Bool("published", published).Msg("experience post created")
	v := postView(post, in.UserID)
	return &v, nil
}

// ListPosts returns the published posts without author identity.
func (s *experienceService) ListPosts(ctx context.Context, callerID string) ([]ports.PostView, error) {
	posts, err := s.posts.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	views := make([]ports.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView(p, callerID))
	}
	return views, nil
}

func (s *experienceService) ListResponses(ctx context.Context, postID string) ([]ports.ResponseView, error) {
	post, err := s.posts.FindPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if !post.Published {
		return nil, fmt.Errorf("list responses: %w", domain.ErrPostNotFound)
	}

	responses, err := s.posts.ListResponses(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	responders, err := s.responders(ctx, responses)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	views := make([]ports.ResponseView, 0, len(responses))
	for _, r := range responses {
		views = append(views, ports.ResponseView{
			ID:               r.ID,
			ExperiencePostID: r.ExperiencePostID,
			Content:          r.Content,
			Specialist:       responders[r.SpecialistID],
			CreatedAt:        r.CreatedAt,
		})
	}
	return views, nil
}

// responders resolves the public identity of every responding specialist.
func (s *experienceService) responders(ctx context.Context, responses []*domain.ExperiencePostResponse) (map[string]ports.ResponderView, error) {
	out := make(map[string]ports.ResponderView)
	if len(responses) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		if _, ok := out[r.SpecialistID]; !ok {
			out[r.SpecialistID] = ports.ResponderView{ID: r.SpecialistID}
			ids = append(ids, r.SpecialistID)
		}
	}

	specialists, err := s.specialists.List(ctx, ports.SpecialistFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	verified, err := s.certs.VerifiedSpecialistIDs(ctx)
	if err != nil {
		return nil, err
	}
	verifiedSet := make(map[string]bool, len(verified))
	for _, id := range verified {
		verifiedSet[id] = true
	}

	userIDs := make([]string, 0, len(specialists))
	for _, sp := range specialists {
		userIDs = append(userIDs, sp.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, sp := range specialists {
		v := ports.ResponderView{ID: sp.ID, Verified: verifiedSet[sp.ID]}
		if u, ok := users[sp.UserID]; ok {
			v.Name = u.Name
			v.ProfilePhoto = u.ProfilePhoto
		}
		out[sp.ID] = v
	}
	return out, nil
}

// CreateResponse stores a public response only; no chat session is opened.
func (s *experienceService) CreateResponse(ctx context.Context, in ports.CreateResponseInput) (*ports.ResponseView, error) {
	content, err := normalizeContent("content", in.Content)
	if err != nil {
		return nil, err
	}
	sp, err := verifiedSpecialist(ctx, s.specialists, s.certs, in.UserID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.FindPost(ctx, in.PostID)
	if err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}
	if !post.Published {
		return nil, fmt.Errorf("create response: %w", domain.ErrPostNotFound)
	}

	resp := &domain.ExperiencePostResponse{
		ID:               uuid.NewString(),
		ExperiencePostID: post.ID,
		SpecialistID:     sp.ID,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.posts.CreateResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}

	view := ports.ResponseView{
		ID:               resp.ID,
		ExperiencePostID: resp.ExperiencePostID,
		Content:          resp.Content,
		Specialist:       ports.ResponderView{ID: sp.ID, Verified: true},
		CreatedAt:        resp.CreatedAt,
	}
	if u, err := s.users.FindByID(ctx, sp.UserID); err == nil {
		view.Specialist.Name = u.Name
		view.Specialist.ProfilePhoto = u.ProfilePhoto
	}

	s.log.Info().Str("post_id", post.ID).Str("response_id", resp.ID).Msg("experience response created")
	return &view, nil
}

func postView(p *domain.ExperiencePost, callerID string) ports.PostView {
	return ports.PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Published: p.Published,
		IsOwner:   callerID != "" && p.UserID == callerID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
