package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

func newExperienceSvc(f *fixture) ports.ExperienceService {
	return NewExperienceService(f.posts, f.specialists, f.certs, f.users, zerolog.Nop())
}

func TestExperienceService_CreateAndListAnonymously(t *testing.T) {
	f := newFixture()
	svc := newExperienceSvc(f)

	draft := false
	if _, err := svc.CreatePost(context.Background(), ports.CreatePostInput{UserID: "author", Title: "Hidden", Content: "draft", Published: &draft}); err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	post, err := svc.CreatePost(context.Background(), ports.CreatePostInput{UserID: "author", Title: " My story ", Content: "text"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !post.IsOwner || post.Title != "My story" || !post.Published {
		t.Fatalf("unexpected view: %+v", post)
	}

	list, err := svc.ListPosts(context.Background(), "someone-else")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].IsOwner {
		t.Fatalf("expected one foreign published post, got %+v", list)
	}
	raw, _ := json.Marshal(list)
	if strings.Contains(string(raw), "author") {
		t.Fatalf("post listing leaks author: %s", raw)
	}
}

func TestExperienceService_CreatePost_Validation(t *testing.T) {
	_, err := newExperienceSvc(newFixture()).CreatePost(context.Background(), ports.CreatePostInput{UserID: "a"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected title and content errors, got %v", err)
	}
}

func TestExperienceService_Responses(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addSpecialist("sp-p", "u-p", 1, true, false)
	f.addPost("post-1", "author", true)
	svc := newExperienceSvc(f)

	if _, err := svc.CreateResponse(context.Background(), ports.CreateResponseInput{PostID: "post-1", UserID: "u-p", Content: "hi"}); !errors.Is(err, domain.ErrNotVerifiedSpecialist) {
		t.Fatalf("expected ErrNotVerifiedSpecialist, got %v", err)
	}
	resp, err := svc.CreateResponse(context.Background(), ports.CreateResponseInput{PostID: "post-1", UserID: "u-a", Content: "support"})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if resp.Specialist.Name != "Dr u-a" || !resp.Specialist.Verified {
		t.Fatalf("unexpected responder: %+v", resp.Specialist)
	}
	if s, _, _ := f.chats.counts(); s != 0 {
		t.Fatalf("public response must not open a session")
	}

	list, err := svc.ListResponses(context.Background(), "post-1")
	if err != nil || len(list) != 1 || list[0].Specialist.ID != "sp-a" {
		t.Fatalf("unexpected responses: %+v %v", list, err)
	}
	if _, err := svc.ListResponses(context.Background(), "missing"); !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}
