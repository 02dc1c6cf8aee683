package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

var anonymousIDPattern = regexp.MustCompile(`^User #[0-9A-F]{6}$`)

func newBroker(f *fixture, notifier ports.MessageNotifier) ports.SessionBroker {
	return NewSessionBroker(f.chats, f.posts, f.specialists, f.certs, f.users, notifier, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Seeker-initiated sessions
// ---------------------------------------------------------------------------

func TestSessionBroker_CreateSeekerSession_LeastBusy(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addSpecialist("sp-b", "u-b", 1, true, true)
	f.addSpecialist("sp-c", "u-c", 1, false, true)
	f.addSpecialist("sp-d", "u-d", 1, true, false)
	// sp-a already has one active session.
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{ID: "old", UserID: "x", SpecialistID: strPtr("sp-a"), Status: domain.SessionActive})

	v, err := newBroker(f, nil).CreateSeekerSession(context.Background(), "seeker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SpecialistID == nil || *v.SpecialistID != "sp-b" {
		t.Fatalf("expected sp-b, got %v", v.SpecialistID)
	}
	stored, _ := f.chats.FindSession(context.Background(), v.ID)
	if stored.SpecialistID == nil || *stored.SpecialistID != "sp-b" {
		t.Fatalf("session must be stored already bound")
	}
	if v.Status != domain.SessionActive || v.UserID != "seeker" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestSessionBroker_CreateSeekerSession_TieGoesToSmallestID(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-b", "u-b", 1, true, true)
	f.addSpecialist("sp-a", "u-a", 1, true, true)

	v, err := newBroker(f, nil).CreateSeekerSession(context.Background(), "seeker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SpecialistID == nil || *v.SpecialistID != "sp-a" {
		t.Fatalf("expected sp-a, got %v", v.SpecialistID)
	}
}

func TestSessionBroker_CreateSeekerSession_NoEligibleSpecialist(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, false, true)

	v, err := newBroker(f, nil).CreateSeekerSession(context.Background(), "seeker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SpecialistID != nil {
		t.Fatalf("expected unassigned session, got %v", *v.SpecialistID)
	}
}

func TestSessionBroker_CreateSeekerSession_NeverSelfAssigned(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)

	v, err := newBroker(f, nil).CreateSeekerSession(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SpecialistID != nil {
		t.Fatalf("specialist must not be assigned to themselves")
	}
}

// ---------------------------------------------------------------------------
// Specialist-initiated sessions
// ---------------------------------------------------------------------------

func TestSessionBroker_InitiatePostChat_Success(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)

	res, err := newBroker(f, nil).InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "  hello  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !anonymousIDPattern.MatchString(res.AnonymousUserID) {
		t.Fatalf("bad pseudonym %q", res.AnonymousUserID)
	}
	if res.Message.Content != "hello" || res.Message.SenderRole != domain.SenderSpecialist || res.Message.Seq != 1 {
		t.Fatalf("unexpected first message: %+v", res.Message)
	}
	stored, _ := f.chats.FindSession(context.Background(), res.SessionID)
	if stored.UserID != "author" {
		t.Fatalf("session must belong to the post author, got %s", stored.UserID)
	}
}

func TestSessionBroker_InitiatePostChat_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		postID  string
		message string
		wantErr error
	}{
		{"unverified specialist", "u-pending", "post-1", "hi", domain.ErrNotVerifiedSpecialist},
		{"not a specialist", "random", "post-1", "hi", domain.ErrNotVerifiedSpecialist},
		{"missing post", "u-a", "nope", "hi", domain.ErrPostNotFound},
		{"unpublished post", "u-a", "draft", "hi", domain.ErrPostNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addSpecialist("sp-a", "u-a", 1, true, true)
			f.addSpecialist("sp-p", "u-pending", 1, true, false)
			f.addPost("post-1", "author", true)
			f.addPost("draft", "author", false)

			_, err := newBroker(f, nil).InitiatePostChat(context.Background(), ports.PostChatInput{PostID: tt.postID, UserID: tt.userID, InitialMessage: tt.message})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if s, m, _ := f.chats.counts(); s != 0 || m != 0 {
				t.Fatalf("nothing should be written, got %d sessions %d messages", s, m)
			}
		})
	}
}

func TestSessionBroker_InitiatePostChat_EmptyMessage(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)

	_, err := newBroker(f, nil).InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "   "})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Fields[0].Field != "initial_message" {
		t.Fatalf("expected initial_message validation error, got %v", err)
	}
}

func TestSessionBroker_InitiatePostChat_ConflictCarriesExistingID(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	broker := newBroker(f, nil)

	first, err := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "hi"})
	if err != nil {
		t.Fatalf("first chat failed: %v", err)
	}

	_, err = broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "again"})
	var conflict *domain.SessionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SessionConflictError, got %v", err)
	}
	if conflict.SessionID != first.SessionID {
		t.Fatalf("expected existing id %s, got %s", first.SessionID, conflict.SessionID)
	}
	if !errors.Is(err, domain.ErrSessionExists) {
		t.Fatalf("conflict should unwrap to ErrSessionExists")
	}
}

func TestSessionBroker_InitiatePostChat_RaceAfterPrecheck(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	broker := newBroker(f, nil)

	first, _ := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "hi"})
	f.chats.skipPrecheck = true

	_, err := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "again"})
	var conflict *domain.SessionConflictError
	if !errors.As(err, &conflict) || conflict.SessionID != first.SessionID {
		t.Fatalf("expected conflict with %s, got %v", first.SessionID, err)
	}
}

func TestSessionBroker_AfterCloseNewSessionAllowed(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	broker := newBroker(f, nil)

	first, _ := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "hi"})
	if _, err := broker.CloseSession(context.Background(), first.SessionID, "author"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	second, err := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "hi again"})
	if err != nil {
		t.Fatalf("expected new session after close, got %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatalf("expected a fresh session")
	}
}

// ---------------------------------------------------------------------------
// Reply
// ---------------------------------------------------------------------------

func TestSessionBroker_Reply_Success(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)

	res, err := newBroker(f, nil).Reply(context.Background(), ports.ReplyInput{PostID: "post-1", UserID: "u-a", Content: "I hear you"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Response.Content != "I hear you" || res.Message.Content != "I hear you" {
		t.Fatalf("response and first message should share content: %+v", res)
	}
	if !res.Response.Specialist.Verified || res.Response.Specialist.Name != "Dr u-a" {
		t.Fatalf("unexpected responder view: %+v", res.Response.Specialist)
	}
	if !anonymousIDPattern.MatchString(res.AnonymousUserID) {
		t.Fatalf("bad pseudonym %q", res.AnonymousUserID)
	}
	if s, m, r := f.chats.counts(); s != 1 || m != 1 || r != 1 {
		t.Fatalf("expected 1/1/1 rows, got %d/%d/%d", s, m, r)
	}
}

func TestSessionBroker_Reply_AtomicOnFailure(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	f.chats.failWrite = errors.New("transaction aborted")

	_, err := newBroker(f, nil).Reply(context.Background(), ports.ReplyInput{PostID: "post-1", UserID: "u-a", Content: "hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if s, m, r := f.chats.counts(); s != 0 || m != 0 || r != 0 {
		t.Fatalf("no partial rows expected, got %d/%d/%d", s, m, r)
	}
}

func TestSessionBroker_Reply_ConcurrentCreatesOneSession(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	broker := newBroker(f, nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		conflicts []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := broker.Reply(context.Background(), ports.ReplyInput{PostID: "post-1", UserID: "u-a", Content: "hello"})
			mu.Lock()
			defer mu.Unlock()
			var conflict *domain.SessionConflictError
			switch {
			case err == nil:
				successes = append(successes, res.SessionID)
			case errors.As(err, &conflict):
				conflicts = append(conflicts, conflict.SessionID)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(successes) != 1 {
		t.Fatalf("expected exactly one success, got %d", len(successes))
	}
	for _, id := range conflicts {
		if id != successes[0] {
			t.Fatalf("conflict carried %s, want %s", id, successes[0])
		}
	}
	if s, _, r := f.chats.counts(); s != 1 || r != 1 {
		t.Fatalf("expected one session and one response, got %d/%d", s, r)
	}
}

// ---------------------------------------------------------------------------
// Close and list
// ---------------------------------------------------------------------------

func TestSessionBroker_CloseSession(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{ID: "s1", UserID: "owner", SpecialistID: strPtr("sp-a"), Status: domain.SessionActive})
	notifier := &stubNotifier{}
	broker := newBroker(f, notifier)

	if _, err := broker.CloseSession(context.Background(), "s1", "stranger"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("non-party should see not found, got %v", err)
	}

	v, err := broker.CloseSession(context.Background(), "s1", "u-a")
	if err != nil {
		t.Fatalf("specialist close failed: %v", err)
	}
	if v.Status != domain.SessionClosed || v.UserID != "" {
		t.Fatalf("unexpected specialist view: %+v", v)
	}
	if len(notifier.published) != 1 {
		t.Fatalf("expected a notification on close")
	}

	if _, err := broker.CloseSession(context.Background(), "s1", "owner"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionBroker_ListSessions_PartyViews(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	now := time.Now().UTC()
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{ID: "own", UserID: "u-a", Status: domain.SessionActive, UpdatedAt: now.Add(-time.Hour)})
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{ID: "assigned", UserID: "seeker", SpecialistID: strPtr("sp-a"), AnonymousUserID: strPtr("User #ABCDEF"), Status: domain.SessionActive, UpdatedAt: now})
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{ID: "other", UserID: "someone", Status: domain.SessionActive})

	views, err := newBroker(f, nil).ListSessions(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
	if views[0].ID != "assigned" || views[0].UserID != "" || views[0].Role != domain.SenderSpecialist {
		t.Fatalf("specialist view leaked identity or wrong order: %+v", views[0])
	}
	if views[1].ID != "own" || views[1].UserID != "u-a" {
		t.Fatalf("unexpected owner view: %+v", views[1])
	}
}

func TestSessionBroker_FindPostSession(t *testing.T) {
	f := newFixture()
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	f.addPost("post-1", "author", true)
	broker := newBroker(f, nil)

	id, err := broker.FindPostSession(context.Background(), "post-1", "u-a")
	if err != nil || id != nil {
		t.Fatalf("expected no session, got %v %v", id, err)
	}

	res, _ := broker.InitiatePostChat(context.Background(), ports.PostChatInput{PostID: "post-1", UserID: "u-a", InitialMessage: "hi"})
	id, err = broker.FindPostSession(context.Background(), "post-1", "u-a")
	if err != nil || id == nil || *id != res.SessionID {
		t.Fatalf("expected %s, got %v %v", res.SessionID, id, err)
	}
}

func TestNewAnonymousID_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := newAnonymousID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !anonymousIDPattern.MatchString(id) {
			t.Fatalf("bad pseudonym %q", id)
		}
	}
}
