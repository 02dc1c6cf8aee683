package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// seedSession creates an ACTIVE session owned by "owner" with specialist sp-a
// (user u-a) assigned.
func seedSession(f *fixture) {
	f.addSpecialist("sp-a", "u-a", 1, true, true)
	_ = f.chats.CreateSession(context.Background(), &domain.ChatSession{
		ID:              "s1",
		UserID:          "owner",
		SpecialistID:    strPtr("sp-a"),
		AnonymousUserID: strPtr("User #0A1B2C"),
		Status:          domain.SessionActive,
	})
}

func newMessageSvc(f *fixture, notifier ports.MessageNotifier, idem ports.IdempotencyStore) ports.MessageService {
	return NewMessageService(f.chats, f.specialists, notifier, idem, zerolog.Nop())
}

func TestMessageService_Append_RolesFromParty(t *testing.T) {
	f := newFixture()
	seedSession(f)
	notifier := &stubNotifier{}
	svc := newMessageSvc(f, notifier, nil)

	m1, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi"})
	if err != nil {
		t.Fatalf("owner append failed: %v", err)
	}
	m2, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "u-a", Content: "hello"})
	if err != nil {
		t.Fatalf("specialist append failed: %v", err)
	}
	if m1.SenderRole != domain.SenderUser || m2.SenderRole != domain.SenderSpecialist {
		t.Fatalf("unexpected roles %s %s", m1.SenderRole, m2.SenderRole)
	}
	if m2.Seq != m1.Seq+1 {
		t.Fatalf("expected consecutive seq, got %d then %d", m1.Seq, m2.Seq)
	}
	if len(notifier.published) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.published))
	}
}

func TestMessageService_Append_Validation(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, nil)

	for _, content := range []string{"", "   \n\t", strings.Repeat("я", maxMessageLen+1)} {
		_, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: content})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %d chars, got %v", len(content), err)
		}
	}
	if _, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: strings.Repeat("я", maxMessageLen)}); err != nil {
		t.Fatalf("max length message should be accepted: %v", err)
	}
}

func TestMessageService_Append_NonPartySeesNotFound(t *testing.T) {
	f := newFixture()
	seedSession(f)
	f.addSpecialist("sp-b", "u-b", 1, true, true)
	svc := newMessageSvc(f, nil, nil)

	for _, user := range []string{"stranger", "u-b"} {
		_, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: user, Content: "hi"})
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("%s: expected ErrSessionNotFound, got %v", user, err)
		}
	}
	_, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "missing", UserID: "owner", Content: "hi"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for missing session, got %v", err)
	}
}

func TestMessageService_Append_ClosedSession(t *testing.T) {
	f := newFixture()
	seedSession(f)
	f.chats.sessions["s1"].Status = domain.SessionClosed

	_, err := newMessageSvc(f, nil, nil).Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi"})
	if !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestMessageService_Append_IdempotentReplay(t *testing.T) {
	f := newFixture()
	seedSession(f)
	idem := newStubIdempotency()
	svc := newMessageSvc(f, nil, idem)

	in := ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi", IdempotencyKey: "k1"}
	first, err := svc.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	second, err := svc.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replayed message %s, got %s", first.ID, second.ID)
	}
	if _, m, _ := f.chats.counts(); m != 1 {
		t.Fatalf("expected one stored message, got %d", m)
	}
}

func TestMessageService_Append_IdempotencyStoreDown(t *testing.T) {
	f := newFixture()
	seedSession(f)
	idem := newStubIdempotency()
	idem.reserveErr = errors.New("redis down")

	_, err := newMessageSvc(f, nil, idem).Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("idempotency failures must not fail the append: %v", err)
	}
}

func TestMessageService_Append_ConcurrentSameKeyStoresOnce(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, newStubIdempotency())
	in := ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi", IdempotencyKey: "k1"}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Append(context.Background(), in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, domain.ErrRequestInProgress) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, m, _ := f.chats.counts(); m != 1 {
		t.Fatalf("expected one stored message, got %d", m)
	}
}

func TestMessageService_Append_KeyHeldByUnfinishedRequest(t *testing.T) {
	f := newFixture()
	seedSession(f)
	idem := newStubIdempotency()
	idem.keys["s1:owner|k1"] = "not-yet-stored"

	_, err := newMessageSvc(f, nil, idem).Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi", IdempotencyKey: "k1"})
	if !errors.Is(err, domain.ErrRequestInProgress) {
		t.Fatalf("expected ErrRequestInProgress, got %v", err)
	}
	if _, m, _ := f.chats.counts(); m != 0 {
		t.Fatalf("expected no stored message, got %d", m)
	}
}

func TestMessageService_Append_FailedInsertReleasesKey(t *testing.T) {
	f := newFixture()
	seedSession(f)
	idem := newStubIdempotency()
	svc := newMessageSvc(f, nil, idem)
	in := ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi", IdempotencyKey: "k1"}

	// Closed behind the access check, so the insert itself fails.
	f.chats.failAppend = domain.ErrSessionClosed
	if _, err := svc.Append(context.Background(), in); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if len(idem.released) != 1 {
		t.Fatalf("expected the reservation to be released, got %v", idem.released)
	}

	f.chats.failAppend = nil
	if _, err := svc.Append(context.Background(), in); err != nil {
		t.Fatalf("retry after release failed: %v", err)
	}
}

func TestMessageService_List_OrderAndCount(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, nil)

	before, err := svc.List(context.Background(), "s1", "owner")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	contents := []string{"one", "two", "three"}
	for i, c := range contents {
		user := "owner"
		if i%2 == 1 {
			user = "u-a"
		}
		if _, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: user, Content: c}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	after, err := svc.List(context.Background(), "s1", "u-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(after.Messages) != len(before.Messages)+len(contents) {
		t.Fatalf("expected %d messages, got %d", len(before.Messages)+len(contents), len(after.Messages))
	}
	for i, c := range contents {
		if after.Messages[i].Content != c {
			t.Fatalf("message %d: expected %q, got %q", i, c, after.Messages[i].Content)
		}
	}
	if after.AnonymousUserID == nil || *after.AnonymousUserID != "User #0A1B2C" {
		t.Fatalf("expected anonymous id in transcript")
	}
}

func TestMessageService_List_SpecialistViewHasNoIdentity(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, nil)
	_, _ = svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: "owner", Content: "hi"})

	transcript, err := svc.List(context.Background(), "s1", "u-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	raw, _ := json.Marshal(transcript)
	for _, leak := range []string{"owner", `"sender_id"`, `"user_id"`} {
		if strings.Contains(string(raw), leak) {
			t.Fatalf("specialist transcript leaks %q: %s", leak, raw)
		}
	}
}

func TestMessageService_ConcurrentAppendsKeepTotalOrder(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "owner"
			if i%2 == 0 {
				user = "u-a"
			}
			if _, err := svc.Append(context.Background(), ports.AppendInput{SessionID: "s1", UserID: user, Content: "m"}); err != nil {
				t.Errorf("append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	transcript, _ := svc.List(context.Background(), "s1", "owner")
	if len(transcript.Messages) != n {
		t.Fatalf("expected %d messages, got %d", n, len(transcript.Messages))
	}
	for i, m := range transcript.Messages {
		if m.Seq != int64(i+1) {
			t.Fatalf("expected seq %d at %d, got %d", i+1, i, m.Seq)
		}
	}
}

func TestMessageService_Authorize(t *testing.T) {
	f := newFixture()
	seedSession(f)
	svc := newMessageSvc(f, nil, nil)

	cases := map[string]domain.Party{"owner": domain.PartyOwner, "u-a": domain.PartySpecialist}
	for user, want := range cases {
		got, err := svc.Authorize(context.Background(), "s1", user)
		if err != nil || got != want {
			t.Fatalf("%s: expected %v, got %v (%v)", user, want, got, err)
		}
	}
	if _, err := svc.Authorize(context.Background(), "s1", "stranger"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
