package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type sessionBroker struct {
	chats       ports.ChatRepository
	posts       ports.ExperienceRepository
	specialists ports.SpecialistRepository
	certs       ports.CertificationRepository
	users       ports.UserRepository
	notifier    ports.MessageNotifier
	log         zerolog.Logger
}

// NewSessionBroker returns a SessionBroker. notifier may be nil.
func NewSessionBroker(
	chats ports.ChatRepository,
	posts ports.ExperienceRepository,
	specialists ports.SpecialistRepository,
	certs ports.CertificationRepository,
	users ports.UserRepository,
	notifier ports.MessageNotifier,
	log zerolog.Logger,
) ports.SessionBroker {
	return &sessionBroker{
		chats:       chats,
		posts:       posts,
		specialists: specialists,
		certs:       certs,
		users:       users,
		notifier:    notifier,
		log:         log,
	}
}

// CreateSeekerSession opens a session for userID bound to the least busy
// eligible specialist, or to nobody when none is eligible.
func (b *sessionBroker) CreateSeekerSession(ctx context.Context, userID string) (*ports.SessionView, error) {
	specialistID, err := b.leastBusySpecialist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		SpecialistID: specialistID,
		Status:       domain.SessionActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := b.chats.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ev := b.log.Info().Str("session_id", session.ID)
	if specialistID != nil {
		ev = ev.Str("specialist_id", *specialistID)
	}
	ev.Msg("seeker session created")

	v := sessionView(session, domain.PartyOwner)
	return &v, nil
}

// leastBusySpecialist picks the available verified specialist with the fewest
// ACTIVE sessions; ties go to the smallest id. The requester is never assigned
// to their own specialist profile.
func (b *sessionBroker) leastBusySpecialist(ctx context.Context, requesterID string) (*string, error) {
	ids, err := b.certs.VerifiedSpecialistIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	candidates, err := b.specialists.List(ctx, ports.SpecialistFilter{IDs: ids, OnlyAvailable: true})
	if err != nil {
		return nil, err
	}
	eligible := make([]string, 0, len(candidates))
	for _, sp := range candidates {
		if sp.UserID != requesterID {
			eligible = append(eligible, sp.ID)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Strings(eligible)

	load, err := b.chats.CountActiveBySpecialist(ctx, eligible)
	if err != nil {
		return nil, err
	}

	best := eligible[0]
	for _, id := range eligible[1:] {
		if load[id] < load[best] {
			best = id
		}
	}
	return &best, nil
}

func (b *sessionBroker) ListSessions(ctx context.Context, userID string) ([]ports.SessionView, error) {
	caller, err := resolveCaller(ctx, b.specialists, userID)
	if err != nil {
		return nil, err
	}

	owned, err := b.chats.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	all := owned
	if caller.SpecialistID != "" {
		assigned, err := b.chats.ListSessionsBySpecialist(ctx, caller.SpecialistID)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		all = append(all, assigned...)
	}

	seen := make(map[string]struct{}, len(all))
	views := make([]ports.SessionView, 0, len(all))
	for _, s := range all {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		party := domain.ClassifyCaller(s, caller)
		if party == domain.PartyNone {
			continue
		}
		views = append(views, sessionView(s, party))
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views, nil
}

func (b *sessionBroker) CloseSession(ctx context.Context, sessionID, userID string) (*ports.SessionView, error) {
	session, err := b.chats.FindSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	caller, err := resolveCaller(ctx, b.specialists, userID)
	if err != nil {
		return nil, err
	}
	party := domain.ClassifyCaller(session, caller)
	if party == domain.PartyNone {
		return nil, fmt.Errorf("close session: %w", domain.ErrSessionNotFound)
	}
	if !session.Status.CanTransitionTo(domain.SessionClosed) {
		return nil, fmt.Errorf("close session: %w", domain.ErrSessionClosed)
	}

	now := time.Now().UTC()
	if err := b.chats.CloseSession(ctx, sessionID, now); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	session.Status = domain.SessionClosed
	session.ClosedAt = &now
	session.UpdatedAt = now

	b.notify(ctx, session.ID, session.MessageSeq)
	b.log.Info().Str("session_id", sessionID).Msg("session closed")

	v := sessionView(session, party)
	return &v, nil
}

func (b *sessionBroker) FindPostSession(ctx context.Context, postID, userID string) (*string, error) {
	sp, err := verifiedSpecialist(ctx, b.specialists, b.certs, userID)
	if err != nil {
		return nil, err
	}
	session, err := b.chats.FindActiveByPostAndSpecialist(ctx, postID, sp.ID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post session: %w", err)
	}
	return &session.ID, nil
}

// InitiatePostChat opens an anonymous session between a verified specialist
// and the author of a published post, with the specialist's first message.
func (b *sessionBroker) InitiatePostChat(ctx context.Context, input ports.PostChatInput) (*ports.PostChatResult, error) {
	content, err := normalizeContent("initial_message", input.InitialMessage)
	if err != nil {
		return nil, err
	}
	sp, post, err := b.preparePostSession(ctx, input.PostID, input.UserID)
	if err != nil {
		return nil, err
	}

	session, first, err := newPostSession(post, sp, input.UserID, content)
	if err != nil {
		return nil, err
	}
	if err := b.chats.CreateSessionWithMessage(ctx, session, first); err != nil {
		return nil, b.conflictOr(ctx, post.ID, sp.ID, fmt.Errorf("initiate chat: %w", err))
	}

	b.log.Info().Str("session_id", session.ID).Str("post_id", post.ID).Str("specialist_id", sp.ID).Msg("post chat initiated")

	return &ports.PostChatResult{
		SessionID:       session.ID,
		AnonymousUserID: *session.AnonymousUserID,
		Message:         messageView(first),
	}, nil
}

// Reply atomically stores a public response together with a private session
// seeded with the same content.
func (b *sessionBroker) Reply(ctx context.Context, input ports.ReplyInput) (*ports.ReplyResult, error) {
	content, err := normalizeContent("content", input.Content)
	if err != nil {
		return nil, err
	}
	sp, post, err := b.preparePostSession(ctx, input.PostID, input.UserID)
	if err != nil {
		return nil, err
	}

	session, first, err := newPostSession(post, sp, input.UserID, content)
	if err != nil {
		return nil, err
	}
	resp := &domain.ExperiencePostResponse{
		ID:               uuid.NewString(),
		ExperiencePostID: post.ID,
		SpecialistID:     sp.ID,
		Content:          content,
		CreatedAt:        session.CreatedAt,
	}
	if err := b.chats.CreateReply(ctx, resp, session, first); err != nil {
		return nil, b.conflictOr(ctx, post.ID, sp.ID, fmt.Errorf("reply: %w", err))
	}

	responder := ports.ResponderView{ID: sp.ID, Verified: true}
	if u, err := b.users.FindByID(ctx, sp.UserID); err == nil {
		responder.Name = u.Name
		responder.ProfilePhoto = u.ProfilePhoto
	} else {
		b.log.Warn().Err(err).Str("specialist_id", sp.ID).Msg("responder profile lookup failed")
	}

	b.log.Info().Str("session_id", session.ID).Str("post_id", post.ID).Str("response_id", resp.ID).Msg("post reply created")

	return &ports.ReplyResult{
		Response: ports.ResponseView{
			ID:               resp.ID,
			ExperiencePostID: resp.ExperiencePostID,
			Content:          resp.Content,
			Specialist:       responder,
			CreatedAt:        resp.CreatedAt,
		},
		SessionID:       session.ID,
		AnonymousUserID: *session.AnonymousUserID,
		Message:         messageView(first),
	}, nil
}

// preparePostSession checks the caller and the post and rejects a second
// ACTIVE session for the same pair before any write is attempted.
func (b *sessionBroker) preparePostSession(ctx context.Context, postID, userID string) (*domain.Specialist, *domain.ExperiencePost, error) {
	sp, err := verifiedSpecialist(ctx, b.specialists, b.certs, userID)
	if err != nil {
		return nil, nil, err
	}

	post, err := b.posts.FindPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	if !post.Published {
		return nil, nil, domain.ErrPostNotFound
	}

	existing, err := b.chats.FindActiveByPostAndSpecialist(ctx, post.ID, sp.ID)
	switch {
	case err == nil:
		return nil, nil, &domain.SessionConflictError{SessionID: existing.ID}
	case !errors.Is(err, domain.ErrSessionNotFound):
		return nil, nil, fmt.Errorf("check existing session: %w", err)
	}
	return sp, post, nil
}

// conflictOr turns a uniqueness violation raced past the pre-check into a
// conflict carrying the winner's session id.
func (b *sessionBroker) conflictOr(ctx context.Context, postID, specialistID string, err error) error {
	if !errors.Is(err, domain.ErrSessionExists) {
		return err
	}
	existing, findErr := b.chats.FindActiveByPostAndSpecialist(ctx, postID, specialistID)
	if findErr != nil {
		b.log.Warn().Err(findErr).Str("post_id", postID).Msg("conflicting session lookup failed")
		return err
	}
	return &domain.SessionConflictError{SessionID: existing.ID}
}

func (b *sessionBroker) notify(ctx context.Context, sessionID string, seq int64) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Publish(ctx, sessionID, seq); err != nil {
		b.log.Warn().Err(err).Str("session_id", sessionID).Msg("session notification failed")
	}
}

func newPostSession(post *domain.ExperiencePost, sp *domain.Specialist, senderID, content string) (*domain.ChatSession, *domain.Message, error) {
	anon, err := newAnonymousID()
	if err != nil {
		return nil, nil, fmt.Errorf("anonymous id: %w", err)
	}

	now := time.Now().UTC()
	postID, specialistID := post.ID, sp.ID
	session := &domain.ChatSession{
		ID:               uuid.NewString(),
		UserID:           post.UserID,
		SpecialistID:     &specialistID,
		ExperiencePostID: &postID,
		AnonymousUserID:  &anon,
		Status:           domain.SessionActive,
		MessageSeq:       1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	first := &domain.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		SenderID:   senderID,
		SenderRole: domain.SenderSpecialist,
		Content:    content,
		Seq:        1,
		CreatedAt:  now,
	}
	return session, first, nil
}

// newAnonymousID returns a pseudonym of the form "User #1A2B3C".
func newAnonymousID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "User #" + strings.ToUpper(hex.EncodeToString(b)[:6]), nil
}
