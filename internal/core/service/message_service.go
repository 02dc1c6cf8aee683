package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

type messageService struct {
	chats       ports.ChatRepository
	specialists ports.SpecialistRepository
	notifier    ports.MessageNotifier
	idem        ports.IdempotencyStore
	log         zerolog.Logger
}

// NewMessageService returns a MessageService. notifier and idem may be nil.
func NewMessageService(
	chats ports.ChatRepository,
	specialists ports.SpecialistRepository,
	notifier ports.MessageNotifier,
	idem ports.IdempotencyStore,
	log zerolog.Logger,
) ports.MessageService {
	return &messageService{
		chats:       chats,
		specialists: specialists,
		notifier:    notifier,
		idem:        idem,
		log:         log,
	}
}

func (s *messageService) Authorize(ctx context.Context, sessionID, userID string) (domain.Party, error) {
	_, party, err := s.authorize(ctx, sessionID, userID)
	return party, err
}

// authorize loads the session and classifies the caller. Non-parties get the
// same error as a missing session.
func (s *messageService) authorize(ctx context.Context, sessionID, userID string) (*domain.ChatSession, domain.Party, error) {
	session, err := s.chats.FindSession(ctx, sessionID)
	if err != nil {
		return nil, domain.PartyNone, err
	}
	caller, err := resolveCaller(ctx, s.specialists, userID)
	if err != nil {
		return nil, domain.PartyNone, err
	}
	party := domain.ClassifyCaller(session, caller)
	if party == domain.PartyNone {
		return nil, domain.PartyNone, domain.ErrSessionNotFound
	}
	return session, party, nil
}

// Append stores a new message at the end of the session log.
func (s *messageService) Append(ctx context.Context, in ports.AppendInput) (*ports.MessageView, error) {
	content, err := normalizeContent("content", in.Content)
	if err != nil {
		return nil, err
	}

	session, party, err := s.authorize(ctx, in.SessionID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if session.Status != domain.SessionActive {
		return nil, fmt.Errorf("append message: %w", domain.ErrSessionClosed)
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		SenderID:   in.UserID,
		SenderRole: party.SenderRole(),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	scope := session.ID + ":" + in.UserID
	reserved, replay, err := s.reserve(ctx, scope, in.IdempotencyKey, msg.ID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if replay != nil {
		return replay, nil
	}

	if err := s.chats.AppendMessage(ctx, msg); err != nil {
		if reserved {
			if relErr := s.idem.Release(ctx, scope, in.IdempotencyKey, msg.ID); relErr != nil {
				s.log.Warn().Err(relErr).Str("session_id", session.ID).Msg("failed to release idempotency key")
			}
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, session.ID, msg.Seq); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("message notification failed")
		}
	}

	s.log.Debug().Str("session_id", session.ID).Int64("seq", msg.Seq).Str("role", string(msg.SenderRole)).Msg("message appended")

	v := messageView(msg)
	return &v, nil
}

// reserve claims the idempotency key for msgID. When an earlier request
// holds the key, its stored message is returned instead. A store failure
// is logged and the append proceeds without deduplication.
func (s *messageService) reserve(ctx context.Context, scope, key, msgID, sessionID string) (bool, *ports.MessageView, error) {
	if key == "" || s.idem == nil {
		return false, nil, nil
	}
	holder, reserved, err := s.idem.Reserve(ctx, scope, key, msgID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("idempotency reserve failed, processing anyway")
		return false, nil, nil
	}
	if reserved {
		return true, nil, nil
	}

	msg, err := s.chats.FindMessage(ctx, holder)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return false, nil, domain.ErrRequestInProgress
	}
	if err != nil {
		return false, nil, err
	}
	if msg.SessionID != sessionID {
		return false, nil, domain.ErrRequestInProgress
	}
	s.log.Info().Str("session_id", sessionID).Str("message_id", holder).Msg("idempotent replay")
	v := messageView(msg)
	return false, &v, nil
}

// List returns the full ordered transcript of the session.
func (s *messageService) List(ctx context.Context, sessionID, userID string) (*ports.Transcript, error) {
	session, _, err := s.authorize(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs, err := s.chats.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	views := make([]ports.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView(m))
	}
	return &ports.Transcript{Messages: views, AnonymousUserID: session.AnonymousUserID}, nil
}
