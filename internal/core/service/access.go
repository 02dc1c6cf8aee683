package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const maxMessageLen = 5000

// verifiedSpecialist resolves the specialist profile of userID and requires it
// to hold at least one VERIFIED certification.
func verifiedSpecialist(ctx context.Context, specialists ports.SpecialistRepository, certs ports.CertificationRepository, userID string) (*domain.Specialist, error) {
	sp, err := specialists.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrSpecialistNotFound) {
		return nil, domain.ErrNotVerifiedSpecialist
	}
	if err != nil {
		return nil, err
	}

	ok, err := isVerified(ctx, certs, sp.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotVerifiedSpecialist
	}
	return sp, nil
}

func isVerified(ctx context.Context, certs ports.CertificationRepository, specialistID string) (bool, error) {
	list, err := certs.ListBySpecialist(ctx, specialistID)
	if err != nil {
		return false, err
	}
	for _, c := range list {
		if c.Status == domain.CertificationVerified {
			return true, nil
		}
	}
	return false, nil
}

// resolveCaller loads the specialist identity of userID, if any.
func resolveCaller(ctx context.Context, specialists ports.SpecialistRepository, userID string) (domain.Caller, error) {
	caller := domain.Caller{UserID: userID}
	sp, err := specialists.FindByUserID(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrSpecialistNotFound):
		return caller, nil
	case err != nil:
		return caller, fmt.Errorf("resolve caller: %w", err)
	}
	caller.SpecialistID = sp.ID
	return caller, nil
}

// normalizeContent trims content and enforces the message length bounds.
func normalizeContent(field, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.NewValidationError(field, field+" is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return "", domain.NewValidationError(field, fmt.Sprintf("%s must be at most %d characters", field, maxMessageLen))
	}
	return content, nil
}

func sessionView(s *domain.ChatSession, party domain.Party) ports.SessionView {
	v := ports.SessionView{
		ID:               s.ID,
		SpecialistID:     s.SpecialistID,
		ExperiencePostID: s.ExperiencePostID,
		AnonymousUserID:  s.AnonymousUserID,
		Status:           s.Status,
		Role:             party.SenderRole(),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if party == domain.PartyOwner {
		v.UserID = s.UserID
	}
	return v
}

func messageView(m *domain.Message) ports.MessageView {
	return ports.MessageView{
		ID:         m.ID,
		SessionID:  m.SessionID,
		SenderRole: m.SenderRole,
		Content:    m.Content,
		Seq:        m.Seq,
		CreatedAt:  m.CreatedAt,
	}
}
