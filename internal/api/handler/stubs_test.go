package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/middleware"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

// newContext builds an echo context with the validator installed and, when
// uid is non-empty, the claims the Auth middleware would set.
func newContext(method, target, body, uid string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != "" {
		c.Set(middleware.KeyUserID, uid)
		c.Set(middleware.KeyRole, domain.RoleUser)
	}
	return c, rec
}

type stubAuthService struct {
	registerFn      func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	loginFn         func(ctx context.Context, email, password string) (string, *domain.User, error)
	profileFn       func(ctx context.Context, userID string) (*domain.User, error)
	updateProfileFn func(ctx context.Context, userID string, in ports.UserProfileInput) (*domain.User, error)
}

func (s *stubAuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.profileFn(ctx, userID)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, userID string, in ports.UserProfileInput) (*domain.User, error) {
	return s.updateProfileFn(ctx, userID, in)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

type stubBroker struct {
	createFn   func(ctx context.Context, userID string) (*ports.SessionView, error)
	listFn     func(ctx context.Context, userID string) ([]ports.SessionView, error)
	closeFn    func(ctx context.Context, sessionID, userID string) (*ports.SessionView, error)
	findPostFn func(ctx context.Context, postID, userID string) (*string, error)
	initiateFn func(ctx context.Context, in ports.PostChatInput) (*ports.PostChatResult, error)
	replyFn    func(ctx context.Context, in ports.ReplyInput) (*ports.ReplyResult, error)
}

func (s *stubBroker) CreateSeekerSession(ctx context.Context, userID string) (*ports.SessionView, error) {
	return s.createFn(ctx, userID)
}

func (s *stubBroker) ListSessions(ctx context.Context, userID string) ([]ports.SessionView, error) {
	return s.listFn(ctx, userID)
}

func (s *stubBroker) CloseSession(ctx context.Context, sessionID, userID string) (*ports.SessionView, error) {
	return s.closeFn(ctx, sessionID, userID)
}

func (s *stubBroker) FindPostSession(ctx context.Context, postID, userID string) (*string, error) {
	return s.findPostFn(ctx, postID, userID)
}

func (s *stubBroker) InitiatePostChat(ctx context.Context, in ports.PostChatInput) (*ports.PostChatResult, error) {
	return s.initiateFn(ctx, in)
}

func (s *stubBroker) Reply(ctx context.Context, in ports.ReplyInput) (*ports.ReplyResult, error) {
	return s.replyFn(ctx, in)
}

type stubMessages struct {
	appendFn    func(ctx context.Context, in ports.AppendInput) (*ports.MessageView, error)
	listFn      func(ctx context.Context, sessionID, userID string) (*ports.Transcript, error)
	authorizeFn func(ctx context.Context, sessionID, userID string) (domain.Party, error)
}

func (s *stubMessages) Append(ctx context.Context, in ports.AppendInput) (*ports.MessageView, error) {
	return s.appendFn(ctx, in)
}

func (s *stubMessages) List(ctx context.Context, sessionID, userID string) (*ports.Transcript, error) {
	return s.listFn(ctx, sessionID, userID)
}

func (s *stubMessages) Authorize(ctx context.Context, sessionID, userID string) (domain.Party, error) {
	return s.authorizeFn(ctx, sessionID, userID)
}

type stubAssistant struct {
	chatFn func(ctx context.Context, in ports.AssistantInput) (*ports.AssistantReply, error)
}

func (s *stubAssistant) Chat(ctx context.Context, in ports.AssistantInput) (*ports.AssistantReply, error) {
	return s.chatFn(ctx, in)
}

type stubSpecialists struct {
	ports.SpecialistService
	browseFn func(ctx context.Context, f ports.SpecialistFilter) ([]ports.SpecialistSummary, error)
	verifyFn func(ctx context.Context, in ports.VerifyInput) (*domain.Certification, error)
	reviewFn func(ctx context.Context, in ports.ReviewInput) (*domain.Review, error)
}

func (s *stubSpecialists) Browse(ctx context.Context, f ports.SpecialistFilter) ([]ports.SpecialistSummary, error) {
	return s.browseFn(ctx, f)
}

func (s *stubSpecialists) VerifyCertification(ctx context.Context, in ports.VerifyInput) (*domain.Certification, error) {
	return s.verifyFn(ctx, in)
}

func (s *stubSpecialists) AddReview(ctx context.Context, in ports.ReviewInput) (*domain.Review, error) {
	return s.reviewFn(ctx, in)
}

type stubAppointments struct {
	bookFn func(ctx context.Context, in ports.BookInput) (*domain.Appointment, error)
	listFn func(ctx context.Context, userID string) ([]*domain.Appointment, error)
}

func (s *stubAppointments) Book(ctx context.Context, in ports.BookInput) (*domain.Appointment, error) {
	return s.bookFn(ctx, in)
}

func (s *stubAppointments) List(ctx context.Context, userID string) ([]*domain.Appointment, error) {
	return s.listFn(ctx, userID)
}
