package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	minPasswordLen    = 6
	maxNameLen        = 100
	maxDescriptionLen = 1000
)

// AuthService implements registration and login.
type AuthService struct {
	users       ports.UserRepository
	specialists ports.SpecialistRepository
	jwtSecret   string
	tokenTTL    time.Duration
	log         zerolog.Logger
}

func NewAuthService(users ports.UserRepository, specialists ports.SpecialistRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{users: users, specialists: specialists, jwtSecret: jwtSecret, tokenTTL: tokenTTL, log: log}
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}

	var fields []domain.FieldError
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		fields = append(fields, domain.FieldError{Field: "email", Message: "email must be a valid email address"})
	}
	if len(input.Password) < minPasswordLen {
		fields = append(fields, domain.FieldError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen)})
	}
	if role != domain.RoleUser && role != domain.RoleSpecialist {
		fields = append(fields, domain.FieldError{Field: "role", Message: "role must be one of: USER SPECIALIST"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if role == domain.RoleSpecialist {
		sp := &domain.Specialist{
			ID:          uuid.NewString(),
			UserID:      user.ID,
			IsAvailable: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.specialists.Create(ctx, sp); err != nil {
			return nil, fmt.Errorf("register: create specialist: %w", err)
		}
	}

	s.log.Info().Str("user_id", user.ID).Str("role", role).Msg("user registered")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("login: sign token: %w", err)
	}

	return token, user, nil
}

// Profile returns the caller's own account.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return user, nil
}

// UpdateProfile replaces the caller's name, description and photo URL.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ports.UserProfileInput) (*domain.User, error) {
	in := ports.UserProfileInput{
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		ProfilePhoto: strings.TrimSpace(input.ProfilePhoto),
	}

	var fields []domain.FieldError
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		fields = append(fields, domain.FieldError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLen)})
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		fields = append(fields, domain.FieldError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)})
	}
	if in.ProfilePhoto != "" && !isHTTPURL(in.ProfilePhoto) {
		fields = append(fields, domain.FieldError{Field: "profile_photo", Message: "profile_photo must be a valid URL"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	user, err := s.users.UpdateProfile(ctx, userID, in, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.log.Info().Str("user_id", userID).Msg("profile updated")
	return user, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
