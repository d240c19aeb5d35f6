package auth

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
	"github.com/scripty-dev/starter-api/internal/validation"
	"github.com/scripty-dev/starter-api/pkg/config"
	"github.com/scripty-dev/starter-api/pkg/crypto"
	jwtpkg "github.com/scripty-dev/starter-api/pkg/jwt"
)

var (
	// ErrUserExists is returned when registering a taken email.
	ErrUserExists = errors.New("auth: user already exists")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrTokenMissing is returned for an empty bearer token.
	ErrTokenMissing = errors.New("auth: token required")
)

// Service handles authentication workflows.
type Service struct {
	users     repository.UserRepository
	validator *validation.Validator
	logger    *slog.Logger
	cfg       config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, validator *validation.Validator, logger *slog.Logger, cfg config.APIConfig) Service {
	if validator == nil {
		validator = validation.New()
	}
	return Service{users: users, validator: validator, logger: logger, cfg: cfg}
}

// RegisterInput holds sign-up fields.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

var registerMessages = validation.Messages{
	"name.required":     "Please add a name",
	"email.required":    "Please add an email",
	"email.email":       "Please add a valid email",
	"password.required": "Please add a password",
	"password.min":      "Password must be at least 6 characters",
	"password.maxbytes":  "Password must be at most 72 bytes",
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *domain.User
	Token string
}

// Register creates an account and returns a session for it.
func (s Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := s.validator.Struct(input, registerMessages); err != nil {
		return Session{}, err
	}
	if _, err := s.users.GetUserByEmail(ctx, input.Email); err == nil {
		return Session{}, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Session{}, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return Session{}, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Session{}, ErrUserExists
		}
		return Session{}, err
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return Session{User: user, Token: token}, nil
}

// Login authenticates a user and returns a session.
func (s Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return Session{User: user, Token: token}, nil
}

// Profile loads the account behind an identity.
func (s Service) Profile(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, repository.ErrNotFound
	}
	return s.users.GetUserByID(ctx, identity.ID)
}

// Verify checks a bearer token's signature and expiry and returns the
// identity it carries. It never touches the user store.
func (s Service) Verify(token string) (domain.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Identity{}, ErrTokenMissing
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: claims.ID}, nil
}

func (s Service) issueToken(userID string) (string, error) {
	return jwtpkg.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.TokenTTL)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
