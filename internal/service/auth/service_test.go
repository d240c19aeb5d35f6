package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
	"github.com/scripty-dev/starter-api/internal/repository/memory"
	"github.com/scripty-dev/starter-api/pkg/config"
	jwtpkg "github.com/scripty-dev/starter-api/pkg/jwt"
)

func newTestService(t *testing.T, users repository.UserRepository) Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}
	return New(users, nil, log, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t, memory.New())
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Email != "ada@example.com" {
		t.Fatalf("expected normalised email, got %q", session.User.Email)
	}
	identity, err := svc.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.ID != session.User.ID {
		t.Fatalf("token identity %q does not match user %q", identity.ID, session.User.ID)
	}

	login, err := svc.Login(ctx, "ADA@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != session.User.ID || login.Token == "" {
		t.Fatalf("unexpected login session %+v", login)
	}

	profile, err := svc.Profile(ctx, identity)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Name != "Ada" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t, memory.New())
	ctx := context.Background()
	input := RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, memory.New())
	cases := []struct {
		name  string
		input RegisterInput
		want  string
	}{
		{name: "missing everything", input: RegisterInput{}, want: "Please add a name, Please add an email, Please add a password"},
		{name: "bad email", input: RegisterInput{Name: "Ada", Email: "ada-at-example", Password: "secret1"}, want: "Please add a valid email"},
		{name: "short password", input: RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "abc"}, want: "Password must be at least 6 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.input)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Error() != tc.want {
				t.Fatalf("got %q, want %q", verr.Error(), tc.want)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, memory.New())
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := newTestService(t, memory.New())
	if _, err := svc.Verify("  "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := svc.Verify("not.a.token"); err == nil {
		t.Fatalf("expected malformed token error")
	}
	expired, err := jwtpkg.GenerateToken("user-1", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Verify(expired); err == nil {
		t.Fatalf("expected expired token error")
	}
	foreign, err := jwtpkg.GenerateToken("user-1", "another-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Verify(foreign); err == nil {
		t.Fatalf("expected signature error")
	}
}

type userRepoStub struct {
	repository.UserRepository
	lookups int
}

func (u *userRepoStub) GetUserByID(context.Context, string) (*domain.User, error) {
	u.lookups++
	return nil, repository.ErrNotFound
}

func TestVerifyDoesNotQueryStore(t *testing.T) {
	repo := &userRepoStub{}
	svc := newTestService(t, repo)
	token, err := jwtpkg.GenerateToken("user-1", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if repo.lookups != 0 {
		t.Fatalf("Verify must not hit the store, saw %d lookups", repo.lookups)
	}
	if _, err := svc.Profile(context.Background(), domain.Identity{ID: "user-1"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted user, got %v", err)
	}
}
