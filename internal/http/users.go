package httpx

import (
	"errors"
	"net/http"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
	"github.com/scripty-dev/starter-api/internal/service/auth"
)

type sessionResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func newSessionResponse(session auth.Session) sessionResponse {
	return sessionResponse{
		ID:    session.User.ID,
		Name:  session.User.Name,
		Email: session.User.Email,
		Token: session.Token,
	}
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w, req, http.MethodPost)
		return
	}
	var payload auth.RegisterInput
	if err := decodeJSON(w, req, &payload); err != nil {
		r.respondError(w, req, err)
		return
	}
	session, err := r.auth.Register(req.Context(), payload)
	if err != nil {
		r.respondError(w, req, userError(err))
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w, req, http.MethodPost)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, req, &payload); err != nil {
		r.respondError(w, req, err)
		return
	}
	session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.respondError(w, req, userError(err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req, http.MethodGet)
		return
	}
	identity, ok := IdentityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile", "path", req.URL.Path)
		r.respondError(w, req, errors.New("authorization context missing"))
		return
	}
	user, err := r.auth.Profile(req.Context(), identity)
	if err != nil {
		r.respondError(w, req, userError(err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func userError(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return wrapAPIError(http.StatusBadRequest, verr.Error(), err)
	case errors.Is(err, auth.ErrUserExists):
		return wrapAPIError(http.StatusBadRequest, "User already exists", err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return wrapAPIError(http.StatusUnauthorized, "Invalid email or password", err)
	case errors.Is(err, repository.ErrNotFound):
		return wrapAPIError(http.StatusNotFound, "User not found", err)
	default:
		return err
	}
}
