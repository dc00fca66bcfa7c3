package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/grocerly/auth-api/internal/httputil"
	"github.com/grocerly/auth-api/internal/logging"
	"github.com/grocerly/auth-api/internal/user"
)

// Handler contains HTTP handlers for the authentication endpoints.
// Handlers log through the request-scoped logger in the context.
type Handler struct {
	service       *Service
	isProduction  bool
	tokenValidity time.Duration
}

func NewHandler(service *Service, isProduction bool, tokenValidity time.Duration) *Handler {
	return &Handler{
		service:       service,
		isProduction:  isProduction,
		tokenValidity: tokenValidity,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionResponse wraps the user returned by signup, login and me
type SessionResponse struct {
	User UserResponse `json:"user"`
}

// LogoutResponse represents the logout response
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// MigrateResponse reports how many credentials the migration rewrote
type MigrateResponse struct {
	Updated int `json:"updated"`
}

// Signup handles user registration
// @Summary      Sign up
// @Description  Create a new account and start a session via the auth_token cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already registered"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newUser, token, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("signup failed: email already registered", "email", req.Email)
			httputil.RespondErrorWithCode(w, "email already registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrNameRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNameRequired, http.StatusBadRequest)
		case errors.Is(err, ErrEmailRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
		default:
			logger.Error("signup failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to sign up", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user signed up", "user_id", newUser.ID)

	SetSessionCookie(w, token, h.tokenValidity, h.isProduction)
	httputil.RespondJSON(w, SessionResponse{
		User: UserResponse{Name: newUser.Name, Email: newUser.Email},
	}, http.StatusOK)
}

// Login handles user login
// @Summary      Log in
// @Description  Verify credentials and start a session via the auth_token cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	existingUser, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password use the exact same response.
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to log in", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in", "user_id", existingUser.ID)

	SetSessionCookie(w, token, h.tokenValidity, h.isProduction)
	httputil.RespondJSON(w, SessionResponse{
		User: UserResponse{Name: existingUser.Name, Email: existingUser.Email},
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      Log out
// @Description  Clear the session cookie. Always succeeds.
// @Tags         auth
// @Produce      json
// @Success      200 {object} LogoutResponse
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.isProduction)
	httputil.RespondJSON(w, LogoutResponse{OK: true}, http.StatusOK)
}

// Me returns the authenticated user
// @Summary      Current user
// @Description  Return the user behind the session cookie.
// @Tags         auth
// @Produce      json
// @Success      200 {object} SessionResponse
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "not authenticated", httputil.CodeNotAuthenticated, http.StatusUnauthorized)
		return
	}

	existingUser, err := h.service.Me(r.Context(), identity.Email)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			httputil.RespondErrorWithCode(w, "not authenticated", httputil.CodeNotAuthenticated, http.StatusUnauthorized)
			return
		}
		logger.Error("me failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to resolve user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, SessionResponse{
		User: UserResponse{Name: existingUser.Name, Email: existingUser.Email},
	}, http.StatusOK)
}

// MigratePasswords upgrades legacy plaintext credentials
// @Summary      Migrate password hashes
// @Description  Rewrite legacy plaintext credentials as salted hashes. Idempotent; a second run updates zero records.
// @Tags         admin
// @Produce      json
// @Param        X-Admin-Token header string true "Administrative token"
// @Success      200 {object} MigrateResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or wrong admin token"
// @Failure      500 {object} httputil.ErrorResponse "Store failure"
// @Router       /migrate-passwords [post]
func (h *Handler) MigratePasswords(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	updated, err := h.service.MigratePasswordHashes(r.Context())
	if err != nil {
		logger.Error("password migration failed", "error", err.Error(), "updated_before_failure", updated)
		httputil.RespondErrorWithCode(w, "failed to migrate password hashes", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password migration completed", "updated", updated)

	httputil.RespondJSON(w, MigrateResponse{Updated: updated}, http.StatusOK)
}
