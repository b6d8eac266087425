package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/middleware"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

// AuthStore defines the store methods needed by auth handlers.
// Satisfied by store.Store implementations; narrow interface for testability.
type AuthStore interface {
	ListActiveUsers(ctx context.Context) ([]store.User, error)
}

// AuthHandler handles PIN login and the session cookie.
type AuthHandler struct {
	store        AuthStore
	jwtSecret    string
	sessionTTL   time.Duration
	secureCookie bool
	logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string, sessionTTL time.Duration, secureCookie bool, logger zerolog.Logger) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = auth.SessionTTL
	}
	return &AuthHandler{
		store:        store,
		jwtSecret:    jwtSecret,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers the public auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

// --- Request / Response types ---

type loginRequest struct {
	Pin  string `json:"pin" validate:"required,numeric,min=4,max=8"`
	Name string `json:"name" validate:"omitempty,max=100"`
}

type sessionResponse struct {
	User auth.Identity `json:"user"`
	Home string        `json:"home"`
}

// --- Handlers ---

// Login handles POST /api/auth/login. When several staff share a PIN the
// name picks one of them.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	users, err := h.store.ListActiveUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list users for login")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	candidates := make([]auth.Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, auth.Candidate{
			Identity: auth.Identity{UserID: u.ID, Name: u.Name, Role: u.Role, Email: u.Email},
			PinHash:  u.PinHash,
		})
	}

	id, err := auth.MatchPIN(candidates, req.Pin, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrNameRequired) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, id, h.sessionTTL)
	if err != nil {
		h.logger.Error().Err(err).Msg("sign session token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info().Str("user_id", id.UserID.String()).Str("role", id.Role).Msg("staff logged in")
	writeJSON(w, http.StatusOK, sessionResponse{User: id, Home: middleware.HomeFor(id.Role)})
}

// Logout handles POST /api/auth/logout by expiring the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Session handles GET /api/auth/session. Must be mounted behind
// middleware.Authenticate.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: id, Home: middleware.HomeFor(id.Role)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
