package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
)

// GrantResolver loads a user's grants.
type GrantResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) rbac.Grants
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	grants         GrantResolver
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, grants GrantResolver) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		grants:         grants,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
		r.Post("/signup", h.signUp)
		r.Post("/signin", h.signIn)
	})
	r.Post("/signout", h.signOut)
	r.Get("/session", h.session)
}

type signInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

type userView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

type sessionResponse struct {
	State  string       `json:"state"`
	User   *userView    `json:"user,omitempty"`
	Grants *rbac.Grants `json:"grants,omitempty"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var in SignUpInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	callerIsAdmin := false
	if sess := shared.SessionFromContext(r.Context()); sess != nil && h.grants != nil {
		callerIsAdmin = h.grants.Resolve(r.Context(), sess.UserID).HasRole(rbac.RoleAdmin)
	}
	user, role, err := h.service.SignUp(r.Context(), in, callerIsAdmin)
	if err != nil {
		h.logger.Warn("sign up", slog.String("email", in.Email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("account created", slog.String("user_id", user.ID.String()), slog.String("role", string(role)))
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": user, "role": role})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in SignInInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, sess, err := h.service.SignIn(r.Context(), in)
	if err != nil {
		h.logger.Warn("sign in", slog.String("email", in.Email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.sessionManager.SetCookie(w, token, sess.ExpiresAt)
	httpx.JSON(w, http.StatusOK, signInResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		User:      viewOf(&sess),
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.SignOut(r.Context(), sess); err != nil {
		h.logger.Warn("sign out", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.sessionManager.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.JSON(w, http.StatusOK, sessionResponse{State: rbac.StateUnauthenticated.String()})
		return
	}
	var grants rbac.Grants
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok && p.State == rbac.StateAuthenticated {
		grants = p.Grants
	} else if h.grants != nil {
		grants = h.grants.Resolve(r.Context(), sess.UserID)
	}
	user := viewOf(sess)
	httpx.JSON(w, http.StatusOK, sessionResponse{
		State:  rbac.StateAuthenticated.String(),
		User:   &user,
		Grants: &grants,
	})
}

func viewOf(sess *shared.Session) userView {
	return userView{ID: sess.UserID, Email: sess.Email, FirstName: sess.FirstName, LastName: sess.LastName}
}
