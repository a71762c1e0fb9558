package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/shared"
)

// AdminHandler manages user roles and permissions.
type AdminHandler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(logger *slog.Logger, service *Service, rbac Middleware) *AdminHandler {
	return &AdminHandler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers admin routes. Every route requires the admin role.
func (h *AdminHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(RoleAdmin))
		r.Get("/permissions", h.listPermissions)
		r.Get("/users", h.listUsers)
		r.Post("/users/{id}/admin", h.promote)
		r.Delete("/users/{id}/admin", h.demote)
		r.Put("/users/{id}/permissions", h.setPermissions)
		r.Delete("/users/{id}", h.deleteUser)
	})
}

func (h *AdminHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"data": shared.CoreScopes()})
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if users == nil {
		users = []UserAccess{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": users})
}

func (h *AdminHandler) promote(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Promote(r.Context(), id); err != nil {
		h.respondErr(w, "promote user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) demote(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Demote(r.Context(), actorID(r), id); err != nil {
		h.respondErr(w, "demote user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

func (h *AdminHandler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req permissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.SetPermissions(r.Context(), id, req.Permissions)
	if err != nil {
		h.respondErr(w, "set permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), actorID(r), id); err != nil {
		h.respondErr(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}
	return id, nil
}

func actorID(r *http.Request) uuid.UUID {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p.UserID()
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.UserID
	}
	return uuid.Nil
}
