package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/shared"
)

// Guard wraps a route with a permission check.
type Guard func(perm string) func(http.Handler) http.Handler

// Handler exposes product endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	events  http.Handler
	guard   Guard
}

// NewHandler constructs a Handler. events streams change notifications and
// may be nil.
func NewHandler(logger *slog.Logger, service *Service, events http.Handler, guard Guard) *Handler {
	if guard == nil {
		guard = func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}
	return &Handler{logger: logger, service: service, events: events, guard: guard}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard(shared.PermProductsView))
		r.Get("/", h.list)
		if h.events != nil {
			r.Handle("/events", h.events)
		}
		r.Get("/{code}", h.get)
		r.Get("/{code}/history", h.history)
	})
	r.With(h.guard(shared.PermProductsEdit)).Post("/", h.create)
	r.With(h.guard(shared.PermProductsEdit)).Put("/{code}", h.update)
	r.With(h.guard(shared.PermProductsDelete)).Delete("/{code}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context(), ListFilter{Search: r.URL.Query().Get("search")})
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondErr(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	hist, err := h.service.History(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondErr(w, "product history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, hist)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in AddInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.Add(r.Context(), in)
	if err != nil {
		h.respondErr(w, "add product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in EditInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.Code = chi.URLParam(r, "code")
	view, err := h.service.Edit(r.Context(), in)
	if err != nil {
		h.respondErr(w, "edit product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondErr(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
