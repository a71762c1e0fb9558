package activity

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/shared"
)

// Handler exposes the activity log over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   func(perm string) func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. guard enforces a permission on a route.
func NewHandler(logger *slog.Logger, service *Service, guard func(perm string) func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard(shared.PermReportsView))
		}
		r.Get("/", h.list)
		r.Get("/export.pdf", h.export(FormatPDF))
		r.Get("/export.csv", h.export(FormatCSV))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) export(format Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		out, err := h.service.Export(r.Context(), filter, r.URL.Query().Get("title"), format)
		if err != nil {
			h.logger.Warn("export activity", slog.String("format", string(format)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", out.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.Body)
	}
}

func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	from, err := parseBound(q.Get("from"), false)
	if err != nil {
		return ListFilter{}, err
	}
	to, err := parseBound(q.Get("to"), true)
	if err != nil {
		return ListFilter{}, err
	}
	filter.From, filter.To = from, to
	filter.Action = q.Get("action")
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return ListFilter{}, fmt.Errorf("%w: invalid limit", shared.ErrValidation)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// parseBound accepts RFC3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", shared.ErrValidation, raw)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
