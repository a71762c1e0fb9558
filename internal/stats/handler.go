package stats

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/pricing"
	"github.com/masig/pricebook/internal/products"
	"github.com/masig/pricebook/internal/shared"
)

// ProductLister supplies the listing the summary is computed from.
type ProductLister interface {
	List(ctx context.Context, filter products.ListFilter) ([]products.View, error)
}

// Handler serves the dashboard summary.
type Handler struct {
	logger *slog.Logger
	lister ProductLister
	guard  func(perm string) func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, lister ProductLister, guard func(perm string) func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, lister: lister, guard: guard}
}

const maxMovers = 50

// MountRoutes registers the stats routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.guard != nil {
		r = r.With(h.guard(shared.PermProductsView))
	}
	r.Get("/stats", h.summary)
	r.Get("/stats/movers", h.movers)
	r.Get("/stats/distribution", h.distribution)
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request) ([]products.View, bool) {
	views, err := h.lister.List(r.Context(), products.ListFilter{})
	if err != nil {
		h.logger.Error("compute stats", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return views, true
}

func (h *Handler) movers(w http.ResponseWriter, r *http.Request) {
	n := DefaultMovers
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxMovers {
			httpx.RespondError(w, fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrValidation, maxMovers))
			return
		}
		n = v
	}
	views, ok := h.listing(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, TopMovers(views, n))
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	views, ok := h.listing(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, ComputeDistribution(views))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	views, ok := h.listing(w, r)
	if !ok {
		return
	}
	s := Compute(views)
	s.AvgChangePercent = pricing.Round(decimal.NewNullDecimal(s.AvgChangePercent), 1).Decimal
	httpx.JSON(w, http.StatusOK, s)
}
