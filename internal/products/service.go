package products

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/masig/pricebook/internal/activity"
	"github.com/masig/pricebook/internal/changefeed"
	"github.com/masig/pricebook/internal/shared"
)

// FeedTable is the change feed channel for product rows.
const FeedTable = "products"

const tablePriceHistory = "price_history"

// ActivityRecorder receives best-effort audit records.
type ActivityRecorder interface {
	Record(ctx context.Context, actor *shared.Session, p activity.Params)
}

// Service aggregates products with their derived prices and applies writes.
type Service struct {
	repo      Repository
	feed      changefeed.Publisher
	recorder  ActivityRecorder
	logger    *slog.Logger
	validate  *validator.Validate
	listGroup singleflight.Group
	listGen   atomic.Uint64
	location  *time.Location
	now       func() time.Time
}

// ServiceConfig collects Service dependencies. Feed and Recorder may be nil.
type ServiceConfig struct {
	Repo     Repository
	Feed     changefeed.Publisher
	Recorder ActivityRecorder
	Logger   *slog.Logger
	Location *time.Location
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     cfg.Repo,
		feed:     cfg.Feed,
		recorder: cfg.Recorder,
		logger:   logger,
		validate: validator.New(),
		location: loc,
		now:      time.Now,
	}
}

// PriceSeries returns the ledger for code, newest first. An unknown code
// yields an empty series.
func (s *Service) PriceSeries(ctx context.Context, code string) ([]PriceEntry, error) {
	ledger, err := s.repo.Ledger(ctx, code)
	if err != nil {
		return nil, err
	}
	series := ledger[code]
	if series == nil {
		series = []PriceEntry{}
	}
	return series, nil
}

// List returns one view per product in code order. Concurrent calls with
// the same filter share a single read, but a call made after a write never
// joins a read that started before it.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]View, error) {
	search := strings.TrimSpace(filter.Search)
	key := "list:" + strconv.FormatUint(s.listGen.Load(), 10) + ":" + strings.ToLower(search)
	ch := s.listGroup.DoChan(key, func() (interface{}, error) {
		return s.list(context.WithoutCancel(ctx), search)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		views := res.Val.([]View)
		out := make([]View, len(views))
		copy(out, views)
		return out, nil
	}
}

func (s *Service) list(ctx context.Context, search string) ([]View, error) {
	items, err := s.repo.ListProducts(ctx, search)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(items))
	for i, p := range items {
		codes[i] = p.Code
	}
	ledger, err := s.repo.Ledger(ctx, codes...)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(items))
	for i, p := range items {
		views[i] = NewView(p, ledger[p.Code])
	}
	return views, nil
}

// Get returns the view for one product.
func (s *Service) Get(ctx context.Context, code string) (View, error) {
	p, err := s.repo.GetProduct(ctx, code)
	if err != nil {
		return View{}, err
	}
	series, err := s.PriceSeries(ctx, code)
	if err != nil {
		return View{}, err
	}
	s.record(ctx, activity.Params{Action: activity.ActionViewed, ProductCode: p.Code, ProductName: p.Description})
	return NewView(p, series), nil
}

// History returns a product with its full ledger.
func (s *Service) History(ctx context.Context, code string) (History, error) {
	p, err := s.repo.GetProduct(ctx, code)
	if err != nil {
		return History{}, err
	}
	series, err := s.PriceSeries(ctx, code)
	if err != nil {
		return History{}, err
	}
	s.record(ctx, activity.Params{
		Action:      activity.ActionViewed,
		ProductCode: p.Code,
		ProductName: p.Description,
		Details:     map[string]any{"view": "price_history"},
	})
	return History{Product: p, Entries: series}, nil
}

// Add creates a product with one price entry dated today.
func (s *Service) Add(ctx context.Context, in AddInput) (View, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := s.validate.Struct(in); err != nil {
		return View{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if in.UnitPrice.IsNegative() {
		return View{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}

	p := Product{Code: in.Code, Description: in.Description, Unit: in.Unit}
	entry, err := s.repo.CreateProduct(ctx, p, PriceEntry{
		ProductCode:   p.Code,
		EffectiveDate: s.today(),
		UnitPrice:     in.UnitPrice,
	})
	if err != nil {
		return View{}, err
	}
	s.invalidateList()

	s.publish(ctx, changefeed.Event{Table: FeedTable, Type: changefeed.EventInsert, Key: p.Code})
	s.publish(ctx, changefeed.Event{Table: tablePriceHistory, Type: changefeed.EventInsert, Key: p.Code})
	s.record(ctx, activity.Params{
		Action:      activity.ActionAdded,
		ProductCode: p.Code,
		ProductName: p.Description,
		Details:     map[string]any{"unit": p.Unit, "unit_price": in.UnitPrice.StringFixed(2)},
	})
	return NewView(p, []PriceEntry{entry}), nil
}

// Edit updates a product. A supplied price that differs from the current
// price is appended to the ledger; existing entries are never changed.
func (s *Service) Edit(ctx context.Context, in EditInput) (View, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := s.validate.Struct(in); err != nil {
		return View{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return View{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}

	before, err := s.repo.GetProduct(ctx, in.Code)
	if err != nil {
		return View{}, err
	}
	series, err := s.PriceSeries(ctx, in.Code)
	if err != nil {
		return View{}, err
	}
	current := NewView(before, series).CurrentPrice

	p := Product{Code: in.Code, Description: in.Description, Unit: in.Unit}
	var next *PriceEntry
	if in.UnitPrice != nil && (!current.Valid || !current.Decimal.Equal(*in.UnitPrice)) {
		next = &PriceEntry{ProductCode: p.Code, EffectiveDate: s.today(), UnitPrice: *in.UnitPrice}
	}
	appended, err := s.repo.EditProduct(ctx, p, next)
	if err != nil {
		return View{}, err
	}
	s.invalidateList()
	s.publish(ctx, changefeed.Event{Table: FeedTable, Type: changefeed.EventUpdate, Key: p.Code})

	details := map[string]any{}
	if before.Description != p.Description {
		details["description"] = map[string]string{"from": before.Description, "to": p.Description}
	}
	if before.Unit != p.Unit {
		details["unit"] = map[string]string{"from": before.Unit, "to": p.Unit}
	}

	if appended != nil {
		series = append([]PriceEntry{*appended}, series...)
		s.publish(ctx, changefeed.Event{Table: tablePriceHistory, Type: changefeed.EventInsert, Key: p.Code})
		from := "N/A"
		if current.Valid {
			from = current.Decimal.StringFixed(2)
		}
		details["unit_price"] = map[string]string{"from": from, "to": appended.UnitPrice.StringFixed(2)}
	}

	s.record(ctx, activity.Params{
		Action:      activity.ActionEdited,
		ProductCode: p.Code,
		ProductName: p.Description,
		Details:     details,
	})
	return NewView(p, series), nil
}

// Delete removes a product's ledger and then the product. The two steps
// are not atomic: if the second fails the product remains without history
// and the error is returned.
func (s *Service) Delete(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	p, err := s.repo.GetProduct(ctx, code)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteLedger(ctx, code); err != nil {
		return err
	}
	s.invalidateList()
	s.publish(ctx, changefeed.Event{Table: tablePriceHistory, Type: changefeed.EventDelete, Key: code})
	if err := s.repo.DeleteProduct(ctx, code); err != nil {
		s.logger.Error("delete product after ledger removal", slog.String("code", code), slog.Any("error", err))
		return err
	}
	s.invalidateList()
	s.publish(ctx, changefeed.Event{Table: FeedTable, Type: changefeed.EventDelete, Key: code})
	s.record(ctx, activity.Params{Action: activity.ActionDeleted, ProductCode: p.Code, ProductName: p.Description})
	return nil
}

// invalidateList moves later List calls onto a fresh singleflight key.
func (s *Service) invalidateList() {
	s.listGen.Add(1)
}

func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) publish(ctx context.Context, ev changefeed.Event) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish change", slog.String("table", ev.Table), slog.String("key", ev.Key), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, p activity.Params) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, shared.SessionFromContext(ctx), p)
}
