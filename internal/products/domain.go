package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/pricing"
)

// Product is a catalogue item identified by its code.
type Product struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

// PriceEntry is one immutable observation in a product's price ledger.
type PriceEntry struct {
	ProductCode   string          `json:"product_code"`
	EffectiveDate time.Time       `json:"effective_date"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Seq           int64           `json:"seq"`
}

func (e PriceEntry) pricingEntry() pricing.Entry {
	return pricing.Entry{EffectiveDate: e.EffectiveDate, UnitPrice: e.UnitPrice, Seq: e.Seq}
}

// View is a product combined with prices derived from its ledger.
type View struct {
	Code               string              `json:"code"`
	Description        string              `json:"description"`
	Unit               string              `json:"unit"`
	CurrentPrice       decimal.NullDecimal `json:"current_price"`
	PriceChangePercent decimal.NullDecimal `json:"price_change_percent"`
}

// NewView derives the view for p from its newest-first series.
func NewView(p Product, series []PriceEntry) View {
	entries := make([]pricing.Entry, len(series))
	for i, e := range series {
		entries[i] = e.pricingEntry()
	}
	pricing.SortSeries(entries)
	derived := pricing.Derive(entries)
	return View{
		Code:               p.Code,
		Description:        p.Description,
		Unit:               p.Unit,
		CurrentPrice:       derived.Current,
		PriceChangePercent: derived.ChangePercent,
	}
}

// ListFilter narrows the product listing.
type ListFilter struct {
	Search string
}

// AddInput creates a product with its first price.
type AddInput struct {
	Code        string          `json:"code" validate:"required,max=64"`
	Description string          `json:"description" validate:"required,max=255"`
	Unit        string          `json:"unit" validate:"required,max=32"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// EditInput updates descriptive fields and optionally records a new price.
type EditInput struct {
	Code        string           `json:"-" validate:"required"`
	Description string           `json:"description" validate:"required,max=255"`
	Unit        string           `json:"unit" validate:"required,max=32"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// History is a product with its full ledger, newest first.
type History struct {
	Product Product      `json:"product"`
	Entries []PriceEntry `json:"entries"`
}
