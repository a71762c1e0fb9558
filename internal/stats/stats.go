// Package stats summarises the product listing for the dashboard.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/products"
)

// Summary holds dashboard counters over a product listing.
type Summary struct {
	TotalProducts    int             `json:"total_products"`
	PriceIncreases   int             `json:"price_increases"`
	PriceDecreases   int             `json:"price_decreases"`
	AvgChangePercent decimal.Decimal `json:"avg_change_percent"`
}

// Compute summarises views. Products without a change percentage count
// towards the total only. The average is zero when no product has one.
func Compute(views []products.View) Summary {
	s := Summary{TotalProducts: len(views), AvgChangePercent: decimal.Zero}
	sum := decimal.Zero
	n := 0
	for _, v := range views {
		if !v.PriceChangePercent.Valid {
			continue
		}
		change := v.PriceChangePercent.Decimal
		switch change.Sign() {
		case 1:
			s.PriceIncreases++
		case -1:
			s.PriceDecreases++
		}
		sum = sum.Add(change)
		n++
	}
	if n > 0 {
		s.AvgChangePercent = sum.Div(decimal.NewFromInt(int64(n)))
	}
	return s
}
