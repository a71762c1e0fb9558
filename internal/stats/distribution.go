package stats

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/products"
)

// UnknownUnit labels products stored without a unit.
const UnknownUnit = "Unknown"

// Bucket is a labelled product count.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Distribution groups the listing by unit and by current price.
type Distribution struct {
	ByUnit       []Bucket `json:"by_unit"`
	ByPriceRange []Bucket `json:"by_price_range"`
}

type priceRange struct {
	label string
	upper decimal.Decimal
}

// Upper bounds are exclusive; the last range is open-ended.
var priceRanges = []priceRange{
	{label: "< 10", upper: decimal.NewFromInt(10)},
	{label: "10 - 50", upper: decimal.NewFromInt(50)},
	{label: "50 - 100", upper: decimal.NewFromInt(100)},
	{label: "100 - 500", upper: decimal.NewFromInt(500)},
	{label: "> 500"},
}

// ComputeDistribution counts products per unit, largest group first, and
// per price range in ascending order. A product without a price counts as
// zero and lands in the lowest range.
func ComputeDistribution(views []products.View) Distribution {
	units := map[string]int{}
	ranges := make([]Bucket, len(priceRanges))
	for i, r := range priceRanges {
		ranges[i].Label = r.label
	}
	for _, v := range views {
		unit := strings.TrimSpace(v.Unit)
		if unit == "" {
			unit = UnknownUnit
		}
		units[unit]++

		price := decimal.Zero
		if v.CurrentPrice.Valid {
			price = v.CurrentPrice.Decimal
		}
		ranges[rangeIndex(price)].Count++
	}

	byUnit := make([]Bucket, 0, len(units))
	for label, count := range units {
		byUnit = append(byUnit, Bucket{Label: label, Count: count})
	}
	sort.Slice(byUnit, func(i, j int) bool {
		if byUnit[i].Count != byUnit[j].Count {
			return byUnit[i].Count > byUnit[j].Count
		}
		return byUnit[i].Label < byUnit[j].Label
	})
	return Distribution{ByUnit: byUnit, ByPriceRange: ranges}
}

func rangeIndex(price decimal.Decimal) int {
	last := len(priceRanges) - 1
	for i, r := range priceRanges[:last] {
		if price.LessThan(r.upper) {
			return i
		}
	}
	return last
}
