// Package pricing derives current and previous prices from a product's
// price ledger and computes the percentage change between them.
package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Entry is one observation in a product's price ledger.
type Entry struct {
	EffectiveDate time.Time
	UnitPrice     decimal.Decimal
	// Seq is the storage insertion sequence; later inserts have larger values.
	Seq int64
}

// Derived holds the prices read off the head of a ledger.
type Derived struct {
	Current       decimal.NullDecimal
	Previous      decimal.NullDecimal
	ChangePercent decimal.NullDecimal
}

// SortSeries orders entries newest first. Entries sharing an effective date
// are ordered by insertion sequence, latest first.
func SortSeries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].EffectiveDate, entries[j].EffectiveDate
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return entries[i].Seq > entries[j].Seq
	})
}

// Derive reads current and previous prices from a series ordered newest
// first. Missing positions are null.
func Derive(series []Entry) Derived {
	var d Derived
	if len(series) > 0 {
		d.Current = decimal.NewNullDecimal(series[0].UnitPrice)
	}
	if len(series) > 1 {
		d.Previous = decimal.NewNullDecimal(series[1].UnitPrice)
	}
	d.ChangePercent = PercentChange(d.Current, d.Previous)
	return d
}

// PercentChange returns (current - previous) / previous * 100. The result
// is null when either side is null or previous is zero. No rounding is
// applied.
func PercentChange(current, previous decimal.NullDecimal) decimal.NullDecimal {
	if !current.Valid || !previous.Valid || previous.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	change := current.Decimal.Sub(previous.Decimal).Div(previous.Decimal).Mul(hundred)
	return decimal.NewNullDecimal(change)
}

// Round rounds a nullable value half away from zero for display.
func Round(v decimal.NullDecimal, places int32) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Round(places))
}
