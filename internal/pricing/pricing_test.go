package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name     string
		current  decimal.NullDecimal
		previous decimal.NullDecimal
		want     string
		null     bool
	}{
		{name: "increase", current: nd("12"), previous: nd("10"), want: "20"},
		{name: "decrease", current: nd("8"), previous: nd("10"), want: "-20"},
		{name: "unchanged", current: nd("5.50"), previous: nd("5.50"), want: "0"},
		{name: "previous zero", current: nd("3"), previous: nd("0"), null: true},
		{name: "no previous", current: nd("3"), previous: decimal.NullDecimal{}, null: true},
		{name: "no current", current: decimal.NullDecimal{}, previous: nd("3"), null: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentChange(tc.current, tc.previous)
			if tc.null {
				require.False(t, got.Valid)
				return
			}
			require.True(t, got.Valid)
			require.True(t, got.Decimal.Equal(decimal.RequireFromString(tc.want)), "got %s", got.Decimal)
		})
	}
}

func TestPercentChangeIsNotRounded(t *testing.T) {
	got := PercentChange(nd("10"), nd("3"))
	require.True(t, got.Valid)
	require.True(t, got.Decimal.GreaterThan(decimal.RequireFromString("233.33")))
	require.True(t, got.Decimal.LessThan(decimal.RequireFromString("233.34")))
	require.True(t, Round(got, 2).Decimal.Equal(decimal.RequireFromString("233.33")))
	require.True(t, Round(got, 1).Decimal.Equal(decimal.RequireFromString("233.3")))
}

func TestDeriveTwoEntries(t *testing.T) {
	series := []Entry{
		{EffectiveDate: day("2024-01-01"), UnitPrice: decimal.RequireFromString("10.00"), Seq: 1},
		{EffectiveDate: day("2024-02-01"), UnitPrice: decimal.RequireFromString("12.00"), Seq: 2},
	}
	SortSeries(series)
	d := Derive(series)

	require.True(t, d.Current.Decimal.Equal(decimal.RequireFromString("12")))
	require.True(t, d.Previous.Decimal.Equal(decimal.RequireFromString("10")))
	require.True(t, d.ChangePercent.Decimal.Equal(decimal.NewFromInt(20)))
}

func TestDeriveSingleZeroEntry(t *testing.T) {
	d := Derive([]Entry{{EffectiveDate: day("2024-03-01"), UnitPrice: decimal.Zero}})
	require.True(t, d.Current.Valid)
	require.True(t, d.Current.Decimal.IsZero())
	require.False(t, d.Previous.Valid)
	require.False(t, d.ChangePercent.Valid)
}

func TestDeriveEmpty(t *testing.T) {
	d := Derive(nil)
	require.False(t, d.Current.Valid)
	require.False(t, d.Previous.Valid)
	require.False(t, d.ChangePercent.Valid)
}

func TestSortSeriesBreaksDateTiesBySequence(t *testing.T) {
	series := []Entry{
		{EffectiveDate: day("2024-05-01"), UnitPrice: decimal.NewFromInt(7), Seq: 3},
		{EffectiveDate: day("2024-05-02"), UnitPrice: decimal.NewFromInt(9), Seq: 4},
		{EffectiveDate: day("2024-05-02"), UnitPrice: decimal.NewFromInt(8), Seq: 5},
	}
	SortSeries(series)

	require.Equal(t, int64(5), series[0].Seq)
	require.Equal(t, int64(4), series[1].Seq)
	require.Equal(t, int64(3), series[2].Seq)

	d := Derive(series)
	require.True(t, d.Current.Decimal.Equal(decimal.NewFromInt(8)))
	require.True(t, d.Previous.Decimal.Equal(decimal.NewFromInt(9)))
}
