package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/products"
)

// DefaultMovers is the number of products listed per direction.
const DefaultMovers = 5

const moverNameLen = 20

// Mover is one product in a top-movers list. ChangePercent is the size of
// the move, so decreases are reported as positive numbers.
type Mover struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// Movers lists the largest increases and decreases, largest first.
type Movers struct {
	Increases []Mover `json:"increases"`
	Decreases []Mover `json:"decreases"`
}

// TopMovers picks up to n products per direction. Products without a
// change percentage, or with no change, are left out. Ties keep code order.
func TopMovers(views []products.View, n int) Movers {
	if n <= 0 {
		n = DefaultMovers
	}
	var up, down []products.View
	for _, v := range views {
		if !v.PriceChangePercent.Valid {
			continue
		}
		switch v.PriceChangePercent.Decimal.Sign() {
		case 1:
			up = append(up, v)
		case -1:
			down = append(down, v)
		}
	}
	byCode := func(list []products.View) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	}
	byCode(up)
	byCode(down)
	sort.SliceStable(up, func(i, j int) bool {
		return up[i].PriceChangePercent.Decimal.GreaterThan(up[j].PriceChangePercent.Decimal)
	})
	sort.SliceStable(down, func(i, j int) bool {
		return down[i].PriceChangePercent.Decimal.LessThan(down[j].PriceChangePercent.Decimal)
	})
	return Movers{Increases: toMovers(up, n), Decreases: toMovers(down, n)}
}

func toMovers(list []products.View, n int) []Mover {
	if len(list) > n {
		list = list[:n]
	}
	out := make([]Mover, len(list))
	for i, v := range list {
		out[i] = Mover{
			Code:          v.Code,
			Name:          moverName(v),
			ChangePercent: v.PriceChangePercent.Decimal.Abs().Round(2),
		}
	}
	return out
}

func moverName(v products.View) string {
	name := []rune(v.Description)
	if len(name) == 0 {
		return v.Code
	}
	if len(name) > moverNameLen {
		name = name[:moverNameLen]
	}
	return string(name)
}
