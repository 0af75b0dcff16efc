package roles

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/flexmarket/core/model"
)

// TradeSummary aggregates the trades of a grid node.
type TradeSummary struct {
	Count         int
	Quantity      float64
	MeanUnitPrice float64 // weighted by quantity
}

func (s TradeSummary) String() string {
	return fmt.Sprintf("traded %.0f at a mean unit price of %.2f over %d trades", s.Quantity, s.MeanUnitPrice, s.Count)
}

// SummarizeTrades returns the total quantity and the quantity weighted mean
// unit price of trades.
func SummarizeTrades(trades []model.Trade) TradeSummary {
	s := TradeSummary{Count: len(trades)}
	if len(trades) == 0 {
		return s
	}
	qty := make([]float64, len(trades))
	price := make([]float64, len(trades))
	for i, t := range trades {
		qty[i], price[i] = t.Quantity, t.UnitPrice
	}
	s.Quantity = floats.Sum(qty)
	if s.Quantity > 0 {
		s.MeanUnitPrice = stat.Mean(price, qty)
	} else {
		s.MeanUnitPrice = stat.Mean(price, nil)
	}
	return s
}
