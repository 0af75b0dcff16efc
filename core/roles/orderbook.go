package roles

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/flexmarket/core/model"
)

// OrderBook is the open quantity per unit price and side.
type OrderBook struct {
	Prices []float64
	Buy    []float64
	Sell   []float64
}

// BuildOrderBook aggregates orders that are still open by price level.
// Prices are sorted ascending.
func BuildOrderBook(orders []model.Order) OrderBook {
	buy := map[float64]float64{}
	sell := map[float64]float64{}
	levels := map[float64]bool{}
	for _, o := range orders {
		switch o.Status {
		case model.StatusClosed, model.StatusRejected, model.StatusInactive:
			continue
		}
		levels[o.UnitPrice] = true
		if o.Side == model.SideBuy {
			buy[o.UnitPrice] += o.Quantity
		} else {
			sell[o.UnitPrice] += o.Quantity
		}
	}
	var ob OrderBook
	for p := range levels {
		ob.Prices = append(ob.Prices, p)
	}
	sort.Float64s(ob.Prices)
	for _, p := range ob.Prices {
		ob.Buy = append(ob.Buy, buy[p])
		ob.Sell = append(ob.Sell, sell[p])
	}
	return ob
}

// Chart renders the order book as an HTML bar chart.
func (ob OrderBook) Chart(w io.Writer) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Order book", Subtitle: "Open quantity per unit price"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Unit price"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Quantity"}),
	)
	labels := make([]string, len(ob.Prices))
	for i, p := range ob.Prices {
		labels[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	bar.SetXAxis(labels).
		AddSeries(string(model.SideBuy), barData(ob.Buy)).
		AddSeries(string(model.SideSell), barData(ob.Sell))
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render order book: %w", err)
	}
	return nil
}

func barData(vs []float64) []opts.BarData {
	out := make([]opts.BarData, len(vs))
	for i, v := range vs {
		out[i] = opts.BarData{Value: v}
	}
	return out
}

// RenderOrderBook writes the chart of the platform orders to w and returns
// the aggregated book.
func (f *FSP) RenderOrderBook(ctx context.Context, w io.Writer) (OrderBook, error) {
	orders, err := f.Platform.Orders.GetByTemplate(ctx, nil, model.All)
	if err != nil {
		return OrderBook{}, fmt.Errorf("list orders: %w", err)
	}
	ob := BuildOrderBook(orders.Items)
	if err := ob.Chart(w); err != nil {
		return ob, err
	}
	f.printf("Order book with %d price levels rendered", len(ob.Prices))
	return ob, nil
}
