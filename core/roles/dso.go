package roles

import (
	"context"
	"fmt"

	"github.com/kilianp07/flexmarket/core/gridtree"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

// DSO operates the grid: it builds the topology, opens markets and buys
// flexibility.
type DSO struct {
	*Session
}

// NewDSO logs in the DSO demo user.
func NewDSO(ctx context.Context, p *platform.Client, opts ...Option) (*DSO, error) {
	s, err := NewSession(ctx, p, RoleDSO, opts...)
	if err != nil {
		return nil, err
	}
	return &DSO{s}, nil
}

// GridSetup lists the records created by CreateGridNodes.
type GridSetup struct {
	Root       model.GridNode
	Substation model.GridNode
	Secondary  model.GridNode
	Market     model.Market
	Location   model.GridLocation
}

// IDs returns the ids of the created records.
func (g GridSetup) IDs() []string {
	return []string{g.Root.ID, g.Substation.ID, g.Secondary.ID, g.Market.ID, g.Location.ID}
}

// CreateGridNodes creates a three level topology, a power market and opens
// the substation for trade on it.
func (d *DSO) CreateGridNodes(ctx context.Context) (GridSetup, error) {
	var g GridSetup
	var err error
	orgID := d.Organization.ID

	d.printf("Setting up a grid node structure")
	if g.Root, err = d.Platform.GridNodes.Create(ctx, model.GridNode{Name: "DSORoot", OperatedByOrganizationID: orgID}); err != nil {
		return g, fmt.Errorf("create root node: %w", err)
	}
	if g.Substation, err = d.Platform.GridNodes.AddLinkedGridNode(ctx, g.Root.ID, model.GridNode{Name: "Substation 1", OperatedByOrganizationID: orgID}); err != nil {
		return g, fmt.Errorf("create substation: %w", err)
	}
	if g.Secondary, err = d.Platform.GridNodes.AddLinkedGridNode(ctx, g.Substation.ID, model.GridNode{Name: "Secondary Substation 1", OperatedByOrganizationID: orgID}); err != nil {
		return g, fmt.Errorf("create secondary substation: %w", err)
	}

	d.printf("Created the following grid node structure:")
	if err := d.DisplayGridNodeTree(ctx); err != nil {
		return g, err
	}

	d.printf("Creating a flexibility POWER market...")
	if g.Market, err = d.Platform.Markets.Create(ctx, model.Market{QuantityType: model.QuantityPower, OwnerOrganizationID: orgID}); err != nil {
		return g, fmt.Errorf("create market: %w", err)
	}

	d.printf("Marking congested nodes, opening the order book")
	if g.Location, err = d.Platform.GridNodes.OpenGridNodeForTrade(ctx, g.Substation.ID, g.Market.ID); err != nil {
		return g, fmt.Errorf("open grid node for trade: %w", err)
	}
	d.printf("Done! Awaiting orders on grid node %s, market id %s, grid location %s", g.Substation.ID, g.Market.ID, g.Location.ID)
	return g, nil
}

// DisplayGridNodeTree prints every grid node as a forest.
func (d *DSO) DisplayGridNodeTree(ctx context.Context) error {
	nodes, err := d.Platform.GridNodes.GetByTemplate(ctx, nil, model.All)
	if err != nil {
		return fmt.Errorf("list grid nodes: %w", err)
	}
	links, err := d.Platform.GridNodeLinks.GetByTemplate(ctx, nil, model.All)
	if err != nil {
		return fmt.Errorf("list grid node links: %w", err)
	}
	locations, err := d.Platform.GridLocations.GetByTemplate(ctx, nil, model.All)
	if err != nil {
		return fmt.Errorf("list grid locations: %w", err)
	}
	return gridtree.Render(d.out, nodes.Items, links.Items, locations.Items)
}

// BuyResult is the outcome of PlaceBuyOrder.
type BuyResult struct {
	Order   model.Order
	Trades  []model.Trade
	Hits    int
	Summary TradeSummary
}

// PlaceBuyOrder buys what the first order of the first open grid location
// offers, at its price, then lists the trades of the grid node.
func (d *DSO) PlaceBuyOrder(ctx context.Context) (BuyResult, error) {
	var res BuyResult
	locations, err := d.Platform.GridLocations.GetByTemplate(ctx, nil, model.SearchOptions{})
	if err != nil {
		return res, fmt.Errorf("list grid locations: %w", err)
	}
	loc, ok := locations.First()
	if !ok {
		return res, ErrNoGridLocation
	}

	orders, err := d.Platform.Orders.GetByTemplate(ctx, &model.Order{GridNodeID: loc.GridNodeID}, model.SearchOptions{})
	if err != nil {
		return res, fmt.Errorf("list orders: %w", err)
	}
	sell, ok := orders.First()
	if !ok {
		return res, fmt.Errorf("%w on grid node %s", ErrNoSellOrders, loc.GridNodeID)
	}

	// A market price type would ignore UnitPrice; a limit caps what we pay.
	res.Order, err = d.Platform.Orders.Create(ctx, model.Order{
		MarketID:     sell.MarketID,
		GridNodeID:   loc.GridNodeID,
		Quantity:     sell.Quantity,
		QuantityType: sell.QuantityType,
		Side:         model.SideBuy,
		UnitPrice:    sell.UnitPrice,
		PriceType:    model.PriceLimit,
	})
	if err != nil {
		return res, fmt.Errorf("create buy order: %w", err)
	}
	d.printf("Buy order %s created successfully", res.Order.ID)

	if err := d.sleep(ctx, d.cfg.SettleDelay()); err != nil {
		return res, err
	}

	trades, err := d.Platform.Trades.GetByTemplate(ctx, &model.Trade{GridNodeID: loc.GridNodeID}, model.SearchOptions{})
	if err != nil {
		return res, fmt.Errorf("list trades: %w", err)
	}
	res.Trades, res.Hits = trades.Items, trades.NumberOfHits
	res.Summary = SummarizeTrades(trades.Items)

	d.printf("%d trades found.", trades.NumberOfHits)
	for _, t := range trades.Items {
		d.printf("%s", t.ID)
	}
	if res.Summary.Count > 0 {
		d.printf("%s", res.Summary)
	}
	return res, nil
}

// ApproveAssets activates every pending asset and returns how many were
// approved.
func (d *DSO) ApproveAssets(ctx context.Context) (int, error) {
	pending, err := d.Platform.Assets.GetByTemplate(ctx, &model.Asset{Status: model.StatusPending}, model.All)
	if err != nil {
		return 0, fmt.Errorf("list pending assets: %w", err)
	}
	for _, a := range pending.Items {
		a.Status = model.StatusActive
		if _, err := d.Platform.Assets.Update(ctx, a); err != nil {
			return 0, fmt.Errorf("approve asset %s: %w", a.ID, err)
		}
	}
	d.printf("%d assets were approved / activated", len(pending.Items))
	return len(pending.Items), nil
}
