package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

// Sell order terms offered by the demo FSP.
const (
	SellQuantity        = 1000
	SellRebalancePrice  = 100
	SellFlexMarginPrice = 200
	SellUnitPrice       = 300
)

// FSP registers flexible assets and sells their flexibility.
type FSP struct {
	*Session
}

// NewFSP logs in the FSP demo user.
func NewFSP(ctx context.Context, p *platform.Client, opts ...Option) (*FSP, error) {
	s, err := NewSession(ctx, p, RoleFSP, opts...)
	if err != nil {
		return nil, err
	}
	return &FSP{s}, nil
}

// AttachFSP returns an FSP that does not log in. It is enough to clear and
// read orders.
func AttachFSP(p *platform.Client, opts ...Option) *FSP {
	return &FSP{AttachSession(p, RoleFSP, opts...)}
}

// CreateAssets registers three assets of the first asset type and assigns
// them to the configured metering point.
func (f *FSP) CreateAssets(ctx context.Context) ([]model.Asset, error) {
	f.printf("Setting up assets")
	types, err := f.Platform.AssetTypes.GetByTemplate(ctx, nil, model.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("list asset types: %w", err)
	}
	assetType, ok := types.First()
	if !ok {
		return nil, ErrNoAssetType
	}

	f.printf("Creating assets...")
	assets := make([]model.Asset, 0, 3)
	for i := 1; i <= 3; i++ {
		a, err := f.Platform.Assets.Create(ctx, model.Asset{
			Name:                     fmt.Sprintf("asset%d", i),
			AssetTypeID:              assetType.ID,
			OperatedByOrganizationID: f.Organization.ID,
		})
		if err != nil {
			return assets, fmt.Errorf("create asset%d: %w", i, err)
		}
		assets = append(assets, a)
	}

	ids := make([]string, len(assets))
	for i, a := range assets {
		if _, err := f.Platform.AssetGridAssignments.Create(ctx, model.AssetGridAssignment{AssetID: a.ID, MPID: f.cfg.MPID}); err != nil {
			return assets, fmt.Errorf("assign asset %s to %s: %w", a.ID, f.cfg.MPID, err)
		}
		ids[i] = a.ID
	}
	f.printf("Assets %s were registered. Awaiting approval by DSO.", strings.Join(ids, ", "))
	return assets, nil
}

// CreatePortfolio puts every active asset of the organization into a new
// portfolio. It returns the portfolio and the number of assets added.
func (f *FSP) CreatePortfolio(ctx context.Context) (model.AssetPortfolio, int, error) {
	f.printf("Creating a portfolio with all approved assets")
	assets, err := f.Platform.Assets.GetByTemplate(ctx, &model.Asset{
		Status:                   model.StatusActive,
		OperatedByOrganizationID: f.Organization.ID,
	}, model.All)
	if err != nil {
		return model.AssetPortfolio{}, 0, fmt.Errorf("list active assets: %w", err)
	}
	portfolio, err := f.Platform.AssetPortfolios.Create(ctx, model.AssetPortfolio{
		Name:                    "Asset portfolio 1",
		ManagedByOrganizationID: f.Organization.ID,
	})
	if err != nil {
		return portfolio, 0, fmt.Errorf("create portfolio: %w", err)
	}
	for _, a := range assets.Items {
		assignments, err := f.Platform.AssetGridAssignments.GetByTemplate(ctx, &model.AssetGridAssignment{AssetID: a.ID}, model.SearchOptions{})
		if err != nil {
			return portfolio, 0, fmt.Errorf("list grid assignments of %s: %w", a.ID, err)
		}
		if len(assignments.Items) != 1 {
			return portfolio, 0, fmt.Errorf("asset %s has %d: %w", a.ID, len(assignments.Items), ErrAmbiguousAssignment)
		}
		if _, err := f.Platform.AssetPortfolioAssignments.Create(ctx, model.AssetPortfolioAssignment{
			AssetPortfolioID:      portfolio.ID,
			AssetGridAssignmentID: assignments.Items[0].ID,
		}); err != nil {
			return portfolio, 0, fmt.Errorf("add asset %s to portfolio: %w", a.ID, err)
		}
	}
	f.printf("%d assets were added to asset portfolio %s.", len(assets.Items), portfolio.ID)
	return portfolio, len(assets.Items), nil
}

// PlaceSellOrder offers the flexibility of the first portfolio on the first
// open grid location.
func (f *FSP) PlaceSellOrder(ctx context.Context) (model.Order, error) {
	f.printf("Placing sell order...")
	portfolios, err := f.Platform.AssetPortfolios.GetByTemplate(ctx, &model.AssetPortfolio{ManagedByOrganizationID: f.Organization.ID}, model.SearchOptions{})
	if err != nil {
		return model.Order{}, fmt.Errorf("list portfolios: %w", err)
	}
	portfolio, ok := portfolios.First()
	if !ok {
		return model.Order{}, ErrNoPortfolio
	}
	locations, err := f.Platform.GridLocations.GetByTemplate(ctx, nil, model.SearchOptions{})
	if err != nil {
		return model.Order{}, fmt.Errorf("list grid locations: %w", err)
	}
	loc, ok := locations.First()
	if !ok {
		return model.Order{}, ErrNoGridLocation
	}

	order, err := f.Platform.Orders.Create(ctx, model.Order{
		Quantity:         SellQuantity,
		RebalancePrice:   SellRebalancePrice,
		FlexMarginPrice:  SellFlexMarginPrice,
		UnitPrice:        SellUnitPrice,
		Side:             model.SideSell,
		FillType:         model.FillNormal,
		AssetPortfolioID: portfolio.ID,
		GridNodeID:       loc.GridNodeID,
		MarketID:         loc.MarketID,
	})
	if err != nil {
		return order, fmt.Errorf("create sell order: %w", err)
	}
	f.printf("Sell order %s created", order.ID)
	return order, nil
}

// ClearOrders deletes every order the platform returns and reports how many
// were removed.
func (f *FSP) ClearOrders(ctx context.Context) (int, error) {
	orders, err := f.Platform.Orders.GetByTemplate(ctx, nil, model.All)
	if err != nil {
		return 0, fmt.Errorf("list orders: %w", err)
	}
	for i, o := range orders.Items {
		if err := f.Platform.Orders.Delete(ctx, o.ID); err != nil {
			return i, fmt.Errorf("delete order %s: %w", o.ID, err)
		}
	}
	f.printf("%d orders deleted", len(orders.Items))
	return len(orders.Items), nil
}

// ActiveOrders returns the active orders, restricted to the given
// portfolios when any is given.
func (f *FSP) ActiveOrders(ctx context.Context, portfolioIDs ...string) ([]model.Order, error) {
	page, err := f.Platform.Orders.GetByTemplate(ctx, &model.Order{Status: model.StatusActive}, model.All)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(portfolioIDs) == 0 {
		return page.Items, nil
	}
	keep := make(map[string]bool, len(portfolioIDs))
	for _, id := range portfolioIDs {
		keep[id] = true
	}
	var out []model.Order
	for _, o := range page.Items {
		if keep[o.AssetPortfolioID] {
			out = append(out, o)
		}
	}
	return out, nil
}
