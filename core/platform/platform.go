// Package platform describes the remote flexibility trading platform as a set
// of typed repositories. Implementations live in infra/nodesapi (HTTP) and
// internal/platformtest (in-memory, for tests).
package platform

import (
	"context"

	"github.com/kilianp07/flexmarket/core/model"
)

// Repository exposes the CRUD operations the platform offers for one record
// type. A nil template passed to GetByTemplate matches every record.
type Repository[T model.Entity] interface {
	Create(ctx context.Context, rec T) (T, error)
	GetByTemplate(ctx context.Context, tmpl *T, opts model.SearchOptions) (model.Page[T], error)
	GetByID(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, rec T) (T, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository adds session handling to the user collection.
type UserRepository interface {
	Repository[model.User]
	// GetCurrentUser returns nil when no user is logged in.
	GetCurrentUser(ctx context.Context) (*model.User, error)
	// SetCurrentUserID switches the logged in user. The platform only offers
	// this on demo deployments.
	SetCurrentUserID(ctx context.Context, id string) error
}

// GridNodeRepository adds topology operations to the grid node collection.
type GridNodeRepository interface {
	Repository[model.GridNode]
	// AddLinkedGridNode creates child and links it below parentID.
	AddLinkedGridNode(ctx context.Context, parentID string, child model.GridNode) (model.GridNode, error)
	// OpenGridNodeForTrade creates the grid location that lets orders be
	// placed on the node for the given market.
	OpenGridNodeForTrade(ctx context.Context, gridNodeID, marketID string) (model.GridLocation, error)
}

// Client groups every collection of the platform.
type Client struct {
	Users                     UserRepository
	Organizations             Repository[model.Organization]
	Subscriptions             Repository[model.Subscription]
	Memberships               Repository[model.Membership]
	GridNodes                 GridNodeRepository
	GridNodeLinks             Repository[model.GridNodeLink]
	GridLocations             Repository[model.GridLocation]
	Markets                   Repository[model.Market]
	Orders                    Repository[model.Order]
	Trades                    Repository[model.Trade]
	Assets                    Repository[model.Asset]
	AssetTypes                Repository[model.AssetType]
	AssetGridAssignments      Repository[model.AssetGridAssignment]
	AssetPortfolios           Repository[model.AssetPortfolio]
	AssetPortfolioAssignments Repository[model.AssetPortfolioAssignment]
}
