package roles

import "errors"

var (
	ErrNotAuthenticated    = errors.New("authentication: no current user")
	ErrNoMembership        = errors.New("no memberships for user")
	ErrNoGridLocation      = errors.New("no grid location available for trade")
	ErrNoSellOrders        = errors.New("no sell orders available")
	ErrNoAssetType         = errors.New("no asset type available")
	ErrNoPortfolio         = errors.New("no portfolios")
	ErrAmbiguousAssignment = errors.New("asset must have exactly one grid assignment")
)
