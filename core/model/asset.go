package model

// AssetType is one of the asset categories accepted by the platform.
type AssetType struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (t AssetType) EntityID() string { return t.ID }

// Asset is a flexible load or generator registered by an FSP. New assets are
// Pending until a DSO activates them.
type Asset struct {
	ID                       string `json:"id,omitempty"`
	Name                     string `json:"name,omitempty"`
	AssetTypeID              string `json:"assetTypeId,omitempty"`
	OperatedByOrganizationID string `json:"operatedByOrganizationId,omitempty"`
	Status                   Status `json:"status,omitempty"`
}

func (a Asset) EntityID() string { return a.ID }

// AssetGridAssignment connects an asset to a metering point (MPID).
type AssetGridAssignment struct {
	ID         string `json:"id,omitempty"`
	AssetID    string `json:"assetId,omitempty"`
	MPID       string `json:"mpid,omitempty"`
	GridNodeID string `json:"gridNodeId,omitempty"`
}

func (a AssetGridAssignment) EntityID() string { return a.ID }

type AssetPortfolio struct {
	ID                      string `json:"id,omitempty"`
	Name                    string `json:"name,omitempty"`
	ManagedByOrganizationID string `json:"managedByOrganizationId,omitempty"`
}

func (p AssetPortfolio) EntityID() string { return p.ID }

// AssetPortfolioAssignment puts a grid-assigned asset into a portfolio.
type AssetPortfolioAssignment struct {
	ID                    string `json:"id,omitempty"`
	AssetPortfolioID      string `json:"assetPortfolioId,omitempty"`
	AssetGridAssignmentID string `json:"assetGridAssignmentId,omitempty"`
}

func (a AssetPortfolioAssignment) EntityID() string { return a.ID }
