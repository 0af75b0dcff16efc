package model

// GridNode is a point of the distribution topology (substation, feeder...).
type GridNode struct {
	ID                       string `json:"id,omitempty"`
	Name                     string `json:"name,omitempty"`
	OperatedByOrganizationID string `json:"operatedByOrganizationId,omitempty"`
}

func (n GridNode) EntityID() string { return n.ID }

// GridNodeLink is a directed parent (source) to child (target) edge.
type GridNodeLink struct {
	ID               string `json:"id,omitempty"`
	SourceGridNodeID string `json:"sourceGridNodeId,omitempty"`
	TargetGridNodeID string `json:"targetGridNodeId,omitempty"`
}

func (l GridNodeLink) EntityID() string { return l.ID }

// GridLocation marks a grid node as open for trade on a market.
type GridLocation struct {
	ID         string `json:"id,omitempty"`
	GridNodeID string `json:"gridNodeId,omitempty"`
	MarketID   string `json:"marketId,omitempty"`
}

func (l GridLocation) EntityID() string { return l.ID }
