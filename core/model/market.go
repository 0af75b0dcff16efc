package model

import (
	"fmt"
	"time"
)

type Market struct {
	ID                  string       `json:"id,omitempty"`
	Name                string       `json:"name,omitempty"`
	QuantityType        QuantityType `json:"quantityType,omitempty"`
	OwnerOrganizationID string       `json:"ownerOrganizationId,omitempty"`
}

func (m Market) EntityID() string { return m.ID }

// Order is a buy or sell order placed on a grid node. Prices are per unit of
// the market quantity type. RebalancePrice and FlexMarginPrice only apply to
// sell orders backed by an asset portfolio.
type Order struct {
	ID               string       `json:"id,omitempty"`
	MarketID         string       `json:"marketId,omitempty"`
	GridNodeID       string       `json:"gridNodeId,omitempty"`
	AssetPortfolioID string       `json:"assetPortfolioId,omitempty"`
	Quantity         float64      `json:"quantity,omitempty"`
	QuantityType     QuantityType `json:"quantityType,omitempty"`
	Side             OrderSide    `json:"side,omitempty"`
	PriceType        PriceType    `json:"priceType,omitempty"`
	FillType         FillType     `json:"fillType,omitempty"`
	UnitPrice        float64      `json:"unitPrice,omitempty"`
	RebalancePrice   float64      `json:"rebalancePrice,omitempty"`
	FlexMarginPrice  float64      `json:"flexMarginPrice,omitempty"`
	Status           Status       `json:"status,omitempty"`
	PeriodFrom       *time.Time   `json:"periodFrom,omitempty"`
	PeriodTo         *time.Time   `json:"periodTo,omitempty"`
}

func (o Order) EntityID() string { return o.ID }

func (o Order) String() string {
	return fmt.Sprintf("%s %s %.0f@%.2f (%s)", o.Side, o.QuantityType, o.Quantity, o.UnitPrice, o.ID)
}

// Trade is produced by the platform when a buy and a sell order match.
type Trade struct {
	ID          string     `json:"id,omitempty"`
	MarketID    string     `json:"marketId,omitempty"`
	GridNodeID  string     `json:"gridNodeId,omitempty"`
	BuyOrderID  string     `json:"buyOrderId,omitempty"`
	SellOrderID string     `json:"sellOrderId,omitempty"`
	Quantity    float64    `json:"quantity,omitempty"`
	UnitPrice   float64    `json:"unitPrice,omitempty"`
	Created     *time.Time `json:"created,omitempty"`
}

func (t Trade) EntityID() string { return t.ID }
