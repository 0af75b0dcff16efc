package model

// QuantityType is the physical unit a market trades in.
type QuantityType string

const (
	QuantityPower  QuantityType = "Power"
	QuantityEnergy QuantityType = "Energy"
)

// OrderSide tells whether an order buys or sells flexibility.
type OrderSide string

const (
	SideBuy  OrderSide = "Buy"
	SideSell OrderSide = "Sell"
)

// Opposite returns the counterpart side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PriceType selects between a price-limited order and an unlimited one.
// With PriceMarket the unit price of the order is ignored by the platform.
type PriceType string

const (
	PriceLimit  PriceType = "Limit"
	PriceMarket PriceType = "Market"
)

// FillType controls partial matching of an order.
type FillType string

const (
	FillNormal       FillType = "Normal"
	FillOrKill       FillType = "FillOrKill"
	FillAllOrNothing FillType = "AllOrNothing"
)

// Status is the life-cycle state shared by assets and orders.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusClosed   Status = "Closed"
	StatusRejected Status = "Rejected"
)

// ElectricityUsageMethod qualifies a power telemetry reading. The numeric
// values are part of the telemetry wire format.
type ElectricityUsageMethod int

const (
	UsageConsumption                  ElectricityUsageMethod = 1
	UsageGeneration                   ElectricityUsageMethod = 2
	UsageConsumptionIntoStorage       ElectricityUsageMethod = 3
	UsageOptimizedConsumptionIncrease ElectricityUsageMethod = 4
	UsageOptimizedConsumptionDecrease ElectricityUsageMethod = 5
)

// String returns a human-readable representation of the usage method.
func (m ElectricityUsageMethod) String() string {
	switch m {
	case UsageConsumption:
		return "Consumption"
	case UsageGeneration:
		return "Generation"
	case UsageConsumptionIntoStorage:
		return "ConsumptionIntoStorage"
	case UsageOptimizedConsumptionIncrease:
		return "OptimizedConsumptionIncrease"
	case UsageOptimizedConsumptionDecrease:
		return "OptimizedConsumptionDecrease"
	default:
		return "unknown"
	}
}
