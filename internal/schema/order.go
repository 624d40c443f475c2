package schema

import "main/internal/model"

// InstrumentID is the numeric identifier for an instrument.
type InstrumentID uint32

// ClientOrderID is the client-assigned unique order identifier.
type ClientOrderID uint64

// StrategyID identifies the strategy that owns an order.
type StrategyID uint32

// TraderID identifies the trader that owns an order.
type TraderID uint32

// PositionID identifies a position an order contributes to.
type PositionID uint64

// ClientID identifies the execution client an order routes through.
type ClientID uint16

// ExecAlgorithmID identifies an execution algorithm endpoint.
type ExecAlgorithmID uint16

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit
	OrderTypeMarketIfTouched
	OrderTypeLimitIfTouched
	OrderTypeTrailingStopMarket
	OrderTypeTrailingStopLimit
)

// HasTrigger reports whether the order type carries a stop trigger price.
func (t OrderType) HasTrigger() bool {
	switch t {
	case OrderTypeStopMarket, OrderTypeStopLimit,
		OrderTypeMarketIfTouched, OrderTypeLimitIfTouched,
		OrderTypeTrailingStopMarket, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

// IsTrailing reports whether the order type trails the market.
func (t OrderType) IsTrailing() bool {
	return t == OrderTypeTrailingStopMarket || t == OrderTypeTrailingStopLimit
}

// HasLimit reports whether the order type rests at a limit price after
// its trigger fires.
func (t OrderType) HasLimit() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLimit, OrderTypeLimitIfTouched, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

// OrderStatus tracks the lifecycle of an order.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusInitialized
	OrderStatusEmulated
	OrderStatusReleased
	OrderStatusAccepted
	OrderStatusPendingUpdate
	OrderStatusPendingCancel
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusRejected
)

// TriggerType is the price signal class watched for an emulated order.
type TriggerType uint16

const (
	TriggerNone TriggerType = iota
	TriggerDefault
	TriggerBidAsk
	TriggerLastTrade
	TriggerDoubleLast
	TriggerDoubleBidAsk
	TriggerMidPoint
	TriggerMarkPrice
	TriggerIndexPrice
)

// IsSupportedTrigger reports whether the emulator can simulate the trigger.
func (t TriggerType) IsSupportedTrigger() bool {
	switch t {
	case TriggerDefault, TriggerBidAsk, TriggerLastTrade:
		return true
	default:
		return false
	}
}

// ContingencyType links an order into a contingent group.
type ContingencyType uint16

const (
	ContingencyNone ContingencyType = iota
	ContingencyOTO
	ContingencyOCO
	ContingencyOUO
)

// TimeInForce describes order time-in-force.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceGTD
	TimeInForceIOC
	TimeInForceFOK
)

// TrailingOffsetType describes how a trailing offset is measured.
type TrailingOffsetType uint16

const (
	TrailingOffsetNone TrailingOffsetType = iota
	TrailingOffsetPrice
	TrailingOffsetBasisPoints
	TrailingOffsetTicks
)

// Order is the emulator's working view of an order. The cache owns the
// canonical copy; matching cores hold it by reference while it rests.
type Order struct {
	ClientOrderID       ClientOrderID
	StrategyID          StrategyID
	TraderID            TraderID
	InstrumentID        InstrumentID
	TriggerInstrumentID InstrumentID // zero means InstrumentID

	Side        OrderSide
	Type        OrderType
	TimeInForce TimeInForce
	ExpireNs    int64

	Quantity  model.Quantity
	FilledQty model.Quantity

	Price           model.Price
	HasPrice        bool
	TriggerPrice    model.Price
	HasTriggerPrice bool

	TrailingOffset     int64
	TrailingOffsetType TrailingOffsetType
	LimitOffset        int64

	Status           OrderStatus
	EmulationTrigger TriggerType
	ContingencyType  ContingencyType
	LinkedOrderIDs   []ClientOrderID
	ParentOrderID    ClientOrderID
	ExecAlgorithmID  ExecAlgorithmID
	ExecSpawnID      ClientOrderID

	IsTriggered bool
	TsTriggered int64
	TsInit      int64
	TsLast      int64
}

// LeavesQty is the quantity still working.
func (o *Order) LeavesQty() model.Quantity {
	leaves := o.Quantity - o.FilledQty
	if leaves < 0 {
		return 0
	}
	return leaves
}

// TriggerInstrument resolves the instrument whose prices drive the trigger.
func (o *Order) TriggerInstrument() InstrumentID {
	if o.TriggerInstrumentID != 0 {
		return o.TriggerInstrumentID
	}
	return o.InstrumentID
}

// IsClosed reports whether the order reached a terminal status.
func (o *Order) IsClosed() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order can still trade.
func (o *Order) IsOpen() bool {
	return !o.IsClosed() && o.Status != OrderStatusUnknown
}
