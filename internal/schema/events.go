package schema

import "main/internal/model"

// EventBase is the metadata shared by every order event.
type EventBase struct {
	ClientOrderID ClientOrderID
	StrategyID    StrategyID
	InstrumentID  InstrumentID
	TsEvent       int64
}

// Base returns the shared event metadata.
func (e EventBase) Base() EventBase { return e }

// OrderEvent is the tagged sum of order lifecycle events. Dispatch over the
// concrete types must be exhaustive; an unhandled variant is a programming
// error at the call site.
type OrderEvent interface {
	Base() EventBase
}

// OrderInitialized announces a newly created order, including the
// transformed order published during release.
type OrderInitialized struct {
	EventBase
	Order *Order
}

// OrderEmulated marks acceptance of an order into a matching core.
type OrderEmulated struct {
	EventBase
}

// OrderTriggered marks the stop condition of a stop-limit family order
// firing; the order then rests (or releases) at its limit price.
type OrderTriggered struct {
	EventBase
	TriggerPrice model.Price
}

// OrderReleased marks the transition from emulated to a plain order routed
// downstream. ReleasedPrice is the opposite-side top of book at release.
type OrderReleased struct {
	EventBase
	ReleasedPrice model.Price
}

// OrderUpdated carries price/quantity amendments. Zero-value fields with
// their Has flag unset leave the order field unchanged.
type OrderUpdated struct {
	EventBase
	Quantity        model.Quantity
	HasQuantity     bool
	Price           model.Price
	HasPrice        bool
	TriggerPrice    model.Price
	HasTriggerPrice bool
}

// OrderAccepted marks downstream acknowledgment of a released order.
type OrderAccepted struct {
	EventBase
}

// OrderCanceled marks a terminal cancel.
type OrderCanceled struct {
	EventBase
	Reason string
}

// OrderExpired marks a time-in-force expiry.
type OrderExpired struct {
	EventBase
}

// OrderRejected marks a terminal rejection.
type OrderRejected struct {
	EventBase
	Reason string
}

// OrderFilled carries one execution against an order.
type OrderFilled struct {
	EventBase
	LastQty    model.Quantity
	LastPrice  model.Price
	LeavesQty  model.Quantity
	PositionID PositionID
}

// PositionEvent is a position lifecycle notification. The emulator treats
// these as informational only.
type PositionEvent struct {
	PositionID   PositionID
	StrategyID   StrategyID
	InstrumentID InstrumentID
	TsEvent      int64
}
