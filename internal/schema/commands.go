package schema

import "main/internal/model"

// TradingCommand is the tagged sum of commands accepted by the emulator's
// execute endpoint. Dispatch must be exhaustive.
type TradingCommand interface {
	tradingCommand()
}

// SubmitOrder submits one order together with its routing identity. The
// emulator caches it keyed on the order's client order ID so the original
// routing metadata survives transformation at release.
type SubmitOrder struct {
	TraderID   TraderID
	StrategyID StrategyID
	PositionID PositionID
	ClientID   ClientID
	Order      *Order
	TsInit     int64
}

// SubmitOrderList submits a linked list of contingent orders.
type SubmitOrderList struct {
	TraderID   TraderID
	StrategyID StrategyID
	PositionID PositionID
	ClientID   ClientID
	Orders     []*Order
	TsInit     int64
}

// ModifyOrder amends price, trigger price and/or quantity of a working
// order. Fields with an unset Has flag keep the existing value.
type ModifyOrder struct {
	StrategyID      StrategyID
	InstrumentID    InstrumentID
	ClientOrderID   ClientOrderID
	Quantity        model.Quantity
	HasQuantity     bool
	Price           model.Price
	HasPrice        bool
	TriggerPrice    model.Price
	HasTriggerPrice bool
	TsInit          int64
}

// CancelOrder cancels a single order.
type CancelOrder struct {
	StrategyID    StrategyID
	InstrumentID  InstrumentID
	ClientOrderID ClientOrderID
	TsInit        int64
}

// CancelAllOrders cancels every emulated order for an instrument,
// optionally filtered by side (OrderSideUnknown cancels both sides).
type CancelAllOrders struct {
	StrategyID   StrategyID
	InstrumentID InstrumentID
	Side         OrderSide
	TsInit       int64
}

func (SubmitOrder) tradingCommand()     {}
func (SubmitOrderList) tradingCommand() {}
func (ModifyOrder) tradingCommand()     {}
func (CancelOrder) tradingCommand()     {}
func (CancelAllOrders) tradingCommand() {}
