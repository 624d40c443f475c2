package matching

import (
	"main/internal/model"
	"main/internal/schema"
)

// TransformToMarket rewrites a triggered order into a plain MARKET order
// preserving its identity, quantities and contingency links. ts restamps
// the initialization time of the transformed order.
func TransformToMarket(o *schema.Order, ts int64) *schema.Order {
	out := transformBase(o, ts)
	out.Type = schema.OrderTypeMarket
	return out
}

// TransformToLimit rewrites a triggered order into a plain LIMIT order at
// the given price, preserving identity.
func TransformToLimit(o *schema.Order, price model.Price, ts int64) *schema.Order {
	out := transformBase(o, ts)
	out.Type = schema.OrderTypeLimit
	out.Price = price
	out.HasPrice = true
	return out
}

func transformBase(o *schema.Order, ts int64) *schema.Order {
	out := *o
	out.EmulationTrigger = schema.TriggerNone
	out.TriggerInstrumentID = 0
	out.HasTriggerPrice = false
	out.TriggerPrice = 0
	out.HasPrice = false
	out.Price = 0
	out.TrailingOffset = 0
	out.TrailingOffsetType = schema.TrailingOffsetNone
	out.LimitOffset = 0
	out.IsTriggered = false
	out.TsTriggered = 0
	out.Status = schema.OrderStatusInitialized
	out.TsInit = ts
	out.TsLast = ts
	return &out
}
