package emulator

import (
	"github.com/yanun0323/logs"

	"main/internal/matching"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
)

// TriggerStopOrder marks a stop-limit family order as triggered and, when
// its limit side is already marketable, releases it in the same pass.
func (e *Emulator) TriggerStopOrder(o *schema.Order) {
	now := e.clock.TimestampNs()
	o.IsTriggered = true
	o.TsTriggered = now
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.metrics.Inc(obs.CounterTriggersFired)

	evt := schema.OrderTriggered{
		EventBase:    e.eventBase(o, now),
		TriggerPrice: o.TriggerPrice,
	}
	e.out.publishOrderEvent(evt)

	if core, ok := e.cores[o.TriggerInstrument()]; ok {
		core.MatchOrder(o, false)
	}
}

// FillMarketOrder releases the order downstream as a plain MARKET order.
func (e *Emulator) FillMarketOrder(o *schema.Order) {
	e.release(o, false)
}

// FillLimitOrder releases the order downstream as a plain LIMIT order at
// its limit price. Plain MARKET and LIMIT orders carry no trigger of their
// own and collapse to the market path.
func (e *Emulator) FillLimitOrder(o *schema.Order) {
	if o.Type == schema.OrderTypeMarket || o.Type == schema.OrderTypeLimit {
		e.release(o, false)
		return
	}
	e.release(o, true)
}

// ExpireOrder closes a matured GTD order. The core already removed it
// before calling here.
func (e *Emulator) ExpireOrder(o *schema.Order) {
	delete(e.commands, o.ClientOrderID)

	now := e.clock.TimestampNs()
	o.EmulationTrigger = schema.TriggerNone
	o.Status = schema.OrderStatusExpired
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.metrics.Inc(obs.CounterOrdersExpired)

	evt := schema.OrderExpired{EventBase: e.eventBase(o, now)}
	e.out.publishOrderEvent(evt)
	e.out.notifyExec(evt)
	logs.Infof("emulator: expired order %d", o.ClientOrderID)
}

// release transforms a triggered order into its downstream form and routes
// the original submit command onward. Releasing an order whose command is
// already popped is a no-op, so a re-entrant match cannot double-release.
func (e *Emulator) release(o *schema.Order, limit bool) {
	cmd, held := e.commands[o.ClientOrderID]
	if !held {
		logs.Debugf("emulator: order %d already released", o.ClientOrderID)
		return
	}
	delete(e.commands, o.ClientOrderID)

	now := e.clock.TimestampNs()
	core, hasCore := e.cores[o.TriggerInstrument()]
	if hasCore {
		core.DeleteOrder(o)
	}
	o.EmulationTrigger = schema.TriggerNone

	var transformed *schema.Order
	if limit {
		transformed = matching.TransformToLimit(o, o.Price, now)
	} else {
		transformed = matching.TransformToMarket(o, now)
	}

	if err := e.cache.AddOrder(transformed, cmd.PositionID, cmd.ClientID, true); err != nil {
		logs.Errorf("emulator: cache released order %d, err: %+v", transformed.ClientOrderID, err)
	}
	cmd.Order = transformed

	e.out.publishOrderEvent(schema.OrderInitialized{
		EventBase: e.eventBase(transformed, now),
		Order:     transformed,
	})

	transformed.Status = schema.OrderStatusReleased
	transformed.TsLast = now
	e.cache.UpdateOrder(transformed)

	e.out.publishOrderEvent(schema.OrderReleased{
		EventBase:     e.eventBase(transformed, now),
		ReleasedPrice: e.releasedPrice(transformed.Side, core, hasCore),
	})
	e.metrics.Inc(obs.CounterOrdersReleased)
	logs.Infof("emulator: released order %d", transformed.ClientOrderID)

	if transformed.ExecAlgorithmID != 0 {
		e.out.submitToAlgorithm(transformed.ExecAlgorithmID, cmd)
		return
	}
	e.out.submitToExec(cmd)
}

// releasedPrice is the top-of-book price the release fired against: the ask
// for a BUY, the bid for a SELL.
func (e *Emulator) releasedPrice(side schema.OrderSide, core *matching.Core, hasCore bool) model.Price {
	if !hasCore {
		return 0
	}
	if side == schema.OrderSideBuy {
		ask, _ := core.AskRaw()
		return ask
	}
	bid, _ := core.BidRaw()
	return bid
}

// cancelOrderLocal closes an order still owned by the emulator.
func (e *Emulator) cancelOrderLocal(o *schema.Order, reason string) {
	delete(e.commands, o.ClientOrderID)
	if core, ok := e.cores[o.TriggerInstrument()]; ok {
		core.DeleteOrder(o)
	}

	now := e.clock.TimestampNs()
	o.EmulationTrigger = schema.TriggerNone
	o.Status = schema.OrderStatusCanceled
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.metrics.Inc(obs.CounterOrdersCanceled)

	evt := schema.OrderCanceled{
		EventBase: e.eventBase(o, now),
		Reason:    reason,
	}
	e.out.publishOrderEvent(evt)
	e.out.notifyExec(evt)
}

// cancelOrder routes a cancel for any order: locally when it still rests in
// a core, downstream when it has already been released.
func (e *Emulator) cancelOrder(o *schema.Order) {
	if core, ok := e.cores[o.TriggerInstrument()]; ok && core.OrderExists(o.ClientOrderID) {
		e.cancelOrderLocal(o, "")
		return
	}
	if o.IsOpen() && o.Status != schema.OrderStatusPendingCancel {
		e.out.cancelToExec(&schema.CancelOrder{
			StrategyID:    o.StrategyID,
			InstrumentID:  o.InstrumentID,
			ClientOrderID: o.ClientOrderID,
			TsInit:        e.clock.TimestampNs(),
		})
	}
}
