// Package exec implements the execution engine the emulator releases into.
// It owns post-release lifecycle transitions: acceptance, fills, cancels
// and rejections, applied to the shared cache and published back onto the
// order event topics that drive contingency coordination.
package exec

import (
	"fmt"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/model"
	"main/internal/schema"
)

var (
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

// Message bus endpoints.
const (
	EndpointExecute = "ExecEngine.execute"
	EndpointProcess = "ExecEngine.process"
)

// Engine tracks released orders and applies venue responses.
type Engine struct {
	clock clock.Clock
	bus   *bus.Bus
	cache *cache.Cache

	working map[schema.ClientOrderID]*schema.SubmitOrder
}

// NewEngine wires an execution engine onto the bus.
func NewEngine(clk clock.Clock, b *bus.Bus, c *cache.Cache) *Engine {
	e := &Engine{
		clock:   clk,
		bus:     b,
		cache:   c,
		working: make(map[schema.ClientOrderID]*schema.SubmitOrder),
	}
	b.Register(EndpointExecute, e.onExecute)
	b.Register(EndpointProcess, e.onProcess)
	return e
}

func (e *Engine) onExecute(msg any) {
	switch cmd := msg.(type) {
	case *schema.SubmitOrder:
		if err := e.Submit(cmd); err != nil {
			logs.Errorf("exec: submit order, err: %+v", err)
		}
	case *schema.CancelOrder:
		if err := e.Cancel(cmd.ClientOrderID); err != nil {
			logs.Errorf("exec: cancel order %d, err: %+v", cmd.ClientOrderID, err)
		}
	default:
		logs.Errorf("exec: execute received unhandled command %T", msg)
	}
}

// onProcess receives lifecycle notifications forwarded by the emulator for
// orders it closed locally; the engine only reaps its working entry.
func (e *Engine) onProcess(msg any) {
	evt, ok := msg.(schema.OrderEvent)
	if !ok {
		logs.Errorf("exec: process received non-event %T", msg)
		return
	}
	delete(e.working, evt.Base().ClientOrderID)
}

// Working reports whether an order is working at the engine.
func (e *Engine) Working(cid schema.ClientOrderID) bool {
	_, ok := e.working[cid]
	return ok
}

// Submit accepts a released order and acknowledges it.
func (e *Engine) Submit(cmd *schema.SubmitOrder) error {
	o := cmd.Order
	if o == nil {
		return errors.New("submit command without order")
	}
	if !o.IsOpen() && o.Status != schema.OrderStatusInitialized {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("submit order %d in status %d", o.ClientOrderID, o.Status))
	}
	e.working[o.ClientOrderID] = cmd
	if e.cache.Order(o.ClientOrderID) == nil {
		if err := e.cache.AddOrder(o, cmd.PositionID, cmd.ClientID, false); err != nil {
			return err
		}
	}

	now := e.clock.TimestampNs()
	o.Status = schema.OrderStatusAccepted
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.publish(schema.OrderAccepted{EventBase: e.eventBase(o, now)})
	return nil
}

// Cancel closes a working order.
func (e *Engine) Cancel(cid schema.ClientOrderID) error {
	o := e.cache.Order(cid)
	if o == nil {
		return errors.Wrap(ErrUnknownOrder, fmt.Sprintf("cancel order %d", cid))
	}
	if o.IsClosed() {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("cancel order %d in status %d", cid, o.Status))
	}
	delete(e.working, cid)

	now := e.clock.TimestampNs()
	o.Status = schema.OrderStatusCanceled
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.publish(schema.OrderCanceled{EventBase: e.eventBase(o, now)})
	return nil
}

// ApplyFill records one execution against a working order and publishes the
// fill. The contingency handling downstream of the published event runs
// synchronously before ApplyFill returns.
func (e *Engine) ApplyFill(cid schema.ClientOrderID, qty model.Quantity, price model.Price) error {
	o := e.cache.Order(cid)
	if o == nil {
		return errors.Wrap(ErrUnknownOrder, fmt.Sprintf("fill order %d", cid))
	}
	if o.IsClosed() {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("fill order %d in status %d", cid, o.Status))
	}
	if qty <= 0 || qty > o.LeavesQty() {
		return errors.Wrap(ErrInvalidFill, fmt.Sprintf("fill order %d qty %d leaves %d", cid, qty, o.LeavesQty()))
	}

	now := e.clock.TimestampNs()
	o.FilledQty += qty
	if o.LeavesQty() == 0 {
		o.Status = schema.OrderStatusFilled
		delete(e.working, cid)
	} else {
		o.Status = schema.OrderStatusPartiallyFilled
	}
	o.TsLast = now
	e.cache.UpdateOrder(o)

	e.publish(schema.OrderFilled{
		EventBase:  e.eventBase(o, now),
		LastQty:    qty,
		LastPrice:  price,
		LeavesQty:  o.LeavesQty(),
		PositionID: e.cache.PositionID(cid),
	})
	return nil
}

func (e *Engine) publish(evt schema.OrderEvent) {
	e.bus.Publish(fmt.Sprintf("events.order.%d", evt.Base().StrategyID), evt)
}

func (e *Engine) eventBase(o *schema.Order, ts int64) schema.EventBase {
	return schema.EventBase{
		ClientOrderID: o.ClientOrderID,
		StrategyID:    o.StrategyID,
		InstrumentID:  o.InstrumentID,
		TsEvent:       ts,
	}
}
