package emulator

import (
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/schema"
)

// onOrderEvent coordinates contingent order groups from the order event
// stream. The emulator hears its own published events here too; variants
// without contingent consequences fall through.
func (e *Emulator) onOrderEvent(msg any) {
	evt, ok := msg.(schema.OrderEvent)
	if !ok {
		logs.Errorf("emulator: order event topic received non-event %T", msg)
		return
	}
	switch v := evt.(type) {
	case schema.OrderFilled:
		e.handleOrderFilled(v)
	case schema.OrderUpdated:
		e.handleOrderUpdated(v)
	case schema.OrderCanceled:
		e.handleOrderClosed(v.EventBase)
	case schema.OrderExpired:
		e.handleOrderClosed(v.EventBase)
	case schema.OrderRejected:
		e.handleOrderClosed(v.EventBase)
	case schema.OrderInitialized, schema.OrderEmulated, schema.OrderTriggered,
		schema.OrderReleased, schema.OrderAccepted:
		// No contingent action.
	default:
		logs.Errorf("emulator: unhandled order event %T", evt)
	}
}

// onPositionEvent exists so position topics stay subscribed for monitored
// positions; the emulator takes no action on them.
func (e *Emulator) onPositionEvent(msg any) {
	if _, ok := msg.(schema.PositionEvent); !ok {
		logs.Errorf("emulator: position event topic received non-event %T", msg)
	}
}

func (e *Emulator) handleOrderFilled(evt schema.OrderFilled) {
	o := e.cache.Order(evt.ClientOrderID)
	if o == nil {
		return
	}
	switch o.ContingencyType {
	case schema.ContingencyOTO:
		e.armChildren(o, evt)
	case schema.ContingencyOCO:
		// Any fill, partial included, removes the other legs.
		e.cancelSiblings(o)
	case schema.ContingencyOUO:
		if o.IsClosed() {
			e.cancelSiblings(o)
			return
		}
		e.propagateLeaves(o)
	case schema.ContingencyNone:
	}
}

// armChildren activates the linked children of a filled OTO primary.
// Children already released keep working downstream; only their stale
// command-cache entries are reaped.
func (e *Emulator) armChildren(parent *schema.Order, evt schema.OrderFilled) {
	for _, childID := range parent.LinkedOrderIDs {
		child := e.cache.Order(childID)
		if child == nil {
			logs.Errorf("emulator: order %d links missing child %d", parent.ClientOrderID, childID)
			continue
		}
		if child.IsClosed() || child.Status == schema.OrderStatusPendingCancel {
			continue
		}
		if child.EmulationTrigger == schema.TriggerNone && child.Status != schema.OrderStatusInitialized {
			delete(e.commands, childID)
			continue
		}

		positionID := evt.PositionID
		if positionID == 0 {
			positionID = e.cache.PositionID(parent.ClientOrderID)
		}
		if positionID != 0 && e.cache.PositionID(childID) == 0 {
			e.cache.SetPositionID(childID, positionID)
		}

		// Exec-spawned primaries fill across a spawn group; the child
		// tracks the group's total filled quantity.
		if parent.ExecSpawnID != 0 {
			if filled := e.execSpawnFilled(parent.ExecSpawnID); filled > 0 && filled != child.Quantity {
				e.updateOrderQuantity(child, filled)
			}
		}

		if _, held := e.commands[childID]; held {
			continue
		}
		if child.Status != schema.OrderStatusInitialized {
			continue
		}
		e.armOrder(child, parent.TraderID, child.StrategyID, positionID, e.cache.ClientID(childID))
	}
}

func (e *Emulator) handleOrderUpdated(evt schema.OrderUpdated) {
	o := e.cache.Order(evt.ClientOrderID)
	if o == nil || o.ContingencyType != schema.ContingencyOUO {
		return
	}
	// Spawned secondaries track their primary; they do not drive the group.
	if o.ExecSpawnID != 0 && o.ExecSpawnID != o.ClientOrderID {
		return
	}
	if !evt.HasQuantity {
		return
	}
	for _, sibling := range e.openSiblings(o) {
		if sibling.Quantity != evt.Quantity {
			e.updateOrderQuantity(sibling, evt.Quantity)
		}
	}
}

// propagateLeaves shrinks OUO siblings to a partially filled leg's
// remaining quantity.
func (e *Emulator) propagateLeaves(o *schema.Order) {
	if o.ExecSpawnID != 0 && o.ExecSpawnID != o.ClientOrderID {
		return
	}
	leaves := o.LeavesQty()
	for _, sibling := range e.openSiblings(o) {
		if sibling.LeavesQty() != leaves {
			e.updateOrderQuantity(sibling, leaves)
		}
	}
}

func (e *Emulator) handleOrderClosed(base schema.EventBase) {
	o := e.cache.Order(base.ClientOrderID)
	if o == nil {
		return
	}
	if o.EmulationTrigger == schema.TriggerNone {
		delete(e.commands, o.ClientOrderID)
	}
	switch o.ContingencyType {
	case schema.ContingencyOCO, schema.ContingencyOUO:
		e.cancelSiblings(o)
	case schema.ContingencyOTO:
		// A primary that died unfilled takes its dormant children with it.
		if o.FilledQty == 0 {
			e.cancelSiblings(o)
		}
	case schema.ContingencyNone:
	}
}

// cancelSiblings cancels every open linked order. Closed legs are skipped,
// which terminates the cancel cascade between OCO legs.
func (e *Emulator) cancelSiblings(o *schema.Order) {
	for _, cid := range o.LinkedOrderIDs {
		sibling := e.cache.Order(cid)
		if sibling == nil {
			logs.Errorf("emulator: order %d links missing sibling %d", o.ClientOrderID, cid)
			continue
		}
		if !sibling.IsOpen() || sibling.Status == schema.OrderStatusPendingCancel {
			continue
		}
		e.cancelOrder(sibling)
	}
}

func (e *Emulator) openSiblings(o *schema.Order) []*schema.Order {
	out := make([]*schema.Order, 0, len(o.LinkedOrderIDs))
	for _, cid := range o.LinkedOrderIDs {
		sibling := e.cache.Order(cid)
		if sibling == nil {
			logs.Errorf("emulator: order %d links missing sibling %d", o.ClientOrderID, cid)
			continue
		}
		if !sibling.IsOpen() {
			continue
		}
		// A leg already released is downstream's to resize; reap the
		// stale command entry and leave it be.
		if sibling.EmulationTrigger == schema.TriggerNone && !e.inCore(sibling) {
			delete(e.commands, cid)
			continue
		}
		out = append(out, sibling)
	}
	return out
}

func (e *Emulator) inCore(o *schema.Order) bool {
	core, ok := e.cores[o.TriggerInstrument()]
	return ok && core.OrderExists(o.ClientOrderID)
}

// updateOrderQuantity amends one order's total quantity and publishes the
// update. Siblings hearing the event see matching quantities and stop, so
// propagation cannot ping-pong.
func (e *Emulator) updateOrderQuantity(o *schema.Order, qty model.Quantity) {
	now := e.clock.TimestampNs()
	o.Quantity = qty
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.out.publishOrderEvent(schema.OrderUpdated{
		EventBase:   e.eventBase(o, now),
		Quantity:    qty,
		HasQuantity: true,
	})
}

func (e *Emulator) execSpawnFilled(spawnID schema.ClientOrderID) model.Quantity {
	var filled model.Quantity
	for _, o := range e.cache.OrdersForExecSpawn(spawnID) {
		filled += o.FilledQty
	}
	return filled
}
