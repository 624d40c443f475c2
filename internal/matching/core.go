// Package matching implements the per-instrument trigger/matching cores:
// resting emulated orders on side lists, the latest reference prices, and
// the trigger scan that releases orders to the owner's sink callbacks.
package matching

import (
	"errors"
	"fmt"
	"sort"

	"main/internal/model"
	"main/internal/schema"
)

var (
	ErrDuplicateOrder = errors.New("order already in matching core")
)

// TriggerSink receives trigger transitions from a core. The owner decides
// what a trigger means; the core only classifies. Keeping this an interface
// avoids a back-pointer cycle between core and owner.
type TriggerSink interface {
	// TriggerStopOrder fires when a stop-limit family order's stop
	// condition is first satisfied.
	TriggerStopOrder(o *schema.Order)
	// FillMarketOrder fires when a market-family order is marketable.
	FillMarketOrder(o *schema.Order)
	// FillLimitOrder fires when a limit-family order is marketable.
	FillLimitOrder(o *schema.Order)
}

// ExpiryHandler receives GTD expirations found during Iterate.
type ExpiryHandler interface {
	ExpireOrder(o *schema.Order)
}

// Core is the matching engine state for one (trigger-)instrument.
type Core struct {
	instrumentID   schema.InstrumentID
	priceIncrement model.Price
	sink           TriggerSink
	expiry         ExpiryHandler

	bidRaw   model.Price
	askRaw   model.Price
	lastRaw  model.Price
	bidInit  bool
	askInit  bool
	lastInit bool

	bidOrders []*schema.Order // BUY, descending by trigger price
	askOrders []*schema.Order // SELL, ascending by trigger price
	index     map[schema.ClientOrderID]*schema.Order
}

// NewCore creates an empty core for one instrument.
func NewCore(instrumentID schema.InstrumentID, priceIncrement model.Price, sink TriggerSink) *Core {
	return &Core{
		instrumentID:   instrumentID,
		priceIncrement: priceIncrement,
		sink:           sink,
		index:          make(map[schema.ClientOrderID]*schema.Order),
	}
}

// SetExpiryHandler wires the GTD expiry outlet used by Iterate.
func (c *Core) SetExpiryHandler(h ExpiryHandler) { c.expiry = h }

// InstrumentID returns the instrument this core matches for.
func (c *Core) InstrumentID() schema.InstrumentID { return c.instrumentID }

// PriceIncrement returns the instrument's tick size.
func (c *Core) PriceIncrement() model.Price { return c.priceIncrement }

// BidRaw returns the current bid and whether it is initialized.
func (c *Core) BidRaw() (model.Price, bool) { return c.bidRaw, c.bidInit }

// AskRaw returns the current ask and whether it is initialized.
func (c *Core) AskRaw() (model.Price, bool) { return c.askRaw, c.askInit }

// LastRaw returns the current last trade price and whether it is initialized.
func (c *Core) LastRaw() (model.Price, bool) { return c.lastRaw, c.lastInit }

// SetBidRaw updates the bid and marks it initialized.
func (c *Core) SetBidRaw(raw model.Price) {
	c.bidRaw = raw
	c.bidInit = true
}

// SetAskRaw updates the ask and marks it initialized.
func (c *Core) SetAskRaw(raw model.Price) {
	c.askRaw = raw
	c.askInit = true
}

// SetLastRaw updates the last trade price and marks it initialized.
func (c *Core) SetLastRaw(raw model.Price) {
	c.lastRaw = raw
	c.lastInit = true
}

// Reset clears all resting orders and price state.
func (c *Core) Reset() {
	c.bidOrders = nil
	c.askOrders = nil
	c.index = make(map[schema.ClientOrderID]*schema.Order)
	c.bidRaw, c.askRaw, c.lastRaw = 0, 0, 0
	c.bidInit, c.askInit, c.lastInit = false, false, false
}

// OrderExists reports whether the order rests in this core.
func (c *Core) OrderExists(cid schema.ClientOrderID) bool {
	_, ok := c.index[cid]
	return ok
}

// Orders returns every resting order, bids first.
func (c *Core) Orders() []*schema.Order {
	out := make([]*schema.Order, 0, len(c.bidOrders)+len(c.askOrders))
	out = append(out, c.bidOrders...)
	out = append(out, c.askOrders...)
	return out
}

// BidOrders returns the resting BUY orders, best-priced first.
func (c *Core) BidOrders() []*schema.Order { return c.bidOrders }

// AskOrders returns the resting SELL orders, best-priced first.
func (c *Core) AskOrders() []*schema.Order { return c.askOrders }

// AddOrder places the order into its side list and the index.
func (c *Core) AddOrder(o *schema.Order) error {
	if _, ok := c.index[o.ClientOrderID]; ok {
		return ErrDuplicateOrder
	}
	switch o.Side {
	case schema.OrderSideBuy:
		c.bidOrders = append(c.bidOrders, o)
		c.SortBidOrders()
	case schema.OrderSideSell:
		c.askOrders = append(c.askOrders, o)
		c.SortAskOrders()
	default:
		panic(fmt.Sprintf("matching: invalid order side %d for order %d", o.Side, o.ClientOrderID))
	}
	c.index[o.ClientOrderID] = o
	return nil
}

// DeleteOrder removes the order from its side list and the index. Removing
// an absent order is a no-op.
func (c *Core) DeleteOrder(o *schema.Order) {
	if _, ok := c.index[o.ClientOrderID]; !ok {
		return
	}
	delete(c.index, o.ClientOrderID)
	switch o.Side {
	case schema.OrderSideBuy:
		c.bidOrders = removeOrder(c.bidOrders, o.ClientOrderID)
	case schema.OrderSideSell:
		c.askOrders = removeOrder(c.askOrders, o.ClientOrderID)
	default:
		panic(fmt.Sprintf("matching: invalid order side %d for order %d", o.Side, o.ClientOrderID))
	}
}

// SortBidOrders restores descending sort order after a price modification.
func (c *Core) SortBidOrders() {
	sort.SliceStable(c.bidOrders, func(i, j int) bool {
		return sortPrice(c.bidOrders[i]) > sortPrice(c.bidOrders[j])
	})
}

// SortAskOrders restores ascending sort order after a price modification.
func (c *Core) SortAskOrders() {
	sort.SliceStable(c.askOrders, func(i, j int) bool {
		return sortPrice(c.askOrders[i]) < sortPrice(c.askOrders[j])
	})
}

// Iterate expires matured GTD orders, then scans resting orders and fires
// every satisfied trigger through the sink.
func (c *Core) Iterate(nowNs int64) {
	if c.expiry != nil {
		for _, o := range c.Orders() {
			if o.TimeInForce == schema.TimeInForceGTD && o.ExpireNs > 0 && o.ExpireNs <= nowNs {
				c.DeleteOrder(o)
				c.expiry.ExpireOrder(o)
			}
		}
	}

	// Snapshot: sink callbacks mutate the side lists mid-scan.
	for _, o := range c.Orders() {
		if !c.OrderExists(o.ClientOrderID) {
			continue
		}
		c.MatchOrder(o, false)
	}
}

// MatchOrder classifies one order against the current price state and, if
// its trigger condition is satisfied, invokes the matching sink callback
// synchronously. With initial set, immediately-marketable orders fire
// without waiting for the next tick.
func (c *Core) MatchOrder(o *schema.Order, initial bool) {
	_ = initial // classification is identical; the flag documents call sites
	switch o.Type {
	case schema.OrderTypeMarket:
		c.sink.FillLimitOrder(o)
	case schema.OrderTypeLimit:
		if c.isLimitMatched(o) {
			c.sink.FillLimitOrder(o)
		}
	case schema.OrderTypeStopMarket, schema.OrderTypeMarketIfTouched, schema.OrderTypeTrailingStopMarket:
		if c.isStopMatched(o) {
			c.sink.FillMarketOrder(o)
		}
	case schema.OrderTypeStopLimit, schema.OrderTypeLimitIfTouched, schema.OrderTypeTrailingStopLimit:
		if !o.IsTriggered {
			if c.isStopMatched(o) {
				c.sink.TriggerStopOrder(o)
			}
			return
		}
		if c.isLimitMatched(o) {
			c.sink.FillLimitOrder(o)
		}
	default:
		panic(fmt.Sprintf("matching: invalid order type %d for order %d", o.Type, o.ClientOrderID))
	}
}

// isLimitMatched reports whether the order's limit price is marketable:
// BUY when ask <= price, SELL when bid >= price.
func (c *Core) isLimitMatched(o *schema.Order) bool {
	if !o.HasPrice {
		return false
	}
	ref, ok := c.limitReference(o.Side, o.EmulationTrigger)
	if !ok {
		return false
	}
	switch o.Side {
	case schema.OrderSideBuy:
		return ref <= o.Price
	case schema.OrderSideSell:
		return ref >= o.Price
	default:
		panic(fmt.Sprintf("matching: invalid order side %d for order %d", o.Side, o.ClientOrderID))
	}
}

// isStopMatched reports whether the order's trigger price is touched:
// BUY when ask >= trigger, SELL when bid <= trigger.
func (c *Core) isStopMatched(o *schema.Order) bool {
	if !o.HasTriggerPrice {
		return false
	}
	ref, ok := c.limitReference(o.Side, o.EmulationTrigger)
	if !ok {
		return false
	}
	switch o.Side {
	case schema.OrderSideBuy:
		return ref >= o.TriggerPrice
	case schema.OrderSideSell:
		return ref <= o.TriggerPrice
	default:
		panic(fmt.Sprintf("matching: invalid order side %d for order %d", o.Side, o.ClientOrderID))
	}
}

// limitReference picks the reference price for the trigger mode. An
// uninitialized reference defers triggering.
func (c *Core) limitReference(side schema.OrderSide, trigger schema.TriggerType) (model.Price, bool) {
	switch trigger {
	case schema.TriggerLastTrade:
		return c.lastRaw, c.lastInit
	default:
		// Default and BidAsk read the opposing top of book.
		if side == schema.OrderSideBuy {
			return c.askRaw, c.askInit
		}
		return c.bidRaw, c.bidInit
	}
}

// sortPrice is the side-list sort key: trigger price for untriggered stop
// types, limit price otherwise.
func sortPrice(o *schema.Order) model.Price {
	if o.Type.HasTrigger() && !o.IsTriggered {
		return o.TriggerPrice
	}
	if o.HasPrice {
		return o.Price
	}
	return o.TriggerPrice
}

func removeOrder(orders []*schema.Order, cid schema.ClientOrderID) []*schema.Order {
	for i, o := range orders {
		if o.ClientOrderID == cid {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
