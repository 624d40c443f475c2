// Package cache holds the shared order/instrument cache the emulator, risk
// engine and execution engine all read from. Orders are owned here; the
// emulator keeps non-owning references keyed on client order ID.
package cache

import (
	"errors"

	"github.com/yanun0323/logs"

	"main/internal/schema"
)

var (
	ErrUnknownOrder   = errors.New("order not found in cache")
	ErrDuplicateOrder = errors.New("order already exists in cache")
)

// Cache is the in-memory working set, optionally backed by a persistent
// store that survives restarts.
type Cache struct {
	orders     map[schema.ClientOrderID]*schema.Order
	positions  map[schema.ClientOrderID]schema.PositionID
	clients    map[schema.ClientOrderID]schema.ClientID
	execSpawns map[schema.ClientOrderID][]schema.ClientOrderID

	instruments map[schema.InstrumentID]schema.Instrument
	synthetics  map[schema.InstrumentID]schema.Synthetic

	quotes map[schema.InstrumentID]schema.QuoteTick
	trades map[schema.InstrumentID]schema.TradeTick

	store *Store
}

// New creates an empty cache. A nil store keeps the cache memory-only.
func New(store *Store) *Cache {
	return &Cache{
		orders:      make(map[schema.ClientOrderID]*schema.Order),
		positions:   make(map[schema.ClientOrderID]schema.PositionID),
		clients:     make(map[schema.ClientOrderID]schema.ClientID),
		execSpawns:  make(map[schema.ClientOrderID][]schema.ClientOrderID),
		instruments: make(map[schema.InstrumentID]schema.Instrument),
		synthetics:  make(map[schema.InstrumentID]schema.Synthetic),
		quotes:      make(map[schema.InstrumentID]schema.QuoteTick),
		trades:      make(map[schema.InstrumentID]schema.TradeTick),
		store:       store,
	}
}

// LoadInstruments seeds the cache from a registry.
func (c *Cache) LoadInstruments(reg *schema.Registry) {
	for _, inst := range reg.Instruments() {
		c.instruments[inst.ID] = inst
	}
	for _, syn := range reg.Synthetics() {
		c.synthetics[syn.ID] = syn
	}
}

// Restore loads persisted orders back into memory. Called once on start,
// before the emulator reactivates its working set.
func (c *Cache) Restore() error {
	if c.store == nil {
		return nil
	}
	records, err := c.store.LoadOrders()
	if err != nil {
		return err
	}
	for _, rec := range records {
		order, positionID, clientID := rec.toOrder()
		c.orders[order.ClientOrderID] = order
		if positionID != 0 {
			c.positions[order.ClientOrderID] = positionID
		}
		if clientID != 0 {
			c.clients[order.ClientOrderID] = clientID
		}
		c.indexExecSpawn(order)
	}
	logs.Infof("cache: restored %d orders from store", len(records))
	return nil
}

// Order returns the order for a client order ID, or nil.
func (c *Cache) Order(cid schema.ClientOrderID) *schema.Order {
	return c.orders[cid]
}

// OrdersEmulated returns every order still carrying an emulation trigger.
func (c *Cache) OrdersEmulated() []*schema.Order {
	var out []*schema.Order
	for _, o := range c.orders {
		if o.EmulationTrigger != schema.TriggerNone {
			out = append(out, o)
		}
	}
	return out
}

// OrdersForExecSpawn returns the orders spawned from one primary,
// including the primary itself.
func (c *Cache) OrdersForExecSpawn(spawnID schema.ClientOrderID) []*schema.Order {
	cids := c.execSpawns[spawnID]
	out := make([]*schema.Order, 0, len(cids))
	for _, cid := range cids {
		if o := c.orders[cid]; o != nil {
			out = append(out, o)
		}
	}
	return out
}

// PositionID returns the position recorded for an order, zero if none.
func (c *Cache) PositionID(cid schema.ClientOrderID) schema.PositionID {
	return c.positions[cid]
}

// ClientID returns the execution client recorded for an order, zero if none.
func (c *Cache) ClientID(cid schema.ClientOrderID) schema.ClientID {
	return c.clients[cid]
}

// Instrument returns an instrument definition.
func (c *Cache) Instrument(iid schema.InstrumentID) (schema.Instrument, bool) {
	inst, ok := c.instruments[iid]
	return inst, ok
}

// Synthetic returns a synthetic instrument definition.
func (c *Cache) Synthetic(iid schema.InstrumentID) (schema.Synthetic, bool) {
	syn, ok := c.synthetics[iid]
	return syn, ok
}

// QuoteTick returns the latest quote for an instrument.
func (c *Cache) QuoteTick(iid schema.InstrumentID) (schema.QuoteTick, bool) {
	q, ok := c.quotes[iid]
	return q, ok
}

// TradeTick returns the latest trade for an instrument.
func (c *Cache) TradeTick(iid schema.InstrumentID) (schema.TradeTick, bool) {
	t, ok := c.trades[iid]
	return t, ok
}

// AddQuoteTick records the latest quote for an instrument.
func (c *Cache) AddQuoteTick(tick schema.QuoteTick) {
	c.quotes[tick.InstrumentID] = tick
}

// AddTradeTick records the latest trade for an instrument.
func (c *Cache) AddTradeTick(tick schema.TradeTick) {
	c.trades[tick.InstrumentID] = tick
}

// AddOrder registers an order with its routing identity. Without override
// a duplicate client order ID is rejected; with override the entry is
// replaced, which is how release swaps in the transformed order.
func (c *Cache) AddOrder(o *schema.Order, positionID schema.PositionID, clientID schema.ClientID, override bool) error {
	if _, ok := c.orders[o.ClientOrderID]; ok && !override {
		return ErrDuplicateOrder
	}
	c.orders[o.ClientOrderID] = o
	if positionID != 0 {
		c.positions[o.ClientOrderID] = positionID
	}
	if clientID != 0 {
		c.clients[o.ClientOrderID] = clientID
	}
	c.indexExecSpawn(o)
	c.persist(o)
	return nil
}

// UpdateOrder writes back a mutated order.
func (c *Cache) UpdateOrder(o *schema.Order) {
	if _, ok := c.orders[o.ClientOrderID]; !ok {
		logs.Errorf("cache: update for unknown order %d", o.ClientOrderID)
		return
	}
	c.orders[o.ClientOrderID] = o
	c.persist(o)
}

// SetPositionID records the position for an order under emulator control.
func (c *Cache) SetPositionID(cid schema.ClientOrderID, positionID schema.PositionID) {
	c.positions[cid] = positionID
	if o := c.orders[cid]; o != nil {
		c.persist(o)
	}
}

// Reset drops all orders and ticks, keeping instrument definitions.
func (c *Cache) Reset() {
	c.orders = make(map[schema.ClientOrderID]*schema.Order)
	c.positions = make(map[schema.ClientOrderID]schema.PositionID)
	c.clients = make(map[schema.ClientOrderID]schema.ClientID)
	c.execSpawns = make(map[schema.ClientOrderID][]schema.ClientOrderID)
	c.quotes = make(map[schema.InstrumentID]schema.QuoteTick)
	c.trades = make(map[schema.InstrumentID]schema.TradeTick)
}

func (c *Cache) indexExecSpawn(o *schema.Order) {
	if o.ExecSpawnID == 0 {
		return
	}
	for _, cid := range c.execSpawns[o.ExecSpawnID] {
		if cid == o.ClientOrderID {
			return
		}
	}
	c.execSpawns[o.ExecSpawnID] = append(c.execSpawns[o.ExecSpawnID], o.ClientOrderID)
}

func (c *Cache) persist(o *schema.Order) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveOrder(o, c.positions[o.ClientOrderID], c.clients[o.ClientOrderID]); err != nil {
		logs.Errorf("cache: persist order %d, err: %+v", o.ClientOrderID, err)
	}
}
