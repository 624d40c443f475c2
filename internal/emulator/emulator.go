// Package emulator implements the order emulator: it holds orders whose
// trigger conditions are simulated against live market data and releases
// them as plain orders to the downstream risk/execution pipeline when the
// conditions fire.
//
// All command execution, tick handling and event handling are serialized by
// the hosting bus queue; the emulator performs no internal parallelism and
// takes no locks. No call suspends; each runs to completion.
package emulator

import (
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/matching"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
)

// MarketDataClient is the market-data collaborator. Subscribed ticks are
// pushed back through OnQuoteTick / OnTradeTick.
type MarketDataClient interface {
	SubscribeQuoteTicks(iid schema.InstrumentID) error
	SubscribeTradeTicks(iid schema.InstrumentID) error
}

// Emulator is the top-level component: command intake, market-data intake,
// lifecycle transitions, event emission and downstream routing.
type Emulator struct {
	clock   clock.Clock
	bus     *bus.Bus
	cache   *cache.Cache
	md      MarketDataClient
	metrics *obs.Metrics
	out     egress

	cores    map[schema.InstrumentID]*matching.Core
	commands map[schema.ClientOrderID]*schema.SubmitOrder

	subscribedQuotes     map[schema.InstrumentID]struct{}
	subscribedTrades     map[schema.InstrumentID]struct{}
	subscribedStrategies map[schema.StrategyID]struct{}
	monitoredPositions   map[schema.PositionID]struct{}
}

// New wires an emulator onto the bus, registering its execute endpoint.
func New(clk clock.Clock, b *bus.Bus, c *cache.Cache, md MarketDataClient, metrics *obs.Metrics) *Emulator {
	e := &Emulator{
		clock:                clk,
		bus:                  b,
		cache:                c,
		md:                   md,
		metrics:              metrics,
		out:                  egress{bus: b},
		cores:                make(map[schema.InstrumentID]*matching.Core),
		commands:             make(map[schema.ClientOrderID]*schema.SubmitOrder),
		subscribedQuotes:     make(map[schema.InstrumentID]struct{}),
		subscribedTrades:     make(map[schema.InstrumentID]struct{}),
		subscribedStrategies: make(map[schema.StrategyID]struct{}),
		monitoredPositions:   make(map[schema.PositionID]struct{}),
	}
	b.Register(EndpointExecute, e.onCommand)
	b.Register(EndpointQuoteTick, e.onQuoteTickMsg)
	b.Register(EndpointTradeTick, e.onTradeTickMsg)
	return e
}

func (e *Emulator) onQuoteTickMsg(msg any) {
	tick, ok := msg.(schema.QuoteTick)
	if !ok {
		logs.Errorf("emulator: quote tick endpoint received %T", msg)
		return
	}
	e.OnQuoteTick(tick)
}

func (e *Emulator) onTradeTickMsg(msg any) {
	tick, ok := msg.(schema.TradeTick)
	if !ok {
		logs.Errorf("emulator: trade tick endpoint received %T", msg)
		return
	}
	e.OnTradeTick(tick)
}

// Start reactivates emulated orders found in the cache. The emulator keeps
// no state of its own across restarts: the working set is rebuilt entirely
// from the cache.
func (e *Emulator) Start() {
	reactivated := 0
	for _, o := range e.cache.OrdersEmulated() {
		if o.IsClosed() {
			continue
		}
		cmd := &schema.SubmitOrder{
			TraderID:   o.TraderID,
			StrategyID: o.StrategyID,
			PositionID: e.cache.PositionID(o.ClientOrderID),
			ClientID:   e.cache.ClientID(o.ClientOrderID),
			Order:      o,
			TsInit:     e.clock.TimestampNs(),
		}
		e.Execute(cmd)
		reactivated++
	}
	if reactivated > 0 {
		logs.Infof("emulator: reactivated %d orders from cache", reactivated)
	}
}

// Reset clears all matching cores, the command cache, subscriptions and
// counters, returning the emulator to its initial state.
func (e *Emulator) Reset() {
	for sid := range e.subscribedStrategies {
		e.bus.Unsubscribe(TopicOrderEvents(sid))
		e.bus.Unsubscribe(TopicPositionEvents(sid))
	}
	e.cores = make(map[schema.InstrumentID]*matching.Core)
	e.commands = make(map[schema.ClientOrderID]*schema.SubmitOrder)
	e.subscribedQuotes = make(map[schema.InstrumentID]struct{})
	e.subscribedTrades = make(map[schema.InstrumentID]struct{})
	e.subscribedStrategies = make(map[schema.StrategyID]struct{})
	e.monitoredPositions = make(map[schema.PositionID]struct{})
	e.metrics.Reset()
}

// MatchingCore returns the core for an instrument, if one exists.
func (e *Emulator) MatchingCore(iid schema.InstrumentID) (*matching.Core, bool) {
	core, ok := e.cores[iid]
	return core, ok
}

// SubmitOrderCommand returns the cached submit command for an order.
func (e *Emulator) SubmitOrderCommand(cid schema.ClientOrderID) (*schema.SubmitOrder, bool) {
	cmd, ok := e.commands[cid]
	return cmd, ok
}

func (e *Emulator) onCommand(msg any) {
	cmd, ok := msg.(schema.TradingCommand)
	if !ok {
		logs.Errorf("emulator: execute received non-command %T", msg)
		return
	}
	e.Execute(cmd)
}

// Execute classifies and handles one trading command.
func (e *Emulator) Execute(cmd schema.TradingCommand) {
	start := time.Now()
	e.metrics.Inc(obs.CounterCommands)

	switch c := cmd.(type) {
	case *schema.SubmitOrder:
		e.handleSubmitOrder(c)
	case *schema.SubmitOrderList:
		e.handleSubmitOrderList(c)
	case *schema.ModifyOrder:
		e.handleModifyOrder(c)
	case *schema.CancelOrder:
		e.handleCancelOrder(c)
	case *schema.CancelAllOrders:
		e.handleCancelAllOrders(c)
	default:
		panic(fmt.Sprintf("emulator: unhandled trading command %T", cmd))
	}

	e.metrics.ObserveExecute(time.Since(start))
}

func (e *Emulator) handleSubmitOrder(cmd *schema.SubmitOrder) {
	o := cmd.Order
	if o == nil {
		logs.Errorf("emulator: submit order command without order")
		return
	}
	if o.IsClosed() {
		logs.Errorf("emulator: cannot emulate order %d, already closed", o.ClientOrderID)
		return
	}

	// Untagged submissions pass straight through to the risk engine.
	if o.EmulationTrigger == schema.TriggerNone {
		e.out.submitToRisk(cmd)
		return
	}

	e.ensureOrderCached(o, cmd.PositionID, cmd.ClientID)

	if !o.EmulationTrigger.IsSupportedTrigger() {
		logs.Errorf("emulator: cannot emulate order %d, unsupported trigger %d",
			o.ClientOrderID, o.EmulationTrigger)
		e.cancelOrderLocal(o, "unsupported emulation trigger")
		return
	}

	e.ensureStrategySubscribed(cmd.StrategyID)
	if cmd.PositionID != 0 {
		e.monitoredPositions[cmd.PositionID] = struct{}{}
	}

	triggerInstrument := o.TriggerInstrument()
	core, ok := e.cores[triggerInstrument]
	if !ok {
		increment, found := e.priceIncrementFor(triggerInstrument)
		if !found {
			logs.Errorf("emulator: cannot emulate order %d, no instrument or synthetic %d",
				o.ClientOrderID, triggerInstrument)
			e.cancelOrderLocal(o, "unknown trigger instrument")
			return
		}
		core = e.createMatchingCore(triggerInstrument, increment)
	}

	if o.Type.IsTrailing() {
		if !e.initTrailingStop(o, core) {
			return
		}
	}

	e.commands[o.ClientOrderID] = cmd

	core.MatchOrder(o, true)

	// The initial match can release synchronously, popping the command
	// entry before this path resumes. Emulation bookkeeping must not run
	// for an order that is already gone.
	if _, held := e.commands[o.ClientOrderID]; !held {
		return
	}

	e.subscribeFeed(o.EmulationTrigger, triggerInstrument)

	now := e.clock.TimestampNs()
	o.Status = schema.OrderStatusEmulated
	o.TsLast = now
	e.cache.UpdateOrder(o)

	evt := schema.OrderEmulated{EventBase: e.eventBase(o, now)}
	e.out.publishOrderEvent(evt)
	e.out.notifyRisk(evt)

	if err := core.AddOrder(o); err != nil {
		logs.Errorf("emulator: add order %d to core %d, err: %+v",
			o.ClientOrderID, triggerInstrument, err)
		return
	}
	e.metrics.Inc(obs.CounterOrdersEmulated)
	logs.Infof("emulator: emulated order %d on instrument %d", o.ClientOrderID, triggerInstrument)
}

func (e *Emulator) handleSubmitOrderList(cmd *schema.SubmitOrderList) {
	byID := make(map[schema.ClientOrderID]*schema.Order, len(cmd.Orders))
	for _, o := range cmd.Orders {
		byID[o.ClientOrderID] = o
		e.ensureOrderCached(o, cmd.PositionID, cmd.ClientID)
	}

	for _, o := range cmd.Orders {
		if o.ParentOrderID != 0 {
			parent := byID[o.ParentOrderID]
			if parent == nil {
				parent = e.cache.Order(o.ParentOrderID)
			}
			if parent == nil {
				logs.Errorf("emulator: order %d references missing parent %d",
					o.ClientOrderID, o.ParentOrderID)
				continue
			}
			// OTO children stay dormant until the primary fills.
			if parent.ContingencyType == schema.ContingencyOTO {
				continue
			}
		}
		e.armOrder(o, cmd.TraderID, cmd.StrategyID, cmd.PositionID, cmd.ClientID)
	}
}

// armOrder routes one order through the single-order path: emulated when
// trigger-tagged, otherwise forwarded to its exec algorithm or the risk
// engine.
func (e *Emulator) armOrder(o *schema.Order, traderID schema.TraderID, strategyID schema.StrategyID, positionID schema.PositionID, clientID schema.ClientID) {
	sub := &schema.SubmitOrder{
		TraderID:   traderID,
		StrategyID: strategyID,
		PositionID: positionID,
		ClientID:   clientID,
		Order:      o,
		TsInit:     e.clock.TimestampNs(),
	}
	switch {
	case o.EmulationTrigger != schema.TriggerNone:
		e.handleSubmitOrder(sub)
	case o.ExecAlgorithmID != 0:
		e.out.submitToAlgorithm(o.ExecAlgorithmID, sub)
	default:
		e.out.submitToRisk(sub)
	}
}

func (e *Emulator) handleModifyOrder(cmd *schema.ModifyOrder) {
	o := e.cache.Order(cmd.ClientOrderID)
	if o == nil {
		logs.Errorf("emulator: cannot modify order %d, not found", cmd.ClientOrderID)
		return
	}

	now := e.clock.TimestampNs()
	evt := schema.OrderUpdated{EventBase: e.eventBase(o, now)}
	if cmd.HasQuantity {
		evt.Quantity, evt.HasQuantity = cmd.Quantity, true
		o.Quantity = cmd.Quantity
	}
	if cmd.HasPrice || o.HasPrice {
		evt.Price, evt.HasPrice = o.Price, true
		if cmd.HasPrice {
			evt.Price = cmd.Price
			o.Price, o.HasPrice = cmd.Price, true
		}
	}
	if cmd.HasTriggerPrice || o.HasTriggerPrice {
		evt.TriggerPrice, evt.HasTriggerPrice = o.TriggerPrice, true
		if cmd.HasTriggerPrice {
			evt.TriggerPrice = cmd.TriggerPrice
			o.TriggerPrice, o.HasTriggerPrice = cmd.TriggerPrice, true
		}
	}
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.out.publishOrderEvent(evt)

	core, ok := e.cores[o.TriggerInstrument()]
	if !ok {
		return
	}
	core.MatchOrder(o, false)
	if core.OrderExists(o.ClientOrderID) {
		switch o.Side {
		case schema.OrderSideBuy:
			core.SortBidOrders()
		case schema.OrderSideSell:
			core.SortAskOrders()
		}
	}
}

func (e *Emulator) handleCancelOrder(cmd *schema.CancelOrder) {
	o := e.cache.Order(cmd.ClientOrderID)
	if o == nil {
		logs.Errorf("emulator: cannot cancel order %d, not found", cmd.ClientOrderID)
		return
	}

	core, ok := e.cores[o.TriggerInstrument()]
	if !ok || !core.OrderExists(o.ClientOrderID) {
		// Already released; let downstream own the cancel.
		if o.IsOpen() && o.Status != schema.OrderStatusPendingCancel {
			e.out.cancelToExec(cmd)
		}
		return
	}
	e.cancelOrderLocal(o, "")
}

func (e *Emulator) handleCancelAllOrders(cmd *schema.CancelAllOrders) {
	core, ok := e.cores[cmd.InstrumentID]
	if !ok {
		return
	}
	var targets []*schema.Order
	switch cmd.Side {
	case schema.OrderSideBuy:
		targets = append(targets, core.BidOrders()...)
	case schema.OrderSideSell:
		targets = append(targets, core.AskOrders()...)
	default:
		targets = core.Orders()
	}
	for _, o := range targets {
		e.cancelOrderLocal(o, "")
	}
}

// OnQuoteTick updates the core's bid/ask state and scans for triggers.
func (e *Emulator) OnQuoteTick(tick schema.QuoteTick) {
	e.metrics.Inc(obs.CounterQuoteTicks)
	e.cache.AddQuoteTick(tick)

	core, ok := e.cores[tick.InstrumentID]
	if !ok {
		return
	}
	core.SetBidRaw(tick.BidPrice)
	core.SetAskRaw(tick.AskPrice)
	e.iterate(core)
}

// OnTradeTick updates the core's last-trade state and scans for triggers.
// When only trade prices are known for the instrument, bid and ask are
// seeded from last so bid/ask-mode orders are not starved.
func (e *Emulator) OnTradeTick(tick schema.TradeTick) {
	e.metrics.Inc(obs.CounterTradeTicks)
	e.cache.AddTradeTick(tick)

	core, ok := e.cores[tick.InstrumentID]
	if !ok {
		return
	}
	core.SetLastRaw(tick.Price)
	if _, quoted := e.subscribedQuotes[tick.InstrumentID]; !quoted {
		core.SetBidRaw(tick.Price)
		core.SetAskRaw(tick.Price)
	}
	e.iterate(core)
}

// iterate fires matured triggers and re-evaluates trailing stops.
// TODO: index trailing-stop orders separately so the trailing pass stops
// scanning every resting order per tick.
func (e *Emulator) iterate(core *matching.Core) {
	start := time.Now()
	core.Iterate(e.clock.TimestampNs())
	for _, o := range core.Orders() {
		if o.Type.IsTrailing() && core.OrderExists(o.ClientOrderID) {
			e.updateTrailingStop(o, core)
		}
	}
	e.metrics.ObserveIterate(time.Since(start))
}

func (e *Emulator) initTrailingStop(o *schema.Order, core *matching.Core) bool {
	update, err := matching.CalculateTrailingStop(core.PriceIncrement(), o, marketView(core))
	if err != nil {
		if !o.HasTriggerPrice {
			logs.Errorf("emulator: cannot emulate trailing order %d, no trigger price and no market data",
				o.ClientOrderID)
			e.cancelOrderLocal(o, "no market data for trailing stop")
			return false
		}
		logs.Warnf("emulator: trailing calculation for order %d, err: %+v", o.ClientOrderID, err)
		return true
	}
	if update.HasTriggerPrice {
		o.TriggerPrice, o.HasTriggerPrice = update.TriggerPrice, true
	}
	if update.HasPrice {
		o.Price, o.HasPrice = update.Price, true
	}
	return true
}

func (e *Emulator) updateTrailingStop(o *schema.Order, core *matching.Core) {
	update, err := matching.CalculateTrailingStop(core.PriceIncrement(), o, marketView(core))
	if err != nil {
		logs.Warnf("emulator: trailing calculation for order %d, err: %+v", o.ClientOrderID, err)
		return
	}
	if !update.HasTriggerPrice && !update.HasPrice {
		return
	}

	now := e.clock.TimestampNs()
	evt := schema.OrderUpdated{EventBase: e.eventBase(o, now)}
	if update.HasTriggerPrice {
		o.TriggerPrice, o.HasTriggerPrice = update.TriggerPrice, true
		evt.TriggerPrice, evt.HasTriggerPrice = update.TriggerPrice, true
	}
	if update.HasPrice {
		o.Price, o.HasPrice = update.Price, true
		evt.Price, evt.HasPrice = update.Price, true
	}
	o.TsLast = now
	e.cache.UpdateOrder(o)
	e.out.publishOrderEvent(evt)

	switch o.Side {
	case schema.OrderSideBuy:
		core.SortBidOrders()
	case schema.OrderSideSell:
		core.SortAskOrders()
	}
}

func (e *Emulator) createMatchingCore(iid schema.InstrumentID, increment model.Price) *matching.Core {
	if _, ok := e.cores[iid]; ok {
		panic(fmt.Sprintf("emulator: duplicate matching core for instrument %d", iid))
	}
	core := matching.NewCore(iid, increment, e)
	core.SetExpiryHandler(e)
	e.seedCorePrices(core, iid)
	e.cores[iid] = core
	return core
}

// seedCorePrices initializes a new core from the latest cached ticks so a
// freshly created core does not wait a full tick to classify orders.
func (e *Emulator) seedCorePrices(core *matching.Core, iid schema.InstrumentID) {
	if q, ok := e.cache.QuoteTick(iid); ok {
		core.SetBidRaw(q.BidPrice)
		core.SetAskRaw(q.AskPrice)
	}
	if t, ok := e.cache.TradeTick(iid); ok {
		core.SetLastRaw(t.Price)
		if _, hasQuote := e.cache.QuoteTick(iid); !hasQuote {
			core.SetBidRaw(t.Price)
			core.SetAskRaw(t.Price)
		}
	}
}

func (e *Emulator) priceIncrementFor(iid schema.InstrumentID) (model.Price, bool) {
	if syn, ok := e.cache.Synthetic(iid); ok {
		return syn.PriceIncrement, true
	}
	if inst, ok := e.cache.Instrument(iid); ok {
		return inst.PriceIncrement, true
	}
	return 0, false
}

func (e *Emulator) subscribeFeed(trigger schema.TriggerType, iid schema.InstrumentID) {
	switch trigger {
	case schema.TriggerLastTrade:
		if _, ok := e.subscribedTrades[iid]; ok {
			return
		}
		e.subscribedTrades[iid] = struct{}{}
		if e.md != nil {
			if err := e.md.SubscribeTradeTicks(iid); err != nil {
				logs.Errorf("emulator: subscribe trade ticks for %d, err: %+v", iid, err)
			}
		}
	default:
		if _, ok := e.subscribedQuotes[iid]; ok {
			return
		}
		e.subscribedQuotes[iid] = struct{}{}
		if e.md != nil {
			if err := e.md.SubscribeQuoteTicks(iid); err != nil {
				logs.Errorf("emulator: subscribe quote ticks for %d, err: %+v", iid, err)
			}
		}
	}
}

func (e *Emulator) ensureStrategySubscribed(sid schema.StrategyID) {
	if _, ok := e.subscribedStrategies[sid]; ok {
		return
	}
	e.subscribedStrategies[sid] = struct{}{}
	e.bus.Subscribe(TopicOrderEvents(sid), e.onOrderEvent)
	e.bus.Subscribe(TopicPositionEvents(sid), e.onPositionEvent)
}

func (e *Emulator) ensureOrderCached(o *schema.Order, positionID schema.PositionID, clientID schema.ClientID) {
	if e.cache.Order(o.ClientOrderID) != nil {
		return
	}
	if err := e.cache.AddOrder(o, positionID, clientID, false); err != nil {
		logs.Errorf("emulator: cache order %d, err: %+v", o.ClientOrderID, err)
	}
}

func (e *Emulator) eventBase(o *schema.Order, ts int64) schema.EventBase {
	return schema.EventBase{
		ClientOrderID: o.ClientOrderID,
		StrategyID:    o.StrategyID,
		InstrumentID:  o.InstrumentID,
		TsEvent:       ts,
	}
}

func marketView(core *matching.Core) matching.MarketView {
	var view matching.MarketView
	view.Bid, view.HasBid = core.BidRaw()
	view.Ask, view.HasAsk = core.AskRaw()
	view.Last, view.HasLast = core.LastRaw()
	return view
}
