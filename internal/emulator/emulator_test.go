package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/exec"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
)

type stubFeed struct {
	quotes []schema.InstrumentID
	trades []schema.InstrumentID
}

func (s *stubFeed) SubscribeQuoteTicks(iid schema.InstrumentID) error {
	s.quotes = append(s.quotes, iid)
	return nil
}

func (s *stubFeed) SubscribeTradeTicks(iid schema.InstrumentID) error {
	s.trades = append(s.trades, iid)
	return nil
}

type harness struct {
	clock  *clock.Manual
	bus    *bus.Bus
	cache  *cache.Cache
	feed   *stubFeed
	exec   *exec.Engine
	emu    *Emulator
	events []schema.OrderEvent
}

const testInstrument schema.InstrumentID = 1

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	require.NoError(t, err)
	_, err = reg.AddInstrument("BTCUSDT", venueID, 2, 6, 1)
	require.NoError(t, err)

	h := &harness{
		clock: clock.NewManual(1_000),
		bus:   bus.New(),
		cache: cache.New(nil),
		feed:  &stubFeed{},
	}
	h.cache.LoadInstruments(reg)
	h.bus.Subscribe("events.order.*", func(msg any) {
		if evt, ok := msg.(schema.OrderEvent); ok {
			h.events = append(h.events, evt)
		}
	})
	risk.NewEngine(risk.Config{}, h.clock, h.bus, h.cache)
	h.exec = exec.NewEngine(h.clock, h.bus, h.cache)
	h.emu = New(h.clock, h.bus, h.cache, h.feed, obs.NewMetrics())
	return h
}

func (h *harness) submit(o *schema.Order) {
	h.emu.Execute(&schema.SubmitOrder{
		TraderID:   1,
		StrategyID: o.StrategyID,
		Order:      o,
		TsInit:     h.clock.TimestampNs(),
	})
}

func (h *harness) quote(bid, ask int64) {
	h.clock.Advance(1)
	h.emu.OnQuoteTick(schema.QuoteTick{
		InstrumentID: testInstrument,
		BidPrice:     model.Price(bid),
		AskPrice:     model.Price(ask),
		BidSize:      100,
		AskSize:      100,
		TsEvent:      h.clock.TimestampNs(),
	})
}

func (h *harness) trade(price int64) {
	h.clock.Advance(1)
	h.emu.OnTradeTick(schema.TradeTick{
		InstrumentID: testInstrument,
		Price:        model.Price(price),
		Size:         10,
		Aggressor:    schema.OrderSideBuy,
		TsEvent:      h.clock.TimestampNs(),
	})
}

func (h *harness) eventTypes() []string {
	out := make([]string, 0, len(h.events))
	for _, evt := range h.events {
		switch evt.(type) {
		case schema.OrderInitialized:
			out = append(out, "initialized")
		case schema.OrderEmulated:
			out = append(out, "emulated")
		case schema.OrderTriggered:
			out = append(out, "triggered")
		case schema.OrderReleased:
			out = append(out, "released")
		case schema.OrderUpdated:
			out = append(out, "updated")
		case schema.OrderAccepted:
			out = append(out, "accepted")
		case schema.OrderCanceled:
			out = append(out, "canceled")
		case schema.OrderExpired:
			out = append(out, "expired")
		case schema.OrderRejected:
			out = append(out, "rejected")
		case schema.OrderFilled:
			out = append(out, "filled")
		}
	}
	return out
}

func stopMarket(cid schema.ClientOrderID, side schema.OrderSide, trigger int64) *schema.Order {
	return &schema.Order{
		ClientOrderID:    cid,
		StrategyID:       1,
		InstrumentID:     testInstrument,
		Side:             side,
		Type:             schema.OrderTypeStopMarket,
		Quantity:         1_000_000,
		TriggerPrice:     model.Price(trigger),
		HasTriggerPrice:  true,
		EmulationTrigger: schema.TriggerBidAsk,
		Status:           schema.OrderStatusInitialized,
	}
}

func TestStopMarketReleaseOnTrigger(t *testing.T) {
	h := newHarness(t)

	o := stopMarket(1, schema.OrderSideBuy, 10500)
	h.submit(o)

	require.Equal(t, []string{"emulated"}, h.eventTypes())
	assert.Equal(t, schema.OrderStatusEmulated, h.cache.Order(1).Status)
	assert.Equal(t, []schema.InstrumentID{testInstrument}, h.feed.quotes)

	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	assert.True(t, core.OrderExists(1))

	h.quote(10000, 10001)
	require.Equal(t, []string{"emulated"}, h.eventTypes(), "below trigger must not release")

	h.quote(10499, 10500)
	assert.Equal(t, []string{"emulated", "initialized", "released", "accepted"}, h.eventTypes())

	released := h.cache.Order(1)
	assert.Equal(t, schema.OrderTypeMarket, released.Type)
	assert.Equal(t, schema.OrderStatusAccepted, released.Status)
	assert.Equal(t, schema.TriggerNone, released.EmulationTrigger)
	assert.False(t, core.OrderExists(1))
	_, held := h.emu.SubmitOrderCommand(1)
	assert.False(t, held, "command cache entry must be popped at release")
	assert.True(t, h.exec.Working(1))
}

func TestImmediatelyMarketableReleasesWithoutResting(t *testing.T) {
	h := newHarness(t)
	h.cache.AddQuoteTick(schema.QuoteTick{
		InstrumentID: testInstrument, BidPrice: 10499, AskPrice: 10500,
	})

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))

	assert.Equal(t, []string{"initialized", "released", "accepted"}, h.eventTypes(),
		"an immediately marketable order must never report emulated")
	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	assert.False(t, core.OrderExists(1))
	assert.Empty(t, h.feed.quotes, "released on submit, nothing to watch")
}

func TestReleasedPriceUsesOpposingTopOfBook(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))
	h.quote(10499, 10502)

	var released *schema.OrderReleased
	for _, evt := range h.events {
		if r, ok := evt.(schema.OrderReleased); ok {
			released = &r
		}
	}
	require.NotNil(t, released)
	assert.EqualValues(t, 10502, released.ReleasedPrice)
}

func TestLimitOrderWithLastTradeTrigger(t *testing.T) {
	h := newHarness(t)

	o := &schema.Order{
		ClientOrderID:    1,
		StrategyID:       1,
		InstrumentID:     testInstrument,
		Side:             schema.OrderSideBuy,
		Type:             schema.OrderTypeLimit,
		Quantity:         1_000_000,
		Price:            10000,
		HasPrice:         true,
		EmulationTrigger: schema.TriggerLastTrade,
		Status:           schema.OrderStatusInitialized,
	}
	h.submit(o)

	require.Equal(t, []string{"emulated"}, h.eventTypes())
	assert.Equal(t, []schema.InstrumentID{testInstrument}, h.feed.trades)
	assert.Empty(t, h.feed.quotes)

	h.trade(10200)
	require.Equal(t, []string{"emulated"}, h.eventTypes())

	h.trade(9990)
	assert.Equal(t, []string{"emulated", "initialized", "released", "accepted"}, h.eventTypes())

	// A plain LIMIT order whose condition was met releases marketable, so
	// it collapses to a MARKET order downstream.
	released := h.cache.Order(1)
	assert.Equal(t, schema.OrderTypeMarket, released.Type)
	assert.False(t, released.HasPrice)
}

func TestStopLimitTriggersThenRests(t *testing.T) {
	h := newHarness(t)

	o := &schema.Order{
		ClientOrderID:    1,
		StrategyID:       1,
		InstrumentID:     testInstrument,
		Side:             schema.OrderSideBuy,
		Type:             schema.OrderTypeStopLimit,
		Quantity:         1_000_000,
		Price:            10300,
		HasPrice:         true,
		TriggerPrice:     10500,
		HasTriggerPrice:  true,
		EmulationTrigger: schema.TriggerBidAsk,
		Status:           schema.OrderStatusInitialized,
	}
	h.submit(o)
	h.quote(10000, 10001)
	require.Equal(t, []string{"emulated"}, h.eventTypes())

	// Stop fires but the limit side is not marketable: the order keeps
	// resting, now at its limit price.
	h.quote(10499, 10500)
	require.Equal(t, []string{"emulated", "triggered"}, h.eventTypes())
	assert.True(t, o.IsTriggered)
	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	assert.True(t, core.OrderExists(1))

	h.quote(10299, 10300)
	assert.Equal(t, []string{"emulated", "triggered", "initialized", "released", "accepted"}, h.eventTypes())
	released := h.cache.Order(1)
	assert.Equal(t, schema.OrderTypeLimit, released.Type)
	assert.EqualValues(t, 10300, released.Price)
}

func TestTrailingStopRatchetsAndReleases(t *testing.T) {
	h := newHarness(t)
	h.cache.AddQuoteTick(schema.QuoteTick{
		InstrumentID: testInstrument, BidPrice: 10000, AskPrice: 10001,
	})

	o := &schema.Order{
		ClientOrderID:      1,
		StrategyID:         1,
		InstrumentID:       testInstrument,
		Side:               schema.OrderSideSell,
		Type:               schema.OrderTypeTrailingStopMarket,
		Quantity:           1_000_000,
		TrailingOffset:     50,
		TrailingOffsetType: schema.TrailingOffsetPrice,
		EmulationTrigger:   schema.TriggerBidAsk,
		Status:             schema.OrderStatusInitialized,
	}
	h.submit(o)

	require.Equal(t, []string{"emulated"}, h.eventTypes())
	assert.True(t, o.HasTriggerPrice)
	assert.EqualValues(t, 9950, o.TriggerPrice, "initial trigger trails the bid by the offset")

	// Market rallies: the trigger ratchets up behind it.
	h.quote(10100, 10101)
	assert.EqualValues(t, 10050, o.TriggerPrice)
	assert.Equal(t, []string{"emulated", "updated"}, h.eventTypes())

	// Market falls back to the ratcheted trigger: release.
	h.quote(10050, 10051)
	assert.Equal(t, []string{"emulated", "updated", "initialized", "released", "accepted"}, h.eventTypes())
	assert.Equal(t, schema.OrderTypeMarket, h.cache.Order(1).Type)
}

func TestTrailingStopWithoutMarketDataIsCanceled(t *testing.T) {
	h := newHarness(t)

	o := &schema.Order{
		ClientOrderID:      1,
		StrategyID:         1,
		InstrumentID:       testInstrument,
		Side:               schema.OrderSideSell,
		Type:               schema.OrderTypeTrailingStopMarket,
		Quantity:           1_000_000,
		TrailingOffset:     50,
		TrailingOffsetType: schema.TrailingOffsetPrice,
		EmulationTrigger:   schema.TriggerBidAsk,
		Status:             schema.OrderStatusInitialized,
	}
	h.submit(o)

	assert.Equal(t, []string{"canceled"}, h.eventTypes())
	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(1).Status)
}

func TestUnsupportedTriggerIsCanceled(t *testing.T) {
	h := newHarness(t)

	o := stopMarket(1, schema.OrderSideBuy, 10500)
	o.EmulationTrigger = schema.TriggerMarkPrice
	h.submit(o)

	assert.Equal(t, []string{"canceled"}, h.eventTypes())
	var canceled schema.OrderCanceled
	for _, evt := range h.events {
		if c, ok := evt.(schema.OrderCanceled); ok {
			canceled = c
		}
	}
	assert.Equal(t, "unsupported emulation trigger", canceled.Reason)
}

func TestUnknownTriggerInstrumentIsCanceled(t *testing.T) {
	h := newHarness(t)

	o := stopMarket(1, schema.OrderSideBuy, 10500)
	o.TriggerInstrumentID = 999
	h.submit(o)

	assert.Equal(t, []string{"canceled"}, h.eventTypes())
	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(1).Status)
}

func TestUntaggedOrderPassesThrough(t *testing.T) {
	h := newHarness(t)

	o := &schema.Order{
		ClientOrderID: 1,
		StrategyID:    1,
		InstrumentID:  testInstrument,
		Side:          schema.OrderSideBuy,
		Type:          schema.OrderTypeMarket,
		Quantity:      1_000_000,
		Status:        schema.OrderStatusInitialized,
	}
	h.submit(o)

	// Straight through risk to the execution engine, never emulated.
	assert.Equal(t, schema.OrderStatusAccepted, h.cache.Order(1).Status)
	assert.True(t, h.exec.Working(1))
	_, ok := h.emu.MatchingCore(testInstrument)
	assert.False(t, ok)
}

func TestModifyOrderRematches(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))
	h.quote(10000, 10001)
	require.Equal(t, []string{"emulated"}, h.eventTypes())

	h.emu.Execute(&schema.ModifyOrder{
		StrategyID:      1,
		InstrumentID:    testInstrument,
		ClientOrderID:   1,
		TriggerPrice:    10001,
		HasTriggerPrice: true,
		TsInit:          h.clock.TimestampNs(),
	})

	assert.Equal(t, []string{"emulated", "updated", "initialized", "released", "accepted"}, h.eventTypes(),
		"a modify that makes the trigger marketable must release in the same pass")
}

func TestModifyQuantity(t *testing.T) {
	h := newHarness(t)

	o := stopMarket(1, schema.OrderSideBuy, 10500)
	h.submit(o)

	h.emu.Execute(&schema.ModifyOrder{
		StrategyID:    1,
		InstrumentID:  testInstrument,
		ClientOrderID: 1,
		Quantity:      500_000,
		HasQuantity:   true,
		TsInit:        h.clock.TimestampNs(),
	})

	assert.EqualValues(t, 500_000, h.cache.Order(1).Quantity)
	var updated schema.OrderUpdated
	for _, evt := range h.events {
		if u, ok := evt.(schema.OrderUpdated); ok {
			updated = u
		}
	}
	assert.True(t, updated.HasQuantity)
	assert.True(t, updated.HasTriggerPrice, "existing trigger price is echoed on updates")
	assert.EqualValues(t, 10500, updated.TriggerPrice)
}

func TestModifyTriggerResortsSideList(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10100))
	h.submit(stopMarket(2, schema.OrderSideBuy, 10200))
	h.submit(stopMarket(3, schema.OrderSideBuy, 10300))

	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	restingIDs := func() []schema.ClientOrderID {
		var out []schema.ClientOrderID
		for _, o := range core.BidOrders() {
			out = append(out, o.ClientOrderID)
		}
		return out
	}
	require.Equal(t, []schema.ClientOrderID{3, 2, 1}, restingIDs())

	// Moving the middle trigger above the top must re-sort the side list.
	h.emu.Execute(&schema.ModifyOrder{
		StrategyID:      1,
		InstrumentID:    testInstrument,
		ClientOrderID:   2,
		TriggerPrice:    10400,
		HasTriggerPrice: true,
		TsInit:          h.clock.TimestampNs(),
	})

	assert.Equal(t, []schema.ClientOrderID{2, 3, 1}, restingIDs())
	assert.Equal(t, schema.OrderStatusEmulated, h.cache.Order(2).Status,
		"no market data yet, nothing releases")
}

func TestCancelEmulatedOrder(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))
	h.emu.Execute(&schema.CancelOrder{
		StrategyID:    1,
		InstrumentID:  testInstrument,
		ClientOrderID: 1,
		TsInit:        h.clock.TimestampNs(),
	})

	assert.Equal(t, []string{"emulated", "canceled"}, h.eventTypes())
	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(1).Status)
	core, _ := h.emu.MatchingCore(testInstrument)
	assert.False(t, core.OrderExists(1))
	_, held := h.emu.SubmitOrderCommand(1)
	assert.False(t, held)
}

func TestCancelAllOrdersBySide(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))
	h.submit(stopMarket(2, schema.OrderSideBuy, 10600))
	h.submit(stopMarket(3, schema.OrderSideSell, 9500))

	h.emu.Execute(&schema.CancelAllOrders{
		StrategyID:   1,
		InstrumentID: testInstrument,
		Side:         schema.OrderSideBuy,
		TsInit:       h.clock.TimestampNs(),
	})

	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(1).Status)
	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(2).Status)
	assert.Equal(t, schema.OrderStatusEmulated, h.cache.Order(3).Status)

	h.emu.Execute(&schema.CancelAllOrders{
		StrategyID:   1,
		InstrumentID: testInstrument,
		TsInit:       h.clock.TimestampNs(),
	})
	assert.Equal(t, schema.OrderStatusCanceled, h.cache.Order(3).Status)
}

func TestGTDOrderExpires(t *testing.T) {
	h := newHarness(t)

	o := stopMarket(1, schema.OrderSideBuy, 10500)
	o.TimeInForce = schema.TimeInForceGTD
	o.ExpireNs = h.clock.TimestampNs() + 100
	h.submit(o)
	require.Equal(t, []string{"emulated"}, h.eventTypes())

	h.clock.Advance(200)
	h.quote(10000, 10001)

	assert.Equal(t, []string{"emulated", "expired"}, h.eventTypes())
	assert.Equal(t, schema.OrderStatusExpired, h.cache.Order(1).Status)
	core, _ := h.emu.MatchingCore(testInstrument)
	assert.False(t, core.OrderExists(1))
}

func TestStartReactivatesEmulatedOrders(t *testing.T) {
	h := newHarness(t)

	resting := stopMarket(1, schema.OrderSideBuy, 10500)
	resting.Status = schema.OrderStatusEmulated
	require.NoError(t, h.cache.AddOrder(resting, 0, 0, false))

	closed := stopMarket(2, schema.OrderSideSell, 9000)
	closed.Status = schema.OrderStatusCanceled
	require.NoError(t, h.cache.AddOrder(closed, 0, 0, false))

	h.emu.Start()

	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	assert.True(t, core.OrderExists(1))
	assert.False(t, core.OrderExists(2))
	_, held := h.emu.SubmitOrderCommand(1)
	assert.True(t, held)

	// The reactivated order still releases normally.
	h.quote(10499, 10500)
	assert.Equal(t, schema.OrderStatusAccepted, h.cache.Order(1).Status)
}

func TestReset(t *testing.T) {
	h := newHarness(t)

	h.submit(stopMarket(1, schema.OrderSideBuy, 10500))
	h.emu.Reset()

	_, ok := h.emu.MatchingCore(testInstrument)
	assert.False(t, ok)
	_, held := h.emu.SubmitOrderCommand(1)
	assert.False(t, held)

	// Strategy topics are unsubscribed: a fill event no longer reaches the
	// contingency handler, and resubmission works from a clean slate.
	h.submit(stopMarket(3, schema.OrderSideBuy, 10500))
	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	assert.True(t, core.OrderExists(3))
}

func TestTradeTickSeedsQuotesWhenUnquoted(t *testing.T) {
	h := newHarness(t)

	// Only trades are subscribed for this instrument: the last price seeds
	// bid/ask so bid/ask-mode classification is not starved.
	o := stopMarket(1, schema.OrderSideBuy, 10500)
	o.EmulationTrigger = schema.TriggerLastTrade
	h.submit(o)
	require.Equal(t, []string{"emulated"}, h.eventTypes())

	h.trade(10000)
	core, ok := h.emu.MatchingCore(testInstrument)
	require.True(t, ok)
	bid, bidOk := core.BidRaw()
	ask, askOk := core.AskRaw()
	require.True(t, bidOk)
	require.True(t, askOk)
	assert.EqualValues(t, 10000, bid)
	assert.EqualValues(t, 10000, ask)

	h.trade(10500)
	assert.Equal(t, []string{"emulated", "initialized", "released", "accepted"}, h.eventTypes())
}

func TestQuoteTickForUnknownInstrumentIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.emu.OnQuoteTick(schema.QuoteTick{InstrumentID: 42, BidPrice: 1, AskPrice: 2})
	assert.Empty(t, h.events)
}
