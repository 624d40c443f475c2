package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/schema"
)

type riskHarness struct {
	clock    *clock.Manual
	bus      *bus.Bus
	cache    *cache.Cache
	engine   *Engine
	forwards []*schema.SubmitOrder
	rejects  []schema.OrderRejected
}

func newRiskHarness(t *testing.T, cfg Config) *riskHarness {
	t.Helper()
	h := &riskHarness{
		clock: clock.NewManual(1_000),
		bus:   bus.New(),
		cache: cache.New(nil),
	}
	h.bus.Register(endpointExecEngine, func(msg any) {
		if cmd, ok := msg.(*schema.SubmitOrder); ok {
			h.forwards = append(h.forwards, cmd)
		}
	})
	h.bus.Subscribe("events.order.*", func(msg any) {
		if evt, ok := msg.(schema.OrderRejected); ok {
			h.rejects = append(h.rejects, evt)
		}
	})
	h.engine = NewEngine(cfg, h.clock, h.bus, h.cache)
	return h
}

func (h *riskHarness) submit(o *schema.Order) {
	if h.cache.Order(o.ClientOrderID) == nil {
		_ = h.cache.AddOrder(o, 0, 0, false)
	}
	h.engine.Execute(&schema.SubmitOrder{StrategyID: o.StrategyID, Order: o})
}

func limitOrder(cid schema.ClientOrderID) *schema.Order {
	return &schema.Order{
		ClientOrderID: cid,
		StrategyID:    1,
		InstrumentID:  1,
		Side:          schema.OrderSideBuy,
		Type:          schema.OrderTypeLimit,
		Quantity:      1,
		Price:         1,
		HasPrice:      true,
		Status:        schema.OrderStatusInitialized,
	}
}

func TestPassThrough(t *testing.T) {
	h := newRiskHarness(t, Config{})

	o := limitOrder(1)
	h.submit(o)

	require.Len(t, h.forwards, 1)
	assert.Empty(t, h.rejects)
}

func TestKillSwitch(t *testing.T) {
	h := newRiskHarness(t, Config{KillSwitch: true})

	o := limitOrder(1)
	h.submit(o)

	assert.Empty(t, h.forwards)
	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonKillSwitch), h.rejects[0].Reason)
	assert.Equal(t, schema.OrderStatusRejected, h.cache.Order(1).Status)
}

func TestMaxOrderQty(t *testing.T) {
	h := newRiskHarness(t, Config{MaxOrderQty: 100})

	within := limitOrder(1)
	within.Quantity = 100
	h.submit(within)
	require.Len(t, h.forwards, 1)

	over := limitOrder(2)
	over.Quantity = 101
	h.submit(over)
	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonMaxQty), h.rejects[0].Reason)
}

func TestMaxOrderNotional(t *testing.T) {
	h := newRiskHarness(t, Config{MaxOrderNotional: 1_000})

	over := limitOrder(1)
	over.Price = 100
	over.Quantity = 11
	h.submit(over)
	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonMaxNotional), h.rejects[0].Reason)

	// Orders without a price carry no notional to check.
	market := limitOrder(2)
	market.Type = schema.OrderTypeMarket
	market.HasPrice = false
	market.Quantity = 1_000_000
	h.submit(market)
	assert.Len(t, h.forwards, 1)
}

func TestNotionalOverflow(t *testing.T) {
	h := newRiskHarness(t, Config{})

	o := limitOrder(1)
	o.Price = 1 << 40
	o.Quantity = 1 << 40
	h.submit(o)

	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonMaxNotional), h.rejects[0].Reason)
}

func TestOrderRateLimit(t *testing.T) {
	h := newRiskHarness(t, Config{OrderRateLimit: 2, OrderRateWindow: time.Second})

	h.submit(limitOrder(1))
	h.submit(limitOrder(2))
	require.Len(t, h.forwards, 2)

	h.submit(limitOrder(3))
	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonRateLimit), h.rejects[0].Reason)

	// A fresh window admits orders again.
	h.clock.Advance(time.Second)
	h.submit(limitOrder(4))
	assert.Len(t, h.forwards, 3)
}

func TestPriceBand(t *testing.T) {
	h := newRiskHarness(t, Config{MaxPriceDeviationBps: 100})
	h.cache.AddQuoteTick(schema.QuoteTick{InstrumentID: 1, BidPrice: 9_999, AskPrice: 10_001})

	// Mid is 10000; a 1% band allows [9900, 10100].
	inside := limitOrder(1)
	inside.Price = 10_100
	h.submit(inside)
	require.Len(t, h.forwards, 1)

	outside := limitOrder(2)
	outside.Price = 10_101
	h.submit(outside)
	require.Len(t, h.rejects, 1)
	assert.Equal(t, string(ReasonPriceBand), h.rejects[0].Reason)
}

func TestPriceBandWithoutQuoteIsSkipped(t *testing.T) {
	h := newRiskHarness(t, Config{MaxPriceDeviationBps: 100})

	o := limitOrder(1)
	o.Price = 1_000_000
	h.submit(o)
	assert.Len(t, h.forwards, 1)
}
