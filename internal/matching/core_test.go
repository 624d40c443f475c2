package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/schema"
)

type sinkRecorder struct {
	triggered []schema.ClientOrderID
	markets   []schema.ClientOrderID
	limits    []schema.ClientOrderID
	expired   []schema.ClientOrderID
}

func (s *sinkRecorder) TriggerStopOrder(o *schema.Order) {
	s.triggered = append(s.triggered, o.ClientOrderID)
}

func (s *sinkRecorder) FillMarketOrder(o *schema.Order) {
	s.markets = append(s.markets, o.ClientOrderID)
}

func (s *sinkRecorder) FillLimitOrder(o *schema.Order) {
	s.limits = append(s.limits, o.ClientOrderID)
}

func (s *sinkRecorder) ExpireOrder(o *schema.Order) {
	s.expired = append(s.expired, o.ClientOrderID)
}

func (s *sinkRecorder) reset() {
	s.triggered, s.markets, s.limits, s.expired = nil, nil, nil, nil
}

func newTestCore(sink *sinkRecorder) *Core {
	core := NewCore(1, 1, sink)
	core.SetExpiryHandler(sink)
	return core
}

func TestMatchOrderDispatch(t *testing.T) {
	testCases := []struct {
		desc      string
		order     schema.Order
		bid, ask  int64
		last      int64
		triggered bool
		market    bool
		limit     bool
	}{
		{
			desc:   "market order always fills",
			order:  schema.Order{ClientOrderID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeMarket},
			bid:    100, ask: 101,
			limit:  true,
		},
		{
			desc: "buy limit marketable when ask at or below price",
			order: schema.Order{
				ClientOrderID: 2, Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit,
				Price: 101, HasPrice: true,
			},
			bid: 100, ask: 101,
			limit: true,
		},
		{
			desc: "buy limit rests when ask above price",
			order: schema.Order{
				ClientOrderID: 3, Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit,
				Price: 100, HasPrice: true,
			},
			bid: 100, ask: 101,
		},
		{
			desc: "sell limit marketable when bid at or above price",
			order: schema.Order{
				ClientOrderID: 4, Side: schema.OrderSideSell, Type: schema.OrderTypeLimit,
				Price: 100, HasPrice: true,
			},
			bid: 100, ask: 101,
			limit: true,
		},
		{
			desc: "buy stop market fires when ask reaches trigger",
			order: schema.Order{
				ClientOrderID: 5, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
				TriggerPrice: 101, HasTriggerPrice: true,
			},
			bid: 100, ask: 101,
			market: true,
		},
		{
			desc: "sell stop market fires when bid drops to trigger",
			order: schema.Order{
				ClientOrderID: 6, Side: schema.OrderSideSell, Type: schema.OrderTypeStopMarket,
				TriggerPrice: 100, HasTriggerPrice: true,
			},
			bid: 100, ask: 101,
			market: true,
		},
		{
			desc: "buy stop market waits below trigger",
			order: schema.Order{
				ClientOrderID: 7, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
				TriggerPrice: 105, HasTriggerPrice: true,
			},
			bid: 100, ask: 101,
		},
		{
			desc: "market if touched behaves like stop market",
			order: schema.Order{
				ClientOrderID: 8, Side: schema.OrderSideBuy, Type: schema.OrderTypeMarketIfTouched,
				TriggerPrice: 101, HasTriggerPrice: true,
			},
			bid: 100, ask: 101,
			market: true,
		},
		{
			desc: "stop limit triggers without filling",
			order: schema.Order{
				ClientOrderID: 9, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopLimit,
				TriggerPrice: 101, HasTriggerPrice: true,
				Price: 99, HasPrice: true,
			},
			bid: 100, ask: 101,
			triggered: true,
		},
		{
			desc: "triggered stop limit fills when marketable",
			order: schema.Order{
				ClientOrderID: 10, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopLimit,
				TriggerPrice: 101, HasTriggerPrice: true,
				Price: 102, HasPrice: true,
				IsTriggered: true,
			},
			bid: 100, ask: 101,
			limit: true,
		},
		{
			desc: "last trade trigger ignores quotes",
			order: schema.Order{
				ClientOrderID: 11, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
				TriggerPrice: 103, HasTriggerPrice: true,
				EmulationTrigger: schema.TriggerLastTrade,
			},
			bid: 100, ask: 105, last: 103,
			market: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			sink := &sinkRecorder{}
			core := newTestCore(sink)
			if tc.bid != 0 {
				core.SetBidRaw(model.Price(tc.bid))
			}
			if tc.ask != 0 {
				core.SetAskRaw(model.Price(tc.ask))
			}
			if tc.last != 0 {
				core.SetLastRaw(model.Price(tc.last))
			}

			o := tc.order
			core.MatchOrder(&o, true)

			assert.Equal(t, tc.triggered, len(sink.triggered) == 1, "triggered: %v", sink.triggered)
			assert.Equal(t, tc.market, len(sink.markets) == 1, "markets: %v", sink.markets)
			assert.Equal(t, tc.limit, len(sink.limits) == 1, "limits: %v", sink.limits)
		})
	}
}

func TestMatchOrderDefersWithoutPrices(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)

	o := &schema.Order{
		ClientOrderID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 100, HasTriggerPrice: true,
	}
	core.MatchOrder(o, true)
	assert.Empty(t, sink.markets, "uninitialized book must not trigger")

	core.SetAskRaw(100)
	core.MatchOrder(o, false)
	assert.Len(t, sink.markets, 1)
}

func TestAddOrderSortsSides(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)

	add := func(cid schema.ClientOrderID, side schema.OrderSide, trigger int64) {
		require.NoError(t, core.AddOrder(&schema.Order{
			ClientOrderID: cid, Side: side, Type: schema.OrderTypeStopMarket,
			TriggerPrice: model.Price(trigger), HasTriggerPrice: true,
		}))
	}

	add(1, schema.OrderSideBuy, 100)
	add(2, schema.OrderSideBuy, 105)
	add(3, schema.OrderSideBuy, 95)
	add(4, schema.OrderSideSell, 90)
	add(5, schema.OrderSideSell, 85)

	bids := core.BidOrders()
	require.Len(t, bids, 3)
	assert.Equal(t, schema.ClientOrderID(2), bids[0].ClientOrderID)
	assert.Equal(t, schema.ClientOrderID(1), bids[1].ClientOrderID)
	assert.Equal(t, schema.ClientOrderID(3), bids[2].ClientOrderID)

	asks := core.AskOrders()
	require.Len(t, asks, 2)
	assert.Equal(t, schema.ClientOrderID(5), asks[0].ClientOrderID)
	assert.Equal(t, schema.ClientOrderID(4), asks[1].ClientOrderID)
}

func TestAddOrderRejectsDuplicate(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)

	o := &schema.Order{ClientOrderID: 7, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 100, HasTriggerPrice: true}
	require.NoError(t, core.AddOrder(o))
	assert.ErrorIs(t, core.AddOrder(o), ErrDuplicateOrder)
}

func TestDeleteOrderAbsentIsNoop(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)

	o := &schema.Order{ClientOrderID: 8, Side: schema.OrderSideSell, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 100, HasTriggerPrice: true}
	core.DeleteOrder(o)

	require.NoError(t, core.AddOrder(o))
	core.DeleteOrder(o)
	core.DeleteOrder(o)
	assert.False(t, core.OrderExists(8))
	assert.Empty(t, core.AskOrders())
}

func TestIterateExpiresGTD(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)
	core.SetBidRaw(100)
	core.SetAskRaw(101)

	gtd := &schema.Order{
		ClientOrderID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 200, HasTriggerPrice: true,
		TimeInForce: schema.TimeInForceGTD, ExpireNs: 1000,
	}
	gtc := &schema.Order{
		ClientOrderID: 2, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 200, HasTriggerPrice: true,
		TimeInForce: schema.TimeInForceGTC,
	}
	require.NoError(t, core.AddOrder(gtd))
	require.NoError(t, core.AddOrder(gtc))

	core.Iterate(999)
	assert.Empty(t, sink.expired)

	core.Iterate(1000)
	require.Len(t, sink.expired, 1)
	assert.Equal(t, schema.ClientOrderID(1), sink.expired[0])
	assert.False(t, core.OrderExists(1))
	assert.True(t, core.OrderExists(2))
}

func TestIterateFiresMaturedTriggers(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)

	stop := &schema.Order{
		ClientOrderID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 105, HasTriggerPrice: true,
	}
	require.NoError(t, core.AddOrder(stop))

	core.SetBidRaw(100)
	core.SetAskRaw(101)
	core.Iterate(1)
	assert.Empty(t, sink.markets)

	core.SetAskRaw(105)
	core.Iterate(2)
	require.Len(t, sink.markets, 1)
	assert.Equal(t, schema.ClientOrderID(1), sink.markets[0])
}

func TestResetClearsState(t *testing.T) {
	sink := &sinkRecorder{}
	core := newTestCore(sink)
	core.SetBidRaw(100)
	core.SetAskRaw(101)
	core.SetLastRaw(100)
	require.NoError(t, core.AddOrder(&schema.Order{
		ClientOrderID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeStopMarket,
		TriggerPrice: 200, HasTriggerPrice: true,
	}))

	core.Reset()

	assert.Empty(t, core.Orders())
	assert.False(t, core.OrderExists(1))
	_, ok := core.BidRaw()
	assert.False(t, ok)
	_, ok = core.AskRaw()
	assert.False(t, ok)
	_, ok = core.LastRaw()
	assert.False(t, ok)
}
