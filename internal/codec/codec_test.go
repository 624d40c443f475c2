package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestQuoteTickRoundTrip(t *testing.T) {
	orig := schema.QuoteTick{
		InstrumentID: 42,
		BidPrice:     10_000,
		AskPrice:     10_001,
		BidSize:      500,
		AskSize:      -1, // sign must survive
		TsEvent:      1_700_000_000_123,
	}

	encoded := EncodeQuoteTick(nil, orig)
	require.Len(t, encoded, QuoteTickPayloadSize)

	decoded, ok := DecodeQuoteTick(encoded)
	require.True(t, ok)
	assert.Equal(t, orig, decoded)

	_, ok = DecodeQuoteTick(encoded[:QuoteTickPayloadSize-1])
	assert.False(t, ok)
}

func TestTradeTickRoundTrip(t *testing.T) {
	orig := schema.TradeTick{
		InstrumentID: 42,
		Price:        10_000,
		Size:         77,
		Aggressor:    schema.OrderSideSell,
		TsEvent:      1_700_000_000_456,
	}

	encoded := EncodeTradeTick(nil, orig)
	require.Len(t, encoded, TradeTickPayloadSize)

	decoded, ok := DecodeTradeTick(encoded)
	require.True(t, ok)
	assert.Equal(t, orig, decoded)

	_, ok = DecodeTradeTick(nil)
	assert.False(t, ok)
}

func TestEncodeReusesBuffer(t *testing.T) {
	buf := make([]byte, 64)
	encoded := EncodeQuoteTick(buf, schema.QuoteTick{InstrumentID: 1})
	assert.True(t, &buf[0] == &encoded[0], "large enough buffer must be reused")
}

func TestEventRecordFromFilled(t *testing.T) {
	evt := schema.OrderFilled{
		EventBase: schema.EventBase{
			ClientOrderID: 9, StrategyID: 2, InstrumentID: 1, TsEvent: 555,
		},
		LastQty:    400,
		LastPrice:  10_000,
		LeavesQty:  600,
		PositionID: 77,
	}

	rec := EventRecordFrom(evt)
	assert.Equal(t, EventKindFilled, rec.Kind)
	assert.EqualValues(t, 400, rec.Quantity)
	assert.EqualValues(t, 10_000, rec.Price)
	assert.EqualValues(t, 600, rec.LeavesQty)
	assert.EqualValues(t, 77, rec.PositionID)
	assert.NotZero(t, rec.Flags&EventFlagHasQuantity)
	assert.NotZero(t, rec.Flags&EventFlagHasPrice)
}

func TestEventRecordFromUpdatedFlags(t *testing.T) {
	rec := EventRecordFrom(schema.OrderUpdated{
		EventBase:       schema.EventBase{ClientOrderID: 9},
		TriggerPrice:    10_500,
		HasTriggerPrice: true,
	})
	assert.Equal(t, EventKindUpdated, rec.Kind)
	assert.NotZero(t, rec.Flags&EventFlagHasTriggerPrice)
	assert.Zero(t, rec.Flags&EventFlagHasQuantity)
	assert.Zero(t, rec.Flags&EventFlagHasPrice)
}

func TestOrderEventRoundTrip(t *testing.T) {
	orig := OrderEventRecord{
		Kind:          EventKindReleased,
		Flags:         EventFlagHasPrice,
		ClientOrderID: 9,
		StrategyID:    2,
		InstrumentID:  1,
		TsEvent:       555,
		Price:         10_001,
	}

	encoded := EncodeOrderEvent(nil, orig)
	require.Len(t, encoded, OrderEventPayloadSize)

	decoded, ok := DecodeOrderEvent(encoded)
	require.True(t, ok)
	assert.Equal(t, orig, decoded)

	_, ok = DecodeOrderEvent(encoded[:10])
	assert.False(t, ok)
}
