package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/emulator"
	"main/internal/journal"
	"main/internal/schema"
)

func writeReplayJournal(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := journal.DefaultConfig(dir)
	cfg.CopyPayload = true
	w, err := journal.NewWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	quote := codec.EncodeQuoteTick(nil, schema.QuoteTick{
		InstrumentID: 1, BidPrice: 10_000, AskPrice: 10_001, TsEvent: 1_000,
	})
	require.NoError(t, w.TryAppend(schema.NewHeader(schema.RecordQuoteTick, 1, 1, 1_000, 1_001), quote))

	trade := codec.EncodeTradeTick(nil, schema.TradeTick{
		InstrumentID: 1, Price: 10_000, Size: 5, TsEvent: 2_000,
	})
	require.NoError(t, w.TryAppend(schema.NewHeader(schema.RecordTradeTick, 1, 2, 2_000, 2_001), trade))

	// Order events are journal outputs; replay must skip them.
	evt := codec.EncodeOrderEvent(nil, codec.OrderEventRecord{
		Kind: codec.EventKindReleased, ClientOrderID: 9, TsEvent: 3_000,
	})
	require.NoError(t, w.TryAppend(schema.NewHeader(schema.RecordOrderEvent, 1, 3, 3_000, 3_001), evt))

	require.NoError(t, w.Close())
	return dir
}

func TestReplayPushesTicksOntoQueue(t *testing.T) {
	dir := writeReplayJournal(t)

	playback, err := journal.NewPlayback(journal.PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	queue := bus.NewQueue(8)
	replay := NewReplay(playback, queue)

	require.NoError(t, replay.Run(context.Background()))
	queue.Close()

	b := bus.New()
	var quotes []schema.QuoteTick
	var trades []schema.TradeTick
	b.Register(emulator.EndpointQuoteTick, func(msg any) {
		quotes = append(quotes, msg.(schema.QuoteTick))
	})
	b.Register(emulator.EndpointTradeTick, func(msg any) {
		trades = append(trades, msg.(schema.TradeTick))
	})
	queue.Drain(context.Background(), b)

	require.Len(t, quotes, 1)
	assert.EqualValues(t, 10_000, quotes[0].BidPrice)
	require.Len(t, trades, 1)
	assert.EqualValues(t, 5, trades[0].Size)
}

func TestReplayStopsOnClosedQueue(t *testing.T) {
	dir := writeReplayJournal(t)

	playback, err := journal.NewPlayback(journal.PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	queue := bus.NewQueue(8)
	queue.Close()

	err = NewReplay(playback, queue).Run(context.Background())
	assert.ErrorIs(t, err, bus.ErrQueueClosed)
}
