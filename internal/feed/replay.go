package feed

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/emulator"
	"main/internal/journal"
	"main/internal/schema"
)

var ErrMalformedRecord = errors.New("malformed journal record")

// Replay feeds journaled ticks back through the inbound queue, preserving
// arrival order. Unlike the live feed it retries on a full queue: replay
// must not lose records.
type Replay struct {
	playback *journal.Playback
	queue    *bus.Queue
}

// NewReplay wraps a playback engine.
func NewReplay(playback *journal.Playback, queue *bus.Queue) *Replay {
	return &Replay{playback: playback, queue: queue}
}

// Run replays the journal until exhausted or the context is done.
func (r *Replay) Run(ctx context.Context) error {
	return r.playback.Run(ctx, func(header schema.RecordHeader, payload []byte) error {
		switch header.Type {
		case schema.RecordQuoteTick:
			tick, ok := codec.DecodeQuoteTick(payload)
			if !ok {
				return errors.Wrap(ErrMalformedRecord, "quote tick")
			}
			return r.push(ctx, bus.Inbound{
				Endpoint: emulator.EndpointQuoteTick,
				Msg:      tick,
				TsRecv:   header.TsRecv,
			})
		case schema.RecordTradeTick:
			tick, ok := codec.DecodeTradeTick(payload)
			if !ok {
				return errors.Wrap(ErrMalformedRecord, "trade tick")
			}
			return r.push(ctx, bus.Inbound{
				Endpoint: emulator.EndpointTradeTick,
				Msg:      tick,
				TsRecv:   header.TsRecv,
			})
		default:
			// Order events and commands are outputs; replay only feeds
			// market data back in.
			return nil
		}
	})
}

func (r *Replay) push(ctx context.Context, in bus.Inbound) error {
	for {
		err := r.queue.TryPush(in)
		if err == nil {
			return nil
		}
		if err == bus.ErrQueueClosed {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Microsecond):
		}
	}
}
