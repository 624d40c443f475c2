// Package feed supplies market data to the emulator: a live Binance
// websocket client and a journal replay source. Both push ticks into the
// inbound queue; nothing in this package touches emulator state directly.
package feed

import "main/internal/schema"

// Client is the subscription surface the emulator drives. Implementations
// must be safe to call from the emulator goroutine while ticks arrive on
// their own goroutines.
type Client interface {
	SubscribeQuoteTicks(iid schema.InstrumentID) error
	SubscribeTradeTicks(iid schema.InstrumentID) error
}

// Nop is a feed that never delivers; used when ticks come from elsewhere,
// like journal replay.
type Nop struct{}

func (Nop) SubscribeQuoteTicks(schema.InstrumentID) error { return nil }
func (Nop) SubscribeTradeTicks(schema.InstrumentID) error { return nil }
