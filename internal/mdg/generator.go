// Package mdg generates synthetic market data for replay journals. It
// exists for soak and replay testing: a generated journal feeds the
// emulator through the same path as recorded production ticks.
package mdg

import (
	"fmt"
	"math/rand"

	"main/internal/model"
	"main/internal/schema"
)

// Config controls the random walk.
type Config struct {
	Seed       int64
	BasePrice  model.Price
	Size       model.Quantity
	TradeEvery int // emit a trade every Nth step per instrument; 0 disables trades
}

// Tick is one generated step: a fresh quote, and sometimes a trade at the
// touch.
type Tick struct {
	Quote schema.QuoteTick
	Trade *schema.TradeTick
}

// Generator walks the mid price of every registry instrument one tick
// increment at a time, round-robin across instruments.
type Generator struct {
	cfg         Config
	rng         *rand.Rand
	instruments []schema.Instrument
	mids        []model.Price
	index       int
	steps       uint64
}

// New creates a generator over all instruments in the registry.
func New(reg *schema.Registry, cfg Config) (*Generator, error) {
	if reg == nil || len(reg.Instruments()) == 0 {
		return nil, fmt.Errorf("registry has no instruments")
	}
	if cfg.BasePrice <= 0 {
		return nil, fmt.Errorf("base price must be positive: %d", cfg.BasePrice)
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	instruments := reg.Instruments()
	mids := make([]model.Price, len(instruments))
	for i := range mids {
		mids[i] = cfg.BasePrice
	}
	return &Generator{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		instruments: instruments,
		mids:        mids,
	}, nil
}

// Next advances one instrument's walk and returns its tick. The quote
// straddles the mid by one price increment; the mid never walks below one
// increment.
func (g *Generator) Next(nowNs int64) Tick {
	inst := g.instruments[g.index]
	mid := g.mids[g.index]

	switch g.rng.Intn(3) {
	case 0:
		mid += inst.PriceIncrement
	case 1:
		if mid > 2*inst.PriceIncrement {
			mid -= inst.PriceIncrement
		}
	}
	g.mids[g.index] = mid

	tick := Tick{
		Quote: schema.QuoteTick{
			InstrumentID: inst.ID,
			BidPrice:     mid - inst.PriceIncrement,
			AskPrice:     mid + inst.PriceIncrement,
			BidSize:      g.cfg.Size,
			AskSize:      g.cfg.Size,
			TsEvent:      nowNs,
		},
	}

	g.steps++
	if g.cfg.TradeEvery > 0 && g.steps%uint64(g.cfg.TradeEvery) == 0 {
		trade := &schema.TradeTick{
			InstrumentID: inst.ID,
			Size:         g.cfg.Size,
			TsEvent:      nowNs,
		}
		if g.rng.Intn(2) == 0 {
			trade.Price = tick.Quote.AskPrice
			trade.Aggressor = schema.OrderSideBuy
		} else {
			trade.Price = tick.Quote.BidPrice
			trade.Aggressor = schema.OrderSideSell
		}
		tick.Trade = trade
	}

	g.index = (g.index + 1) % len(g.instruments)
	return tick
}
