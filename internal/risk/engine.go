// Package risk implements the pre-trade gate between the emulator and the
// execution engine. Submissions that pass flow onward unchanged; denials
// close the order with an OrderRejected event.
package risk

import (
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/model"
	"main/internal/schema"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Reason classifies a denial.
type Reason string

const (
	ReasonKillSwitch  Reason = "kill switch engaged"
	ReasonRateLimit   Reason = "order rate limit exceeded"
	ReasonMaxQty      Reason = "order quantity exceeds limit"
	ReasonMaxNotional Reason = "order notional exceeds limit"
	ReasonPriceBand   Reason = "price outside deviation band"
)

// Config defines static risk limits. Zero-valued limits are disabled.
type Config struct {
	KillSwitch           bool           `json:"killSwitch" yaml:"killSwitch"`
	MaxOrderQty          model.Quantity `json:"maxOrderQty" yaml:"maxOrderQty"`
	MaxOrderNotional     model.Notional `json:"maxOrderNotional" yaml:"maxOrderNotional"`
	OrderRateLimit       int            `json:"orderRateLimit" yaml:"orderRateLimit"`
	OrderRateWindow      time.Duration  `json:"orderRateWindow" yaml:"orderRateWindow"`
	MaxPriceDeviationBps int64          `json:"maxPriceDeviationBps" yaml:"maxPriceDeviationBps"`
}

// Engine evaluates released submissions against static limits.
type Engine struct {
	cfg   Config
	clock clock.Clock
	bus   *bus.Bus
	cache *cache.Cache

	rateWindowStart int64
	rateCount       int
}

// NewEngine wires a risk engine onto the bus.
func NewEngine(cfg Config, clk clock.Clock, b *bus.Bus, c *cache.Cache) *Engine {
	e := &Engine{cfg: cfg, clock: clk, bus: b, cache: c}
	b.Register(EndpointExecute, e.onExecute)
	b.Register(EndpointProcess, e.onProcess)
	return e
}

// Message bus endpoints.
const (
	EndpointExecute = "RiskEngine.execute"
	EndpointProcess = "RiskEngine.process"

	endpointExecEngine = "ExecEngine.execute"
)

func (e *Engine) onExecute(msg any) {
	cmd, ok := msg.(*schema.SubmitOrder)
	if !ok {
		logs.Errorf("risk: execute received non-submit %T", msg)
		return
	}
	e.Execute(cmd)
}

// onProcess receives informational lifecycle events. Emulated orders are
// not gated until release.
func (e *Engine) onProcess(msg any) {
	if _, ok := msg.(schema.OrderEvent); !ok {
		logs.Errorf("risk: process received non-event %T", msg)
	}
}

// Execute gates one submission: forward on pass, reject on denial.
func (e *Engine) Execute(cmd *schema.SubmitOrder) {
	if reason, denied := e.Evaluate(cmd.Order); denied {
		e.reject(cmd.Order, reason)
		return
	}
	e.bus.Send(endpointExecEngine, cmd)
}

// Evaluate applies the configured checks to an order.
func (e *Engine) Evaluate(o *schema.Order) (Reason, bool) {
	if e.cfg.KillSwitch {
		return ReasonKillSwitch, true
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		now := e.clock.TimestampNs()
		window := int64(e.cfg.OrderRateWindow)
		if e.rateWindowStart == 0 || now-e.rateWindowStart >= window {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return ReasonRateLimit, true
		}
	}

	if e.cfg.MaxOrderQty > 0 && o.Quantity > e.cfg.MaxOrderQty {
		return ReasonMaxQty, true
	}

	if o.HasPrice {
		notional, overflow := mulNotional(o.Price, o.Quantity)
		if overflow {
			return ReasonMaxNotional, true
		}
		if e.cfg.MaxOrderNotional > 0 && notional > e.cfg.MaxOrderNotional {
			return ReasonMaxNotional, true
		}
	}

	if e.cfg.MaxPriceDeviationBps > 0 && o.Type == schema.OrderTypeLimit && o.HasPrice {
		if quote, ok := e.cache.QuoteTick(o.InstrumentID); ok {
			ref := int64(quote.BidPrice+quote.AskPrice) / 2
			diff := absInt64(int64(o.Price) - ref)
			if exceedsDeviation(diff, ref, e.cfg.MaxPriceDeviationBps) {
				return ReasonPriceBand, true
			}
		}
	}

	return "", false
}

func (e *Engine) reject(o *schema.Order, reason Reason) {
	now := e.clock.TimestampNs()
	o.Status = schema.OrderStatusRejected
	o.TsLast = now
	e.cache.UpdateOrder(o)
	logs.Infof("risk: rejected order %d, %s", o.ClientOrderID, reason)

	e.bus.Publish(topicOrderEvents(o.StrategyID), schema.OrderRejected{
		EventBase: schema.EventBase{
			ClientOrderID: o.ClientOrderID,
			StrategyID:    o.StrategyID,
			InstrumentID:  o.InstrumentID,
			TsEvent:       now,
		},
		Reason: string(reason),
	})
}

func topicOrderEvents(sid schema.StrategyID) string {
	return fmt.Sprintf("events.order.%d", sid)
}

func mulNotional(price model.Price, qty model.Quantity) (model.Notional, bool) {
	p := int64(price)
	q := int64(qty)
	if p == 0 || q == 0 {
		return 0, false
	}
	if p < 0 {
		p = -p
	}
	if q < 0 {
		q = -q
	}
	if p > maxInt64/q {
		return 0, true
	}
	return model.Notional(int64(price) * int64(qty)), false
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func exceedsDeviation(diff int64, ref int64, bps int64) bool {
	if diff <= 0 || ref <= 0 || bps <= 0 {
		return false
	}
	if diff > maxInt64/10000 {
		return true
	}
	lhs := diff * 10000
	if ref > maxInt64/bps {
		return true
	}
	rhs := ref * bps
	return lhs > rhs
}
