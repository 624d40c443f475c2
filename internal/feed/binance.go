package feed

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/emulator"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/schema"
)

const (
	BinanceBaseWsUrl           = "wss://stream.binance.com:9443/ws"
	BinanceBaseWsUrlMarketOnly = "wss://data-stream.binance.vision/ws"
)

var ErrUnknownInstrument = errors.New("instrument not in feed mapping")

// Binance streams bookTicker and trade events and pushes them into the
// inbound queue as quote/trade ticks.
type Binance struct {
	ctx     context.Context
	wss     *ws.WebSocket
	queue   *bus.Queue
	clock   clock.Clock
	metrics *obs.Metrics

	byID   map[schema.InstrumentID]schema.Instrument
	byName map[string]schema.Instrument

	nextReqID int64
}

// NewBinance creates a feed for the given instruments.
func NewBinance(ctx context.Context, url string, queue *bus.Queue, clk clock.Clock, instruments []schema.Instrument, metrics *obs.Metrics) *Binance {
	byID := make(map[schema.InstrumentID]schema.Instrument, len(instruments))
	byName := make(map[string]schema.Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
		byName[strings.ToUpper(inst.Name)] = inst
	}
	return &Binance{
		ctx:     ctx,
		wss:     ws.New(ctx, url),
		queue:   queue,
		clock:   clk,
		metrics: metrics,
		byID:    byID,
		byName:  byName,
	}
}

// Len returns the number of active stream observers.
func (f *Binance) Len() int {
	return f.wss.Len()
}

// Close tears the websocket down.
func (f *Binance) Close() {
	f.wss.Close()
}

// Start connects the websocket and runs the stream observer.
func (f *Binance) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	f.observe(ctx)
	return nil
}

// SubscribeQuoteTicks subscribes the instrument's bookTicker stream.
func (f *Binance) SubscribeQuoteTicks(iid schema.InstrumentID) error {
	inst, ok := f.byID[iid]
	if !ok {
		return errors.Wrap(ErrUnknownInstrument, fmt.Sprintf("quote ticks for %d", iid))
	}
	return f.subscribe(fmt.Sprintf("%s@bookTicker", strings.ToLower(inst.Name)))
}

// SubscribeTradeTicks subscribes the instrument's trade stream.
func (f *Binance) SubscribeTradeTicks(iid schema.InstrumentID) error {
	inst, ok := f.byID[iid]
	if !ok {
		return errors.Wrap(ErrUnknownInstrument, fmt.Sprintf("trade ticks for %d", iid))
	}
	return f.subscribe(fmt.Sprintf("%s@trade", strings.ToLower(inst.Name)))
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (f *Binance) subscribe(stream string) error {
	reqID := atomic.AddInt64(&f.nextReqID, 1)
	appendIntoRegister := true
	if err := f.wss.SendAndWait(f.ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{stream},
				ID:     reqID,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != reqID {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// streamEvent is the union of the bookTicker and trade payload shapes.
// Trade events carry e="trade"; bookTicker events have no event type but
// always populate the best bid field.
type streamEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`

	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`

	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func (f *Binance) observe(ctx context.Context) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				evt, ok := ws.ReadMessage[streamEvent](m)
				if !ok {
					continue
				}
				f.handleStreamEvent(evt)
			}
		}
	}()
}

func (f *Binance) handleStreamEvent(evt streamEvent) {
	inst, ok := f.byName[strings.ToUpper(evt.Symbol)]
	if !ok {
		return
	}

	switch {
	case evt.EventType == "trade":
		f.pushTradeTick(inst, evt)
	case evt.BidPrice != "" && evt.AskPrice != "":
		f.pushQuoteTick(inst, evt)
	}
}

func (f *Binance) pushQuoteTick(inst schema.Instrument, evt streamEvent) {
	bidPrice, err := model.ParsePrice(evt.BidPrice, inst.PriceScale)
	if err != nil {
		logs.Errorf("feed: parse bid price %q, err: %+v", evt.BidPrice, err)
		return
	}
	askPrice, err := model.ParsePrice(evt.AskPrice, inst.PriceScale)
	if err != nil {
		logs.Errorf("feed: parse ask price %q, err: %+v", evt.AskPrice, err)
		return
	}
	bidSize, err := model.ParseQuantity(evt.BidQty, inst.QuantityScale)
	if err != nil {
		logs.Errorf("feed: parse bid qty %q, err: %+v", evt.BidQty, err)
		return
	}
	askSize, err := model.ParseQuantity(evt.AskQty, inst.QuantityScale)
	if err != nil {
		logs.Errorf("feed: parse ask qty %q, err: %+v", evt.AskQty, err)
		return
	}

	now := f.clock.TimestampNs()
	f.push(bus.Inbound{
		Endpoint: emulator.EndpointQuoteTick,
		Msg: schema.QuoteTick{
			InstrumentID: inst.ID,
			BidPrice:     bidPrice,
			AskPrice:     askPrice,
			BidSize:      bidSize,
			AskSize:      askSize,
			TsEvent:      now,
		},
		TsRecv: now,
	})
}

func (f *Binance) pushTradeTick(inst schema.Instrument, evt streamEvent) {
	price, err := model.ParsePrice(evt.Price, inst.PriceScale)
	if err != nil {
		logs.Errorf("feed: parse trade price %q, err: %+v", evt.Price, err)
		return
	}
	size, err := model.ParseQuantity(evt.Qty, inst.QuantityScale)
	if err != nil {
		logs.Errorf("feed: parse trade qty %q, err: %+v", evt.Qty, err)
		return
	}

	aggressor := schema.OrderSideBuy
	if evt.IsBuyerMaker {
		aggressor = schema.OrderSideSell
	}

	tsEvent := evt.TradeTime * int64(1_000_000) // Binance sends milliseconds
	f.push(bus.Inbound{
		Endpoint: emulator.EndpointTradeTick,
		Msg: schema.TradeTick{
			InstrumentID: inst.ID,
			Price:        price,
			Size:         size,
			Aggressor:    aggressor,
			TsEvent:      tsEvent,
		},
		TsRecv: f.clock.TimestampNs(),
	})
}

func (f *Binance) push(in bus.Inbound) {
	if err := f.queue.TryPush(in); err != nil {
		f.metrics.Inc(obs.CounterQueueDrops)
	}
}
