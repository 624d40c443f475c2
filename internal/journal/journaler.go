package journal

import (
	"github.com/yanun0323/logs"

	"main/internal/clock"
	"main/internal/codec"
	"main/internal/schema"
)

// Journaler records ticks and order events through a journal writer. It is
// called from the single emulator goroutine; the writer hands off to its
// own flushing goroutine.
type Journaler struct {
	w      *Writer
	clock  clock.Clock
	source uint16
	seq    uint64
	buf    []byte

	drops uint64
}

// NewJournaler wraps a started writer. The writer must run with CopyPayload
// enabled: the journaler reuses its encode buffer across records.
func NewJournaler(w *Writer, clk clock.Clock, source uint16) *Journaler {
	return &Journaler{w: w, clock: clk, source: source}
}

// Drops returns the number of records lost to a full writer queue.
func (j *Journaler) Drops() uint64 { return j.drops }

// RecordQuoteTick journals one quote tick.
func (j *Journaler) RecordQuoteTick(tick schema.QuoteTick) {
	j.buf = codec.EncodeQuoteTick(j.buf, tick)
	j.append(schema.RecordQuoteTick, tick.TsEvent)
}

// RecordTradeTick journals one trade tick.
func (j *Journaler) RecordTradeTick(tick schema.TradeTick) {
	j.buf = codec.EncodeTradeTick(j.buf, tick)
	j.append(schema.RecordTradeTick, tick.TsEvent)
}

// RecordOrderEvent journals one order lifecycle event.
func (j *Journaler) RecordOrderEvent(evt schema.OrderEvent) {
	rec := codec.EventRecordFrom(evt)
	j.buf = codec.EncodeOrderEvent(j.buf, rec)
	j.append(schema.RecordOrderEvent, rec.TsEvent)
}

// OnOrderEvent is the bus subscription form of RecordOrderEvent.
func (j *Journaler) OnOrderEvent(msg any) {
	evt, ok := msg.(schema.OrderEvent)
	if !ok {
		return
	}
	j.RecordOrderEvent(evt)
}

func (j *Journaler) append(recordType schema.RecordType, tsEvent int64) {
	j.seq++
	header := schema.NewHeader(recordType, j.source, j.seq, tsEvent, j.clock.TimestampNs())
	if err := j.w.TryAppend(header, j.buf); err != nil {
		j.drops++
		if j.drops == 1 || j.drops%1000 == 0 {
			logs.Errorf("journal: append, drops: %d, err: %+v", j.drops, err)
		}
	}
}
