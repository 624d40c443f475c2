// tickgen writes a synthetic tick journal for replay mode. Optional fault
// injection produces journals with dropped, duplicated, reordered or late
// records.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/chaos"
	"main/internal/codec"
	"main/internal/journal"
	"main/internal/mdg"
	"main/internal/model"
	"main/internal/ops"
	"main/internal/schema"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("tickgen: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "emulator config with the instrument registry")
		outDir     = flag.String("out", "journal", "output directory for journal segments")
		count      = flag.Int("count", 100_000, "number of ticks to generate")
		intervalMs = flag.Int64("interval", 10, "event time step between ticks, ms")
		basePrice  = flag.Int64("base", 1_000_000, "starting raw price for every instrument")
		size       = flag.Int64("size", 1_000_000, "raw size for quotes and trades")
		tradeEvery = flag.Int("trades", 5, "emit a trade every Nth tick, 0 for none")
		seed       = flag.Int64("seed", 1, "random walk seed")

		dropRate = flag.Float64("drop", 0, "record drop probability")
		dupRate  = flag.Float64("dup", 0, "record duplicate probability")
		reorder  = flag.Int("reorder", 0, "reorder window, 0 or 1 keeps order")
		maxDelay = flag.Duration("delay", 0, "max artificial TsRecv delay")
	)
	flag.Parse()

	reg, err := loadRegistry(*configPath)
	if err != nil {
		return err
	}
	gen, err := mdg.New(reg, mdg.Config{
		Seed:       *seed,
		BasePrice:  model.Price(*basePrice),
		Size:       model.Quantity(*size),
		TradeEvery: *tradeEvery,
	})
	if err != nil {
		return err
	}
	injector, err := chaos.NewInjector(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorder,
		MaxDelay:      *maxDelay,
	})
	if err != nil {
		return err
	}

	cfg := journal.DefaultConfig(*outDir)
	cfg.CopyPayload = true
	w, err := journal.NewWriter(cfg)
	if err != nil {
		return err
	}
	if err := w.Start(context.Background()); err != nil {
		return err
	}

	var (
		seq     uint64
		written int
		start   = time.Now().UTC().UnixNano()
		step    = *intervalMs * int64(time.Millisecond)
		buf     []byte
	)
	emit := func(recordType schema.RecordType, tsEvent int64, payload []byte) error {
		seq++
		// The injector may buffer records past this iteration; the shared
		// encode buffer cannot back them.
		owned := make([]byte, len(payload))
		copy(owned, payload)
		rec := chaos.Record{
			Header:  schema.NewHeader(recordType, 1, seq, tsEvent, tsEvent),
			Payload: owned,
		}
		for _, out := range injector.Apply(rec) {
			if err := appendRecord(w, out); err != nil {
				return err
			}
			written++
		}
		return nil
	}

	for i := 0; i < *count; i++ {
		now := start + int64(i)*step
		tick := gen.Next(now)
		buf = codec.EncodeQuoteTick(buf, tick.Quote)
		if err := emit(schema.RecordQuoteTick, now, buf); err != nil {
			return err
		}
		if tick.Trade != nil {
			buf = codec.EncodeTradeTick(buf, *tick.Trade)
			if err := emit(schema.RecordTradeTick, now, buf); err != nil {
				return err
			}
		}
	}
	for _, out := range injector.Flush() {
		if err := appendRecord(w, out); err != nil {
			return err
		}
		written++
	}

	if err := w.Close(); err != nil {
		return err
	}
	logs.Infof("tickgen: wrote %d records to %s", written, *outDir)
	return nil
}

// appendRecord retries on a full writer queue; the generator has no
// realtime deadline to miss.
func appendRecord(w *journal.Writer, rec chaos.Record) error {
	for {
		err := w.TryAppend(rec.Header, rec.Payload)
		if err != journal.ErrQueueFull {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		reg := schema.NewRegistry()
		venueID, err := reg.AddVenue("SIM")
		if err != nil {
			return nil, err
		}
		if _, err := reg.AddInstrument("BTCUSDT", venueID, 2, 6, 1); err != nil {
			return nil, err
		}
		return reg, nil
	}
	loaded, err := ops.Load(path)
	if err != nil {
		return nil, err
	}
	return loaded.Registry, nil
}
