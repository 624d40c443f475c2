// Package chaos perturbs journal record streams: drops, duplicates,
// reorders and delays. Feeding a perturbed tick journal through replay
// checks that the emulator tolerates the anomalies a live feed produces.
package chaos

import (
	"fmt"
	"math/rand"
	"time"

	"main/internal/schema"
)

// Record is one journal record passing through the injector.
type Record struct {
	Header  schema.RecordHeader
	Payload []byte
}

// Config controls injection rates. Rates are probabilities in [0, 1].
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int // records buffered for shuffling; <=1 keeps order
	MaxDelay      time.Duration
}

// Validate checks the rates and window.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate out of range: %f", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate out of range: %f", c.DuplicateRate)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Injector applies the configured faults to a record stream.
// Deterministic for a fixed seed.
type Injector struct {
	cfg     Config
	rng     *rand.Rand
	pending []Record
}

// NewInjector validates the config and seeds the fault source. A zero seed
// seeds from the wall clock.
func NewInjector(cfg Config) (*Injector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow < 1 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Injector{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Apply runs one record through the injector. With a reorder window it may
// return nothing while the window fills; Flush drains the remainder.
func (in *Injector) Apply(rec Record) []Record {
	if in.cfg.DropRate > 0 && in.rng.Float64() < in.cfg.DropRate {
		return nil
	}
	rec = in.delay(rec)
	if in.cfg.ReorderWindow <= 1 {
		return in.duplicate(rec)
	}
	in.pending = append(in.pending, rec)
	if len(in.pending) < in.cfg.ReorderWindow {
		return nil
	}
	return in.duplicate(in.takeRandomPending())
}

// Flush drains buffered records in random order. Call after the last Apply.
func (in *Injector) Flush() []Record {
	var out []Record
	for len(in.pending) > 0 {
		out = append(out, in.duplicate(in.takeRandomPending())...)
	}
	return out
}

func (in *Injector) takeRandomPending() Record {
	idx := in.rng.Intn(len(in.pending))
	rec := in.pending[idx]
	in.pending = append(in.pending[:idx], in.pending[idx+1:]...)
	return rec
}

func (in *Injector) duplicate(rec Record) []Record {
	out := []Record{rec}
	if in.cfg.DuplicateRate > 0 && in.rng.Float64() < in.cfg.DuplicateRate {
		out = append(out, rec)
	}
	return out
}

// delay pushes TsRecv forward, simulating late arrival. TsEvent stays
// untouched so replay pacing on event time is unaffected.
func (in *Injector) delay(rec Record) Record {
	if in.cfg.MaxDelay <= 0 {
		return rec
	}
	d := in.rng.Int63n(in.cfg.MaxDelay.Nanoseconds() + 1)
	if d == 0 {
		return rec
	}
	if rec.Header.TsRecv > 0 {
		rec.Header.TsRecv += d
	} else if rec.Header.TsEvent > 0 {
		rec.Header.TsRecv = rec.Header.TsEvent + d
	}
	return rec
}
