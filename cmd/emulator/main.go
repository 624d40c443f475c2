package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/bridge"
	"main/internal/bus"
	"main/internal/cache"
	"main/internal/clock"
	"main/internal/emulator"
	"main/internal/exec"
	"main/internal/feed"
	"main/internal/journal"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("emulator: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to JSON or YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if addr := loaded.Emulator.PyroscopeAddr; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "order-emulator",
			ServerAddress:   addr,
			Logger:          profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	var store *cache.Store
	if loaded.Store.Enabled {
		client, err := conn.New(conn.Option{ConnString: loaded.Store.DSN})
		if err != nil {
			return err
		}
		defer client.Close()
		store, err = cache.NewStore(client.DB())
		if err != nil {
			return err
		}
	}

	c := cache.New(store)
	c.LoadInstruments(loaded.Registry)
	if err := c.Restore(); err != nil {
		return err
	}

	b := bus.New()
	metrics := obs.NewMetrics()
	queue := bus.NewQueue(loaded.Emulator.QueueSize)
	clk := clock.Wall{}

	// Engines register their endpoints on construction.
	risk.NewEngine(loaded.Risk, clk, b, c)
	exec.NewEngine(clk, b, c)

	var md feed.Client = feed.Nop{}
	var binanceFeed *feed.Binance
	if loaded.Feed.Mode == "live" {
		url := loaded.Feed.URL
		if url == "" {
			url = feed.BinanceBaseWsUrl
		}
		binanceFeed = feed.NewBinance(ctx, url, queue, clk, loaded.Registry.Instruments(), metrics)
		md = binanceFeed
	}

	emu := emulator.New(clk, b, c, md, metrics)

	if loaded.Journal.Enabled {
		journaler, closeJournal, err := startJournal(ctx, loaded.Journal, clk)
		if err != nil {
			return err
		}
		defer closeJournal()
		b.Subscribe("events.order.*", journaler.OnOrderEvent)
		// Journal ticks before the emulator consumes them.
		b.Register(emulator.EndpointQuoteTick, func(msg any) {
			if tick, ok := msg.(schema.QuoteTick); ok {
				journaler.RecordQuoteTick(tick)
				emu.OnQuoteTick(tick)
			}
		})
		b.Register(emulator.EndpointTradeTick, func(msg any) {
			if tick, ok := msg.(schema.TradeTick); ok {
				journaler.RecordTradeTick(tick)
				emu.OnTradeTick(tick)
			}
		})
	}

	if loaded.Bridge.Enabled {
		br, err := bridge.Connect(loaded.Bridge.URL, loaded.Bridge.SubjectPrefix)
		if err != nil {
			return err
		}
		defer br.Close()
		b.Subscribe("events.order.*", br.OnOrderEvent)
	}

	if addr := loaded.Emulator.MetricsAddr; addr != "" {
		obs.StartMetricsServer(addr, metrics)
	}

	// Reactivate before the drain starts; no other goroutine touches the
	// bus yet.
	emu.Start()

	if binanceFeed != nil {
		if err := binanceFeed.Start(ctx); err != nil {
			return err
		}
		defer binanceFeed.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if loaded.Feed.Mode == "replay" {
		playback, err := journal.NewPlayback(journal.PlaybackConfig{
			Dir:   loaded.Feed.ReplayDir,
			Speed: loaded.Feed.ReplaySpeed,
		})
		if err != nil {
			return err
		}
		go func() {
			defer cancel()
			if err := feed.NewReplay(playback, queue).Run(ctx); err != nil && ctx.Err() == nil {
				logs.Errorf("emulator: replay, err: %+v", err)
				return
			}
			logs.Info("emulator: replay complete")
		}()
	}

	logs.Info("emulator: running")
	queue.Drain(ctx, b)
	return nil
}

func startJournal(ctx context.Context, cfg ops.JournalConfig, clk clock.Clock) (*journal.Journaler, func(), error) {
	wcfg := journal.DefaultConfig(cfg.Dir)
	wcfg.FlushInterval = cfg.FlushInterval
	wcfg.SyncInterval = cfg.SyncInterval
	wcfg.CopyPayload = true
	w, err := journal.NewWriter(wcfg)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := w.Close(); err != nil {
			logs.Errorf("emulator: close journal, err: %+v", err)
		}
	}
	return journal.NewJournaler(w, clk, 1), closer, nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

// defaultLoaded keeps the binary runnable without a config file: one SIM
// venue, one instrument, no persistence, no feed.
func defaultLoaded() (ops.Loaded, error) {
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	if err != nil {
		return ops.Loaded{}, err
	}
	if _, err := reg.AddInstrument("BTCUSDT", venueID, 2, 6, 1); err != nil {
		return ops.Loaded{}, err
	}
	return ops.Loaded{
		Registry: reg,
		Emulator: ops.EmulatorConfig{QueueSize: 65536},
	}, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...any)  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(format string, args ...any) { logs.Debugf(format, args...) }
func (profilerLogger) Errorf(format string, args ...any) { logs.Errorf(format, args...) }
