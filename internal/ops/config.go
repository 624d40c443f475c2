// Package ops loads and resolves the emulator's file configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/decimal"
	"gopkg.in/yaml.v3"

	"main/internal/model"
	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the config file layout. Both JSON and YAML are
// accepted; the extension picks the decoder.
type FileConfig struct {
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Risk     risk.Config    `json:"risk" yaml:"risk"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	Bridge   BridgeConfig   `json:"bridge" yaml:"bridge"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Emulator EmulatorConfig `json:"emulator" yaml:"emulator"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues" yaml:"venues"`
	Instruments []InstrumentConfig `json:"instruments" yaml:"instruments"`
	Synthetics  []SyntheticConfig  `json:"synthetics" yaml:"synthetics"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name" yaml:"name"`
}

// InstrumentConfig describes an instrument entry. PriceIncrement is a
// decimal string interpreted at the instrument's price scale.
type InstrumentConfig struct {
	Name           string          `json:"name" yaml:"name"`
	Venue          string          `json:"venue" yaml:"venue"`
	PriceScale     int             `json:"priceScale" yaml:"priceScale"`
	QuantityScale  int             `json:"quantityScale" yaml:"quantityScale"`
	PriceIncrement decimal.Decimal `json:"priceIncrement" yaml:"priceIncrement"`
}

// SyntheticConfig describes a synthetic instrument entry.
type SyntheticConfig struct {
	Name           string          `json:"name" yaml:"name"`
	Components     []string        `json:"components" yaml:"components"`
	PriceScale     int             `json:"priceScale" yaml:"priceScale"`
	PriceIncrement decimal.Decimal `json:"priceIncrement" yaml:"priceIncrement"`
}

// FeedConfig selects the market data source.
type FeedConfig struct {
	Mode        string  `json:"mode" yaml:"mode"` // live, replay or none
	URL         string  `json:"url" yaml:"url"`
	ReplayDir   string  `json:"replayDir" yaml:"replayDir"`
	ReplaySpeed float64 `json:"replaySpeed" yaml:"replaySpeed"`
}

// BridgeConfig controls the NATS event mirror.
type BridgeConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	URL           string `json:"url" yaml:"url"`
	SubjectPrefix string `json:"subjectPrefix" yaml:"subjectPrefix"`
}

// StoreConfig controls cache persistence.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

// JournalConfig controls tick/event journaling.
type JournalConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Dir           string        `json:"dir" yaml:"dir"`
	FlushInterval time.Duration `json:"flushInterval" yaml:"flushInterval"`
	SyncInterval  time.Duration `json:"syncInterval" yaml:"syncInterval"`
}

// EmulatorConfig tunes the emulator runtime.
type EmulatorConfig struct {
	QueueSize     int    `json:"queueSize" yaml:"queueSize"`
	MetricsAddr   string `json:"metricsAddr" yaml:"metricsAddr"`
	PyroscopeAddr string `json:"pyroscopeAddr" yaml:"pyroscopeAddr"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	Registry *schema.Registry
	Risk     risk.Config
	Feed     FeedConfig
	Bridge   BridgeConfig
	Store    StoreConfig
	Journal  JournalConfig
	Emulator EmulatorConfig
}

// Load reads a config file and builds the registry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the registry.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateFeed(cfg.Feed); err != nil {
		return Loaded{}, err
	}
	emu := cfg.Emulator
	if emu.QueueSize == 0 {
		emu.QueueSize = 65536
	}
	return Loaded{
		Registry: registry,
		Risk:     cfg.Risk,
		Feed:     cfg.Feed,
		Bridge:   cfg.Bridge,
		Store:    cfg.Store,
		Journal:  cfg.Journal,
		Emulator: emu,
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueByName(inst.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", inst.Venue)
		}
		if inst.PriceScale < 0 || inst.QuantityScale < 0 {
			return nil, fmt.Errorf("invalid scale for %s", inst.Name)
		}
		increment, err := model.ParsePrice(inst.PriceIncrement.String(), inst.PriceScale)
		if err != nil {
			return nil, fmt.Errorf("invalid price increment for %s: %w", inst.Name, err)
		}
		if _, err := reg.AddInstrument(inst.Name, venueID, inst.PriceScale, inst.QuantityScale, increment); err != nil {
			return nil, err
		}
	}
	for _, syn := range cfg.Synthetics {
		components := make([]schema.InstrumentID, 0, len(syn.Components))
		for _, name := range syn.Components {
			id, ok := reg.InstrumentByName(name)
			if !ok {
				return nil, fmt.Errorf("synthetic component not found: %s", name)
			}
			components = append(components, id)
		}
		increment, err := model.ParsePrice(syn.PriceIncrement.String(), syn.PriceScale)
		if err != nil {
			return nil, fmt.Errorf("invalid price increment for %s: %w", syn.Name, err)
		}
		if _, err := reg.AddSynthetic(syn.Name, components, syn.PriceScale, increment); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateFeed(cfg FeedConfig) error {
	switch cfg.Mode {
	case "", "none", "live":
		return nil
	case "replay":
		if cfg.ReplayDir == "" {
			return fmt.Errorf("feed replayDir is empty")
		}
		if cfg.ReplaySpeed < 0 {
			return fmt.Errorf("feed replaySpeed must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown feed mode: %s", cfg.Mode)
	}
}
