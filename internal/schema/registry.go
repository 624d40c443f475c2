package schema

import (
	"fmt"

	"main/internal/model"
)

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// Venue describes a trading venue or broker.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable instrument and its price domain.
type Instrument struct {
	ID             InstrumentID
	VenueID        VenueID
	Name           string
	PriceScale     int
	QuantityScale  int
	PriceIncrement model.Price
}

// Synthetic describes a composite instrument whose price derives from
// component instruments. The emulator uses synthetics only to resolve
// trigger instruments.
type Synthetic struct {
	ID             InstrumentID
	Name           string
	Components     []InstrumentID
	PriceScale     int
	PriceIncrement model.Price
}

// Registry stores venue, instrument and synthetic mappings in a compact form.
type Registry struct {
	venues      []Venue
	instruments []Instrument
	synthetics  []Synthetic

	venueByName      map[string]VenueID
	instrumentByName map[string]InstrumentID
	syntheticByName  map[string]InstrumentID
}

// Synthetic instrument IDs occupy a reserved range above real instruments.
const syntheticIDBase InstrumentID = 1 << 24

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName:      make(map[string]VenueID),
		instrumentByName: make(map[string]InstrumentID),
		syntheticByName:  make(map[string]InstrumentID),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers a new instrument and returns its ID.
func (r *Registry) AddInstrument(name string, venueID VenueID, priceScale, quantityScale int, priceIncrement model.Price) (InstrumentID, error) {
	if name == "" {
		return 0, fmt.Errorf("instrument name is empty")
	}
	if _, ok := r.Venue(venueID); !ok {
		return 0, fmt.Errorf("venue id not found: %d", venueID)
	}
	if id, ok := r.instrumentByName[name]; ok {
		return id, fmt.Errorf("instrument already exists: %s", name)
	}
	if priceIncrement <= 0 {
		return 0, fmt.Errorf("price increment must be positive: %d", priceIncrement)
	}
	id := InstrumentID(len(r.instruments) + 1)
	r.instruments = append(r.instruments, Instrument{
		ID:             id,
		VenueID:        venueID,
		Name:           name,
		PriceScale:     priceScale,
		QuantityScale:  quantityScale,
		PriceIncrement: priceIncrement,
	})
	r.instrumentByName[name] = id
	return id, nil
}

// AddSynthetic registers a synthetic instrument and returns its ID.
func (r *Registry) AddSynthetic(name string, components []InstrumentID, priceScale int, priceIncrement model.Price) (InstrumentID, error) {
	if name == "" {
		return 0, fmt.Errorf("synthetic name is empty")
	}
	if id, ok := r.syntheticByName[name]; ok {
		return id, fmt.Errorf("synthetic already exists: %s", name)
	}
	for _, c := range components {
		if _, ok := r.Instrument(c); !ok {
			return 0, fmt.Errorf("synthetic component not found: %d", c)
		}
	}
	if priceIncrement <= 0 {
		return 0, fmt.Errorf("price increment must be positive: %d", priceIncrement)
	}
	id := syntheticIDBase + InstrumentID(len(r.synthetics)+1)
	r.synthetics = append(r.synthetics, Synthetic{
		ID:             id,
		Name:           name,
		Components:     components,
		PriceScale:     priceScale,
		PriceIncrement: priceIncrement,
	})
	r.syntheticByName[name] = id
	return id, nil
}

// Venue returns a venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(r.venues) {
		return Venue{}, false
	}
	return r.venues[idx], true
}

// Instrument returns an instrument by ID.
func (r *Registry) Instrument(id InstrumentID) (Instrument, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[idx], true
}

// Synthetic returns a synthetic instrument by ID.
func (r *Registry) Synthetic(id InstrumentID) (Synthetic, bool) {
	idx := int(id-syntheticIDBase) - 1
	if idx < 0 || idx >= len(r.synthetics) {
		return Synthetic{}, false
	}
	return r.synthetics[idx], true
}

// VenueByName resolves a venue ID from its name.
func (r *Registry) VenueByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// InstrumentByName resolves an instrument ID from its name.
func (r *Registry) InstrumentByName(name string) (InstrumentID, bool) {
	id, ok := r.instrumentByName[name]
	return id, ok
}

// SyntheticByName resolves a synthetic ID from its name.
func (r *Registry) SyntheticByName(name string) (InstrumentID, bool) {
	id, ok := r.syntheticByName[name]
	return id, ok
}

// Instruments returns all registered instruments.
func (r *Registry) Instruments() []Instrument {
	return r.instruments
}

// Synthetics returns all registered synthetics.
func (r *Registry) Synthetics() []Synthetic {
	return r.synthetics
}
