package cache

import (
	"encoding/json"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/schema"
)

// Store persists cache orders to PostgreSQL so a restarted emulator can
// rebuild its working set by replay. Writes are write-through and
// synchronous; the table is small (working orders only).
type Store struct {
	db *gorm.DB
}

// OrderRecord is the persisted row for one order plus its routing identity.
type OrderRecord struct {
	ClientOrderID       uint64 `gorm:"primaryKey"`
	StrategyID          uint32
	TraderID            uint32
	InstrumentID        uint32
	TriggerInstrumentID uint32
	Side                uint16
	Type                uint16
	TimeInForce         uint16
	ExpireNs            int64
	Quantity            int64
	FilledQty           int64
	Price               int64
	HasPrice            bool
	TriggerPrice        int64
	HasTriggerPrice     bool
	TrailingOffset      int64
	TrailingOffsetType  uint16
	LimitOffset         int64
	Status              uint16
	EmulationTrigger    uint16
	ContingencyType     uint16
	LinkedOrderIDs      string // JSON-encoded []uint64
	ParentOrderID       uint64
	ExecAlgorithmID     uint16
	ExecSpawnID         uint64
	IsTriggered         bool
	TsTriggered         int64
	TsInit              int64
	TsLast              int64
	PositionID          uint64
	ClientID            uint16
}

// TableName keeps the table name stable across gorm naming strategies.
func (OrderRecord) TableName() string { return "emulator_orders" }

// NewStore migrates the schema and returns a store over the connection.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate order store")
	}
	return &Store{db: db}, nil
}

// SaveOrder upserts one order row.
func (s *Store) SaveOrder(o *schema.Order, positionID schema.PositionID, clientID schema.ClientID) error {
	rec, err := toRecord(o, positionID, clientID)
	if err != nil {
		return err
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return errors.Wrap(err, "save order record")
	}
	return nil
}

// LoadOrders reads every persisted order row.
func (s *Store) LoadOrders() ([]OrderRecord, error) {
	var records []OrderRecord
	if err := s.db.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load order records")
	}
	return records, nil
}

// DeleteOrder removes a row once the order is terminal and reaped.
func (s *Store) DeleteOrder(cid schema.ClientOrderID) error {
	if err := s.db.Delete(&OrderRecord{}, "client_order_id = ?", uint64(cid)).Error; err != nil {
		return errors.Wrap(err, "delete order record")
	}
	return nil
}

func toRecord(o *schema.Order, positionID schema.PositionID, clientID schema.ClientID) (OrderRecord, error) {
	linked := make([]uint64, 0, len(o.LinkedOrderIDs))
	for _, cid := range o.LinkedOrderIDs {
		linked = append(linked, uint64(cid))
	}
	raw, err := json.Marshal(linked)
	if err != nil {
		return OrderRecord{}, errors.Wrap(err, "encode linked order ids")
	}
	return OrderRecord{
		ClientOrderID:       uint64(o.ClientOrderID),
		StrategyID:          uint32(o.StrategyID),
		TraderID:            uint32(o.TraderID),
		InstrumentID:        uint32(o.InstrumentID),
		TriggerInstrumentID: uint32(o.TriggerInstrumentID),
		Side:                uint16(o.Side),
		Type:                uint16(o.Type),
		TimeInForce:         uint16(o.TimeInForce),
		ExpireNs:            o.ExpireNs,
		Quantity:            int64(o.Quantity),
		FilledQty:           int64(o.FilledQty),
		Price:               int64(o.Price),
		HasPrice:            o.HasPrice,
		TriggerPrice:        int64(o.TriggerPrice),
		HasTriggerPrice:     o.HasTriggerPrice,
		TrailingOffset:      o.TrailingOffset,
		TrailingOffsetType:  uint16(o.TrailingOffsetType),
		LimitOffset:         o.LimitOffset,
		Status:              uint16(o.Status),
		EmulationTrigger:    uint16(o.EmulationTrigger),
		ContingencyType:     uint16(o.ContingencyType),
		LinkedOrderIDs:      string(raw),
		ParentOrderID:       uint64(o.ParentOrderID),
		ExecAlgorithmID:     uint16(o.ExecAlgorithmID),
		ExecSpawnID:         uint64(o.ExecSpawnID),
		IsTriggered:         o.IsTriggered,
		TsTriggered:         o.TsTriggered,
		TsInit:              o.TsInit,
		TsLast:              o.TsLast,
		PositionID:          uint64(positionID),
		ClientID:            uint16(clientID),
	}, nil
}

func (rec OrderRecord) toOrder() (*schema.Order, schema.PositionID, schema.ClientID) {
	var linkedRaw []uint64
	if rec.LinkedOrderIDs != "" {
		_ = json.Unmarshal([]byte(rec.LinkedOrderIDs), &linkedRaw)
	}
	linked := make([]schema.ClientOrderID, 0, len(linkedRaw))
	for _, cid := range linkedRaw {
		linked = append(linked, schema.ClientOrderID(cid))
	}
	o := &schema.Order{
		ClientOrderID:       schema.ClientOrderID(rec.ClientOrderID),
		StrategyID:          schema.StrategyID(rec.StrategyID),
		TraderID:            schema.TraderID(rec.TraderID),
		InstrumentID:        schema.InstrumentID(rec.InstrumentID),
		TriggerInstrumentID: schema.InstrumentID(rec.TriggerInstrumentID),
		Side:                schema.OrderSide(rec.Side),
		Type:                schema.OrderType(rec.Type),
		TimeInForce:         schema.TimeInForce(rec.TimeInForce),
		ExpireNs:            rec.ExpireNs,
		Quantity:            model.Quantity(rec.Quantity),
		FilledQty:           model.Quantity(rec.FilledQty),
		Price:               model.Price(rec.Price),
		HasPrice:            rec.HasPrice,
		TriggerPrice:        model.Price(rec.TriggerPrice),
		HasTriggerPrice:     rec.HasTriggerPrice,
		TrailingOffset:      rec.TrailingOffset,
		TrailingOffsetType:  schema.TrailingOffsetType(rec.TrailingOffsetType),
		LimitOffset:         rec.LimitOffset,
		Status:              schema.OrderStatus(rec.Status),
		EmulationTrigger:    schema.TriggerType(rec.EmulationTrigger),
		ContingencyType:     schema.ContingencyType(rec.ContingencyType),
		LinkedOrderIDs:      linked,
		ParentOrderID:       schema.ClientOrderID(rec.ParentOrderID),
		ExecAlgorithmID:     schema.ExecAlgorithmID(rec.ExecAlgorithmID),
		ExecSpawnID:         schema.ClientOrderID(rec.ExecSpawnID),
		IsTriggered:         rec.IsTriggered,
		TsTriggered:         rec.TsTriggered,
		TsInit:              rec.TsInit,
		TsLast:              rec.TsLast,
	}
	return o, schema.PositionID(rec.PositionID), schema.ClientID(rec.ClientID)
}
