package codec

import (
	"encoding/binary"

	"main/internal/model"
	"main/internal/schema"
)

// EventKind is the wire discriminator for order event records.
type EventKind uint16

const (
	EventKindUnknown EventKind = iota
	EventKindInitialized
	EventKindEmulated
	EventKindTriggered
	EventKindReleased
	EventKindUpdated
	EventKindAccepted
	EventKindCanceled
	EventKindExpired
	EventKindRejected
	EventKindFilled
)

// Flag bits for optional fields in an event record.
const (
	EventFlagHasQuantity uint16 = 1 << iota
	EventFlagHasPrice
	EventFlagHasTriggerPrice
)

// OrderEventRecord is the flat wire form of an order event. Free-text
// fields (reject/cancel reasons) do not survive the wire; consumers that
// need them read the live topic instead.
type OrderEventRecord struct {
	Kind          EventKind
	Flags         uint16
	ClientOrderID schema.ClientOrderID
	StrategyID    schema.StrategyID
	InstrumentID  schema.InstrumentID
	TsEvent       int64
	Price         model.Price
	TriggerPrice  model.Price
	Quantity      model.Quantity
	LeavesQty     model.Quantity
	PositionID    schema.PositionID
}

// EventRecordFrom flattens a lifecycle event into its wire record.
func EventRecordFrom(evt schema.OrderEvent) OrderEventRecord {
	base := evt.Base()
	rec := OrderEventRecord{
		ClientOrderID: base.ClientOrderID,
		StrategyID:    base.StrategyID,
		InstrumentID:  base.InstrumentID,
		TsEvent:       base.TsEvent,
	}
	switch v := evt.(type) {
	case schema.OrderInitialized:
		rec.Kind = EventKindInitialized
	case schema.OrderEmulated:
		rec.Kind = EventKindEmulated
	case schema.OrderTriggered:
		rec.Kind = EventKindTriggered
		rec.TriggerPrice = v.TriggerPrice
		rec.Flags |= EventFlagHasTriggerPrice
	case schema.OrderReleased:
		rec.Kind = EventKindReleased
		rec.Price = v.ReleasedPrice
		rec.Flags |= EventFlagHasPrice
	case schema.OrderUpdated:
		rec.Kind = EventKindUpdated
		if v.HasQuantity {
			rec.Quantity = v.Quantity
			rec.Flags |= EventFlagHasQuantity
		}
		if v.HasPrice {
			rec.Price = v.Price
			rec.Flags |= EventFlagHasPrice
		}
		if v.HasTriggerPrice {
			rec.TriggerPrice = v.TriggerPrice
			rec.Flags |= EventFlagHasTriggerPrice
		}
	case schema.OrderAccepted:
		rec.Kind = EventKindAccepted
	case schema.OrderCanceled:
		rec.Kind = EventKindCanceled
	case schema.OrderExpired:
		rec.Kind = EventKindExpired
	case schema.OrderRejected:
		rec.Kind = EventKindRejected
	case schema.OrderFilled:
		rec.Kind = EventKindFilled
		rec.Price = v.LastPrice
		rec.Quantity = v.LastQty
		rec.LeavesQty = v.LeavesQty
		rec.PositionID = v.PositionID
		rec.Flags |= EventFlagHasQuantity | EventFlagHasPrice
	}
	return rec
}

const OrderEventPayloadSize = 68

// EncodeOrderEvent serializes an event record into a fixed-size payload.
func EncodeOrderEvent(dst []byte, rec OrderEventRecord) []byte {
	if cap(dst) < OrderEventPayloadSize {
		dst = make([]byte, OrderEventPayloadSize)
	} else {
		dst = dst[:OrderEventPayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(rec.Kind))
	binary.LittleEndian.PutUint16(dst[2:4], rec.Flags)
	binary.LittleEndian.PutUint64(dst[4:12], uint64(rec.ClientOrderID))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(rec.StrategyID))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(rec.InstrumentID))
	binary.LittleEndian.PutUint64(dst[20:28], uint64(rec.TsEvent))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(rec.Price))
	binary.LittleEndian.PutUint64(dst[36:44], uint64(rec.TriggerPrice))
	binary.LittleEndian.PutUint64(dst[44:52], uint64(rec.Quantity))
	binary.LittleEndian.PutUint64(dst[52:60], uint64(rec.LeavesQty))
	binary.LittleEndian.PutUint64(dst[60:68], uint64(rec.PositionID))

	return dst
}

// DecodeOrderEvent parses a fixed-size event record payload.
func DecodeOrderEvent(src []byte) (OrderEventRecord, bool) {
	if len(src) < OrderEventPayloadSize {
		return OrderEventRecord{}, false
	}
	return OrderEventRecord{
		Kind:          EventKind(binary.LittleEndian.Uint16(src[0:2])),
		Flags:         binary.LittleEndian.Uint16(src[2:4]),
		ClientOrderID: schema.ClientOrderID(binary.LittleEndian.Uint64(src[4:12])),
		StrategyID:    schema.StrategyID(binary.LittleEndian.Uint32(src[12:16])),
		InstrumentID:  schema.InstrumentID(binary.LittleEndian.Uint32(src[16:20])),
		TsEvent:       int64(binary.LittleEndian.Uint64(src[20:28])),
		Price:         model.Price(int64(binary.LittleEndian.Uint64(src[28:36]))),
		TriggerPrice:  model.Price(int64(binary.LittleEndian.Uint64(src[36:44]))),
		Quantity:      model.Quantity(int64(binary.LittleEndian.Uint64(src[44:52]))),
		LeavesQty:     model.Quantity(int64(binary.LittleEndian.Uint64(src[52:60]))),
		PositionID:    schema.PositionID(binary.LittleEndian.Uint64(src[60:68])),
	}, true
}
