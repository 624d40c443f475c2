// Package codec provides fixed-size little-endian payload codecs for the
// journal and the event bridge. Layouts are versioned through the record
// header; the codecs themselves never change shape within a version.
package codec

import (
	"encoding/binary"

	"main/internal/model"
	"main/internal/schema"
)

const QuoteTickPayloadSize = 44

// EncodeQuoteTick serializes a quote tick into a fixed-size payload.
func EncodeQuoteTick(dst []byte, tick schema.QuoteTick) []byte {
	if cap(dst) < QuoteTickPayloadSize {
		dst = make([]byte, QuoteTickPayloadSize)
	} else {
		dst = dst[:QuoteTickPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(tick.InstrumentID))
	binary.LittleEndian.PutUint64(dst[4:12], uint64(tick.BidPrice))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(tick.AskPrice))
	binary.LittleEndian.PutUint64(dst[20:28], uint64(tick.BidSize))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(tick.AskSize))
	binary.LittleEndian.PutUint64(dst[36:44], uint64(tick.TsEvent))

	return dst
}

// DecodeQuoteTick parses a fixed-size quote tick payload.
func DecodeQuoteTick(src []byte) (schema.QuoteTick, bool) {
	if len(src) < QuoteTickPayloadSize {
		return schema.QuoteTick{}, false
	}
	return schema.QuoteTick{
		InstrumentID: schema.InstrumentID(binary.LittleEndian.Uint32(src[0:4])),
		BidPrice:     model.Price(int64(binary.LittleEndian.Uint64(src[4:12]))),
		AskPrice:     model.Price(int64(binary.LittleEndian.Uint64(src[12:20]))),
		BidSize:      model.Quantity(int64(binary.LittleEndian.Uint64(src[20:28]))),
		AskSize:      model.Quantity(int64(binary.LittleEndian.Uint64(src[28:36]))),
		TsEvent:      int64(binary.LittleEndian.Uint64(src[36:44])),
	}, true
}

const TradeTickPayloadSize = 32

// EncodeTradeTick serializes a trade tick into a fixed-size payload.
func EncodeTradeTick(dst []byte, tick schema.TradeTick) []byte {
	if cap(dst) < TradeTickPayloadSize {
		dst = make([]byte, TradeTickPayloadSize)
	} else {
		dst = dst[:TradeTickPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(tick.InstrumentID))
	binary.LittleEndian.PutUint16(dst[4:6], uint16(tick.Aggressor))
	binary.LittleEndian.PutUint16(dst[6:8], 0)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(tick.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(tick.Size))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(tick.TsEvent))

	return dst
}

// DecodeTradeTick parses a fixed-size trade tick payload.
func DecodeTradeTick(src []byte) (schema.TradeTick, bool) {
	if len(src) < TradeTickPayloadSize {
		return schema.TradeTick{}, false
	}
	return schema.TradeTick{
		InstrumentID: schema.InstrumentID(binary.LittleEndian.Uint32(src[0:4])),
		Aggressor:    schema.OrderSide(binary.LittleEndian.Uint16(src[4:6])),
		Price:        model.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Size:         model.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		TsEvent:      int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}
