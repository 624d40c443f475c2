package schema

import "main/internal/model"

// QuoteTick is a top-of-book update for one instrument.
type QuoteTick struct {
	InstrumentID InstrumentID
	BidPrice     model.Price
	AskPrice     model.Price
	BidSize      model.Quantity
	AskSize      model.Quantity
	TsEvent      int64
}

// TradeTick is a single trade print for one instrument.
type TradeTick struct {
	InstrumentID InstrumentID
	Price        model.Price
	Size         model.Quantity
	Aggressor    OrderSide
	TsEvent      int64
}
