package matching

import (
	"errors"
	"fmt"

	"main/internal/model"
	"main/internal/schema"
)

var ErrInsufficientMarketData = errors.New("insufficient market data for trailing stop")

// MarketView is the price inputs to a trailing calculation. Initialized
// flags mirror the matching core's price state.
type MarketView struct {
	Bid      model.Price
	Ask      model.Price
	Last     model.Price
	HasBid   bool
	HasAsk   bool
	HasLast  bool
}

// TrailingUpdate is the result of one trailing calculation. Unset fields
// mean no change.
type TrailingUpdate struct {
	TriggerPrice    model.Price
	HasTriggerPrice bool
	Price           model.Price
	HasPrice        bool
}

// CalculateTrailingStop ratchets a trailing stop's trigger (and limit price
// for trailing-stop-limit) toward the market: down for BUY, up for SELL.
// It is a pure function of the order and the market view; it never loosens
// an existing trigger. Returns ErrInsufficientMarketData when the inputs
// required by the order's trigger mode are absent.
func CalculateTrailingStop(priceIncrement model.Price, o *schema.Order, market MarketView) (TrailingUpdate, error) {
	ref, err := trailingReference(o, market)
	if err != nil {
		return TrailingUpdate{}, err
	}

	offset := trailingOffset(priceIncrement, ref, o.TrailingOffset, o.TrailingOffsetType)
	limitOffset := o.LimitOffset
	if limitOffset == 0 {
		limitOffset = o.TrailingOffset
	}
	priceOffset := trailingOffset(priceIncrement, ref, limitOffset, o.TrailingOffsetType)

	var update TrailingUpdate
	switch o.Side {
	case schema.OrderSideBuy:
		candidate := ref + offset
		if !o.HasTriggerPrice || candidate < o.TriggerPrice {
			update.TriggerPrice = candidate
			update.HasTriggerPrice = true
		}
		if o.Type == schema.OrderTypeTrailingStopLimit {
			limit := ref + priceOffset
			if !o.HasPrice || limit < o.Price {
				update.Price = limit
				update.HasPrice = true
			}
		}
	case schema.OrderSideSell:
		candidate := ref - offset
		if !o.HasTriggerPrice || candidate > o.TriggerPrice {
			update.TriggerPrice = candidate
			update.HasTriggerPrice = true
		}
		if o.Type == schema.OrderTypeTrailingStopLimit {
			limit := ref - priceOffset
			if !o.HasPrice || limit > o.Price {
				update.Price = limit
				update.HasPrice = true
			}
		}
	default:
		panic(fmt.Sprintf("matching: invalid order side %d for order %d", o.Side, o.ClientOrderID))
	}

	return update, nil
}

// trailingReference picks the market price the stop trails: the opposing
// top of book for bid/ask modes, the last trade otherwise.
func trailingReference(o *schema.Order, market MarketView) (model.Price, error) {
	switch o.EmulationTrigger {
	case schema.TriggerLastTrade:
		if !market.HasLast {
			return 0, ErrInsufficientMarketData
		}
		return market.Last, nil
	default:
		if o.Side == schema.OrderSideBuy {
			if !market.HasAsk {
				return 0, ErrInsufficientMarketData
			}
			return market.Ask, nil
		}
		if !market.HasBid {
			return 0, ErrInsufficientMarketData
		}
		return market.Bid, nil
	}
}

// trailingOffset converts the configured offset into price units.
func trailingOffset(priceIncrement, ref model.Price, offset int64, offsetType schema.TrailingOffsetType) model.Price {
	switch offsetType {
	case schema.TrailingOffsetBasisPoints:
		return model.Price(int64(ref) * offset / 10_000)
	case schema.TrailingOffsetTicks:
		return priceIncrement * model.Price(offset)
	default:
		// TrailingOffsetPrice: already in raw price units.
		return model.Price(offset)
	}
}
