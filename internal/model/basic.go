package model

import (
	"errors"
	"strconv"
	"strings"
)

var ErrMalformedDecimal = errors.New("malformed decimal literal")

// Price is a scaled integer. The scale is defined per instrument.
type Price int64

func (p Price) AppendString(priceScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(p), priceScale)
}

func (p Price) String(priceScale int) string {
	return string(p.AppendString(priceScale, nil))
}

// Quantity is a scaled integer. The scale is defined per instrument.
type Quantity int64

func (q Quantity) AppendString(quantityScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(q), quantityScale)
}

func (q Quantity) String(quantityScale int) string {
	return string(q.AppendString(quantityScale, nil))
}

// Notional is a scaled integer. The scale is defined per instrument.
type Notional int64

func (n Notional) AppendString(notionalScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(n), notionalScale)
}

// ParsePrice converts a decimal literal into a scaled price.
func ParsePrice(s string, priceScale int) (Price, error) {
	v, err := parseScaledInt(s, priceScale)
	return Price(v), err
}

// ParseQuantity converts a decimal literal into a scaled quantity.
func ParseQuantity(s string, quantityScale int) (Quantity, error) {
	v, err := parseScaledInt(s, quantityScale)
	return Quantity(v), err
}

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}

func parseScaledInt(s string, scale int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformedDecimal
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, ErrMalformedDecimal
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrMalformedDecimal
	}
	if len(fracPart) > scale {
		// Excess fractional digits must be zero; silent truncation loses precision.
		for i := scale; i < len(fracPart); i++ {
			if fracPart[i] != '0' {
				return 0, ErrMalformedDecimal
			}
		}
		fracPart = fracPart[:scale]
	}

	var value int64
	for i := 0; i < len(intPart); i++ {
		c := intPart[i]
		if c < '0' || c > '9' {
			return 0, ErrMalformedDecimal
		}
		value = value*10 + int64(c-'0')
	}
	for i := 0; i < scale; i++ {
		d := int64(0)
		if i < len(fracPart) {
			c := fracPart[i]
			if c < '0' || c > '9' {
				return 0, ErrMalformedDecimal
			}
			d = int64(c - '0')
		}
		value = value*10 + d
	}

	if neg {
		value = -value
	}
	return value, nil
}
