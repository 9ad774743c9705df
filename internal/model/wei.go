package model

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"
)

// weiPerETHExp is the decimal exponent between wei and ETH
const weiPerETHExp = 18

// WeiAmount is a non-negative integer amount of wei. Upstream sends these as
// base-10 strings, occasionally as JSON numbers or null. Absent, malformed or
// negative values decode to zero and are flagged so callers can log them.
type WeiAmount struct {
	value     decimal.Decimal
	malformed bool
}

// NewWei builds a WeiAmount from a base-10 string, applying the same rules as JSON decoding.
func NewWei(s string) WeiAmount {
	var w WeiAmount
	w.parse(s)
	return w
}

// WeiFromETH converts an ETH amount to wei, truncating below one wei.
func WeiFromETH(eth float64) WeiAmount {
	d := decimal.NewFromFloat(eth).Shift(weiPerETHExp).Truncate(0)
	if d.IsNegative() {
		return WeiAmount{malformed: true}
	}
	return WeiAmount{value: d}
}

func (w *WeiAmount) parse(s string) {
	w.value = decimal.Zero
	w.malformed = false
	if s == "" {
		return
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || !d.Equal(d.Truncate(0)) {
		w.malformed = true
		return
	}
	w.value = d
}

// UnmarshalJSON accepts a quoted string, a bare number or null.
func (w *WeiAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		w.parse("")
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			w.parse("")
			w.malformed = true
			return nil
		}
		w.parse(s)
		return nil
	}
	w.parse(string(data))
	return nil
}

// MarshalJSON writes the amount as a base-10 string, the way upstream does.
func (w WeiAmount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(w.String())), nil
}

// String returns the base-10 wei value
func (w WeiAmount) String() string {
	return w.value.String()
}

// ETH converts the amount to ETH
func (w WeiAmount) ETH() float64 {
	f, _ := w.value.Shift(-weiPerETHExp).Float64()
	return f
}

// Add returns w + o; the result is malformed if either operand was
func (w WeiAmount) Add(o WeiAmount) WeiAmount {
	return WeiAmount{value: w.value.Add(o.value), malformed: w.malformed || o.malformed}
}

// IsZero reports whether the amount is zero
func (w WeiAmount) IsZero() bool {
	return w.value.IsZero()
}

// Malformed reports whether the source value was present but unusable
func (w WeiAmount) Malformed() bool {
	return w.malformed
}
