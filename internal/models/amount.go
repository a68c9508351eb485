package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// LooseAmount keeps a payment amount exactly as the backend sent it: a number,
// a numeric string, garbage, or nothing at all.
type LooseAmount struct {
	raw string
	set bool
}

func NewLooseAmount(raw string) LooseAmount {
	return LooseAmount{raw: NormalizeAmount(raw), set: true}
}

// NormalizeAmount strips grouping spaces and turns a decimal comma into a dot.
func NormalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	return strings.ReplaceAll(s, ",", ".")
}

// Present reports whether the field was sent with a non-null value.
func (a LooseAmount) Present() bool { return a.set }

// Decimal returns the numeric value; non-numeric values count as zero.
func (a LooseAmount) Decimal() decimal.Decimal {
	if !a.set {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(a.raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a *LooseAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = LooseAmount{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = NewLooseAmount(s)
		return nil
	}
	*a = LooseAmount{raw: string(b), set: true}
	return nil
}

func (a LooseAmount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	// the parser accepts forms like ".5" and "+5" that are not JSON numbers
	if d, err := decimal.NewFromString(a.raw); err == nil {
		return []byte(d.String()), nil
	}
	return json.Marshal(a.raw)
}

// Raw is the normalized text of the value, empty when absent.
func (a LooseAmount) Raw() string {
	if !a.set {
		return ""
	}
	return a.raw
}
