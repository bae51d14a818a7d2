package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MarshalJSON writes c as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	d, err := decodeDecimal(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalJSON writes p on the 0-100 scale.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string on the 0-100 scale.
func (p *Percent) UnmarshalJSON(data []byte) error {
	d, err := decodeDecimal(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPercent, data)
	}
	v, err := PercentFromDecimal(d)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func decodeDecimal(data []byte) (decimal.Decimal, error) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero, err
		}
		return parseDecimal(s)
	}
	return decimal.NewFromString(string(data))
}
