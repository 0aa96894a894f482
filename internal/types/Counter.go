package types

import (
	"encoding/json"

	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/dexerrors"
)

// Counter is a 128-bit lifetime accumulator. It is rendered as a decimal string in JSON.
type Counter struct {
	uint128.Uint128
}

// ParseCounter reads the decimal form produced by String.
func ParseCounter(s string) (Counter, error) {
	v, err := uint128.FromString(s)
	if err != nil {
		return Counter{}, dexerrors.ErrInvalidCalculation.Wrapf("parse counter %q: %s", s, err)
	}
	return Counter{v}, nil
}

// Add returns c+v, failing instead of wrapping.
func (c Counter) Add(v uint64) (Counter, error) {
	sum := c.AddWrap64(v)
	if sum.Cmp(c.Uint128) < 0 {
		return c, dexerrors.ErrOverflow.Wrap("lifetime counter exceeds 128 bits")
	}
	return Counter{sum}, nil
}

func (c Counter) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Counter) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCounter(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
