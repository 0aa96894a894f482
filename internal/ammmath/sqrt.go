package ammmath

import (
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

// Sqrt returns floor(sqrt(x)) using Newton's iteration.
func Sqrt(x *uint256.Int) *uint256.Int {
	three := uint256.NewInt(3)
	if !x.Gt(three) {
		if x.IsZero() {
			return new(uint256.Int)
		}
		return uint256.NewInt(1)
	}

	result := new(uint256.Int).Set(x)
	temp := new(uint256.Int).Rsh(x, 1)
	temp.AddUint64(temp, 1)
	q := new(uint256.Int)
	for temp.Lt(result) {
		result.Set(temp)
		q.Div(x, temp)
		temp.Add(q, temp)
		temp.Rsh(temp, 1)
	}
	return result
}

// SqrtUint128 is Sqrt for 128-bit inputs.
func SqrtUint128(x uint128.Uint128) uint64 {
	return Sqrt(&uint256.Int{x.Lo, x.Hi, 0, 0}).Uint64()
}
