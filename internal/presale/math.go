package presale

import "math/bits"

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// percentOf returns floor(amount*pct/100). The product is carried in 128
// bits so the result is exact for every amount when pct <= 100.
func percentOf(amount, pct uint64) uint64 {
	hi, lo := bits.Mul64(amount, pct)
	q, _ := bits.Div64(hi, lo, 100)
	return q
}
