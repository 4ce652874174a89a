package presale

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedArithmetic(t *testing.T) {
	if _, err := checkedAdd(math.MaxUint64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("checkedAdd overflow: got %v", err)
	}
	if v, err := checkedAdd(math.MaxUint64-1, 1); err != nil || v != math.MaxUint64 {
		t.Fatalf("checkedAdd = %d, %v", v, err)
	}
	if _, err := checkedMul(math.MaxUint64/2+1, 2); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("checkedMul overflow: got %v", err)
	}
	if v, err := checkedMul(1<<32-1, 1<<32+1); err != nil || v != math.MaxUint64 {
		t.Fatalf("checkedMul = %d, %v", v, err)
	}
	if got := saturatingSub(3, 5); got != 0 {
		t.Fatalf("saturatingSub(3, 5) = %d", got)
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		amount, pct, want uint64
	}{
		{1000, 40, 400},
		{999, 30, 299},
		{1, 99, 0},
		{math.MaxUint64, 100, math.MaxUint64},
		{math.MaxUint64, 50, math.MaxUint64 / 2},
	}
	for _, tc := range tests {
		if got := percentOf(tc.amount, tc.pct); got != tc.want {
			t.Errorf("percentOf(%d, %d) = %d, want %d", tc.amount, tc.pct, got, tc.want)
		}
	}
}
