package money

import "testing"

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{-1.236, -1.24},
		{100, 100},
		{0.004, 0},
		{3999.996, 4000},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestGTE(t *testing.T) {
	if !GTE(100, 100) {
		t.Error("equal amounts should satisfy GTE")
	}
	if !GTE(99.9995, 100) {
		t.Error("difference inside tolerance should satisfy GTE")
	}
	if GTE(99.99, 100) {
		t.Error("a cent short should not satisfy GTE")
	}
}

func TestPositive(t *testing.T) {
	if Positive(0) {
		t.Error("zero is not positive")
	}
	if Positive(0.0005) {
		t.Error("drift inside tolerance is not positive")
	}
	if !Positive(0.01) {
		t.Error("one cent is positive")
	}
}

func TestEqual(t *testing.T) {
	if !Equal(10.00, 10.0005) {
		t.Error("amounts inside tolerance should compare equal")
	}
	if Equal(10.00, 10.01) {
		t.Error("a cent apart should not compare equal")
	}
}

func TestCurrencyValid(t *testing.T) {
	for _, c := range []Currency{VES, USD, EUR} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Currency("COP").Valid() {
		t.Error("COP should not be valid")
	}
	if Currency("").Valid() {
		t.Error("empty currency should not be valid")
	}
}
