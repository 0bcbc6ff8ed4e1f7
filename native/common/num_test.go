package common

import (
	"math/big"
	"testing"
)

func TestParseRat(t *testing.T) {
	cases := []struct {
		input string
		want  *big.Rat
		fails bool
	}{
		{input: "1337", want: big.NewRat(1337, 1)},
		{input: "0.2", want: big.NewRat(1, 5)},
		{input: "3/2", want: big.NewRat(3, 2)},
		{input: " 1.5 ", want: big.NewRat(3, 2)},
		{input: "", fails: true},
		{input: "abc", fails: true},
	}
	for _, tc := range cases {
		got, err := ParseRat(tc.input)
		if tc.fails {
			if err == nil {
				t.Fatalf("ParseRat(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRat(%q): %v", tc.input, err)
		}
		if got.Cmp(tc.want) != 0 {
			t.Fatalf("ParseRat(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestIsCloseToleratesRoundingNoise(t *testing.T) {
	a := MustRat("100000")
	noise := new(big.Rat).Add(a, big.NewRat(1, 100_000_000_000))
	if !IsClose(a, noise) {
		t.Fatalf("expected %s and %s to be close", a, noise)
	}
	apart := new(big.Rat).Add(a, big.NewRat(1, 100))
	if IsClose(a, apart) {
		t.Fatalf("expected %s and %s to differ", a, apart)
	}
}

func TestTolerantOrdering(t *testing.T) {
	a := MustRat("10")
	b := MustRat("10.000000000001")
	if !Leq(a, b) || !Leq(b, a) {
		t.Fatalf("values within tolerance must compare equal both ways")
	}
	if Gt(b, a) {
		t.Fatalf("Gt must reject values within tolerance")
	}
	if !Lt(MustRat("9"), a) {
		t.Fatalf("Lt(9, 10) must hold")
	}
	if !Gt(MustRat("11"), a) {
		t.Fatalf("Gt(11, 10) must hold")
	}
	if !Leq(Zero(), Zero()) || !Geq(Zero(), Zero()) {
		t.Fatalf("zero must compare equal to itself")
	}
}

func TestMinMaxClamp(t *testing.T) {
	a, b := MustRat("2"), MustRat("5")
	if Min(a, b).Cmp(a) != 0 || Max(a, b).Cmp(b) != 0 {
		t.Fatalf("min/max mismatch")
	}
	if ClampNonNegative(MustRat("-4")).Sign() != 0 {
		t.Fatalf("negative values must clamp to zero")
	}
	if ClampNonNegative(a).Cmp(a) != 0 {
		t.Fatalf("positive values must pass through")
	}
}
