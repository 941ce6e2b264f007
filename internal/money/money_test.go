package money

import (
	"math/big"
	"testing"
)

func TestHalfAwayFromZeroRound_GrandTotal42_50Multiplier1(t *testing.T) {
	// 4250 cents * 1 / 100 = 42.5 -> rounds to 43.
	got := HalfAwayFromZeroRound(big.NewInt(4250), big.NewInt(100))
	if got.Cmp(big.NewInt(43)) != 0 {
		t.Fatalf("expected 43, got %s", got.String())
	}
}

func TestHalfAwayFromZeroRound_GrandTotal42_50Multiplier1_5(t *testing.T) {
	// 4250 cents * 3 / (100*2) = 63.75 -> rounds to 64.
	got := HalfAwayFromZeroRound(big.NewInt(4250*3), big.NewInt(200))
	if got.Cmp(big.NewInt(64)) != 0 {
		t.Fatalf("expected 64, got %s", got.String())
	}
}

func TestHalfAwayFromZeroRound_ExactQuotientNoRounding(t *testing.T) {
	got := HalfAwayFromZeroRound(big.NewInt(100), big.NewInt(4))
	if got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected 25, got %s", got.String())
	}
}

func TestHalfAwayFromZeroRound_NegativeHalfRoundsAwayFromZero(t *testing.T) {
	got := HalfAwayFromZeroRound(big.NewInt(-5), big.NewInt(2))
	if got.Cmp(big.NewInt(-3)) != 0 {
		t.Fatalf("expected -3, got %s", got.String())
	}
}

func TestSum_TreatsNilAsZero(t *testing.T) {
	got := Sum(big.NewInt(5), nil, big.NewInt(3))
	if got.Cmp(big.NewInt(8)) != 0 {
		t.Fatalf("expected 8, got %s", got.String())
	}
}

func TestIsZero_NilIsZero(t *testing.T) {
	if !IsZero(nil) {
		t.Fatalf("expected nil to be zero")
	}
	if IsZero(big.NewInt(1)) {
		t.Fatalf("expected 1 to not be zero")
	}
}
