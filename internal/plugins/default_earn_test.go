package plugins

import (
	"context"
	"testing"
)

func TestDefaultEarn_ZeroGrandTotalEarnsNothing(t *testing.T) {
	h := newFakeHelpers()
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1", GrandTotalCents: 0}
	m, err := DefaultEarn{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(m.Entries))
	}
	if m.Summary["points_earned"] != 0 {
		t.Fatalf("expected points_earned 0, got %v", m.Summary["points_earned"])
	}
}

func TestDefaultEarn_GrandTotal42_50Multiplier1Rounds43(t *testing.T) {
	h := newFakeHelpers()
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1", GrandTotalCents: 4250}
	m, err := DefaultEarn{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Summary["points_earned"] != int64(43) {
		t.Fatalf("expected 43, got %v", m.Summary["points_earned"])
	}
	if len(m.Entries) != 1 || len(m.Entries[0].Lines) != 2 {
		t.Fatalf("expected one entry with two lines, got %+v", m.Entries)
	}
}

func TestDefaultEarn_GrandTotal42_50Multiplier1_5Rounds64(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"points_multiplier": 1.5}`)
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1", GrandTotalCents: 4250}
	m, err := DefaultEarn{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Summary["points_earned"] != int64(64) {
		t.Fatalf("expected 64, got %v", m.Summary["points_earned"])
	}
}

func TestDefaultEarn_MemoCarriesMerchantID(t *testing.T) {
	h := newFakeHelpers()
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "merchX", CustomerAccount: "t1::acct::c1", GrandTotalCents: 1000}
	m, err := DefaultEarn{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Entries[0].Memo != "earn:merchX" {
		t.Fatalf("expected memo earn:merchX, got %q", m.Entries[0].Memo)
	}
}
