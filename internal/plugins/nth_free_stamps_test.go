package plugins

import (
	"context"
	"testing"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

func TestNthFreeStamps_ThresholdFiveProducesStampAndCoupon(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{
		"stamp_programs": [
			{"id": "s1", "skus": ["ABC"], "stamps_per_item": 1, "threshold": 5}
		]
	}`)
	h.setAccountBalance("t1::acct::c1", "p1", "stamps:s1", 4)

	rctx := ReceiptContext{
		Tenant: "t1", ProgramID: "p1", MerchantID: "m1",
		CustomerAccount: "t1::acct::c1",
		LineItems:       []domain.ReceiptLineItem{{SKU: "abc", Qty: 3}},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || len(m.Entries) != 2 {
		t.Fatalf("expected stamp entry + coupon entry, got %+v", m)
	}
	stampLine := m.Entries[0].Lines[1]
	if stampLine.Credit.Int64() != 3 {
		t.Fatalf("expected +3 stamps, got %v", stampLine.Credit)
	}
	couponLine := m.Entries[1].Lines[1]
	if couponLine.Credit.Int64() != 1 {
		t.Fatalf("expected +1 coupon, got %v", couponLine.Credit)
	}
	if m.Entries[1].Lines[1].Unit != "coupon:s1" {
		t.Fatalf("expected coupon unit coupon:s1, got %q", m.Entries[1].Lines[1].Unit)
	}
}

func TestNthFreeStamps_NoThresholdStillAccruesStamps(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{
		"stamp_programs": [
			{"id": "s1", "skus": ["ABC"], "stamps_per_item": 1}
		]
	}`)

	rctx := ReceiptContext{
		Tenant: "t1", ProgramID: "p1", MerchantID: "m1",
		CustomerAccount: "t1::acct::c1",
		LineItems:       []domain.ReceiptLineItem{{SKU: "abc", Qty: 3}},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || len(m.Entries) != 1 {
		t.Fatalf("expected stamp entry only, no coupon entry, got %+v", m)
	}
	stampLine := m.Entries[0].Lines[1]
	if stampLine.Credit.Int64() != 3 {
		t.Fatalf("expected +3 stamps, got %v", stampLine.Credit)
	}
	if _, hasCoupons := m.Summary["stamp_programs"].(map[string]any)["s1"].(map[string]any)["coupons_added"]; hasCoupons {
		t.Fatalf("expected no coupons_added without a threshold")
	}
}

func TestNthFreeStamps_NoMatchingSKUReturnsNil(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"stamp_programs": [{"id": "s1", "skus": ["ABC"], "threshold": 5}]}`)
	rctx := ReceiptContext{
		Tenant: "t1", ProgramID: "p1", MerchantID: "m1",
		CustomerAccount: "t1::acct::c1",
		LineItems:       []domain.ReceiptLineItem{{SKU: "zzz", Qty: 3}},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil mutation, got %+v", m)
	}
}

func TestNthFreeStamps_MissingConfigShouldNotHandle(t *testing.T) {
	h := newFakeHelpers()
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1"}
	handle, err := NthFreeStamps{}.ShouldHandle(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle {
		t.Fatalf("expected ShouldHandle false with no stamp_programs config")
	}
}
