package plugins

import (
	"context"
	"testing"
)

const tierConfig = `{
	"loyalty_tiers": {
		"window_days": 30,
		"tiers": [
			{"id": "base", "threshold_cents": 0},
			{"id": "silver", "threshold_cents": 15000}
		]
	}
}`

func TestRollingSpendTier_SelectsSilverAboveThreshold(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(tierConfig)
	h.rollingSpendCents = 18000

	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1"}
	m, err := RollingSpendTier{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Summary["loyalty_tier"] != "silver" {
		t.Fatalf("expected silver, got %v", m.Summary["loyalty_tier"])
	}
}

func TestRollingSpendTier_SelectsBaseBelowThreshold(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(tierConfig)
	h.rollingSpendCents = 2000

	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1"}
	m, err := RollingSpendTier{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Summary["loyalty_tier"] != "base" {
		t.Fatalf("expected base, got %v", m.Summary["loyalty_tier"])
	}
}

func TestRollingSpendTier_UsesDisplayNameWhenConfigured(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{
		"loyalty_tiers": {
			"window_days": 30,
			"tiers": [
				{"id": "silver", "display_name": "Silver Member", "threshold_cents": 0}
			]
		}
	}`)
	h.rollingSpendCents = 100

	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1", MerchantID: "m1", CustomerAccount: "t1::acct::c1"}
	m, err := RollingSpendTier{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Summary["loyalty_tier"] != "Silver Member" {
		t.Fatalf("expected display name Silver Member, got %v", m.Summary["loyalty_tier"])
	}
	if len(h.upsertedTiers) != 1 {
		t.Fatalf("expected one upsert, got %d", len(h.upsertedTiers))
	}
	got := h.upsertedTiers[0]
	if got.TierID != "silver" || got.TierName != "Silver Member" {
		t.Fatalf("expected TierID=silver TierName=Silver Member, got %+v", got)
	}
}

func TestRollingSpendTier_MissingConfigReturnsNil(t *testing.T) {
	h := newFakeHelpers()
	rctx := ReceiptContext{Tenant: "t1", ProgramID: "p1"}
	m, err := RollingSpendTier{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil mutation, got %+v", m)
	}
}
