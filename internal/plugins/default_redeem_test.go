package plugins

import (
	"context"
	"math/big"
	"testing"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

func TestDefaultRedeem_NonPositiveQtyFails(t *testing.T) {
	h := newFakeHelpers()
	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(0)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failure == nil || res.Failure.Reason != "Redemption quantity must be positive" || res.Failure.Retryable {
		t.Fatalf("expected nonretryable quantity failure, got %+v", res.Failure)
	}
}

func TestDefaultRedeem_PriorityAllocatesAllToFirstPartner(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"cross_brand_allocation": {"strategy": "priority", "partners": [{"merchant_account": "A"}, {"merchant_account": "B"}]}}`)
	h.attribution = []domain.Attribution{{AccountID: "A", Amount: big.NewInt(100)}}

	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(30)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mutation == nil {
		t.Fatalf("expected success, got failure %+v", res.Failure)
	}
	creditLines := res.Mutation.Entries[0].Lines[1:]
	if len(creditLines) != 1 || creditLines[0].AccountID != "A" || creditLines[0].Credit.Int64() != 30 {
		t.Fatalf("expected 30 credited to A only, got %+v", creditLines)
	}
}

func TestDefaultRedeem_ProportionalEqualWeightSplitsEvenly(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"cross_brand_allocation": {"strategy": "proportional", "partners": [{"merchant_account": "A"}, {"merchant_account": "B"}]}}`)
	h.attribution = []domain.Attribution{{AccountID: "A", Amount: big.NewInt(100)}, {AccountID: "B", Amount: big.NewInt(100)}}

	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(20)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creditLines := res.Mutation.Entries[0].Lines[1:]
	if len(creditLines) != 2 || creditLines[0].Credit.Int64() != 10 || creditLines[1].Credit.Int64() != 10 {
		t.Fatalf("expected 10/10 split, got %+v", creditLines)
	}
}

func TestDefaultRedeem_ProportionalOddQtyBreaksTieByInputOrder(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"cross_brand_allocation": {"strategy": "proportional", "partners": [{"merchant_account": "A"}, {"merchant_account": "B"}]}}`)
	h.attribution = []domain.Attribution{{AccountID: "A", Amount: big.NewInt(100)}, {AccountID: "B", Amount: big.NewInt(100)}}

	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(21)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creditLines := res.Mutation.Entries[0].Lines[1:]
	if creditLines[0].Credit.Int64() != 11 || creditLines[1].Credit.Int64() != 10 {
		t.Fatalf("expected 11/10, got %+v", creditLines)
	}
}

func TestDefaultRedeem_InsufficientBalanceFails(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"cross_brand_allocation": {"strategy": "priority", "partners": [{"merchant_account": "A"}]}}`)
	h.attribution = []domain.Attribution{{AccountID: "A", Amount: big.NewInt(50)}}

	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(60)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failure == nil || res.Failure.Reason != "Insufficient balance" || res.Failure.Retryable {
		t.Fatalf("expected nonretryable insufficient balance failure, got %+v", res.Failure)
	}
}

func TestDefaultRedeem_DebitEqualsCreditSum(t *testing.T) {
	h := newFakeHelpers()
	h.programConfig = []byte(`{"cross_brand_allocation": {"strategy": "proportional", "partners": [{"merchant_account": "A"}, {"merchant_account": "B"}, {"merchant_account": "C"}]}}`)
	h.attribution = []domain.Attribution{
		{AccountID: "A", Amount: big.NewInt(7)},
		{AccountID: "B", Amount: big.NewInt(13)},
		{AccountID: "C", Amount: big.NewInt(50)},
	}
	rctx := RedeemContext{Tenant: "t1", ProgramID: "p1", Unit: "points", CustomerAccount: "t1::acct::c1", Qty: big.NewInt(41)}
	res, err := DefaultRedeem{}.Apply(context.Background(), rctx, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := res.Mutation.Entries[0]
	sum := big.NewInt(0)
	for _, l := range entry.Lines[1:] {
		sum.Add(sum, l.Credit)
	}
	if sum.Cmp(entry.Lines[0].Debit) != 0 {
		t.Fatalf("expected credits to sum to debit %v, got %v", entry.Lines[0].Debit, sum)
	}
}
