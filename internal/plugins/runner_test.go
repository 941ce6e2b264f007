package plugins

import (
	"context"
	"errors"
	"testing"
)

type stubReceiptPlugin struct {
	name     string
	handles  bool
	mutation *Mutation
	err      error
}

func (s stubReceiptPlugin) Name() string { return s.name }
func (s stubReceiptPlugin) ShouldHandle(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (bool, error) {
	return s.handles, nil
}
func (s stubReceiptPlugin) Apply(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (*Mutation, error) {
	return s.mutation, s.err
}

func TestRunReceiptPlugins_PreservesChainOrderAndFiltersNull(t *testing.T) {
	chain := []ReceiptPlugin{
		stubReceiptPlugin{name: "a", handles: true, mutation: &Mutation{Summary: map[string]any{"k": "a"}}},
		stubReceiptPlugin{name: "b", handles: false},
		stubReceiptPlugin{name: "c", handles: true, mutation: &Mutation{Summary: map[string]any{"k": "c"}}},
	}
	got, err := RunReceiptPlugins(context.Background(), chain, ReceiptContext{}, newFakeHelpers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Summary["k"] != "a" || got[1].Summary["k"] != "c" {
		t.Fatalf("expected [a, c] in order, got %+v", got)
	}
}

func TestRunReceiptPlugins_PluginErrorWrapped(t *testing.T) {
	chain := []ReceiptPlugin{stubReceiptPlugin{name: "broken", handles: true, err: errors.New("boom")}}
	_, err := RunReceiptPlugins(context.Background(), chain, ReceiptContext{}, newFakeHelpers())
	if err == nil {
		t.Fatalf("expected error")
	}
}

type stubRedeemPlugin struct {
	name    string
	handles bool
	result  RedeemResult
}

func (s stubRedeemPlugin) Name() string { return s.name }
func (s stubRedeemPlugin) ShouldHandle(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (bool, error) {
	return s.handles, nil
}
func (s stubRedeemPlugin) Apply(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (RedeemResult, error) {
	return s.result, nil
}

func TestRunRedeemPlugins_ReturnsFirstAcceptingPlugin(t *testing.T) {
	chain := []RedeemPlugin{
		stubRedeemPlugin{name: "skip", handles: false},
		stubRedeemPlugin{name: "take", handles: true, result: Success(Mutation{Summary: map[string]any{"k": "take"}})},
		stubRedeemPlugin{name: "unreached", handles: true, result: Success(Mutation{Summary: map[string]any{"k": "unreached"}})},
	}
	got, err := RunRedeemPlugins(context.Background(), chain, RedeemContext{}, newFakeHelpers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Mutation.Summary["k"] != "take" {
		t.Fatalf("expected first accepting plugin's result, got %+v", got)
	}
}

func TestRunRedeemPlugins_NoneAcceptReturnsNil(t *testing.T) {
	chain := []RedeemPlugin{stubRedeemPlugin{name: "skip", handles: false}}
	got, err := RunRedeemPlugins(context.Background(), chain, RedeemContext{}, newFakeHelpers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %+v", got)
	}
}
