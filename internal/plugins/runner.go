package plugins

import (
	"context"

	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

// RunReceiptPlugins evaluates every plugin in chain whose ShouldHandle is
// true and returns their non-null mutations in chain order. Evaluation
// here is sequential, which trivially satisfies the "order must equal
// chain order" requirement; a future concurrent evaluator must preserve
// the same ordering guarantee.
func RunReceiptPlugins(ctx context.Context, chain []ReceiptPlugin, rctx ReceiptContext, helpers ReceiptHelpers) ([]Mutation, error) {
	var mutations []Mutation
	for _, p := range chain {
		handle, err := p.ShouldHandle(ctx, rctx, helpers)
		if err != nil {
			return nil, &ledgererr.PluginError{Plugin: p.Name(), Err: err}
		}
		if !handle {
			continue
		}
		m, err := p.Apply(ctx, rctx, helpers)
		if err != nil {
			return nil, &ledgererr.PluginError{Plugin: p.Name(), Err: err}
		}
		if m != nil {
			mutations = append(mutations, *m)
		}
	}
	return mutations, nil
}

// RunRedeemPlugins asks each plugin in chain, in order, whether it
// handles the request, and returns the first non-null result. A nil
// result with a nil error means no plugin accepted the request; the
// caller treats that as ledgererr.ErrNoRedeemPluginAccepted.
func RunRedeemPlugins(ctx context.Context, chain []RedeemPlugin, rctx RedeemContext, helpers RedeemHelpers) (*RedeemResult, error) {
	for _, p := range chain {
		handle, err := p.ShouldHandle(ctx, rctx, helpers)
		if err != nil {
			return nil, &ledgererr.PluginError{Plugin: p.Name(), Err: err}
		}
		if !handle {
			continue
		}
		result, err := p.Apply(ctx, rctx, helpers)
		if err != nil {
			return nil, &ledgererr.PluginError{Plugin: p.Name(), Err: err}
		}
		return &result, nil
	}
	return nil, nil
}
