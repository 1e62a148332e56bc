package run

import "context"

type chainKey struct{}

// withChain stores the identity chain (outermost first) on the context.
func withChain(ctx context.Context, chain []Identity) context.Context {
	return context.WithValue(ctx, chainKey{}, chain)
}

// Chain returns the active identity chain for the calling execution path,
// outermost first. The second return is false outside any run.
func Chain(ctx context.Context) ([]Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	chain, ok := ctx.Value(chainKey{}).([]Identity)
	if !ok || len(chain) == 0 {
		return nil, false
	}
	out := make([]Identity, len(chain))
	copy(out, chain)
	return out, true
}

// Current returns the innermost active identity, if any.
func Current(ctx context.Context) (Identity, bool) {
	chain, ok := Chain(ctx)
	if !ok {
		return Identity{}, false
	}
	return chain[len(chain)-1], true
}
