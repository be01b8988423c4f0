// Package broker orchestrates provider logins and issues the broker's own
// session tokens.
//
// A login is two calls. BeginLogin creates a single-use state and returns
// the provider authorization URL; HandleCallback consumes the state,
// exchanges the code, fetches the user, resolves a local user through the
// UserResolver and issues a token pair:
//
//	b := broker.New(registry, states, tokens, broker.NewMemoryResolver(),
//		broker.WithLogger(log),
//		broker.WithMetrics(metrics),
//	)
//	url, err := b.BeginLogin(ctx, "github", "/dashboard")
//	res, err := b.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: code, State: st})
//
// State is consumed before any provider call and is never restored.
// Provider round trips share one timeout (DefaultTimeout) and are never
// retried. Use Reason to turn any returned error into a category that is
// safe to show the user.
package broker
