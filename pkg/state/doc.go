// Package state issues single-use CSRF state tokens for OAuth redirects.
//
// A token is 32 random bytes, base64url-encoded. [Store.Create] records the
// provider, creation time, optional redirect hint and PKCE verifier;
// [Store.Consume] takes the record atomically and enforces the validity
// window. Any rejection is reported as [ErrInvalidState] so callers cannot
// tell a forged token from an expired or replayed one. The wrapped
// [*RejectError] carries the detail for logs.
//
//	states := state.NewStore(cache.NewMemory[state.Record]())
//	token, err := states.Create(ctx, "github", state.CreateOptions{RedirectHint: "/app"})
//	rec, err := states.Consume(ctx, token)
package state
