// Package rpcclient wraps the two full-node RPC dialects named in spec
// §6: Bitcoin Core's JSON-RPC 1.0 (via btcsuite/btcd/rpcclient) and
// Grin's JSON-RPC 2.0 `/v2/foreign` API (hand-rolled — no Go client for
// it exists anywhere in the retrieved corpus). Both wrap every call in
// the same retry policy from spec §7: three retries with exponential
// backoff (250ms, 1s, 4s) before surfacing a NodeRpcError.
package rpcclient

import (
	"context"
	"time"

	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

var backoff = []time.Duration{250 * time.Millisecond, 1 * time.Second, 4 * time.Second}

// withRetry runs op up to 1+len(backoff) times, sleeping the matching
// backoff delay between attempts. The final failure is wrapped as a
// NodeRpcError; ctx cancellation aborts the wait between attempts.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoff); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff[attempt-1]):
			case <-ctx.Done():
				return swaperr.New(swaperr.KindNodeRPCError, op, ctx.Err())
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
	}
	return swaperr.New(swaperr.KindNodeRPCError, op, lastErr)
}
