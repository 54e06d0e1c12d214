// Package swap implements the orchestrator state machine described in
// spec §4.5: it drives a swap through INITIALIZED, SETUP, EXECUTING,
// FINISHED (with CANCELLED reachable from any non-terminal state),
// calling internal/protocol for the cryptographic two-party rounds and
// internal/rpcclient / internal/btcchain / internal/wire for the chain
// and network I/O the core primitives never touch directly.
package swap

// Average confirmation interval, in minutes, for each chain. Used to
// convert a swap's requested timeout (minutes) into a height offset.
const (
	BTCBlockTimeMin = 10
	GrinBlockTimeMin = 1
)

// MaxTimeoutMinutes bounds spec §6's `--timeout` flag (5 days).
const MaxTimeoutMinutes = 60 * 24 * 5

// BTCFundingFeeSats is the flat fee subtracted from a funding input's
// change when building the escrow funding transaction (spec §1's
// "simple linear formula" Non-goal, applied at the Bitcoin boundary).
const BTCFundingFeeSats = int64(500)

// GrinMaxNanogrin and BTCMaxSats bound the offered amounts to each
// chain's real supply; doInit rejects any `init` whose requested amount
// exceeds its chain's bound before a swap-id is ever allocated.
const (
	GrinMaxNanogrin = 10_000_000 * 1_000_000_000
	BTCMaxSats      = 21_000_000 * 100_000_000
)
