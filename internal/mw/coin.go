// Package mw implements the core Mimblewimble transaction primitives: the
// single-party and two-party operations that turn a set of input coins
// into a signed kernel and a set of output coins, entirely in terms of
// the curve, pedersen, bulletproof and aggsig packages.
package mw

import (
	"fmt"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
)

// Coin is a Mimblewimble output together with the private opening a
// wallet needs to later spend it: its value and blinding factor.
type Coin struct {
	Commitment *pedersen.Commitment
	Blind      *curve.Scalar
	Value      uint64
}

// NewCoin samples a fresh blinding factor and commits to value.
func NewCoin(value uint64) (*Coin, error) {
	blind, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("mw: sample blind: %w", err)
	}
	return &Coin{
		Commitment: pedersen.Commit(value, blind),
		Blind:      blind,
		Value:      value,
	}, nil
}

// CoinFromOpening rebuilds a Coin from a known value and blind, e.g. when
// restoring a wallet's change output from disk.
func CoinFromOpening(value uint64, blind *curve.Scalar) *Coin {
	return &Coin{Commitment: pedersen.Commit(value, blind), Blind: blind, Value: value}
}

// VerifyOpening reports whether the coin's blind and value actually open
// its commitment.
func (c *Coin) VerifyOpening() bool {
	return c.Commitment.VerifyOpening(c.Value, c.Blind)
}
