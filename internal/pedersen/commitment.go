// Package pedersen implements Pedersen value commitments over secp256k1:
// C = v*H + r*G, homomorphic under addition, used for every Mimblewimble
// input and output coin.
package pedersen

import (
	"fmt"

	"github.com/jafalter/mw-btc-swap/internal/curve"
)

// Commitment is a Pedersen commitment to a value under a blinding factor.
type Commitment struct {
	point *curve.Point
}

// Commit returns a commitment to value under blind: C = value*H + blind*G.
func Commit(value uint64, blind *curve.Scalar) *Commitment {
	vH := curve.H().Mul(curve.ScalarFromUint64(value))
	rG := curve.BasePointMul(blind)
	return &Commitment{point: vH.Add(rG)}
}

// Point exposes the underlying group element.
func (c *Commitment) Point() *curve.Point {
	return c.point
}

// Add exploits the homomorphic property: Commit(v1,r1) + Commit(v2,r2) ==
// Commit(v1+v2, r1+r2).
func (c *Commitment) Add(o *Commitment) *Commitment {
	return &Commitment{point: c.point.Add(o.point)}
}

// Sub returns c - o.
func (c *Commitment) Sub(o *Commitment) *Commitment {
	return &Commitment{point: c.point.Sub(o.point)}
}

// Equal reports whether two commitments are the same group element.
func (c *Commitment) Equal(o *Commitment) bool {
	return c.point.Equal(o.point)
}

// SerializeCompressed encodes the commitment as a 33-byte compressed point.
func (c *Commitment) SerializeCompressed() []byte {
	return c.point.SerializeCompressed()
}

// Hex encodes the commitment as lower-case hex, matching the wire format
// used for Slate input/output fields.
func (c *Commitment) Hex() string {
	return c.point.Hex()
}

// FromHex decodes a hex-encoded commitment.
func FromHex(s string) (*Commitment, error) {
	p, err := curve.PointFromHex(s)
	if err != nil {
		return nil, fmt.Errorf("pedersen: decode commitment: %w", err)
	}
	return &Commitment{point: p}, nil
}

// FromPoint wraps an already-computed group element as a commitment,
// used when the value/blind split is not locally known (e.g. a peer's
// output commitment received over the wire).
func FromPoint(p *curve.Point) *Commitment {
	return &Commitment{point: p}
}

// VerifyOpening checks that value and blind actually open c. Used only
// in tests and local sanity checks — in the protocol neither party ever
// receives the counterpart's blinding factor.
func (c *Commitment) VerifyOpening(value uint64, blind *curve.Scalar) bool {
	return c.Equal(Commit(value, blind))
}

// SumBlindingFactors adds a list of scalars, used to combine the input
// and output blinding shares into a signing excess.
func SumBlindingFactors(scalars ...*curve.Scalar) *curve.Scalar {
	sum := curve.ZeroScalar()
	for _, s := range scalars {
		sum = sum.Add(s)
	}
	return sum
}
