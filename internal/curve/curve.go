// Package curve implements secp256k1 scalar and group-element arithmetic
// used by the Pedersen commitment, Bulletproof and aggregate-signature
// layers. Scalars and points are thin wrappers around math/big values
// backed by the pure-Go curve parameters from btcec/v2, so the module
// never needs a C toolchain to cross-compile.
package curve

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

var secp256k1 = btcec.S256()

// Order returns the order n of the secp256k1 base point.
func Order() *big.Int {
	return new(big.Int).Set(secp256k1.N)
}

// Scalar is an element of Z_n, the secp256k1 scalar field.
type Scalar struct {
	v *big.Int
}

func newScalar(v *big.Int) *Scalar {
	m := new(big.Int).Mod(v, secp256k1.N)
	return &Scalar{v: m}
}

// ZeroScalar returns the additive identity.
func ZeroScalar() *Scalar {
	return &Scalar{v: big.NewInt(0)}
}

// RandomScalar draws a scalar uniformly from [1, n-1] using a CSPRNG.
func RandomScalar() (*Scalar, error) {
	for {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("curve: read randomness: %w", err)
		}
		v := new(big.Int).SetBytes(buf)
		if v.Sign() != 0 && v.Cmp(secp256k1.N) < 0 {
			return &Scalar{v: v}, nil
		}
	}
}

// ScalarFromBytes decodes a big-endian 32-byte scalar. It fails if the
// value is not strictly smaller than the group order.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("curve: scalar must be 32 bytes, got %d", len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(secp256k1.N) >= 0 {
		return nil, errors.New("curve: scalar overflows group order")
	}
	return &Scalar{v: v}, nil
}

// ScalarFromHex decodes a hex-encoded scalar.
func ScalarFromHex(s string) (*Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("curve: decode scalar hex: %w", err)
	}
	return ScalarFromBytes(b)
}

// ScalarFromUint64 lifts a small non-negative integer into the field.
func ScalarFromUint64(v uint64) *Scalar {
	return newScalar(new(big.Int).SetUint64(v))
}

// Big returns a defensive copy of the scalar's underlying integer.
func (s *Scalar) Big() *big.Int {
	return new(big.Int).Set(s.v)
}

// Bytes returns the scalar as a big-endian, zero-padded 32-byte array.
func (s *Scalar) Bytes() []byte {
	out := make([]byte, 32)
	b := s.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// Hex returns the scalar as lower-case hex.
func (s *Scalar) Hex() string {
	return hex.EncodeToString(s.Bytes())
}

// IsZero reports whether the scalar is the additive identity.
func (s *Scalar) IsZero() bool {
	return s.v.Sign() == 0
}

// Equal reports whether two scalars represent the same field element.
func (s *Scalar) Equal(o *Scalar) bool {
	return s.v.Cmp(o.v) == 0
}

// Add returns s + o mod n.
func (s *Scalar) Add(o *Scalar) *Scalar {
	return newScalar(new(big.Int).Add(s.v, o.v))
}

// Sub returns s - o mod n.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	return newScalar(new(big.Int).Sub(s.v, o.v))
}

// Neg returns -s mod n.
func (s *Scalar) Neg() *Scalar {
	return newScalar(new(big.Int).Neg(s.v))
}

// Mul returns s * o mod n.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	return newScalar(new(big.Int).Mul(s.v, o.v))
}

// Inverse returns the multiplicative inverse of s mod n. Panics if s is zero.
func (s *Scalar) Inverse() *Scalar {
	if s.IsZero() {
		panic("curve: inverse of zero scalar")
	}
	return newScalar(new(big.Int).ModInverse(s.v, secp256k1.N))
}

// Zeroize overwrites the scalar's backing integer. Blinding factors,
// signing nonces and adaptor secrets must call this once retired.
func (s *Scalar) Zeroize() {
	if s.v != nil {
		s.v.SetInt64(0)
	}
}

// Point is an affine secp256k1 group element. The identity element is
// represented by nil X and Y.
type Point struct {
	X, Y *big.Int
}

// Identity returns the point at infinity.
func Identity() *Point {
	return &Point{}
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	return p == nil || p.X == nil || p.Y == nil
}

// BasePointMul returns s*G.
func BasePointMul(s *Scalar) *Point {
	x, y := secp256k1.ScalarBaseMult(s.Bytes())
	return &Point{X: x, Y: y}
}

// Mul returns s*p.
func (p *Point) Mul(s *Scalar) *Point {
	if p.IsIdentity() || s.IsZero() {
		return Identity()
	}
	x, y := secp256k1.ScalarMult(p.X, p.Y, s.Bytes())
	return &Point{X: x, Y: y}
}

// Add returns p+o.
func (p *Point) Add(o *Point) *Point {
	if p.IsIdentity() {
		return o
	}
	if o.IsIdentity() {
		return p
	}
	x, y := secp256k1.Add(p.X, p.Y, o.X, o.Y)
	return &Point{X: x, Y: y}
}

// Neg returns -p.
func (p *Point) Neg() *Point {
	if p.IsIdentity() {
		return Identity()
	}
	return &Point{X: new(big.Int).Set(p.X), Y: new(big.Int).Sub(secp256k1.P, p.Y)}
}

// Sub returns p-o.
func (p *Point) Sub(o *Point) *Point {
	return p.Add(o.Neg())
}

// Equal reports whether two points are the same group element.
func (p *Point) Equal(o *Point) bool {
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() == o.IsIdentity()
	}
	return p.X.Cmp(o.X) == 0 && p.Y.Cmp(o.Y) == 0
}

// HasEvenY reports whether the point's Y coordinate is even, the BIP-340
// convention used to pick a canonical sign for nonces and public keys.
func (p *Point) HasEvenY() bool {
	return p.Y.Bit(0) == 0
}

// IsOnCurve reports whether p satisfies the curve equation.
func (p *Point) IsOnCurve() bool {
	if p.IsIdentity() {
		return false
	}
	return secp256k1.IsOnCurve(p.X, p.Y)
}

// SerializeCompressed encodes p as a 33-byte SEC1 compressed point.
func (p *Point) SerializeCompressed() []byte {
	if p.IsIdentity() {
		return []byte{0x00}
	}
	out := make([]byte, 33)
	if p.HasEvenY() {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := p.X.Bytes()
	copy(out[33-len(xb):], xb)
	return out
}

// Hex returns the compressed point encoded as lower-case hex.
func (p *Point) Hex() string {
	return hex.EncodeToString(p.SerializeCompressed())
}

// PointFromCompressed decodes a 33-byte SEC1 compressed point.
func PointFromCompressed(b []byte) (*Point, error) {
	if len(b) == 1 && b[0] == 0x00 {
		return Identity(), nil
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("curve: parse point: %w", err)
	}
	ecdsaPub := pub.ToECDSA()
	return &Point{X: ecdsaPub.X, Y: ecdsaPub.Y}, nil
}

// PointFromHex decodes a hex-encoded compressed point.
func PointFromHex(s string) (*Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("curve: decode point hex: %w", err)
	}
	return PointFromCompressed(b)
}

var generatorH *Point

// H returns the second Pedersen generator, a nothing-up-my-sleeve point
// independent of G. It is derived once via try-and-increment lifting of
// a fixed seed's hash onto the curve and cached.
func H() *Point {
	if generatorH != nil {
		return generatorH
	}
	seed := sha256.Sum256([]byte("mw-btc-swap/pedersen-generator-H/v1"))
	x := new(big.Int).SetBytes(seed[:])
	p := secp256k1.P
	for {
		x.Mod(x, p)
		rhs := new(big.Int).Exp(x, big.NewInt(3), p)
		rhs.Add(rhs, big.NewInt(7))
		rhs.Mod(rhs, p)
		y := new(big.Int).ModSqrt(rhs, p)
		if y != nil {
			generatorH = &Point{X: new(big.Int).Set(x), Y: y}
			return generatorH
		}
		x.Add(x, big.NewInt(1))
	}
}
