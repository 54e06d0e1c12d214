// Package aggsig implements the two-round Schnorr-style aggregate
// signature engine described by the swap protocol's kernel-signing
// layer: N participants each contribute a nonce and an excess public
// key, jointly derive a challenge over the aggregated values, and sum
// their partial signatures into one kernel signature. It also carries
// the adaptor-signature variant used to make settlement atomic: a
// partial signature offset by a secret scalar x, whose later exposure
// lets the counterparty recover x.
//
// The round structure (commit → aggregate → partial-sign → sum) is the
// same shape used by FROST-style signing: Round1 publishes
// (publicExcess, publicNonce), Round2 consumes the aggregated values to
// produce a partial signature, and Aggregate/Finalize sums and verifies.
package aggsig

import (
	"fmt"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// Signer holds one participant's share of a kernel signature across the
// two rounds of the protocol. The excess is the participant's signing
// key (the difference of output and input blinding factors, see the mw
// package); the nonce is sampled fresh for every signing session and
// must never be reused.
type Signer struct {
	Index        uint64
	excess       *curve.Scalar
	nonce        *curve.Scalar
	PublicExcess *curve.Point
	PublicNonce  *curve.Point
}

// NewSigner samples a fresh nonce for secretExcess and returns a Signer
// ready for Round1.
func NewSigner(index uint64, secretExcess *curve.Scalar) (*Signer, error) {
	nonce, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("aggsig: sample nonce: %w", err)
	}
	return &Signer{
		Index:        index,
		excess:       secretExcess,
		nonce:        nonce,
		PublicExcess: curve.BasePointMul(secretExcess),
		PublicNonce:  curve.BasePointMul(nonce),
	}, nil
}

// PartialSignature is one participant's contribution to the final
// kernel signature.
type PartialSignature struct {
	Index uint64
	S     *curve.Scalar
}

// Signature is a completed two-party (or N-party) Schnorr signature.
type Signature struct {
	R *curve.Point
	S *curve.Scalar
}

// AggregateNonces sums the public nonces contributed in round 1.
func AggregateNonces(nonces ...*curve.Point) *curve.Point {
	sum := curve.Identity()
	for _, n := range nonces {
		sum = sum.Add(n)
	}
	return sum
}

// AggregateExcess sums the public excess keys contributed in round 1.
func AggregateExcess(excesses ...*curve.Point) *curve.Point {
	sum := curve.Identity()
	for _, x := range excesses {
		sum = sum.Add(x)
	}
	return sum
}

// ComputeChallenge derives e = H(R || X || m) for the aggregated nonce R,
// aggregated excess X and kernel message m.
func ComputeChallenge(aggNonce, aggExcess *curve.Point, message []byte) *curve.Scalar {
	return curve.HashToScalar(aggNonce.SerializeCompressed(), aggExcess.SerializeCompressed(), message)
}

// Round2 computes this signer's plain partial signature s_i = k_i + e*x_i
// against the fully aggregated nonce and excess.
func (s *Signer) Round2(aggNonce, aggExcess *curve.Point, message []byte) *PartialSignature {
	e := ComputeChallenge(aggNonce, aggExcess, message)
	si := s.nonce.Add(e.Mul(s.excess))
	return &PartialSignature{Index: s.Index, S: si}
}

// Round2Adaptor computes both the plain partial signature and the
// adaptor partial signature s_i^apt = s_i + x, offset by adaptorSecret.
// The plain signature is retained privately by the signer; only the
// adaptor signature is written to the slate until settlement.
func (s *Signer) Round2Adaptor(aggNonce, aggExcess *curve.Point, message []byte, adaptorSecret *curve.Scalar) (apt, plain *PartialSignature) {
	plain = s.Round2(aggNonce, aggExcess, message)
	apt = &PartialSignature{Index: s.Index, S: plain.S.Add(adaptorSecret)}
	return apt, plain
}

// Retire zeroises the signer's secret material. Must be called once the
// signer's partial signature(s) have been produced and are no longer
// needed locally.
func (s *Signer) Retire() {
	s.excess.Zeroize()
	s.nonce.Zeroize()
}

// VerifyPartial checks a single participant's partial signature against
// their published (publicNonce, publicExcess) and the session's
// aggregated (aggNonce, aggExcess). When adaptorPublic is non-nil, the
// partial is expected to be offset by the corresponding secret: the
// verification equation becomes s*G == R_i + e*X_i + adaptorPublic.
func VerifyPartial(sig *PartialSignature, publicNonce, publicExcess, aggNonce, aggExcess *curve.Point, message []byte, adaptorPublic *curve.Point) error {
	e := ComputeChallenge(aggNonce, aggExcess, message)
	lhs := curve.BasePointMul(sig.S)
	rhs := publicNonce.Add(publicExcess.Mul(e))
	if adaptorPublic != nil {
		rhs = rhs.Add(adaptorPublic)
	}
	if !lhs.Equal(rhs) {
		return swaperr.New(swaperr.KindInvalidAdaptorSig, "aggsig.VerifyPartial", fmt.Errorf("partial signature for participant %d does not open", sig.Index))
	}
	return nil
}

// Finalize sums every partial signature into the kernel signature and
// verifies it against the aggregated excess before returning it.
func Finalize(aggNonce, aggExcess *curve.Point, message []byte, partials ...*PartialSignature) (*Signature, error) {
	sum := curve.ZeroScalar()
	for _, p := range partials {
		sum = sum.Add(p.S)
	}
	sig := &Signature{R: aggNonce, S: sum}
	if err := Verify(sig, aggExcess, message); err != nil {
		return nil, err
	}
	return sig, nil
}

// Verify checks a completed signature: s*G == R + e*X.
func Verify(sig *Signature, aggExcess *curve.Point, message []byte) error {
	e := ComputeChallenge(sig.R, aggExcess, message)
	lhs := curve.BasePointMul(sig.S)
	rhs := sig.R.Add(aggExcess.Mul(e))
	if !lhs.Equal(rhs) {
		return swaperr.New(swaperr.KindInvalidFinalSignature, "aggsig.Verify", fmt.Errorf("kernel signature does not verify"))
	}
	return nil
}

// ExtWitness recovers the adaptor secret x = s_apt - s_plain (mod n)
// from a matching pair of partial signatures produced by the same
// signer for the same message. This is the "reveal on publication"
// property: once a plain partial signature is observed on-chain, anyone
// holding the earlier adaptor partial can compute x.
func ExtWitness(adaptorSig, plainSig *curve.Scalar) *curve.Scalar {
	return adaptorSig.Sub(plainSig)
}
