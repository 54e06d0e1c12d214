// Package bulletproof implements the multi-party Bulletproof-style
// rangeproof accumulator (MPBP): two parties jointly produce a single
// proof over a shared commitment C = v*H + (b_A+b_B)*G without either
// one revealing its blinding share. The protocol is three rounds,
// mirroring the polynomial commitment structure of Bulletproofs
// (Bünz et al.): round 1 contributes per-party T1/T2 commitments tied
// to a shared nonce, round 2 contributes per-party tau_x/t_hat shares
// once the round-1 sums are known, and a single finalizing party
// assembles and locally verifies the completed proof before it is
// embedded in a slate.
//
// No Bulletproof / inner-product-argument library exists anywhere in
// the example corpus this module is built from (confirmed by search),
// and the original implementation this protocol is ported from only
// wraps a C library with no Go equivalent in that corpus. RangeProof
// therefore proves knowledge of the opening of the summed commitment
// via the same T1/T2/tau_x/t_hat polynomial algebra real Bulletproofs
// use, but WITHOUT the per-bit vector Pedersen commitments and
// logarithmic inner-product compression that give a real Bulletproof
// its succinctness and its range-specific soundness (proof that v lies
// in [0, 2^64) rather than merely that the commitment opens
// consistently). It is deliberately scoped to exercise the three-round
// multi-party wire protocol, the shared-nonce discipline, and the
// "tamper with the proof, verification fails" property the rest of the
// module depends on.
package bulletproof

import (
	"fmt"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// MPBPContext accumulates the public state of an in-progress multi-party
// rangeproof. It is passed by value across the peer wire between rounds;
// a party's own blinding share, proof nonce and signing nonce are never
// placed inside it.
type MPBPContext struct {
	SharedNonce *curve.Scalar
	T1          *curve.Point
	T2          *curve.Point
	TauX        *curve.Scalar
	THatSum     *curve.Scalar
	Commitment  *pedersen.Commitment
	Amount      uint64
}

// NewContext begins an MPBP session. sharedNonce must be negotiated out
// of band (e.g. via ECDH between the two parties' ephemeral keys) and
// must never be reused across two different proofs: reuse leaks both
// parties' blinding shares.
func NewContext(sharedNonce *curve.Scalar, commitment *pedersen.Commitment, amount uint64) *MPBPContext {
	return &MPBPContext{
		SharedNonce: sharedNonce,
		T1:          curve.Identity(),
		T2:          curve.Identity(),
		TauX:        curve.ZeroScalar(),
		THatSum:     curve.ZeroScalar(),
		Commitment:  commitment,
		Amount:      amount,
	}
}

// partyPolynomial deterministically derives one party's t1, t2, tau1,
// tau2 scalars from the shared nonce and its own blinding share. Both
// parties can therefore derive their own shares independently and
// combine them without ever exchanging blind.
func partyPolynomial(ctx *MPBPContext, blind *curve.Scalar) (t1, t2, tau1, tau2 *curve.Scalar) {
	nb := ctx.SharedNonce.Bytes()
	bb := blind.Bytes()
	t1 = curve.Blake2bToScalar(nb, bb, []byte("mpbp/t1"))
	t2 = curve.Blake2bToScalar(nb, bb, []byte("mpbp/t2"))
	tau1 = curve.Blake2bToScalar(nb, bb, []byte("mpbp/tau1"))
	tau2 = curve.Blake2bToScalar(nb, bb, []byte("mpbp/tau2"))
	return
}

// Round1 contributes this party's T1_i = t1*H + tau1*G and
// T2_i = t2*H + tau2*G to the accumulator.
func Round1(ctx *MPBPContext, blind *curve.Scalar) *MPBPContext {
	t1, t2, tau1, tau2 := partyPolynomial(ctx, blind)
	t1Point := curve.H().Mul(t1).Add(curve.BasePointMul(tau1))
	t2Point := curve.H().Mul(t2).Add(curve.BasePointMul(tau2))

	next := *ctx
	next.T1 = ctx.T1.Add(t1Point)
	next.T2 = ctx.T2.Add(t2Point)
	return &next
}

// challenges derives the two Fiat-Shamir challenges z and chal from the
// public commitment and round-1 sums.
func challenges(ctx *MPBPContext) (z, chal *curve.Scalar) {
	base := ctx.Commitment.SerializeCompressed()
	z = curve.Blake2bToScalar(base, []byte("mpbp/z"))
	chal = curve.Blake2bToScalar(ctx.T1.SerializeCompressed(), ctx.T2.SerializeCompressed(), z.Bytes(), []byte("mpbp/x"))
	return
}

// Round2 contributes this party's tau_x and t_hat shares, computed once
// the round-1 T1/T2 sums (and therefore the challenges) are known to
// both parties:
//
//	tau_x_i = tau1*chal + tau2*chal^2 + z^2*blind
//	t_i     = t1*chal + t2*chal^2
func Round2(ctx *MPBPContext, blind *curve.Scalar) *MPBPContext {
	t1, t2, tau1, tau2 := partyPolynomial(ctx, blind)
	z, chal := challenges(ctx)
	chalSq := chal.Mul(chal)
	zSq := z.Mul(z)

	tauXi := tau1.Mul(chal).Add(tau2.Mul(chalSq)).Add(zSq.Mul(blind))
	tHati := t1.Mul(chal).Add(t2.Mul(chalSq))

	next := *ctx
	next.TauX = ctx.TauX.Add(tauXi)
	next.THatSum = ctx.THatSum.Add(tHati)
	return &next
}

// RangeProof is the completed multi-party proof, safe to embed in a
// Slate output and to transmit to either party or a third-party
// verifier.
type RangeProof struct {
	T1   *curve.Point
	T2   *curve.Point
	TauX *curve.Scalar
	THat *curve.Scalar
}

// Finalize assembles the proof from the fully-accumulated context (both
// rounds complete for both parties) and verifies it locally before
// returning it — a failing proof must never be embedded in a slate.
func Finalize(ctx *MPBPContext) (*RangeProof, error) {
	z, _ := challenges(ctx)
	zSq := z.Mul(z)
	amountTerm := zSq.Mul(curve.ScalarFromUint64(ctx.Amount))

	proof := &RangeProof{
		T1:   ctx.T1,
		T2:   ctx.T2,
		TauX: ctx.TauX,
		THat: ctx.THatSum.Add(amountTerm),
	}
	if err := Verify(proof, ctx.Commitment); err != nil {
		return nil, err
	}
	return proof, nil
}

// ContextWire is the wire-safe encoding of an MPBPContext: the shared
// nonce, accumulated T1/T2, running tau_x and t_hat sums, current
// commitment and amount. Per the shared-output protocol's transport
// design, this is exactly the subset of MPBPContext that may cross the
// peer wire — a
// party's own blinding share, proof nonce and signing nonce are kept
// out of this type entirely, not merely omitted by convention.
type ContextWire struct {
	SharedNonce string `json:"shared_nonce"`
	T1          string `json:"t1"`
	T2          string `json:"t2"`
	TauX        string `json:"tau_x"`
	THat        string `json:"t_hat"`
	Commitment  string `json:"commitment"`
	Amount      uint64 `json:"amount"`
}

// EncodeContext hex-encodes ctx for wire transport.
func EncodeContext(ctx *MPBPContext) ContextWire {
	return ContextWire{
		SharedNonce: ctx.SharedNonce.Hex(),
		T1:          ctx.T1.Hex(),
		T2:          ctx.T2.Hex(),
		TauX:        ctx.TauX.Hex(),
		THat:        ctx.THatSum.Hex(),
		Commitment:  ctx.Commitment.Hex(),
		Amount:      ctx.Amount,
	}
}

// Decode parses a ContextWire back into an MPBPContext, including the
// running t_hat sum, so the party that calls Finalize sees every
// round-2 contribution made before the context reached it.
func (w ContextWire) Decode() (*MPBPContext, error) {
	nonce, err := curve.ScalarFromHex(w.SharedNonce)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode shared nonce: %w", err)
	}
	t1, err := curve.PointFromHex(w.T1)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode T1: %w", err)
	}
	t2, err := curve.PointFromHex(w.T2)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode T2: %w", err)
	}
	tauX, err := curve.ScalarFromHex(w.TauX)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode tau_x: %w", err)
	}
	tHat, err := curve.ScalarFromHex(w.THat)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode t_hat: %w", err)
	}
	commitment, err := pedersen.FromHex(w.Commitment)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: decode commitment: %w", err)
	}
	return &MPBPContext{
		SharedNonce: nonce,
		T1:          t1,
		T2:          t2,
		TauX:        tauX,
		THatSum:     tHat,
		Commitment:  commitment,
		Amount:      w.Amount,
	}, nil
}

// Verify checks a completed proof against the commitment it claims to
// open:
//
//	t_hat*H + tau_x*G  ==  chal*T1 + chal^2*T2 + z^2*C
func Verify(proof *RangeProof, commitment *pedersen.Commitment) error {
	ctxForChallenge := &MPBPContext{T1: proof.T1, T2: proof.T2, Commitment: commitment}
	z, chal := challenges(ctxForChallenge)
	chalSq := chal.Mul(chal)
	zSq := z.Mul(z)

	lhs := curve.H().Mul(proof.THat).Add(curve.BasePointMul(proof.TauX))
	rhs := proof.T1.Mul(chal).Add(proof.T2.Mul(chalSq)).Add(commitment.Point().Mul(zSq))

	if !lhs.Equal(rhs) {
		return swaperr.New(swaperr.KindInvalidRangeProof, "bulletproof.Verify", fmt.Errorf("rangeproof does not open the commitment"))
	}
	return nil
}
