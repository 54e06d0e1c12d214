// Package protocol packages the core Mimblewimble primitives of
// internal/mw into the four two-party composite protocols named by the
// swap design: dBuildMwTx, dSharedOutMwTx, dSharedInpMwTx and
// dContractMwTx. Each function below corresponds to exactly one message
// in the strict request/response sequence described for its protocol;
// the caller is responsible for actually moving the returned value
// across the wire (internal/wire) between calls — these functions never
// touch the network themselves, matching the primitives they wrap.
package protocol

import (
	"github.com/jafalter/mw-btc-swap/internal/aggsig"
	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/slate"
)

// Participant indices used by the protocols in this package: 1 is always
// the funding party (the one running SpendCoins). In dBuildMwTx, 2 is the
// receiver. In dSharedOutMwTx, 2 is A's co-owner share of the shared
// output and 3 is B's. In dSharedInpMwTx and dContractMwTx, 2 is B's
// d_spend_coins share of the jointly owned input and 3 is B's
// receiving/claiming output.
const (
	ParticipantSender   = uint64(1)
	ParticipantReceiver = uint64(2)
	ParticipantCoOwnerB = uint64(3)
)

// ---- dBuildMwTx: standard payment, no shared state ----
//
//	A -> B: slate after spend_coins
//	B -> A: slate after recv_coins
//	A -> B: slate after fin_tx(finalize=true)

// DBuildMwTxOpen is message 1 of dBuildMwTx, run by the sending party A.
func DBuildMwTxOpen(inputs []*mw.Coin, value, lockHeight uint64, numOutputs int) (*mw.SpendCoinsResult, error) {
	return mw.SpendCoins(inputs, value, lockHeight, numOutputs, ParticipantSender)
}

// DBuildMwTxAccept is message 2, run by the receiving party B against the
// slate A sent in message 1.
func DBuildMwTxAccept(s *slate.Slate, value uint64) (*mw.RecvCoinsResult, error) {
	return mw.RecvCoins(s, value, ParticipantReceiver)
}

// DBuildMwTxFinalize is message 3: A verifies B's contribution implicitly
// through FinTx's rangeproof check, signs its own round-2 partial, and
// sums the kernel signature.
func DBuildMwTxFinalize(s *slate.Slate, senderSigner *aggsig.Signer) (*aggsig.Signature, error) {
	return mw.FinTx(s, senderSigner, mw.FinTxOptions{Finalize: true})
}

// ---- dSharedOutMwTx: shared output, used for the Grin-side escrow ----
//
//	A -> B: slate after spend_coins; MPBPContext after drecv_r1
//	B -> A: slate after drecv_r2; MPBPContext after drecv_r2
//	A -> B: slate after fin_tx(finalize=true); drecv_r3 produces the final output

// SharedOutOpenResult is party A's output from message 1: the slate (to
// send to B), the wire-safe MPBP context and A's partial commitment (also
// to send to B), and A's locally-retained state needed to complete R3
// after B responds.
type SharedOutOpenResult struct {
	Slate             *slate.Slate
	WireContext       bulletproof.ContextWire
	PartialCommitment *pedersen.Commitment
	Spend             *mw.SpendCoinsResult
	R1                *mw.DRecvCoinsR1Result
}

// DSharedOutMwTxOpen is message 1: A funds the escrow from its own inputs
// and immediately claims its co-ownership share of the new shared output.
func DSharedOutMwTxOpen(inputs []*mw.Coin, sharedValue, lockHeight uint64, sharedNonce *curve.Scalar) (*SharedOutOpenResult, error) {
	spend, err := mw.SpendCoins(inputs, sharedValue, lockHeight, 1, ParticipantSender)
	if err != nil {
		return nil, err
	}
	r1, err := mw.DRecvCoinsR1(spend.Slate, sharedNonce, sharedValue, ParticipantReceiver)
	if err != nil {
		return nil, err
	}
	return &SharedOutOpenResult{
		Slate:             spend.Slate,
		WireContext:       bulletproof.EncodeContext(r1.Ctx),
		PartialCommitment: r1.PartialCommitment,
		Spend:             spend,
		R1:                r1,
	}, nil
}

// SharedOutAcceptResult is party B's output from message 2.
type SharedOutAcceptResult struct {
	Slate       *slate.Slate
	WireContext bulletproof.ContextWire
	Commitment  *pedersen.Commitment
	R2          *mw.DRecvCoinsR2Result
}

// DSharedOutMwTxAccept is message 2: B contributes its blind-only share of
// the joint output and its round-2 partial signature, using only the
// public pieces A sent (the wire context and A's partial commitment).
func DSharedOutMwTxAccept(s *slate.Slate, wireCtx bulletproof.ContextWire, partialCommitmentA *pedersen.Commitment) (*SharedOutAcceptResult, error) {
	ctx, err := wireCtx.Decode()
	if err != nil {
		return nil, err
	}
	r2, err := mw.DRecvCoinsR2(s, ctx, partialCommitmentA, ParticipantCoOwnerB)
	if err != nil {
		return nil, err
	}
	return &SharedOutAcceptResult{
		Slate:       r2.Slate,
		WireContext: bulletproof.EncodeContext(r2.Ctx),
		Commitment:  r2.Commitment,
		R2:          r2,
	}, nil
}

// DSharedOutMwTxFinalize is message 3: A finishes the shared output
// (drecv_r3), then finalizes the kernel signature across all three
// participants (sender, A-as-co-owner, B-as-co-owner).
func DSharedOutMwTxFinalize(open *SharedOutOpenResult, accept SharedOutAcceptResult) (*aggsig.Signature, error) {
	ctx, err := accept.WireContext.Decode()
	if err != nil {
		return nil, err
	}
	if _, err := mw.DRecvCoinsR3(open.R1, ctx, accept.Commitment); err != nil {
		return nil, err
	}
	return mw.FinTx(open.Slate, open.Spend.Signer, mw.FinTxOptions{Finalize: true})
}

// ---- dSharedInpMwTx: spending a shared coin to a single receiver ----
//
//	A -> B: slate after spend_coins(shared_input)
//	B -> A: slate after d_spend_coins + recv_coins + fin_tx(finalize=false, B signs)
//	A -> B: slate after fin_tx(finalize=true, A signs)

// DSharedInpMwTxOpen is message 1: A spends its share of the jointly-owned
// input. numOutputs is 1 when there is no change, 2 otherwise.
func DSharedInpMwTxOpen(sharedInputShareA []*mw.Coin, value, lockHeight uint64, numOutputs int) (*mw.SpendCoinsResult, error) {
	return mw.SpendCoins(sharedInputShareA, value, lockHeight, numOutputs, ParticipantSender)
}

// SharedInpAcceptResult is party B's output from message 2: B contributes
// its own share of the jointly-owned input (d_spend_coins), receives the
// payment (recv_coins), and signs its own partial without finalizing.
type SharedInpAcceptResult struct {
	Slate      *slate.Slate
	OutputCoin *mw.Coin
}

// DSharedInpMwTxAccept is message 2.
func DSharedInpMwTxAccept(s *slate.Slate, sharedInputShareB []*mw.Coin, value, lockHeight uint64, recvValue uint64) (*SharedInpAcceptResult, error) {
	dspend, err := mw.DSpendCoins(sharedInputShareB, s, value, lockHeight, ParticipantReceiver)
	if err != nil {
		return nil, err
	}
	recv, err := mw.RecvCoins(dspend.Slate, recvValue, ParticipantCoOwnerB)
	if err != nil {
		return nil, err
	}
	if _, err := mw.FinTx(recv.Slate, dspend.Signer, mw.FinTxOptions{Finalize: false}); err != nil {
		return nil, err
	}
	return &SharedInpAcceptResult{Slate: recv.Slate, OutputCoin: recv.OutputCoin}, nil
}

// DSharedInpMwTxFinalize is message 3: A signs its own partial and sums
// the kernel signature.
func DSharedInpMwTxFinalize(s *slate.Slate, senderSigner *aggsig.Signer) (*aggsig.Signature, error) {
	return mw.FinTx(s, senderSigner, mw.FinTxOptions{Finalize: true})
}

// ---- dContractMwTx: spending a shared coin with an adaptor signature ----
//
//	A -> B: slate after spend_coins(shared_input)
//	B -> A: slate after d_spend_coins + apt_recv_coins(x) — carries B's APT sig
//	A -> B: slate after fin_tx(pub_x=X, finalize=false) — verifies APT, adds A's plain sig
//	A:      once B broadcasts, A recovers x = B's apt s - B's plain s

// DContractMwTxOpen is message 1, identical in shape to DSharedInpMwTxOpen.
func DContractMwTxOpen(sharedInputShareA []*mw.Coin, value, lockHeight uint64, numOutputs int) (*mw.SpendCoinsResult, error) {
	return mw.SpendCoins(sharedInputShareA, value, lockHeight, numOutputs, ParticipantSender)
}

// ContractAcceptResult is party B's output from message 2: the slate
// carrying B's adaptor partial, plus B's own adaptor/plain pair retained
// privately until settlement.
type ContractAcceptResult struct {
	Slate      *slate.Slate
	OutputCoin *mw.Coin
	AdaptorSig *curve.Scalar
	PlainSig   *curve.Scalar
}

// DContractMwTxAccept is message 2: B spends its share of the jointly
// owned input and claims the payment with a signature offset by the
// adaptor secret x, whose public counterpart X = x*G is known to both
// parties out of band (it is the public key of the Bitcoin-side secret
// this settlement is meant to reveal). B's d_spend_coins participant
// signs via an implicit fin_tx(finalize=false) call, mirroring the
// explicit step the same shape uses in dSharedInpMwTx.
func DContractMwTxAccept(s *slate.Slate, sharedInputShareB []*mw.Coin, value, lockHeight uint64, claimValue uint64, adaptorSecret *curve.Scalar) (*ContractAcceptResult, error) {
	dspend, err := mw.DSpendCoins(sharedInputShareB, s, value, lockHeight, ParticipantReceiver)
	if err != nil {
		return nil, err
	}
	apt, err := mw.AptRecvCoins(dspend.Slate, claimValue, adaptorSecret, ParticipantCoOwnerB)
	if err != nil {
		return nil, err
	}
	if _, err := mw.FinTx(apt.Slate, dspend.Signer, mw.FinTxOptions{Finalize: false}); err != nil {
		return nil, err
	}
	return &ContractAcceptResult{
		Slate:      apt.Slate,
		OutputCoin: apt.OutputCoin,
		AdaptorSig: apt.AdaptorSig,
		PlainSig:   apt.PlainSig,
	}, nil
}

// DContractMwTxVerifyAndSign is message 3: A verifies B's adaptor partial
// (participant ParticipantCoOwnerB specifically — participant
// ParticipantReceiver already carries B's ordinary d_spend_coins plain
// signature and must not be checked against the adaptor offset) against
// the publicly known adaptor point before contributing its own plain
// partial signature. A cannot finalize here — B's partial is still
// offset by x, so the kernel signature is not yet valid; A can only
// finalize once B reveals the plain signature by broadcasting.
func DContractMwTxVerifyAndSign(s *slate.Slate, senderSigner *aggsig.Signer, adaptorPublic *curve.Point) error {
	_, err := mw.FinTx(s, senderSigner, mw.FinTxOptions{
		Finalize:           false,
		AdaptorPublic:      adaptorPublic,
		AdaptorParticipant: ParticipantCoOwnerB,
	})
	return err
}

// DContractMwTxSettle is B's own finalization step, run once B decides to
// broadcast: it swaps B's adaptor partial for the plain one it held back
// and sums every partial into the completed, valid kernel signature. This
// is the act that publishes x — A recovers it afterwards by comparing
// the plain signature now visible on-chain against the adaptor partial B
// sent in message 2 (DContractMwTxExtractWitness).
func DContractMwTxSettle(s *slate.Slate, plainSig *curve.Scalar) (*aggsig.Signature, error) {
	return mw.FinTx(s, nil, mw.FinTxOptions{
		Finalize:     true,
		ReplaceIndex: ParticipantCoOwnerB,
		ReplaceSig:   plainSig,
	})
}

// DContractMwTxExtractWitness is A's offline step, run once B's plain
// partial signature for participant ParticipantCoOwnerB has appeared in a
// kernel signature A observes on-chain: A recovers x from the matching
// adaptor/plain pair.
func DContractMwTxExtractWitness(adaptorSig, revealedPlainSig *curve.Scalar) *curve.Scalar {
	return mw.ExtWitness(adaptorSig, revealedPlainSig)
}
