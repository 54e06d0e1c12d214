package mw

import (
	"fmt"

	"github.com/jafalter/mw-btc-swap/internal/aggsig"
	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/slate"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// singlePartyProof builds and locally verifies a rangeproof for a
// commitment whose full opening (value, blind) is known to one party.
func singlePartyProof(value uint64, blind *curve.Scalar, commitment *pedersen.Commitment) (*bulletproof.RangeProof, error) {
	nonce, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("mw: sample proof nonce: %w", err)
	}
	ctx := bulletproof.NewContext(nonce, commitment, value)
	ctx = bulletproof.Round1(ctx, blind)
	ctx = bulletproof.Round2(ctx, blind)
	return bulletproof.Finalize(ctx)
}

func expectedFeatures(lockHeight uint64) slate.KernelFeatures {
	if lockHeight > 0 {
		return slate.KernelHeightLocked
	}
	return slate.KernelPlain
}

func checkKernelMatches(s *slate.Slate, fundValue, lockHeight uint64) error {
	if s.Amount != fundValue {
		return swaperr.New(swaperr.KindInvalidInput, "mw.checkKernelMatches", fmt.Errorf("slate amount %d does not match expected %d", s.Amount, fundValue))
	}
	want := expectedFeatures(lockHeight)
	if s.Features != want {
		return swaperr.New(swaperr.KindInvalidInput, "mw.checkKernelMatches", fmt.Errorf("slate kernel features %v do not match expected %v", s.Features, want))
	}
	if want == slate.KernelHeightLocked && s.LockHeight != lockHeight {
		return swaperr.New(swaperr.KindInvalidInput, "mw.checkKernelMatches", fmt.Errorf("slate lock height %d does not match expected %d", s.LockHeight, lockHeight))
	}
	return nil
}

// SpendCoinsResult is the sending party's output from SpendCoins: the
// slate seeded with its inputs, fee, own output (if any change is due)
// and round-1 signing contribution, plus the signer that will later
// complete round 2 and the change coin, if one was created.
type SpendCoinsResult struct {
	Slate  *slate.Slate
	Signer *aggsig.Signer
	Change *Coin
}

// SpendCoins begins a transaction on behalf of the party funding it. It
// selects no coins itself: inputs must already be chosen by the caller,
// together with the total number of outputs the kernel will end up with
// (including any change), so the fee can be computed up front.
func SpendCoins(inputs []*Coin, fundValue, lockHeight uint64, numOutputs int, participantIndex uint64) (*SpendCoinsResult, error) {
	if len(inputs) == 0 {
		return nil, swaperr.New(swaperr.KindInvalidInput, "mw.SpendCoins", ErrNoInputs)
	}
	if fundValue == 0 {
		return nil, swaperr.New(swaperr.KindInvalidInput, "mw.SpendCoins", ErrInvalidAmount)
	}

	commitments := make([]*pedersen.Commitment, len(inputs))
	inputBlindSum := curve.ZeroScalar()
	var totalIn uint64
	for i, in := range inputs {
		commitments[i] = in.Commitment
		inputBlindSum = inputBlindSum.Add(in.Blind)
		totalIn += in.Value
	}
	if slate.HasDuplicateInput(commitments) {
		return nil, swaperr.New(swaperr.KindInvalidInput, "mw.SpendCoins", ErrDuplicateInput)
	}

	fee := Fee(len(inputs), numOutputs, 1)
	if totalIn < fundValue+fee {
		return nil, swaperr.New(swaperr.KindInsufficientFunds, "mw.SpendCoins", fmt.Errorf("inputs total %d, need %d (%d + %d fee)", totalIn, fundValue+fee, fundValue, fee))
	}
	changeValue := totalIn - fundValue - fee

	offset, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("mw: sample kernel offset: %w", err)
	}

	s := slate.New(fundValue, fee, lockHeight)
	s.Offset = offset.Hex()
	for _, in := range inputs {
		s.AddInput(in.Commitment)
	}

	outputBlindSum := curve.ZeroScalar()
	var change *Coin
	if changeValue > 0 {
		change, err = NewCoin(changeValue)
		if err != nil {
			return nil, fmt.Errorf("mw: create change coin: %w", err)
		}
		proof, err := singlePartyProof(change.Value, change.Blind, change.Commitment)
		if err != nil {
			return nil, err
		}
		s.AddOutput(change.Commitment, proof)
		outputBlindSum = outputBlindSum.Add(change.Blind)
	}

	sigKey := outputBlindSum.Sub(inputBlindSum).Sub(offset)
	signer, err := aggsig.NewSigner(participantIndex, sigKey)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	return &SpendCoinsResult{Slate: s, Signer: signer, Change: change}, nil
}

// DSpendCoinsResult is the result of contributing a second party's share
// of jointly-owned inputs to an in-progress slate.
type DSpendCoinsResult struct {
	Slate  *slate.Slate
	Signer *aggsig.Signer
}

// DSpendCoins contributes a second party's input blinding share to a
// slate already seeded by SpendCoins. It adds no outputs of its own: the
// caller is spending inputs jointly controlled with the party that ran
// SpendCoins, not funding anything new.
func DSpendCoins(inputsShare []*Coin, s *slate.Slate, fundValue, lockHeight uint64, participantIndex uint64) (*DSpendCoinsResult, error) {
	if err := s.VerifyOutputRangeProofs(); err != nil {
		return nil, err
	}
	if err := checkKernelMatches(s, fundValue, lockHeight); err != nil {
		return nil, err
	}
	if len(inputsShare) == 0 {
		return nil, swaperr.New(swaperr.KindInvalidInput, "mw.DSpendCoins", ErrNoInputs)
	}

	inputBlindSum := curve.ZeroScalar()
	for _, in := range inputsShare {
		inputBlindSum = inputBlindSum.Add(in.Blind)
	}
	sigKey := inputBlindSum.Neg()

	signer, err := aggsig.NewSigner(participantIndex, sigKey)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	return &DSpendCoinsResult{Slate: s, Signer: signer}, nil
}

// RecvCoinsResult is the receiving party's output from RecvCoins: the
// updated slate (now carrying this party's round-1 and round-2
// contribution) and the coin it is about to receive.
type RecvCoinsResult struct {
	Slate      *slate.Slate
	OutputCoin *Coin
}

// RecvCoins accepts a payment of value on an in-progress slate. Because
// the receiver is always the second party to contribute round-1 data, it
// completes both signing rounds in one call: by the time it runs, the
// slate already carries the sender's round-1 contribution, so the
// aggregate nonce and excess needed for round 2 are already known.
func RecvCoins(s *slate.Slate, value uint64, participantIndex uint64) (*RecvCoinsResult, error) {
	if err := s.VerifyOutputRangeProofs(); err != nil {
		return nil, err
	}

	coin, err := NewCoin(value)
	if err != nil {
		return nil, fmt.Errorf("mw: create output coin: %w", err)
	}
	proof, err := singlePartyProof(coin.Value, coin.Blind, coin.Commitment)
	if err != nil {
		return nil, err
	}
	s.AddOutput(coin.Commitment, proof)

	signer, err := aggsig.NewSigner(participantIndex, coin.Blind)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	aggNonce, err := s.AggregateNonce()
	if err != nil {
		return nil, err
	}
	aggExcess, err := s.AggregateExcess()
	if err != nil {
		return nil, err
	}
	partial := signer.Round2(aggNonce, aggExcess, s.KernelMessage())
	if err := s.SetPartialSig(participantIndex, partial.S); err != nil {
		return nil, fmt.Errorf("mw: set partial sig: %w", err)
	}
	signer.Retire()

	return &RecvCoinsResult{Slate: s, OutputCoin: coin}, nil
}

// AptRecvCoinsResult is the result of accepting payment with an adaptor
// signature instead of a plain one: the slate carries the adaptor
// partial, while the plain partial is returned only to the caller, to be
// revealed later at settlement.
type AptRecvCoinsResult struct {
	Slate      *slate.Slate
	OutputCoin *Coin
	AdaptorSig *curve.Scalar
	PlainSig   *curve.Scalar
}

// AptRecvCoins is RecvCoins for the half of a swap that settles via
// adaptor signature: the partial signature written to the slate is
// offset by adaptorSecret, so it cannot be combined into a valid kernel
// signature until the plain partial (also returned) replaces it; once
// that plain partial is published, anyone holding the adaptor partial
// can recover adaptorSecret.
func AptRecvCoins(s *slate.Slate, value uint64, adaptorSecret *curve.Scalar, participantIndex uint64) (*AptRecvCoinsResult, error) {
	if err := s.VerifyOutputRangeProofs(); err != nil {
		return nil, err
	}

	coin, err := NewCoin(value)
	if err != nil {
		return nil, fmt.Errorf("mw: create output coin: %w", err)
	}
	proof, err := singlePartyProof(coin.Value, coin.Blind, coin.Commitment)
	if err != nil {
		return nil, err
	}
	s.AddOutput(coin.Commitment, proof)

	signer, err := aggsig.NewSigner(participantIndex, coin.Blind)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	aggNonce, err := s.AggregateNonce()
	if err != nil {
		return nil, err
	}
	aggExcess, err := s.AggregateExcess()
	if err != nil {
		return nil, err
	}
	apt, plain := signer.Round2Adaptor(aggNonce, aggExcess, s.KernelMessage(), adaptorSecret)
	if err := s.SetPartialSig(participantIndex, apt.S); err != nil {
		return nil, fmt.Errorf("mw: set adaptor partial sig: %w", err)
	}
	signer.Retire()

	return &AptRecvCoinsResult{Slate: s, OutputCoin: coin, AdaptorSig: apt.S, PlainSig: plain.S}, nil
}

// DRecvCoinsR1Result carries the first party's contribution to a
// jointly-created output. Blind and Signer are retained locally for R3
// and must never cross the wire; only Ctx and PartialCommitment (both
// exposed through the result's exported fields, but documented here as
// the wire-safe subset) are sent to the counterparty.
type DRecvCoinsR1Result struct {
	Slate             *slate.Slate
	Ctx               *bulletproof.MPBPContext
	PartialCommitment *pedersen.Commitment
	Blind             *curve.Scalar
	Signer            *aggsig.Signer
}

// DRecvCoinsR1 begins a shared output jointly funded by two parties.
// Party A contributes the output's full declared value; party B (round
// 2) contributes only a blinding share. A samples its blind, commits to
// the full value under it, runs round 1 of the rangeproof accumulator
// against a placeholder commitment (round 1 never reads the commitment
// field, only the blind and the shared nonce), and publishes its share
// of the output's signing excess (X_A, R_A) to the slate — the blind
// share a joint owner contributes is also its aggregate-signature
// excess, exactly as a single-owner receiver's sigKey is its output
// blind in RecvCoins.
func DRecvCoinsR1(s *slate.Slate, sharedNonce *curve.Scalar, value uint64, participantIndex uint64) (*DRecvCoinsR1Result, error) {
	if err := s.VerifyOutputRangeProofs(); err != nil {
		return nil, err
	}
	blind, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("mw: sample blind share: %w", err)
	}
	placeholder := pedersen.FromPoint(curve.Identity())
	ctx := bulletproof.NewContext(sharedNonce, placeholder, value)
	ctx = bulletproof.Round1(ctx, blind)
	partial := pedersen.Commit(value, blind)

	signer, err := aggsig.NewSigner(participantIndex, blind)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	return &DRecvCoinsR1Result{Slate: s, Ctx: ctx, PartialCommitment: partial, Blind: blind, Signer: signer}, nil
}

// DRecvCoinsR2Result carries the second party's contribution back to the
// party that ran DRecvCoinsR1.
type DRecvCoinsR2Result struct {
	Slate      *slate.Slate
	Ctx        *bulletproof.MPBPContext
	Commitment *pedersen.Commitment
	PartialSig *curve.Scalar
	// Blind is party B's own share of the joint output's blinding
	// factor. B must retain it to later spend its co-ownership share of
	// the shared coin (dSharedInpMwTx, dContractMwTx); it is never put
	// on the slate or sent to A.
	Blind *curve.Scalar
}

// DRecvCoinsR2 completes the output commitment by adding party B's
// blind-only share to A's round-1 contribution, fixes the now-known
// joint commitment into the accumulator context, contributes B's own
// round-1 and round-2 rangeproof shares, and writes B's excess and
// partial signature to the slate. It takes only the public pieces of
// party A's round-1 state — the accumulator context and A's partial
// commitment — never A's blind or signer, matching the wire boundary:
// those never leave A's process.
func DRecvCoinsR2(s *slate.Slate, ctxAfterR1 *bulletproof.MPBPContext, partialCommitmentA *pedersen.Commitment, participantIndex uint64) (*DRecvCoinsR2Result, error) {
	blind, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("mw: sample blind share: %w", err)
	}
	joint := partialCommitmentA.Add(pedersen.Commit(0, blind))

	ctx := *ctxAfterR1
	ctx.Commitment = joint
	next := &ctx
	next = bulletproof.Round1(next, blind)
	next = bulletproof.Round2(next, blind)

	signer, err := aggsig.NewSigner(participantIndex, blind)
	if err != nil {
		return nil, fmt.Errorf("mw: create signer: %w", err)
	}
	s.AddParticipant(participantIndex, signer.PublicExcess, signer.PublicNonce)

	aggNonce, err := s.AggregateNonce()
	if err != nil {
		return nil, err
	}
	aggExcess, err := s.AggregateExcess()
	if err != nil {
		return nil, err
	}
	partial := signer.Round2(aggNonce, aggExcess, s.KernelMessage())
	if err := s.SetPartialSig(participantIndex, partial.S); err != nil {
		return nil, fmt.Errorf("mw: set partial sig: %w", err)
	}
	signer.Retire()

	return &DRecvCoinsR2Result{Slate: s, Ctx: next, Commitment: joint, PartialSig: partial.S, Blind: blind}, nil
}

// DRecvCoinsR3 finishes the shared output on party A's side: using its
// own locally-retained blind and signer from R1 plus the public
// accumulator context and joint commitment B sent back, it contributes
// A's own round-2 rangeproof share, finalizes and verifies the proof,
// embeds the completed commitment and rangeproof as a new slate output,
// and writes A's own partial signature.
func DRecvCoinsR3(r1 *DRecvCoinsR1Result, ctxAfterR2 *bulletproof.MPBPContext, jointCommitment *pedersen.Commitment) (*slate.Slate, error) {
	ctx := bulletproof.Round2(ctxAfterR2, r1.Blind)
	proof, err := bulletproof.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	r1.Slate.AddOutput(jointCommitment, proof)

	aggNonce, err := r1.Slate.AggregateNonce()
	if err != nil {
		return nil, err
	}
	aggExcess, err := r1.Slate.AggregateExcess()
	if err != nil {
		return nil, err
	}
	partial := r1.Signer.Round2(aggNonce, aggExcess, r1.Slate.KernelMessage())
	if err := r1.Slate.SetPartialSig(r1.Signer.Index, partial.S); err != nil {
		return nil, fmt.Errorf("mw: set partial sig: %w", err)
	}
	r1.Signer.Retire()

	return r1.Slate, nil
}

// FinTxOptions configures the sender-side finalization step. The zero
// value performs a plain round-2 sign plus sum-and-verify.
type FinTxOptions struct {
	// Finalize sums every partial signature into the completed kernel
	// signature once this party's own contribution (if any) is written.
	Finalize bool
	// AdaptorPublic puts FinTx into adaptor-verification mode: the
	// participant named by AdaptorParticipant (or, when it is zero, every
	// other already-written partial) is checked against this offset
	// before this party signs. Used by the spending party of a contract
	// settlement to confirm the claimant's adaptor partial is
	// well-formed before committing its own plain signature.
	AdaptorPublic *curve.Point
	// AdaptorParticipant restricts adaptor verification to a single
	// participant index. Needed whenever other already-filled partials
	// exist that are ordinary plain signatures, not adaptor ones — e.g.
	// a jointly-owned input's second co-owner signing alongside the
	// adaptor claimant. Zero means "every other filled participant",
	// correct whenever the adaptor partial is the only one besides the
	// caller's own.
	AdaptorParticipant uint64
	// ReplaceIndex/ReplaceSig, when ReplaceSig is non-nil, overwrite the
	// named participant's slot with a plain signature before summing —
	// the adaptor-to-plain swap that happens once x has been revealed.
	ReplaceIndex uint64
	ReplaceSig   *curve.Scalar
}

// FinTx performs the sender's finalization step: optionally verifies
// every other participant's partial signature against a promised
// adaptor offset, optionally writes this signer's own round-2 partial,
// optionally swaps a revealed plain signature in for an adaptor one, and
// — when Finalize is set — sums every partial into the completed kernel
// signature and verifies it. Returns (nil, nil) when Finalize is false
// and every check passed.
func FinTx(s *slate.Slate, signer *aggsig.Signer, opts FinTxOptions) (*aggsig.Signature, error) {
	// Already finalized: a no-op, not a re-derivation. signer may be a
	// retired Signer left over from the first call (its excess/nonce
	// zeroised), so re-running Round2 here would silently produce a
	// corrupt s_i=0 contribution instead of the spec's "no-op" property.
	if s.FinalKernel != "" {
		sigS, err := curve.ScalarFromHex(s.FinalKernel)
		if err != nil {
			return nil, fmt.Errorf("mw: decode final kernel: %w", err)
		}
		aggNonce, err := s.AggregateNonce()
		if err != nil {
			return nil, err
		}
		return &aggsig.Signature{R: aggNonce, S: sigS}, nil
	}

	if err := s.VerifyOutputRangeProofs(); err != nil {
		return nil, err
	}
	aggNonce, err := s.AggregateNonce()
	if err != nil {
		return nil, err
	}
	aggExcess, err := s.AggregateExcess()
	if err != nil {
		return nil, err
	}
	message := s.KernelMessage()

	if opts.AdaptorPublic != nil {
		for _, p := range s.Participants {
			if p.PartialSig == "" || (signer != nil && p.Index == signer.Index) {
				continue
			}
			if opts.AdaptorParticipant != 0 && p.Index != opts.AdaptorParticipant {
				continue
			}
			sigScalar, err := s.PartialSig(p.Index)
			if err != nil {
				return nil, err
			}
			publicNonce, err := curve.PointFromHex(p.PublicNonce)
			if err != nil {
				return nil, fmt.Errorf("mw: decode participant %d nonce: %w", p.Index, err)
			}
			publicExcess, err := curve.PointFromHex(p.PublicBlindExcess)
			if err != nil {
				return nil, fmt.Errorf("mw: decode participant %d excess: %w", p.Index, err)
			}
			partial := &aggsig.PartialSignature{Index: p.Index, S: sigScalar}
			if err := aggsig.VerifyPartial(partial, publicNonce, publicExcess, aggNonce, aggExcess, message, opts.AdaptorPublic); err != nil {
				return nil, err
			}
		}
	}

	if signer != nil {
		partial := signer.Round2(aggNonce, aggExcess, message)
		if err := s.SetPartialSig(signer.Index, partial.S); err != nil {
			return nil, fmt.Errorf("mw: set partial sig: %w", err)
		}
		signer.Retire()
	}

	if opts.ReplaceSig != nil {
		if err := s.SetPartialSig(opts.ReplaceIndex, opts.ReplaceSig); err != nil {
			return nil, fmt.Errorf("mw: replace partial sig: %w", err)
		}
	}

	if !opts.Finalize {
		return nil, nil
	}
	if !s.AllSigned() {
		return nil, swaperr.New(swaperr.KindInvalidInput, "mw.FinTx", fmt.Errorf("not every participant has signed"))
	}

	partials := make([]*aggsig.PartialSignature, 0, len(s.Participants))
	for _, p := range s.Participants {
		sigScalar, err := s.PartialSig(p.Index)
		if err != nil {
			return nil, err
		}
		partials = append(partials, &aggsig.PartialSignature{Index: p.Index, S: sigScalar})
	}

	sig, err := aggsig.Finalize(aggNonce, aggExcess, message, partials...)
	if err != nil {
		return nil, err
	}
	s.FinalKernel = sig.S.Hex()
	return sig, nil
}

// ExtWitness recovers the adaptor secret from a matching pair of adaptor
// and plain partial signatures, the step that lets one side of a swap
// recover the other chain's spending secret once a kernel signature
// settles on-chain.
func ExtWitness(adaptorSig, plainSig *curve.Scalar) *curve.Scalar {
	return aggsig.ExtWitness(adaptorSig, plainSig)
}
