package mw_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/slate"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func mustCoin(t *testing.T, value uint64) *mw.Coin {
	t.Helper()
	c, err := mw.NewCoin(value)
	testutils.AssertNoError(t, "create coin", err)
	return c
}

func TestSpendCoinsRejectsNoInputs(t *testing.T) {
	_, err := mw.SpendCoins(nil, 1, 0, 2, 1)
	testutils.AssertError(t, "spend with no inputs", err)
	kind, ok := swaperr.ErrorKind(err)
	testutils.AssertBoolsEqual(t, "error is classified", true, ok)
	testutils.AssertBoolsEqual(t, "error kind is InvalidInput", true, kind == swaperr.KindInvalidInput)
}

func TestSpendCoinsRejectsInsufficientFunds(t *testing.T) {
	in := mustCoin(t, 1_000)
	_, err := mw.SpendCoins([]*mw.Coin{in}, 10_000_000, 0, 2, 1)
	testutils.AssertError(t, "spend with insufficient funds", err)
	kind, _ := swaperr.ErrorKind(err)
	testutils.AssertBoolsEqual(t, "error kind is InsufficientFunds", true, kind == swaperr.KindInsufficientFunds)
}

func TestSpendCoinsRejectsDuplicateInput(t *testing.T) {
	in := mustCoin(t, 5_000_000_000)
	_, err := mw.SpendCoins([]*mw.Coin{in, in}, 1_000_000_000, 0, 2, 1)
	testutils.AssertError(t, "spend with duplicate inputs", err)
	kind, _ := swaperr.ErrorKind(err)
	testutils.AssertBoolsEqual(t, "error kind is InvalidInput", true, kind == swaperr.KindInvalidInput)
}

// TestTwoPartyPlainSwapEndToEnd exercises the simplest dBuildMwTx-shaped
// exchange: Alice spends one of her inputs and funds Bob directly,
// producing a two-output kernel with no shared output.
func TestTwoPartyPlainSwapEndToEnd(t *testing.T) {
	input := mustCoin(t, 4_000_000_000)
	sendAmount := uint64(2_000_000_000)

	spend, err := mw.SpendCoins([]*mw.Coin{input}, sendAmount, 0, 2, 1)
	testutils.AssertNoError(t, "spend coins", err)

	recv, err := mw.RecvCoins(spend.Slate, sendAmount, 2)
	testutils.AssertNoError(t, "recv coins", err)

	sig, err := mw.FinTx(recv.Slate, spend.Signer, mw.FinTxOptions{Finalize: true})
	testutils.AssertNoError(t, "finalize tx", err)
	testutils.AssertBoolsEqual(t, "kernel recorded on slate", true, recv.Slate.FinalKernel == sig.S.Hex())

	testutils.AssertBoolsEqual(t, "change coin opens", true, spend.Change.VerifyOpening())
	testutils.AssertBoolsEqual(t, "received coin opens", true, recv.OutputCoin.VerifyOpening())
}

// TestFinTxTwiceIsNoOp exercises the named invariant that calling FinTx
// a second time on an already-finalized slate is a no-op: it must
// return the same kernel signature rather than re-running Round2 on the
// signer, which Retire has already zeroised.
func TestFinTxTwiceIsNoOp(t *testing.T) {
	input := mustCoin(t, 4_000_000_000)
	sendAmount := uint64(2_000_000_000)

	spend, err := mw.SpendCoins([]*mw.Coin{input}, sendAmount, 0, 2, 1)
	testutils.AssertNoError(t, "spend coins", err)

	recv, err := mw.RecvCoins(spend.Slate, sendAmount, 2)
	testutils.AssertNoError(t, "recv coins", err)

	first, err := mw.FinTx(recv.Slate, spend.Signer, mw.FinTxOptions{Finalize: true})
	testutils.AssertNoError(t, "finalize tx", err)

	second, err := mw.FinTx(recv.Slate, spend.Signer, mw.FinTxOptions{Finalize: true})
	testutils.AssertNoError(t, "re-finalize an already-finalized slate must not error", err)
	testutils.AssertStringsEqual(t, "kernel signature unchanged", first.S.Hex(), second.S.Hex())
	testutils.AssertBoolsEqual(t, "kernel nonce unchanged", true, first.R.Equal(second.R))
	testutils.AssertBoolsEqual(t, "slate's recorded kernel unchanged", true, recv.Slate.FinalKernel == first.S.Hex())
}

// TestAdaptorSettlementRevealsWitness exercises the atomic-swap path:
// Bob accepts payment with his partial signature offset by an adaptor
// secret. Once Bob's matching plain signature (which AptRecvCoins also
// returns) is published, anyone holding the adaptor partial can recover
// Bob's adaptor secret.
func TestAdaptorSettlementRevealsWitness(t *testing.T) {
	input := mustCoin(t, 4_000_000_000)
	sendAmount := uint64(2_000_000_000)

	adaptorSecret, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample adaptor secret", err)

	spend, err := mw.SpendCoins([]*mw.Coin{input}, sendAmount, 0, 2, 1)
	testutils.AssertNoError(t, "spend coins", err)

	apt, err := mw.AptRecvCoins(spend.Slate, sendAmount, adaptorSecret, 2)
	testutils.AssertNoError(t, "adaptor recv coins", err)

	// Alice finalizes her own round 2 against the adaptor partial: this
	// does not produce a valid kernel signature, because Bob's
	// contribution is still offset by the adaptor secret.
	_, err = mw.FinTx(apt.Slate, spend.Signer, mw.FinTxOptions{Finalize: true})
	testutils.AssertError(t, "finalize against un-revealed adaptor partial must fail", err)

	recovered := mw.ExtWitness(apt.AdaptorSig, apt.PlainSig)
	testutils.AssertBoolsEqual(t, "recovered secret matches adaptor secret", true, recovered.Equal(adaptorSecret))
}

// TestContractSettlementExtractsWitness exercises the full dContractMwTx
// shape end to end: the sender's finalize verifies the receiver's
// adaptor partial, swaps in the receiver's plain partial and completes
// the kernel signature, and x is recovered from the receiver's
// adaptor/plain pair.
func TestContractSettlementExtractsWitness(t *testing.T) {
	sharedInput := mustCoin(t, 4_000_000_000)
	claimAmount := uint64(3_800_000_000)

	adaptorSecret, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample adaptor secret", err)
	adaptorPublic := curve.BasePointMul(adaptorSecret)

	spend, err := mw.SpendCoins([]*mw.Coin{sharedInput}, claimAmount, 0, 2, 1)
	testutils.AssertNoError(t, "spend shared input", err)

	apt, err := mw.AptRecvCoins(spend.Slate, claimAmount, adaptorSecret, 2)
	testutils.AssertNoError(t, "apt recv coins", err)

	sig, err := mw.FinTx(apt.Slate, spend.Signer, mw.FinTxOptions{
		Finalize:      true,
		AdaptorPublic: adaptorPublic,
		ReplaceIndex:  2,
		ReplaceSig:    apt.PlainSig,
	})
	testutils.AssertNoError(t, "finalize contract settlement", err)

	recovered := mw.ExtWitness(apt.AdaptorSig, apt.PlainSig)
	testutils.AssertBoolsEqual(t, "recovered witness matches adaptor secret", true, recovered.Equal(adaptorSecret))
	testutils.AssertBoolsEqual(t, "kernel recorded on slate", true, apt.Slate.FinalKernel == sig.S.Hex())
}

// TestSharedOutputThreeRoundProtocol exercises DRecvCoinsR1/R2/R3: two
// parties jointly fund one output without either one learning the
// other's blinding share, and both end up signing their blind share as
// part of the kernel excess.
func TestSharedOutputThreeRoundProtocol(t *testing.T) {
	sharedNonce, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample shared nonce", err)

	value := uint64(3_000_000_000)
	s := slate.New(value, 0, 0)

	r1, err := mw.DRecvCoinsR1(s, sharedNonce, value, 1)
	testutils.AssertNoError(t, "drecv round 1", err)

	r2, err := mw.DRecvCoinsR2(s, r1.Ctx, r1.PartialCommitment, 2)
	testutils.AssertNoError(t, "drecv round 2", err)

	out, err := mw.DRecvCoinsR3(r1, r2.Ctx, r2.Commitment)
	testutils.AssertNoError(t, "drecv round 3", err)
	testutils.AssertNoError(t, "verify shared output rangeproof", out.VerifyOutputRangeProofs())
	testutils.AssertBoolsEqual(t, "both co-owners signed", true, out.AllSigned())
}
