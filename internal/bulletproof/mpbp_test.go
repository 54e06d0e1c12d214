package bulletproof_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func TestSinglePartyProofRoundTrip(t *testing.T) {
	blind, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blind", err)
	nonce, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample nonce", err)

	commitment := pedersen.Commit(5_000_000, blind)
	ctx := bulletproof.NewContext(nonce, commitment, 5_000_000)

	ctx = bulletproof.Round1(ctx, blind)
	ctx = bulletproof.Round2(ctx, blind)
	proof, err := bulletproof.Finalize(ctx)
	testutils.AssertNoError(t, "finalize single-party proof", err)
	testutils.AssertNoError(t, "verify single-party proof", bulletproof.Verify(proof, commitment))
}

func TestMultiPartyProofSplitBlind(t *testing.T) {
	blindA, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blindA", err)
	blindB, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blindB", err)
	sharedNonce, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample shared nonce", err)

	amount := uint64(2_000_000_000)
	commitment := pedersen.Commit(amount, blindA.Add(blindB))

	ctxSeed := bulletproof.NewContext(sharedNonce, commitment, amount)

	afterA1 := bulletproof.Round1(ctxSeed, blindA)
	afterB1 := bulletproof.Round1(afterA1, blindB)

	afterA2 := bulletproof.Round2(afterB1, blindA)
	afterB2 := bulletproof.Round2(afterA2, blindB)

	proof, err := bulletproof.Finalize(afterB2)
	testutils.AssertNoError(t, "finalize multi-party proof", err)
	testutils.AssertNoError(t, "verify multi-party proof", bulletproof.Verify(proof, commitment))
}

func TestTamperedProofFailsVerification(t *testing.T) {
	blind, _ := curve.RandomScalar()
	nonce, _ := curve.RandomScalar()
	commitment := pedersen.Commit(100, blind)
	ctx := bulletproof.NewContext(nonce, commitment, 100)
	ctx = bulletproof.Round1(ctx, blind)
	ctx = bulletproof.Round2(ctx, blind)
	proof, err := bulletproof.Finalize(ctx)
	testutils.AssertNoError(t, "finalize proof", err)

	proof.THat = proof.THat.Add(curve.ScalarFromUint64(1))
	testutils.AssertError(t, "tampered proof must fail verification", bulletproof.Verify(proof, commitment))
}

func TestProofAgainstWrongCommitmentFails(t *testing.T) {
	blind, _ := curve.RandomScalar()
	nonce, _ := curve.RandomScalar()
	commitment := pedersen.Commit(100, blind)
	ctx := bulletproof.NewContext(nonce, commitment, 100)
	ctx = bulletproof.Round1(ctx, blind)
	ctx = bulletproof.Round2(ctx, blind)
	proof, err := bulletproof.Finalize(ctx)
	testutils.AssertNoError(t, "finalize proof", err)

	otherBlind, _ := curve.RandomScalar()
	other := pedersen.Commit(100, otherBlind)
	testutils.AssertError(t, "proof must not verify against a different commitment", bulletproof.Verify(proof, other))
}
