package slate_test

import (
	"encoding/json"
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/slate"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func mustRangeProof(t *testing.T) (*bulletproof.RangeProof, *pedersen.Commitment) {
	t.Helper()
	blind, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blind", err)
	value := uint64(1_000_000)
	commitment := pedersen.Commit(value, blind)
	nonce, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample proof nonce", err)
	ctx := bulletproof.NewContext(nonce, commitment, value)
	ctx = bulletproof.Round1(ctx, blind)
	ctx = bulletproof.Round2(ctx, blind)
	proof, err := bulletproof.Finalize(ctx)
	testutils.AssertNoError(t, "finalize proof", err)
	return proof, commitment
}

// TestSlateJSONRoundTrip checks that a slate carrying inputs, an output
// with a real rangeproof, and filled participant data survives a
// marshal/unmarshal cycle unchanged, matching the spec's requirement
// that serialize+deserialize of every entity is the identity.
func TestSlateJSONRoundTrip(t *testing.T) {
	s := slate.New(5_000_000, 2_000_000, 711042)

	excess, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample excess", err)
	nonce, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample nonce", err)
	s.AddParticipant(1, curve.BasePointMul(excess), curve.BasePointMul(nonce))
	testutils.AssertNoError(t, "set partial sig", s.SetPartialSig(1, excess))

	inBlind, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample input blind", err)
	s.AddInput(pedersen.Commit(9_000_000, inBlind))

	proof, commitment := mustRangeProof(t)
	s.AddOutput(commitment, proof)

	raw, err := json.Marshal(s)
	testutils.AssertNoError(t, "marshal slate", err)

	var decoded slate.Slate
	testutils.AssertNoError(t, "unmarshal slate", json.Unmarshal(raw, &decoded))

	testutils.AssertStringsEqual(t, "id", s.ID.String(), decoded.ID.String())
	testutils.AssertUintsEqual(t, "amount", s.Amount, decoded.Amount)
	testutils.AssertUintsEqual(t, "fee", s.Fee, decoded.Fee)
	testutils.AssertUintsEqual(t, "lock height", s.LockHeight, decoded.LockHeight)
	testutils.AssertBoolsEqual(t, "features", true, s.Features == decoded.Features)
	testutils.AssertDeepEqual(t, "inputs", s.Inputs, decoded.Inputs)
	testutils.AssertDeepEqual(t, "outputs", s.Outputs, decoded.Outputs)
	testutils.AssertDeepEqual(t, "participants", s.Participants, decoded.Participants)

	decodedProof, err := decoded.Outputs[0].Proof.Decode()
	testutils.AssertNoError(t, "decode round-tripped proof", err)
	decodedCommitment, err := pedersen.FromHex(decoded.Outputs[0].Commitment)
	testutils.AssertNoError(t, "decode round-tripped commitment", err)
	testutils.AssertNoError(t, "round-tripped proof still verifies", bulletproof.Verify(decodedProof, decodedCommitment))
}

// TestKernelMessageIgnoresLockHeightForPlainKernel checks the spec §6
// canonicalisation rule: lock_height is forced to zero in the hashed
// message for a Plain kernel, even if the struct field is nonzero.
func TestKernelMessageIgnoresLockHeightForPlainKernel(t *testing.T) {
	plain := &slate.Slate{Features: slate.KernelPlain, Fee: 100, LockHeight: 999}
	plainZeroed := &slate.Slate{Features: slate.KernelPlain, Fee: 100, LockHeight: 0}
	testutils.AssertBytesEqual(t, plainZeroed.KernelMessage(), plain.KernelMessage())

	locked := &slate.Slate{Features: slate.KernelHeightLocked, Fee: 100, LockHeight: 999}
	differs := locked.KernelMessage()
	same := plain.KernelMessage()
	equal := len(differs) == len(same)
	if equal {
		for i := range differs {
			if differs[i] != same[i] {
				equal = false
				break
			}
		}
	}
	testutils.AssertBoolsEqual(t, "height-locked kernel message differs from plain", false, equal)
}

// TestHasDuplicateInput exercises the DuplicateInput boundary directly
// at the slate layer.
func TestHasDuplicateInput(t *testing.T) {
	b1, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blind 1", err)
	b2, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blind 2", err)
	c1 := pedersen.Commit(1_000, b1)
	c2 := pedersen.Commit(2_000, b2)

	testutils.AssertBoolsEqual(t, "distinct commitments are not duplicates", false,
		slate.HasDuplicateInput([]*pedersen.Commitment{c1, c2}))
	testutils.AssertBoolsEqual(t, "repeated commitment is a duplicate", true,
		slate.HasDuplicateInput([]*pedersen.Commitment{c1, c1}))
}

// TestAllSignedRequiresEveryParticipant checks the AllSigned gate FinTx
// relies on before it will sum partial signatures.
func TestAllSignedRequiresEveryParticipant(t *testing.T) {
	s := slate.New(1_000, 0, 0)
	testutils.AssertBoolsEqual(t, "empty slate is not all-signed", false, s.AllSigned())

	k1, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample k1", err)
	k2, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample k2", err)
	s.AddParticipant(1, curve.BasePointMul(k1), curve.BasePointMul(k1))
	s.AddParticipant(2, curve.BasePointMul(k2), curve.BasePointMul(k2))
	testutils.AssertBoolsEqual(t, "partially signed slate is not all-signed", false, s.AllSigned())

	testutils.AssertNoError(t, "sign participant 1", s.SetPartialSig(1, k1))
	testutils.AssertBoolsEqual(t, "still missing participant 2", false, s.AllSigned())
	testutils.AssertNoError(t, "sign participant 2", s.SetPartialSig(2, k2))
	testutils.AssertBoolsEqual(t, "fully signed slate is all-signed", true, s.AllSigned())
}
