package btcchain_test

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"

	"github.com/jafalter/mw-btc-swap/internal/btcchain"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

var fakeTxid = strings.Repeat("11", 32)

// TestClaimSignaturesVerifyAgainstSigHash exercises the claim-branch
// half of spec §4.5's settlement: both 2-of-2 signatures built by
// SignEscrowSigHash must verify against the exact sighash a spend of
// the escrow output produces, under each signer's own key.
func TestClaimSignaturesVerifyAgainstSigHash(t *testing.T) {
	keyA, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key A", err)
	keyB, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key B", err)
	refundKey, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate refund key", err)

	const escrowValue = int64(1_000_000)
	redeemScript, _, err := btcchain.FundingPkScript(keyA.PubKey(), keyB.PubKey(), refundKey.PubKey(), 700_000, escrowValue)
	testutils.AssertNoError(t, "build funding pk script", err)

	destScript := []byte{txscript.OP_RETURN}
	tx, err := btcchain.BuildSpendTx(fakeTxid, 0, destScript, escrowValue-1000, 0)
	testutils.AssertNoError(t, "build spend tx", err)

	sigHash, err := btcchain.EscrowSigHash(tx, redeemScript, escrowValue)
	testutils.AssertNoError(t, "compute sighash", err)

	sigA := btcchain.SignEscrowSigHash(keyA, sigHash)
	sigB := btcchain.SignEscrowSigHash(keyB, sigHash)

	for _, pair := range []struct {
		name string
		sig  []byte
		key  *btcec.PublicKey
	}{
		{"A", sigA, keyA.PubKey()},
		{"B", sigB, keyB.PubKey()},
	} {
		testutils.AssertBoolsEqual(t, pair.name+" signature carries SigHashAll byte", true, pair.sig[len(pair.sig)-1] == byte(txscript.SigHashAll))
		parsed, err := ecdsa.ParseDERSignature(pair.sig[:len(pair.sig)-1])
		testutils.AssertNoError(t, "parse "+pair.name+" signature", err)
		testutils.AssertBoolsEqual(t, pair.name+" signature verifies", true, parsed.Verify(sigHash, pair.key))
	}

	witness := btcchain.ClaimWitness(redeemScript, keyA.PubKey().SerializeCompressed(), sigA, keyB.PubKey().SerializeCompressed(), sigB)
	testutils.AssertIntsEqual(t, "claim witness has 5 elements", 5, len(witness))
	testutils.AssertBytesEqual(t, []byte{0x01}, witness[3])
	testutils.AssertBytesEqual(t, redeemScript, witness[4])
}

// TestRefundSignatureVerifiesAndWitnessShape exercises the CLTV refund
// branch: a single signature under the refund key, in the 3-element
// witness shape RefundWitness produces.
func TestRefundSignatureVerifiesAndWitnessShape(t *testing.T) {
	keyA, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key A", err)
	keyB, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key B", err)
	refundKey, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate refund key", err)

	const escrowValue = int64(500_000)
	const lockHeight = 800_000
	redeemScript, _, err := btcchain.FundingPkScript(keyA.PubKey(), keyB.PubKey(), refundKey.PubKey(), lockHeight, escrowValue)
	testutils.AssertNoError(t, "build funding pk script", err)

	destScript := []byte{txscript.OP_RETURN}
	tx, err := btcchain.BuildSpendTx(fakeTxid, 1, destScript, escrowValue-500, uint32(lockHeight))
	testutils.AssertNoError(t, "build refund tx", err)
	testutils.AssertBoolsEqual(t, "refund tx carries lock time", true, tx.LockTime == uint32(lockHeight))
	testutils.AssertBoolsEqual(t, "refund input sequence is non-final", true, tx.TxIn[0].Sequence < 0xffffffff)

	sigHash, err := btcchain.EscrowSigHash(tx, redeemScript, escrowValue)
	testutils.AssertNoError(t, "compute sighash", err)

	sig := btcchain.SignEscrowSigHash(refundKey, sigHash)
	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	testutils.AssertNoError(t, "parse refund signature", err)
	testutils.AssertBoolsEqual(t, "refund signature verifies", true, parsed.Verify(sigHash, refundKey.PubKey()))

	witness := btcchain.RefundWitness(redeemScript, sig)
	testutils.AssertIntsEqual(t, "refund witness has 3 elements", 3, len(witness))
	testutils.AssertBytesEqual(t, sig, witness[0])
	testutils.AssertBytesEqual(t, redeemScript, witness[2])
}
