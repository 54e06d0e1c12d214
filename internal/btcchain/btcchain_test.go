package btcchain_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/jafalter/mw-btc-swap/internal/btcchain"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

// TestAdaptorSecretWIFRoundTrip exercises spec §8 scenario 4's test
// vector: a WIF-encoded secret decodes to a secp256k1 scalar, and
// re-encoding that scalar reproduces the original WIF string.
func TestAdaptorSecretWIFRoundTrip(t *testing.T) {
	const wif = "cNScs27pnjxb4GbVbX2124pPUVSPLbjzDtV1frYFZhh9k4zr6uN9"

	x, pub, err := btcchain.ScalarFromWIF(wif)
	testutils.AssertNoError(t, "decode WIF", err)
	testutils.AssertBoolsEqual(t, "adaptor secret is non-zero", true, !x.IsZero())
	testutils.AssertBoolsEqual(t, "public point is on curve", true, pub.IsOnCurve())

	roundTripped, err := btcchain.ScalarToWIF(x, &chaincfg.TestNet3Params, true)
	testutils.AssertNoError(t, "encode WIF", err)
	testutils.AssertStringsEqual(t, "WIF round-trips", wif, roundTripped)
}

func TestEscrowScriptBuildsP2WSHOutput(t *testing.T) {
	keyA, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key A", err)
	keyB, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate key B", err)
	refundKey, err := btcec.NewPrivateKey()
	testutils.AssertNoError(t, "generate refund key", err)

	redeemScript, txOut, err := btcchain.FundingPkScript(keyA.PubKey(), keyB.PubKey(), refundKey.PubKey(), 711042, 2_000_000_000)
	testutils.AssertNoError(t, "build funding pk script", err)
	testutils.AssertBoolsEqual(t, "redeem script non-empty", true, len(redeemScript) > 0)
	testutils.AssertIntsEqual(t, "p2wsh pkScript is 34 bytes", 34, len(txOut.PkScript))
	testutils.AssertIntsEqual(t, "escrow value preserved", 2_000_000_000, int(txOut.Value))
}

func TestFundingPkScriptRejectsNonPositiveAmount(t *testing.T) {
	keyA, _ := btcec.NewPrivateKey()
	keyB, _ := btcec.NewPrivateKey()
	refundKey, _ := btcec.NewPrivateKey()

	_, _, err := btcchain.FundingPkScript(keyA.PubKey(), keyB.PubKey(), refundKey.PubKey(), 711042, 0)
	testutils.AssertError(t, "zero-amount escrow is rejected", err)
}
