package rpcclient

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/wire"

	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

// TestDecodeRawTxRoundTrips checks decodeRawTx against a freshly
// serialized transaction, matching SendRawTransaction's own use of it
// before handing the tx to rpcclient.Client.
func TestDecodeRawTxRoundTrips(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: 1_000, PkScript: []byte{0x00}})

	var buf bytes.Buffer
	testutils.AssertNoError(t, "serialize tx", tx.Serialize(&buf))

	decoded, err := decodeRawTx(hex.EncodeToString(buf.Bytes()))
	testutils.AssertNoError(t, "decode raw tx", err)
	testutils.AssertIntsEqual(t, "tx in count", len(tx.TxIn), len(decoded.TxIn))
	testutils.AssertIntsEqual(t, "tx out count", len(tx.TxOut), len(decoded.TxOut))
	testutils.AssertUintsEqual(t, "tx out value", uint64(tx.TxOut[0].Value), uint64(decoded.TxOut[0].Value))
}

// TestDecodeRawTxRejectsInvalidHex checks the error path.
func TestDecodeRawTxRejectsInvalidHex(t *testing.T) {
	_, err := decodeRawTx("not-hex")
	testutils.AssertError(t, "invalid hex", err)
}
