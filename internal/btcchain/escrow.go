package btcchain

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// EscrowScript builds the redeem script for the Bitcoin-side half of a
// swap: a 2-of-2 claim branch (the offerer's own key plus the adaptor
// public point X — spendable only once the offerer has recovered the
// witness x from the Mimblewimble settlement) and a CLTV-timelocked
// refund branch paying back to the funder alone after lockHeight.
//
//	OP_IF
//	    2 <claimKeyA> <claimKeyB> 2 OP_CHECKMULTISIG
//	OP_ELSE
//	    <lockHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    <refundKey> OP_CHECKSIG
//	OP_ENDIF
func EscrowScript(claimKeyA, claimKeyB *btcec.PublicKey, refundKey *btcec.PublicKey, lockHeight int64) ([]byte, error) {
	a := claimKeyA.SerializeCompressed()
	b := claimKeyB.SerializeCompressed()
	if bytes.Compare(a, b) == -1 {
		a, b = b, a
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_2)
	builder.AddData(a)
	builder.AddData(b)
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(lockHeight)
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(refundKey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	return builder.Script()
}

// WitnessScriptHash wraps redeemScript in a version-0 P2WSH output script.
func WitnessScriptHash(redeemScript []byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	hash := sha256.Sum256(redeemScript)
	builder.AddData(hash[:])
	return builder.Script()
}

// FundingPkScript builds the redeem script and matching P2WSH TxOut that
// funds the escrow with amount satoshis.
func FundingPkScript(claimKeyA, claimKeyB, refundKey *btcec.PublicKey, lockHeight, amount int64) ([]byte, *wire.TxOut, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("btcchain: escrow amount must be positive")
	}
	redeemScript, err := EscrowScript(claimKeyA, claimKeyB, refundKey, lockHeight)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}
	return redeemScript, wire.NewTxOut(amount, pkScript), nil
}

// ClaimWitness assembles the witness stack spending the escrow's claim
// branch: OP_IF requires a leading TRUE, a dummy element to absorb
// CHECKMULTISIG's off-by-one pop, the two signatures in the same order
// the redeem script sorted the public keys, and the redeem script itself.
func ClaimWitness(redeemScript []byte, pubA, sigA, pubB, sigB []byte) wire.TxWitness {
	witness := make(wire.TxWitness, 5)
	witness[0] = nil
	if bytes.Compare(pubA, pubB) == -1 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}
	witness[3] = []byte{0x01}
	witness[4] = redeemScript
	return witness
}

// RefundWitness assembles the witness stack spending the escrow's
// timelocked refund branch: a single signature under refundKey, a
// leading FALSE to select the OP_ELSE branch, and the redeem script.
func RefundWitness(redeemScript []byte, refundSig []byte) wire.TxWitness {
	return wire.TxWitness{refundSig, nil, redeemScript}
}

// OutpointHash returns the chainhash.Hash for a hex-encoded txid as
// stored in an imported BTCInput.
func OutpointHash(txid string) (*chainhash.Hash, error) {
	return chainhash.NewHashFromStr(txid)
}
