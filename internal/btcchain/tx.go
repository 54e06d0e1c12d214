package btcchain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Input is the Go rendering of spec §3's BTCInput entity: a single
// imported UTXO the local party controls, with enough material to sign
// a spend of it.
type Input struct {
	Txid         string
	Vout         uint32
	Value        int64
	PrivKeyWIF   string
	PubKey       *btcec.PublicKey
	ScriptPubKey []byte
}

// BuildFundingTx spends in (a P2WPKH UTXO the funder already controls)
// into the 2-of-2/CLTV escrow output, plus an optional
// change output. changeScript/changeValue are both ignored when
// changeValue is zero.
func BuildFundingTx(in Input, escrowOut *wire.TxOut, changeScript []byte, changeValue int64) (*wire.MsgTx, error) {
	txid, err := chainhash.NewHashFromStr(in.Txid)
	if err != nil {
		return nil, fmt.Errorf("btcchain: parse txid: %w", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *txid, Index: in.Vout},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(escrowOut)
	if changeValue > 0 {
		tx.AddTxOut(wire.NewTxOut(changeValue, changeScript))
	}
	return tx, nil
}

// SignFundingInput signs the funding transaction's single input against
// a P2WPKH prevout script (the UTXO the funder is spending from, distinct
// from the escrow script this transaction creates), writing a
// {signature, pubkey} witness. P2WSH prevouts are not handled.
func SignFundingInput(tx *wire.MsgTx, in Input, privKey *btcec.PrivateKey) error {
	prevFetcher := txscript.NewCannedPrevOutputFetcher(in.ScriptPubKey, in.Value)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)
	witness, err := txscript.WitnessSignature(tx, sigHashes, 0, in.Value, in.ScriptPubKey, txscript.SigHashAll, privKey, true)
	if err != nil {
		return fmt.Errorf("btcchain: sign funding input: %w", err)
	}
	tx.TxIn[0].Witness = witness
	return nil
}

// BuildSpendTx constructs an unsigned transaction spending the escrow
// output (identified by fundingTxid/escrowVout) to a single destination
// script, setting LockTime when refunding so OP_CHECKLOCKTIMEVERIFY in
// the refund branch is satisfied.
func BuildSpendTx(fundingTxid string, escrowVout uint32, destScript []byte, value int64, lockTime uint32) (*wire.MsgTx, error) {
	txid, err := chainhash.NewHashFromStr(fundingTxid)
	if err != nil {
		return nil, fmt.Errorf("btcchain: parse funding txid: %w", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	sequence := wire.MaxTxInSequenceNum
	if lockTime > 0 {
		// A non-final sequence number is required for nLockTime (and
		// therefore CHECKLOCKTIMEVERIFY) to be enforced by consensus.
		sequence = wire.MaxTxInSequenceNum - 1
	}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *txid, Index: escrowVout},
		Sequence:         sequence,
	})
	tx.AddTxOut(wire.NewTxOut(value, destScript))
	tx.LockTime = lockTime
	return tx, nil
}

// EscrowSigHash computes the BIP-143 witness-v0 signature hash for
// spending the escrow output with redeemScript as the witness script.
func EscrowSigHash(tx *wire.MsgTx, redeemScript []byte, escrowValue int64) ([]byte, error) {
	prevFetcher := txscript.NewCannedPrevOutputFetcher(nil, escrowValue)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)
	return txscript.CalcWitnessSigHash(redeemScript, sigHashes, txscript.SigHashAll, tx, 0, escrowValue)
}

// SignEscrowSigHash produces a DER-encoded ECDSA signature (with the
// trailing SigHashAll byte CHECKMULTISIG expects) over an escrow
// spend's sighash, under privKey. Used for both branches of
// EscrowScript: the 2-of-2 claim signatures and the single refund
// signature.
func SignEscrowSigHash(privKey *btcec.PrivateKey, sigHash []byte) []byte {
	sig := ecdsa.Sign(privKey, sigHash)
	return append(sig.Serialize(), byte(txscript.SigHashAll))
}
