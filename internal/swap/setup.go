package swap

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"
	btcwire "github.com/btcsuite/btcd/wire"

	"github.com/jafalter/mw-btc-swap/internal/btcchain"
	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/protocol"
	"github.com/jafalter/mw-btc-swap/internal/slate"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
	"github.com/jafalter/mw-btc-swap/internal/wire"
)

// handshake exchanges the fingerprint of the local pub slate and checks
// the peer's fingerprint against it (spec §6): the first peer message
// is the SHA-256 hex of the canonical pub-slate bytes, the reply is a
// bare "OK" or "FAULT", neither of which is itself ACKed.
func handshake(conn *wire.Conn, local *PubSlate) error {
	fp, err := Fingerprint(local)
	if err != nil {
		return err
	}
	if err := conn.SendRawNoAck(fp); err != nil {
		return err
	}
	reply, err := conn.RecvRawNoAck()
	if err != nil {
		return err
	}
	if reply != "OK" {
		return swaperr.New(swaperr.KindChecksumMismatch, "swap.handshake", fmt.Errorf("peer rejected fingerprint: %q", reply))
	}
	return nil
}

// respondHandshake is the listening side of handshake: it reads the
// peer's fingerprint, compares it against the local slate, and replies
// "OK" or "FAULT" without expecting an ACK on that reply.
func respondHandshake(conn *wire.Conn, local *PubSlate) error {
	localFP, err := Fingerprint(local)
	if err != nil {
		return err
	}
	peerFP, err := conn.RecvRawNoAck()
	if err != nil {
		return err
	}
	if peerFP != localFP {
		_ = conn.SendRawNoAck("FAULT")
		return swaperr.New(swaperr.KindChecksumMismatch, "swap.respondHandshake", fmt.Errorf("fingerprint mismatch"))
	}
	return conn.SendRawNoAck("OK")
}

// doListen binds the configured TCP address, waits for one peer
// connection, and runs the SETUP phase as the offeror (the side that
// opens dSharedOutMwTx).
func (o *Orchestrator) doListen(ctx context.Context, args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", o.Settings.TCPAddr, o.Settings.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, swaperr.New(swaperr.KindPeerDisconnected, "swap.Listen", err)
	}
	defer listener.Close()
	o.Log.Info().Str("addr", addr).Msg("listening for swap peer")

	rawConn, err := listener.Accept()
	if err != nil {
		return nil, swaperr.New(swaperr.KindPeerDisconnected, "swap.Listen", err)
	}
	conn := wire.NewConn(rawConn, o.Log)
	o.peer = conn
	defer func() { o.peer = nil }()

	if err := respondHandshake(conn, &s.Pub); err != nil {
		return nil, err
	}
	return o.runSetup(ctx, s, conn, true)
}

// doAccept loads the pub slate already placed in the slate directory
// (received from the offeror out of band) and checks that it is still
// INITIALIZED. It changes and saves nothing, and performs no network
// I/O; that happens in `setup`.
func (o *Orchestrator) doAccept(ctx context.Context, args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	if s.Pub.Status != StatusInitialized {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Accept", fmt.Errorf("swap %s is not in INITIALIZED state", args.SwapID))
	}
	o.Log.Info().Str("swap_id", s.ID.String()).Msg("accepted swap offer")
	return s, nil
}

// doSetup connects to the offeror's listener and runs the SETUP phase
// as the taker.
func (o *Orchestrator) doSetup(ctx context.Context, args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", s.Pub.Meta.Server, s.Pub.Meta.Port)
	conn, err := wire.Dial(addr, o.Log)
	if err != nil {
		return nil, err
	}
	o.peer = conn
	defer func() { _ = conn.Close(); o.peer = nil }()

	if err := handshake(conn, &s.Pub); err != nil {
		return nil, err
	}
	return o.runSetup(ctx, s, conn, false)
}

// btcClaimKey is the wire message exchanged during setup so each party
// learns the other's escrow claim public key (spec's 2-of-2 P2WSH
// output needs both before the redeem script can be built).
type btcClaimKey struct {
	PubKeyHex string `json:"pubkey"`
}

// runSetup drives the Grin-side escrow (dSharedOutMwTx) and the
// Bitcoin-side 2-of-2 P2WSH escrow. The offeror (isOfferor) opens each
// exchange; the taker accepts.
func (o *Orchestrator) runSetup(ctx context.Context, s *SwapSlate, conn *wire.Conn, isOfferor bool) (*SwapSlate, error) {
	s.Priv.IsOfferor = isOfferor
	inputs, err := coinsFromWire(s.Priv.MW.Inputs)
	if err != nil {
		return nil, err
	}

	sharedNonce, err := curve.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("swap: sample shared nonce: %w", err)
	}

	sharedCoin, err := o.negotiateSharedOut(conn, inputs, s.Pub.MW.Amount, s.Pub.MW.Timelock, sharedNonce, isOfferor)
	if err != nil {
		return nil, err
	}
	s.Priv.MW.Inputs = append(s.Priv.MW.Inputs, EncodeCoin(sharedCoin))

	if err := o.negotiateBitcoinEscrow(ctx, conn, s, isOfferor); err != nil {
		return nil, err
	}
	s.Pub.Status = StatusSetup

	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Info().Str("swap_id", s.ID.String()).Msg("setup phase complete")
	return s, nil
}

// sharedOutOpenMsg is dSharedOutMwTx's message 1 on the wire.
type sharedOutOpenMsg struct {
	Slate             *slate.Slate           `json:"slate"`
	WireContext       bulletproof.ContextWire `json:"wire_context"`
	PartialCommitment string                  `json:"partial_commitment"`
}

// sharedOutAcceptMsg is dSharedOutMwTx's message 2 on the wire.
type sharedOutAcceptMsg struct {
	Slate       *slate.Slate            `json:"slate"`
	WireContext bulletproof.ContextWire `json:"wire_context"`
	Commitment  string                  `json:"commitment"`
}

// negotiateSharedOut runs dSharedOutMwTx's three messages over conn,
// returning this party's co-ownership share of the resulting shared
// coin: Commitment is the full joint commitment, Blind only this
// party's own share, matching the Coin shape dSharedInpMwTx/dContractMwTx
// expect of a jointly-owned input.
func (o *Orchestrator) negotiateSharedOut(conn *wire.Conn, inputs []*mw.Coin, amount, lockHeight uint64, sharedNonce *curve.Scalar, isOfferor bool) (*mw.Coin, error) {
	if isOfferor {
		open, err := protocol.DSharedOutMwTxOpen(inputs, amount, lockHeight, sharedNonce)
		if err != nil {
			return nil, err
		}
		if err := conn.SendJSON(sharedOutOpenMsg{
			Slate: open.Slate, WireContext: open.WireContext, PartialCommitment: open.PartialCommitment.Hex(),
		}); err != nil {
			return nil, err
		}
		var acceptMsg sharedOutAcceptMsg
		if err := conn.RecvJSON(&acceptMsg); err != nil {
			return nil, err
		}
		commitment, err := pedersen.FromHex(acceptMsg.Commitment)
		if err != nil {
			return nil, swaperr.New(swaperr.KindInvalidInput, "swap.negotiateSharedOut", err)
		}
		if _, err := protocol.DSharedOutMwTxFinalize(open, protocol.SharedOutAcceptResult{
			Slate: acceptMsg.Slate, WireContext: acceptMsg.WireContext, Commitment: commitment,
		}); err != nil {
			return nil, err
		}
		return &mw.Coin{Commitment: commitment, Blind: open.R1.Blind, Value: amount}, nil
	}

	var openMsg sharedOutOpenMsg
	if err := conn.RecvJSON(&openMsg); err != nil {
		return nil, err
	}
	partialCommitmentA, err := pedersen.FromHex(openMsg.PartialCommitment)
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.negotiateSharedOut", err)
	}
	accept, err := protocol.DSharedOutMwTxAccept(openMsg.Slate, openMsg.WireContext, partialCommitmentA)
	if err != nil {
		return nil, err
	}
	if err := conn.SendJSON(sharedOutAcceptMsg{
		Slate: accept.Slate, WireContext: accept.WireContext, Commitment: accept.Commitment.Hex(),
	}); err != nil {
		return nil, err
	}
	return &mw.Coin{Commitment: accept.Commitment, Blind: accept.R2.Blind, Value: amount}, nil
}

// fundingInfo is the wire message the BTC funder sends once it has
// broadcast the escrow funding transaction, so the counterparty (who
// never sees that transaction being built) learns which outpoint the
// later claim/refund spends.
type fundingInfo struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// negotiateBitcoinEscrow exchanges claim public keys, builds the
// identical 2-of-2 P2WSH redeem script on both sides, and — on whichever
// side is actually holding the Bitcoin being offered — funds it and
// tells the counterparty the resulting outpoint.
func (o *Orchestrator) negotiateBitcoinEscrow(ctx context.Context, conn *wire.Conn, s *SwapSlate, isOfferor bool) error {
	if len(s.Priv.BTC.Inputs) == 0 {
		return swaperr.New(swaperr.KindInsufficientFunds, "swap.negotiateBitcoinEscrow", fmt.Errorf("no BTC input imported"))
	}
	s.Priv.BTC.ClaimKeyWIF = s.Priv.BTC.Inputs[0].PrivKeyWIF
	_, claimPub, err := btcchain.ScalarFromWIF(s.Priv.BTC.ClaimKeyWIF)
	if err != nil {
		return err
	}
	localKey, err := btcec.ParsePubKey(claimPub.SerializeCompressed())
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.negotiateBitcoinEscrow", err)
	}

	var peerKey *btcec.PublicKey
	if isOfferor {
		if err := conn.SendJSON(btcClaimKey{PubKeyHex: claimPub.Hex()}); err != nil {
			return err
		}
		var msg btcClaimKey
		if err := conn.RecvJSON(&msg); err != nil {
			return err
		}
		peerKey, err = parseHexPubKey(msg.PubKeyHex)
	} else {
		var msg btcClaimKey
		if err := conn.RecvJSON(&msg); err != nil {
			return err
		}
		peerKey, err = parseHexPubKey(msg.PubKeyHex)
		if err != nil {
			return err
		}
		err = conn.SendJSON(btcClaimKey{PubKeyHex: claimPub.Hex()})
	}
	if err != nil {
		return err
	}
	s.Priv.BTC.PeerClaimPubHex = hex.EncodeToString(peerKey.SerializeCompressed())

	refundKey := localKey
	if isOfferor {
		refundKey = peerKey
	}
	redeemScript, escrowOut, err := btcchain.FundingPkScript(localKey, peerKey, refundKey, int64(s.Pub.BTC.Timelock), int64(s.Pub.BTC.Amount))
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("%x", redeemScript)
	s.Pub.BTC.Stmt = &stmt

	isFunder := s.EffectiveSide(s.Pub.BTC.Side) == SideOffered
	if isFunder {
		info, err := o.fundBitcoinEscrow(ctx, s, escrowOut)
		if err != nil {
			return err
		}
		if err := conn.SendJSON(info); err != nil {
			return err
		}
	} else {
		var info fundingInfo
		if err := conn.RecvJSON(&info); err != nil {
			return err
		}
		txid, vout := info.Txid, info.Vout
		s.Pub.BTC.FundingTxid = &txid
		s.Pub.BTC.FundingVout = &vout
	}
	return nil
}

// fundBitcoinEscrow spends this party's first imported BTC input into
// the escrow output, sending any leftover back to the input's own
// script, and broadcasts the result.
func (o *Orchestrator) fundBitcoinEscrow(ctx context.Context, s *SwapSlate, escrowOut *btcwire.TxOut) (fundingInfo, error) {
	rec := s.Priv.BTC.Inputs[0]
	scriptPubKey, err := hex.DecodeString(rec.ScriptPubKey)
	if err != nil {
		return fundingInfo{}, swaperr.New(swaperr.KindInvalidInput, "swap.fundBitcoinEscrow", fmt.Errorf("decode script_pubkey: %w", err))
	}
	changeValue := rec.Value - escrowOut.Value - BTCFundingFeeSats
	if changeValue < 0 {
		return fundingInfo{}, swaperr.New(swaperr.KindInsufficientFunds, "swap.fundBitcoinEscrow", fmt.Errorf("input %d too small to fund escrow of %d plus fee", rec.Value, escrowOut.Value))
	}

	in := btcchain.Input{Txid: rec.Txid, Vout: rec.Vout, Value: rec.Value, PrivKeyWIF: rec.PrivKeyWIF, ScriptPubKey: scriptPubKey}
	tx, err := btcchain.BuildFundingTx(in, escrowOut, scriptPubKey, changeValue)
	if err != nil {
		return fundingInfo{}, err
	}
	privKey, err := btcchain.PrivKeyFromWIF(rec.PrivKeyWIF)
	if err != nil {
		return fundingInfo{}, swaperr.New(swaperr.KindInvalidInput, "swap.fundBitcoinEscrow", err)
	}
	if err := btcchain.SignFundingInput(tx, in, privKey); err != nil {
		return fundingInfo{}, swaperr.New(swaperr.KindInvalidInput, "swap.fundBitcoinEscrow", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fundingInfo{}, fmt.Errorf("swap: serialize funding tx: %w", err)
	}
	hash, err := o.BTC.SendRawTransaction(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return fundingInfo{}, err
	}
	return fundingInfo{Txid: hash.String(), Vout: 0}, nil
}

func parseHexPubKey(hexStr string) (*btcec.PublicKey, error) {
	pt, err := curve.PointFromHex(hexStr)
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.parseHexPubKey", err)
	}
	key, err := btcec.ParsePubKey(pt.SerializeCompressed())
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.parseHexPubKey", err)
	}
	return key, nil
}
