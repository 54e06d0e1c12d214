package swap

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/jafalter/mw-btc-swap/internal/btcchain"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/protocol"
	"github.com/jafalter/mw-btc-swap/internal/slate"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
	"github.com/jafalter/mw-btc-swap/internal/wire"
)

// contractMsg wraps the one payload every EXECUTE-phase wire message
// carries: the in-progress slate. dContractMwTx and the refund run of
// dSharedInpMwTx both alternate single-slate messages.
type contractMsg struct {
	Slate *slate.Slate `json:"slate"`
}

// contractSettleMsg is the notification the adaptor-signing party sends
// once it has broadcast its settlement: the now-public plain partial
// signature, standing in for the counterparty actually observing the
// Grin chain (mempool/chain monitoring is out of this module's scope).
type contractSettleMsg struct {
	PlainSig string `json:"plain_sig"`
}

// doExecute drives the EXECUTING phase (spec §4.5): if either chain's
// refund height has already been reached it broadcasts the
// corresponding refund instead of attempting settlement; otherwise it
// runs dContractMwTx to completion and, on the non-adaptor side,
// recovers x and spends the Bitcoin escrow with it.
func (o *Orchestrator) doExecute(ctx context.Context, args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	if s.Pub.Status != StatusSetup {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Execute", fmt.Errorf("swap %s is not in SETUP state", args.SwapID))
	}

	grinTip, err := o.Grin.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if grinTip.Height >= s.Pub.MW.Timelock {
		return o.refundGrin(ctx, s)
	}
	btcHeight, err := o.BTC.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}
	if uint64(btcHeight) >= s.Pub.BTC.Timelock {
		return o.refundBTC(ctx, s)
	}

	s.Pub.Status = StatusExecuting
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}

	conn, err := o.reconnectPeer(s)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(); o.peer = nil }()

	if s.EffectiveSide(s.Pub.MW.Side) == SideRequested {
		if err := o.runContractClaim(ctx, s, conn); err != nil {
			return nil, err
		}
	} else {
		if err := o.runContractOpen(ctx, s, conn); err != nil {
			return nil, err
		}
	}

	s.Pub.Status = StatusFinished
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Info().Str("swap_id", s.ID.String()).Msg("execute phase complete")
	return s, nil
}

// reconnectPeer re-establishes the TCP session EXECUTE needs: SETUP's
// own connection is long closed by the time a separate `execute`
// invocation runs, so the two parties reconnect using the same
// offeror/taker roles they played during SETUP, skipping the fingerprint
// handshake (already performed once, for this same slate).
func (o *Orchestrator) reconnectPeer(s *SwapSlate) (*wire.Conn, error) {
	if s.Priv.IsOfferor {
		addr := fmt.Sprintf("%s:%d", o.Settings.TCPAddr, o.Settings.TCPPort)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, swaperr.New(swaperr.KindPeerDisconnected, "swap.Execute", err)
		}
		defer listener.Close()
		rawConn, err := listener.Accept()
		if err != nil {
			return nil, swaperr.New(swaperr.KindPeerDisconnected, "swap.Execute", err)
		}
		conn := wire.NewConn(rawConn, o.Log)
		o.peer = conn
		return conn, nil
	}
	addr := fmt.Sprintf("%s:%d", s.Pub.Meta.Server, s.Pub.Meta.Port)
	conn, err := wire.Dial(addr, o.Log)
	if err != nil {
		return nil, err
	}
	o.peer = conn
	return conn, nil
}

// sharedMWCoin returns this party's co-ownership share of the shared
// coin SETUP produced: always the last entry appended to the private
// input list by runSetup.
func (o *Orchestrator) sharedMWCoin(s *SwapSlate) (*mw.Coin, error) {
	coins, err := coinsFromWire(s.Priv.MW.Inputs)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.sharedMWCoin", fmt.Errorf("no mimblewimble inputs recorded"))
	}
	return coins[len(coins)-1], nil
}

// contractClaimValue is the shared coin's full value minus the linear
// fee for a single-input, single-output, single-kernel spend (spec §4.5
// settles the whole escrow to one party, with no change).
func contractClaimValue(s *SwapSlate) uint64 {
	return s.Pub.MW.Amount - mw.Fee(1, 1, 1)
}

// runContractOpen is the non-adaptor side of dContractMwTx (spec §4.4):
// spends this party's share of the shared coin, verifies the
// counterparty's adaptor partial against the counterparty's Bitcoin
// claim public key, and — once the counterparty's settlement notification arrives —
// recovers x and spends the Bitcoin escrow with it.
func (o *Orchestrator) runContractOpen(ctx context.Context, s *SwapSlate, conn *wire.Conn) error {
	sharedCoin, err := o.sharedMWCoin(s)
	if err != nil {
		return err
	}
	claimValue := contractClaimValue(s)

	spend, err := protocol.DContractMwTxOpen([]*mw.Coin{sharedCoin}, claimValue, 0, 1)
	if err != nil {
		return err
	}
	if err := conn.SendJSON(contractMsg{Slate: spend.Slate}); err != nil {
		return err
	}

	var msg2 contractMsg
	if err := conn.RecvJSON(&msg2); err != nil {
		return err
	}
	adaptorSigB, err := msg2.Slate.PartialSig(protocol.ParticipantCoOwnerB)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.runContractOpen", err)
	}

	peerPub, err := curve.PointFromHex(s.Priv.BTC.PeerClaimPubHex)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.runContractOpen", err)
	}
	if err := protocol.DContractMwTxVerifyAndSign(msg2.Slate, spend.Signer, peerPub); err != nil {
		return err
	}
	if err := conn.SendJSON(contractMsg{Slate: msg2.Slate}); err != nil {
		return err
	}

	var settle contractSettleMsg
	if err := conn.RecvJSON(&settle); err != nil {
		return err
	}
	revealedPlainSig, err := curve.ScalarFromHex(settle.PlainSig)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.runContractOpen", err)
	}

	x := protocol.DContractMwTxExtractWitness(adaptorSigB, revealedPlainSig)
	return o.claimBitcoinEscrow(ctx, s, x)
}

// runContractClaim is the adaptor side of dContractMwTx: it claims the
// shared coin using its own Bitcoin claim key as the adaptor secret —
// the same key already locked into the Bitcoin escrow's claim branch
// during SETUP — then settles and broadcasts, which is the act that
// publishes x to the counterparty.
func (o *Orchestrator) runContractClaim(ctx context.Context, s *SwapSlate, conn *wire.Conn) error {
	sharedCoin, err := o.sharedMWCoin(s)
	if err != nil {
		return err
	}
	claimValue := contractClaimValue(s)

	x, _, err := btcchain.ScalarFromWIF(s.Priv.BTC.ClaimKeyWIF)
	if err != nil {
		return err
	}

	var msg1 contractMsg
	if err := conn.RecvJSON(&msg1); err != nil {
		return err
	}
	accept, err := protocol.DContractMwTxAccept(msg1.Slate, []*mw.Coin{sharedCoin}, claimValue, 0, claimValue, x)
	if err != nil {
		return err
	}
	if err := conn.SendJSON(contractMsg{Slate: accept.Slate}); err != nil {
		return err
	}

	var msg3 contractMsg
	if err := conn.RecvJSON(&msg3); err != nil {
		return err
	}
	if _, err := protocol.DContractMwTxSettle(msg3.Slate, accept.PlainSig); err != nil {
		return err
	}

	txJSON, err := json.Marshal(msg3.Slate)
	if err != nil {
		return fmt.Errorf("swap: marshal settled slate: %w", err)
	}
	if err := o.Grin.PushTransaction(ctx, txJSON, true); err != nil {
		return err
	}
	return conn.SendJSON(contractSettleMsg{PlainSig: accept.PlainSig.Hex()})
}

// claimBitcoinEscrow spends the 2-of-2 claim branch of the Bitcoin
// escrow alone: one signature under this party's own claim key, the
// other under x, now that x's discrete log is known. Pays back to the
// script this party's own funding input came from.
func (o *Orchestrator) claimBitcoinEscrow(ctx context.Context, s *SwapSlate, x *curve.Scalar) error {
	if s.Pub.BTC.Stmt == nil || s.Pub.BTC.FundingTxid == nil || s.Pub.BTC.FundingVout == nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.claimBitcoinEscrow", fmt.Errorf("escrow funding outpoint unknown"))
	}
	redeemScript, err := hex.DecodeString(*s.Pub.BTC.Stmt)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.claimBitcoinEscrow", err)
	}
	ownPriv, err := btcchain.PrivKeyFromWIF(s.Priv.BTC.ClaimKeyWIF)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.claimBitcoinEscrow", err)
	}
	xPriv, _ := btcec.PrivKeyFromBytes(x.Bytes())
	destScript, err := hex.DecodeString(s.Priv.BTC.Inputs[0].ScriptPubKey)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.claimBitcoinEscrow", err)
	}

	claimValue := int64(s.Pub.BTC.Amount) - BTCFundingFeeSats
	tx, err := btcchain.BuildSpendTx(*s.Pub.BTC.FundingTxid, *s.Pub.BTC.FundingVout, destScript, claimValue, 0)
	if err != nil {
		return err
	}
	sigHash, err := btcchain.EscrowSigHash(tx, redeemScript, int64(s.Pub.BTC.Amount))
	if err != nil {
		return err
	}
	ownSig := btcchain.SignEscrowSigHash(ownPriv, sigHash)
	xSig := btcchain.SignEscrowSigHash(xPriv, sigHash)
	tx.TxIn[0].Witness = btcchain.ClaimWitness(redeemScript, ownPriv.PubKey().SerializeCompressed(), ownSig, xPriv.PubKey().SerializeCompressed(), xSig)

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("swap: serialize claim tx: %w", err)
	}
	_, err = o.BTC.SendRawTransaction(ctx, hex.EncodeToString(buf.Bytes()))
	return err
}

// refundGrin reclaims the shared Grin coin back to the party that
// originally funded it (the offeror, per runSetup's convention of the
// offeror always running dSharedOutMwTx's opening role) via a live run
// of dSharedInpMwTx. Spec §4.5 names a refund tx pre-signed during
// SETUP; this negotiates it at refund time instead, a scope
// simplification recorded in DESIGN.md.
func (o *Orchestrator) refundGrin(ctx context.Context, s *SwapSlate) (*SwapSlate, error) {
	conn, err := o.reconnectPeer(s)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(); o.peer = nil }()

	sharedCoin, err := o.sharedMWCoin(s)
	if err != nil {
		return nil, err
	}
	refundValue := s.Pub.MW.Amount - mw.Fee(1, 1, 1)

	if s.Priv.IsOfferor {
		var msg1 contractMsg
		if err := conn.RecvJSON(&msg1); err != nil {
			return nil, err
		}
		accept, err := protocol.DSharedInpMwTxAccept(msg1.Slate, []*mw.Coin{sharedCoin}, refundValue, 0, refundValue)
		if err != nil {
			return nil, err
		}
		if err := conn.SendJSON(contractMsg{Slate: accept.Slate}); err != nil {
			return nil, err
		}
	} else {
		spend, err := protocol.DSharedInpMwTxOpen([]*mw.Coin{sharedCoin}, refundValue, 0, 1)
		if err != nil {
			return nil, err
		}
		if err := conn.SendJSON(contractMsg{Slate: spend.Slate}); err != nil {
			return nil, err
		}
		var msg2 contractMsg
		if err := conn.RecvJSON(&msg2); err != nil {
			return nil, err
		}
		if _, err := protocol.DSharedInpMwTxFinalize(msg2.Slate, spend.Signer); err != nil {
			return nil, err
		}
		txJSON, err := json.Marshal(msg2.Slate)
		if err != nil {
			return nil, fmt.Errorf("swap: marshal refund slate: %w", err)
		}
		if err := o.Grin.PushTransaction(ctx, txJSON, true); err != nil {
			return nil, err
		}
	}

	s.Pub.Status = StatusCancelled
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Warn().Str("swap_id", s.ID.String()).Msg("grin lock height reached, refund broadcast")
	return s, swaperr.New(swaperr.KindTimeoutElapsed, "swap.Execute", fmt.Errorf("grin lock height %d reached, refund broadcast", s.Pub.MW.Timelock))
}

// refundBTC spends the CLTV refund branch of the Bitcoin escrow. Only
// the taker's claim key satisfies that branch (EscrowScript always
// assigns the taker's pubkey as refundKey, spec §9's fix (a) having
// already ruled out a dual SETUP call that would have duplicated this
// ambiguity); the offeror side simply reports the timeout and waits.
func (o *Orchestrator) refundBTC(ctx context.Context, s *SwapSlate) (*SwapSlate, error) {
	if s.Priv.IsOfferor {
		s.Pub.Status = StatusCancelled
		if err := s.Save(o.Settings.SlateDirectory); err != nil {
			return nil, err
		}
		return s, swaperr.New(swaperr.KindTimeoutElapsed, "swap.Execute", fmt.Errorf("bitcoin lock height reached; only the taker can broadcast this refund"))
	}
	if s.Pub.BTC.Stmt == nil || s.Pub.BTC.FundingTxid == nil || s.Pub.BTC.FundingVout == nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.refundBTC", fmt.Errorf("escrow funding outpoint unknown"))
	}
	redeemScript, err := hex.DecodeString(*s.Pub.BTC.Stmt)
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.refundBTC", err)
	}
	refundPriv, err := btcchain.PrivKeyFromWIF(s.Priv.BTC.ClaimKeyWIF)
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.refundBTC", err)
	}
	destScript, err := hex.DecodeString(s.Priv.BTC.Inputs[0].ScriptPubKey)
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.refundBTC", err)
	}

	refundValue := int64(s.Pub.BTC.Amount) - BTCFundingFeeSats
	tx, err := btcchain.BuildSpendTx(*s.Pub.BTC.FundingTxid, *s.Pub.BTC.FundingVout, destScript, refundValue, uint32(s.Pub.BTC.Timelock))
	if err != nil {
		return nil, err
	}
	sigHash, err := btcchain.EscrowSigHash(tx, redeemScript, int64(s.Pub.BTC.Amount))
	if err != nil {
		return nil, err
	}
	tx.TxIn[0].Witness = btcchain.RefundWitness(redeemScript, btcchain.SignEscrowSigHash(refundPriv, sigHash))

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("swap: serialize refund tx: %w", err)
	}
	if _, err := o.BTC.SendRawTransaction(ctx, hex.EncodeToString(buf.Bytes())); err != nil {
		return nil, err
	}

	s.Pub.Status = StatusCancelled
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Warn().Str("swap_id", s.ID.String()).Msg("bitcoin lock height reached, refund broadcast")
	return s, swaperr.New(swaperr.KindTimeoutElapsed, "swap.Execute", fmt.Errorf("bitcoin lock height %d reached, refund broadcast", s.Pub.BTC.Timelock))
}
