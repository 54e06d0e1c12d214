// Package btcchain builds the Bitcoin-side half of a swap: the 2-of-2
// escrow script with a CLTV-timelocked refund branch, and the
// funding/claim/refund transactions that spend it. It is specified only
// at the boundary (spec §1) — the Mimblewimble core never depends on
// this package, only the swap orchestrator does.
package btcchain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/jafalter/mw-btc-swap/internal/curve"
)

// ScalarFromWIF decodes a WIF-encoded private key into a curve.Scalar and
// its public point, the form in which a swap's adaptor secret x (or an
// imported BTCInput's signing key) crosses the boundary from wallet
// material into the aggregate-signature and escrow-script layers.
func ScalarFromWIF(wif string) (*curve.Scalar, *curve.Point, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, nil, fmt.Errorf("btcchain: decode WIF: %w", err)
	}
	sc, err := curve.ScalarFromBytes(decoded.PrivKey.Serialize())
	if err != nil {
		return nil, nil, fmt.Errorf("btcchain: WIF key out of range: %w", err)
	}
	pub := curve.BasePointMul(sc)
	return sc, pub, nil
}

// PrivKeyFromWIF decodes a WIF string into the raw btcec private key
// txscript's signing helpers expect, distinct from ScalarFromWIF's
// curve.Scalar used by the aggregate-signature and escrow-script layers.
func PrivKeyFromWIF(wif string) (*btcec.PrivateKey, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, fmt.Errorf("btcchain: decode WIF: %w", err)
	}
	return decoded.PrivKey, nil
}

// NetParamsFor picks the chaincfg network parameters matching the
// swap's configured network field (spec §6: `network ∈ {mainnet,
// testnet}`).
func NetParamsFor(mainnet bool) *chaincfg.Params {
	if mainnet {
		return &chaincfg.MainNetParams
	}
	return &chaincfg.TestNet3Params
}

// ScalarToWIF encodes a scalar as a WIF private key for the given network,
// the inverse of ScalarFromWIF. Used by the adaptor-settlement scenario
// (spec §8 scenario 4) to round-trip the recovered witness x back to the
// same WIF string the counterparty started from.
func ScalarToWIF(s *curve.Scalar, net *chaincfg.Params, compressed bool) (string, error) {
	privKey, _ := btcec.PrivKeyFromBytes(s.Bytes())
	wif, err := btcutil.NewWIF(privKey, net, compressed)
	if err != nil {
		return "", fmt.Errorf("btcchain: encode WIF: %w", err)
	}
	return wif.String(), nil
}
