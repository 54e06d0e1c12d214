package rpcclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// BitcoinConfig is the Bitcoin Core connection half of spec §6's settings
// shape (`btc: {url, port, user, pass}`).
type BitcoinConfig struct {
	Host string
	User string
	Pass string
	Net  *chaincfg.Params
}

// BitcoinClient wraps btcsuite/btcd/rpcclient's Bitcoin Core JSON-RPC 1.0
// client with the module's retry/backoff policy. It holds a logger but
// does not write to it.
type BitcoinClient struct {
	rpc *rpcclient.Client
	log zerolog.Logger
}

// NewBitcoinClient dials a Bitcoin Core node over HTTP Basic auth.
func NewBitcoinClient(cfg BitcoinConfig, log zerolog.Logger) (*BitcoinClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, swaperr.New(swaperr.KindNodeRPCError, "rpcclient.NewBitcoinClient", err)
	}
	return &BitcoinClient{rpc: client, log: log.With().Str("component", "btc-rpc").Logger()}, nil
}

// Shutdown releases the underlying HTTP client.
func (c *BitcoinClient) Shutdown() {
	c.rpc.Shutdown()
}

// GetNetworkInfo calls `getnetworkinfo`.
func (c *BitcoinClient) GetNetworkInfo(ctx context.Context) (*btcjson.GetNetworkInfoResult, error) {
	var res *btcjson.GetNetworkInfoResult
	err := withRetry(ctx, "bitcoin.getnetworkinfo", func() error {
		var err error
		res, err = c.rpc.GetNetworkInfo()
		return err
	})
	return res, err
}

// GetBlockCount calls `getblockcount`, used to compare the chain tip
// against a swap's T_btc refund height.
func (c *BitcoinClient) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	err := withRetry(ctx, "bitcoin.getblockcount", func() error {
		var err error
		height, err = c.rpc.GetBlockCount()
		return err
	})
	return height, err
}

// ListUnspent calls `listunspent` restricted to the given watch-only
// addresses.
func (c *BitcoinClient) ListUnspent(ctx context.Context, addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error) {
	var res []btcjson.ListUnspentResult
	err := withRetry(ctx, "bitcoin.listunspent", func() error {
		var err error
		res, err = c.rpc.ListUnspentMinMaxAddresses(0, 9999999, addrs)
		return err
	})
	return res, err
}

// ImportAddress calls `importaddress`, registering the escrow's P2WSH
// address as watch-only so ListUnspent can later observe it funded.
func (c *BitcoinClient) ImportAddress(ctx context.Context, address, label string, rescan bool) error {
	return withRetry(ctx, "bitcoin.importaddress", func() error {
		return c.rpc.ImportAddressRescan(address, label, rescan)
	})
}

func decodeRawTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("decode tx hex: %w", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize tx: %w", err)
	}
	return tx, nil
}

// SendRawTransaction broadcasts a signed transaction (the funding,
// claim, or refund tx) and returns its txid.
func (c *BitcoinClient) SendRawTransaction(ctx context.Context, txHex string) (*chainhash.Hash, error) {
	tx, err := decodeRawTx(txHex)
	if err != nil {
		return nil, swaperr.New(swaperr.KindNodeRPCError, "bitcoin.sendrawtransaction", err)
	}
	var hash *chainhash.Hash
	err = withRetry(ctx, "bitcoin.sendrawtransaction", func() error {
		var err error
		hash, err = c.rpc.SendRawTransaction(tx, false)
		return err
	})
	return hash, err
}

