package swap

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// Status is the swap's position in the INITIALIZED -> SETUP ->
// EXECUTING -> FINISHED progression, with CANCELLED reachable from any
// non-terminal state.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusSetup       Status = "SETUP"
	StatusExecuting   Status = "EXECUTING"
	StatusFinished    Status = "FINISHED"
	StatusCancelled   Status = "CANCELLED"
)

// Currency names one leg of the swap.
type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyGrin Currency = "GRIN"
)

// Side is which role this party plays on a leg: the one who currently
// holds the coin (OFFERED, i.e. offered away by this party) or the one
// receiving it (REQUESTED).
type Side string

const (
	SideOffered   Side = "OFFERED"
	SideRequested Side = "REQUESTED"
)

// MWPub is the public (shareable) description of the Mimblewimble leg.
type MWPub struct {
	Amount   uint64 `json:"amount"`
	Timelock uint64 `json:"timelock"`
	Side     Side   `json:"side"`
}

// BTCPub is the public description of the Bitcoin leg. Stmt carries the
// hex-encoded escrow redeem script once SETUP has built it.
type BTCPub struct {
	Amount      uint64  `json:"amount"`
	Timelock    uint64  `json:"timelock"`
	Side        Side    `json:"side"`
	Stmt        *string `json:"stmt,omitempty"`
	FundingTxid *string `json:"funding_txid,omitempty"`
	FundingVout *uint32 `json:"funding_vout,omitempty"`
}

// Meta carries the peer connection coordinates agreed during SETUP.
type Meta struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
}

// PubSlate is every field of a swap that is safe to hand to the
// counterparty or write to a shared fingerprint: no blinding factors,
// no private keys.
type PubSlate struct {
	Status Status `json:"status"`
	MW     MWPub  `json:"mw"`
	BTC    BTCPub `json:"btc"`
	Meta   Meta   `json:"meta"`
}

// CoinWire is the hex-encoded wire/disk form of an mw.Coin: the
// commitment, the blinding factor, and the value it opens to. Kept
// distinct from mw.Coin (whose Commitment/Blind fields wrap unexported
// big.Int state) so the private slate file round-trips through
// encoding/json.
type CoinWire struct {
	Commitment string `json:"commitment"`
	Blind      string `json:"blind"`
	Value      uint64 `json:"value"`
}

// EncodeCoin converts a mw.Coin into its wire form.
func EncodeCoin(c *mw.Coin) CoinWire {
	return CoinWire{Commitment: c.Commitment.Hex(), Blind: c.Blind.Hex(), Value: c.Value}
}

// Decode parses a CoinWire back into an mw.Coin.
func (w CoinWire) Decode() (*mw.Coin, error) {
	commitment, err := pedersen.FromHex(w.Commitment)
	if err != nil {
		return nil, fmt.Errorf("swap: decode coin commitment: %w", err)
	}
	blind, err := curve.ScalarFromHex(w.Blind)
	if err != nil {
		return nil, fmt.Errorf("swap: decode coin blind: %w", err)
	}
	return &mw.Coin{Commitment: commitment, Blind: blind, Value: w.Value}, nil
}

// MWPriv holds this party's Mimblewimble inputs and the participant
// index it signs as.
type MWPriv struct {
	Inputs           []CoinWire `json:"inputs"`
	ParticipantIndex uint64     `json:"participant_index"`
}

// BTCPriv holds this party's Bitcoin inputs and its half of the escrow
// key material.
type BTCPriv struct {
	Inputs          []BTCInputRecord `json:"inputs"`
	ClaimKeyWIF     string           `json:"claim_key_wif"`
	PeerClaimPubHex string           `json:"peer_claim_pub_hex,omitempty"`
}

// BTCInputRecord is one imported Bitcoin input (spec §6 `import btc`).
type BTCInputRecord struct {
	Txid         string `json:"txid"`
	Vout         uint32 `json:"vout"`
	Value        int64  `json:"value"`
	PrivKeyWIF   string `json:"priv_key_wif"`
	ScriptPubKey string `json:"script_pubkey"`
}

// PrivSlate is everything that must never leave this party's disk.
type PrivSlate struct {
	MW  MWPriv  `json:"mw"`
	BTC BTCPriv `json:"btc"`
	// IsOfferor records which side of the handshake this party played
	// during SETUP (the listener vs. the dialer), so EXECUTE can resume
	// the same role without renegotiating it on a fresh TCP connection.
	IsOfferor bool `json:"is_offeror"`
}

// EffectiveSide returns how this party itself sees a leg's Side: pub
// slate Side fields are always recorded from the offeror's perspective,
// so the taker's own role is the opposite of what's written there.
func (s *SwapSlate) EffectiveSide(pubSide Side) Side {
	if s.Priv.IsOfferor {
		return pubSide
	}
	if pubSide == SideOffered {
		return SideRequested
	}
	return SideOffered
}

// SwapSlate is a swap's full state: an id, its public half, and its
// private half. Exclusively owned by the orchestrator for the swap's
// lifetime (spec §3).
type SwapSlate struct {
	ID   uuid.UUID `json:"id"`
	Pub  PubSlate  `json:"pub"`
	Priv PrivSlate `json:"priv"`
}

func pubPath(dir string, id uuid.UUID) string  { return filepath.Join(dir, id.String()+".pub.json") }
func privPath(dir string, id uuid.UUID) string { return filepath.Join(dir, id.String()+".priv.json") }

// Save writes both the pub and priv slate files, each as canonical
// (indented) JSON. Unlike the placeholder write the original performed,
// this actually serializes the slate's current contents.
func (s *SwapSlate) Save(dir string) error {
	pubBytes, err := json.MarshalIndent(s.Pub, "", "  ")
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.Save", fmt.Errorf("marshal pub slate: %w", err))
	}
	if err := os.WriteFile(pubPath(dir, s.ID), pubBytes, 0o644); err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.Save", fmt.Errorf("write pub slate: %w", err))
	}
	privBytes, err := json.MarshalIndent(s.Priv, "", "  ")
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.Save", fmt.Errorf("marshal priv slate: %w", err))
	}
	if err := os.WriteFile(privPath(dir, s.ID), privBytes, 0o600); err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "swap.Save", fmt.Errorf("write priv slate: %w", err))
	}
	return nil
}

// Load reads both slate files for id back from dir.
func Load(dir string, id uuid.UUID) (*SwapSlate, error) {
	pubBytes, err := os.ReadFile(pubPath(dir, id))
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Load", fmt.Errorf("read pub slate: %w", err))
	}
	var pub PubSlate
	if err := json.Unmarshal(pubBytes, &pub); err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Load", fmt.Errorf("unmarshal pub slate: %w", err))
	}
	var priv PrivSlate
	privBytes, err := os.ReadFile(privPath(dir, id))
	if err == nil {
		if err := json.Unmarshal(privBytes, &priv); err != nil {
			return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Load", fmt.Errorf("unmarshal priv slate: %w", err))
		}
	}
	return &SwapSlate{ID: id, Pub: pub, Priv: priv}, nil
}

// LoadPubBytes parses just the pub slate from raw bytes, the shape a
// peer receives before it has any private state of its own.
func LoadPubBytes(b []byte) (*PubSlate, error) {
	var pub PubSlate
	if err := json.Unmarshal(b, &pub); err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.LoadPubBytes", fmt.Errorf("unmarshal pub slate: %w", err))
	}
	return &pub, nil
}

// Fingerprint is the SHA-256 hex digest of the canonical pub-slate
// bytes, exchanged as the peer wire's first message (spec §6).
func Fingerprint(pub *PubSlate) (string, error) {
	b, err := json.Marshal(pub)
	if err != nil {
		return "", swaperr.New(swaperr.KindInvalidInput, "swap.Fingerprint", fmt.Errorf("marshal pub slate: %w", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
