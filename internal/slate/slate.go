// Package slate implements the evolving pre-transaction document passed
// between the two parties of a Mimblewimble-style transaction: inputs,
// outputs (commitment + rangeproof), the fee, the kernel's lock
// features, and each participant's contribution to the aggregate
// kernel signature.
package slate

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/jafalter/mw-btc-swap/internal/bulletproof"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

// KernelFeatures distinguishes a plain kernel from one locked to a
// minimum chain height.
type KernelFeatures uint8

const (
	KernelPlain        KernelFeatures = 0
	KernelHeightLocked KernelFeatures = 1
)

// RangeProofWire is the hex-encoded wire form of a bulletproof.RangeProof.
type RangeProofWire struct {
	T1   string `json:"t1"`
	T2   string `json:"t2"`
	TauX string `json:"tau_x"`
	THat string `json:"t_hat"`
}

// EncodeRangeProof hex-encodes a RangeProof for wire transport.
func EncodeRangeProof(p *bulletproof.RangeProof) RangeProofWire {
	return RangeProofWire{
		T1:   p.T1.Hex(),
		T2:   p.T2.Hex(),
		TauX: p.TauX.Hex(),
		THat: p.THat.Hex(),
	}
}

// Decode parses a RangeProofWire back into a bulletproof.RangeProof.
func (w RangeProofWire) Decode() (*bulletproof.RangeProof, error) {
	t1, err := curve.PointFromHex(w.T1)
	if err != nil {
		return nil, fmt.Errorf("slate: decode T1: %w", err)
	}
	t2, err := curve.PointFromHex(w.T2)
	if err != nil {
		return nil, fmt.Errorf("slate: decode T2: %w", err)
	}
	tauX, err := curve.ScalarFromHex(w.TauX)
	if err != nil {
		return nil, fmt.Errorf("slate: decode tau_x: %w", err)
	}
	tHat, err := curve.ScalarFromHex(w.THat)
	if err != nil {
		return nil, fmt.Errorf("slate: decode t_hat: %w", err)
	}
	return &bulletproof.RangeProof{T1: t1, T2: t2, TauX: tauX, THat: tHat}, nil
}

// Input references a coin being spent by its commitment.
type Input struct {
	Commitment string `json:"commitment"`
}

// Output carries a coin being created: its commitment and the
// rangeproof attesting it is non-negative.
type Output struct {
	Commitment string         `json:"commitment"`
	Proof      RangeProofWire `json:"proof"`
}

// ParticipantData is one signer's public contribution to the kernel
// signature, filled across the two signing rounds.
type ParticipantData struct {
	Index             uint64 `json:"index"`
	PublicBlindExcess string `json:"public_blind_excess"`
	PublicNonce       string `json:"public_nonce"`
	PartialSig        string `json:"partial_sig,omitempty"`
}

// Slate is the evolving pre-transaction document exchanged between the
// two parties of a Mimblewimble-style transaction.
type Slate struct {
	ID           uuid.UUID         `json:"id"`
	Amount       uint64            `json:"amount"`
	Fee          uint64            `json:"fee"`
	Features     KernelFeatures    `json:"features"`
	LockHeight   uint64            `json:"lock_height"`
	Offset       string            `json:"offset"`
	Inputs       []Input           `json:"inputs"`
	Outputs      []Output          `json:"outputs"`
	Participants []ParticipantData `json:"participants"`
	FinalKernel  string            `json:"final_kernel,omitempty"`
}

// New creates a blank slate with a fresh random id. Its kernel features
// follow lockHeight: KernelHeightLocked with that lock height when
// lockHeight > 0, otherwise KernelPlain with a lock height of zero,
// matching the original's blank_with_kernel_features construction.
func New(amount, fee uint64, lockHeight uint64) *Slate {
	features := KernelPlain
	effectiveLock := uint64(0)
	if lockHeight > 0 {
		features = KernelHeightLocked
		effectiveLock = lockHeight
	}
	return &Slate{
		ID:         uuid.New(),
		Amount:     amount,
		Fee:        fee,
		Features:   features,
		LockHeight: effectiveLock,
	}
}

// KernelMessage canonicalises the kernel message signed by every
// participant: m = H(u8(features) || u64_be(fee) || u64_be(lock_height)),
// with lock_height forced to zero for a Plain kernel.
func (s *Slate) KernelMessage() []byte {
	lock := uint64(0)
	if s.Features == KernelHeightLocked {
		lock = s.LockHeight
	}
	var feeBytes, lockBytes [8]byte
	binary.BigEndian.PutUint64(feeBytes[:], s.Fee)
	binary.BigEndian.PutUint64(lockBytes[:], lock)
	digest := curve.Sha256([]byte{byte(s.Features)}, feeBytes[:], lockBytes[:])
	return digest[:]
}

// AddParticipant appends a round-1 contribution (public excess and
// public nonce) for the given participant index.
func (s *Slate) AddParticipant(index uint64, publicExcess, publicNonce *curve.Point) {
	s.Participants = append(s.Participants, ParticipantData{
		Index:             index,
		PublicBlindExcess: publicExcess.Hex(),
		PublicNonce:       publicNonce.Hex(),
	})
}

// SetPartialSig writes a round-2 partial signature into this
// participant's slot, replacing any previous value (used both for the
// first write and for swapping an adaptor signature for a plain one at
// settlement).
func (s *Slate) SetPartialSig(index uint64, partialSig *curve.Scalar) error {
	for i := range s.Participants {
		if s.Participants[i].Index == index {
			s.Participants[i].PartialSig = partialSig.Hex()
			return nil
		}
	}
	return fmt.Errorf("slate: no participant with index %d", index)
}

// AggregateNonce sums every participant's public nonce.
func (s *Slate) AggregateNonce() (*curve.Point, error) {
	sum := curve.Identity()
	for _, p := range s.Participants {
		n, err := curve.PointFromHex(p.PublicNonce)
		if err != nil {
			return nil, fmt.Errorf("slate: decode nonce for participant %d: %w", p.Index, err)
		}
		sum = sum.Add(n)
	}
	return sum, nil
}

// AggregateExcess sums every participant's public blind excess.
func (s *Slate) AggregateExcess() (*curve.Point, error) {
	sum := curve.Identity()
	for _, p := range s.Participants {
		x, err := curve.PointFromHex(p.PublicBlindExcess)
		if err != nil {
			return nil, fmt.Errorf("slate: decode excess for participant %d: %w", p.Index, err)
		}
		sum = sum.Add(x)
	}
	return sum, nil
}

// PartialSig returns the decoded partial signature for a participant,
// or an error if that slot hasn't been filled yet.
func (s *Slate) PartialSig(index uint64) (*curve.Scalar, error) {
	for _, p := range s.Participants {
		if p.Index == index {
			if p.PartialSig == "" {
				return nil, fmt.Errorf("slate: participant %d has not signed yet", index)
			}
			return curve.ScalarFromHex(p.PartialSig)
		}
	}
	return nil, fmt.Errorf("slate: no participant with index %d", index)
}

// AllSigned reports whether every participant has filled a partial
// signature.
func (s *Slate) AllSigned() bool {
	for _, p := range s.Participants {
		if p.PartialSig == "" {
			return false
		}
	}
	return len(s.Participants) > 0
}

// VerifyOutputRangeProofs checks that every output's rangeproof opens
// its commitment, matching the "verify existing output rangeproofs"
// step every primitive performs before extending the slate.
func (s *Slate) VerifyOutputRangeProofs() error {
	for i, out := range s.Outputs {
		commitment, err := pedersen.FromHex(out.Commitment)
		if err != nil {
			return fmt.Errorf("slate: decode output %d commitment: %w", i, err)
		}
		proof, err := out.Proof.Decode()
		if err != nil {
			return fmt.Errorf("slate: decode output %d proof: %w", i, err)
		}
		if err := bulletproof.Verify(proof, commitment); err != nil {
			return swaperr.New(swaperr.KindInvalidRangeProof, "slate.VerifyOutputRangeProofs", fmt.Errorf("output %d: %w", i, err))
		}
	}
	return nil
}

// AddOutput appends a commitment + rangeproof pair to the slate's
// output list.
func (s *Slate) AddOutput(commitment *pedersen.Commitment, proof *bulletproof.RangeProof) {
	s.Outputs = append(s.Outputs, Output{
		Commitment: commitment.Hex(),
		Proof:      EncodeRangeProof(proof),
	})
}

// AddInput appends an input reference to the slate.
func (s *Slate) AddInput(commitment *pedersen.Commitment) {
	s.Inputs = append(s.Inputs, Input{Commitment: commitment.Hex()})
}

// HasDuplicateInput reports whether any two inputs share a commitment.
func HasDuplicateInput(commitments []*pedersen.Commitment) bool {
	seen := make(map[string]struct{}, len(commitments))
	for _, c := range commitments {
		h := c.Hex()
		if _, ok := seen[h]; ok {
			return true
		}
		seen[h] = struct{}{}
	}
	return false
}
