package curve

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// HashToScalar reduces SHA-256(concat(parts...)) into Z_n. Used for the
// Schnorr challenge e = H(R || X || m).
func HashToScalar(parts ...[]byte) *Scalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return newScalar(new(big.Int).SetBytes(h.Sum(nil)))
}

// Blake2bToScalar reduces Blake2b-256(concat(parts...)) into Z_n. Grin's
// own hash-to-scalar is Blake2b based; the MPBP layer uses it for
// shared-nonce and challenge derivation so its transcript matches the
// chain it ultimately targets.
func Blake2bToScalar(parts ...[]byte) *Scalar {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for bad keyed-hash keys; nil key
		// never triggers that path.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return newScalar(new(big.Int).SetBytes(h.Sum(nil)))
}

// Sha256 is a convenience wrapper returning a plain 32-byte digest,
// used for slate fingerprints and kernel message canonicalisation.
func Sha256(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
