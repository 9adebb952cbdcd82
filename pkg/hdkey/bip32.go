// Package hdkey implements hierarchical deterministic key derivation:
// BIP-32 over secp256k1 and SLIP-10 over ed25519, plus BIP-39 mnemonics.
package hdkey

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// HardenedOffset is the first hardened child index.
	HardenedOffset uint32 = 0x80000000

	MinSeedLen = 16
	MaxSeedLen = 64

	// MaxDerivationAttempts bounds the index+1 retry when a candidate child
	// scalar is invalid.
	MaxDerivationAttempts = 32

	keyLen = 32
)

var masterHMACKey = []byte("Bitcoin seed")

// hmacSHA512 is swapped in tests to force invalid candidates.
var hmacSHA512 = func(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ToHardenedIndex sets the hardened bit on i.
func ToHardenedIndex(i uint32) uint32 { return i | HardenedOffset }

// IsHardenedIndex reports whether the hardened bit of i is set.
func IsHardenedIndex(i uint32) bool { return i&HardenedOffset != 0 }

// FromSeed computes the secp256k1 master key and chain code for seed.
func FromSeed(seed []byte) (key, chainCode []byte, err error) {
	if len(seed) < MinSeedLen || len(seed) > MaxSeedLen {
		return nil, nil, &InvalidSeedError{Len: len(seed)}
	}
	i := hmacSHA512(masterHMACKey, seed)
	return i[:keyLen], i[keyLen:], nil
}

// Derive returns the child key and chain code at index. When the candidate
// for index is not a valid scalar the next index is tried, up to
// MaxDerivationAttempts times.
func Derive(parentKey, chainCode []byte, index uint32) (key, childChain []byte, err error) {
	key, childChain, _, err = derive(parentKey, chainCode, index)
	return key, childChain, err
}

// derive also returns the index that produced the child.
func derive(parentKey, chainCode []byte, index uint32) ([]byte, []byte, uint32, error) {
	parent, err := parseScalar(parentKey)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(chainCode) != keyLen {
		return nil, nil, 0, &InvalidKeyMaterialError{Reason: "chain code must be 32 bytes"}
	}

	hardened := IsHardenedIndex(index)
	var prefix []byte
	if hardened {
		prefix = make([]byte, 1+keyLen)
		copy(prefix[1:], parentKey)
	} else {
		prefix = secp256k1.NewPrivateKey(parent).PubKey().SerializeCompressed()
	}

	// last index of the range index belongs to
	limit := HardenedOffset - 1
	if hardened {
		limit = math.MaxUint32
	}

	data := make([]byte, len(prefix)+4)
	copy(data, prefix)
	for attempt := 0; attempt < MaxDerivationAttempts; attempt++ {
		binary.BigEndian.PutUint32(data[len(prefix):], index)
		i := hmacSHA512(chainCode, data)

		var il secp256k1.ModNScalar
		overflow := il.SetByteSlice(i[:keyLen])
		if !overflow {
			child := il.Add(parent)
			if !child.IsZero() {
				b := child.Bytes()
				out := make([]byte, keyLen)
				copy(out, b[:])
				return out, append([]byte(nil), i[keyLen:]...), index, nil
			}
		}
		if index == limit {
			break
		}
		index++
	}
	return nil, nil, 0, ErrDerivationExhausted
}

func parseScalar(b []byte) (*secp256k1.ModNScalar, error) {
	if len(b) != keyLen {
		return nil, &InvalidKeyMaterialError{Reason: "private key must be 32 bytes"}
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, &InvalidKeyMaterialError{Reason: "private key is not below the curve order"}
	}
	if s.IsZero() {
		return nil, &InvalidKeyMaterialError{Reason: "private key is zero"}
	}
	return &s, nil
}

// PublicKey returns the 33-byte compressed public key for a secp256k1 scalar.
func PublicKey(key []byte) ([]byte, error) {
	s, err := parseScalar(key)
	if err != nil {
		return nil, err
	}
	return secp256k1.NewPrivateKey(s).PubKey().SerializeCompressed(), nil
}
