package hdkey

import (
	"encoding/binary"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

var ed25519HMACKey = []byte("ed25519 seed")

// ErrNonHardenedEd25519 is returned for non-hardened ed25519 child indices.
var ErrNonHardenedEd25519 = errors.New("hdkey: ed25519 supports hardened derivation only")

// FromSeedEd25519 computes the SLIP-10 ed25519 master key and chain code.
func FromSeedEd25519(seed []byte) (key, chainCode []byte, err error) {
	if len(seed) < MinSeedLen || len(seed) > MaxSeedLen {
		return nil, nil, &InvalidSeedError{Len: len(seed)}
	}
	i := hmacSHA512(ed25519HMACKey, seed)
	return i[:keyLen], i[keyLen:], nil
}

// DeriveEd25519 computes a hardened SLIP-10 ed25519 child. Every 32-byte
// string is a valid ed25519 seed, so no retry is needed.
func DeriveEd25519(parentKey, chainCode []byte, index uint32) (key, childChain []byte, err error) {
	if !IsHardenedIndex(index) {
		return nil, nil, ErrNonHardenedEd25519
	}
	if len(parentKey) != keyLen {
		return nil, nil, &InvalidKeyMaterialError{Reason: "private key must be 32 bytes"}
	}
	if len(chainCode) != keyLen {
		return nil, nil, &InvalidKeyMaterialError{Reason: "chain code must be 32 bytes"}
	}
	data := make([]byte, 1+keyLen+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[1+keyLen:], index)
	i := hmacSHA512(chainCode, data)
	return i[:keyLen], i[keyLen:], nil
}
