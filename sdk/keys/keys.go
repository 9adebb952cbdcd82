// Package keys provides the signing keys used to authorize transactions:
// ed25519 and ECDSA over secp256k1.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/hdkey"
)

// Algorithm identifies a key type.
type Algorithm int

const (
	Ed25519 Algorithm = iota
	ECDSASecp256k1
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case ECDSASecp256k1:
		return "ecdsa"
	default:
		return "unknown"
	}
}

// ParseAlgorithm accepts "ed25519" and "ecdsa" (or "secp256k1").
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ed25519", "":
		return Ed25519, nil
	case "ecdsa", "secp256k1", "ecdsa_secp256k1":
		return ECDSASecp256k1, nil
	default:
		return 0, errors.Errorf("unknown key algorithm %q", s)
	}
}

// PrivateKey is an ed25519 or secp256k1 private key. A key restored from a
// seed or mnemonic also carries its chain code so children can be derived.
type PrivateKey struct {
	alg       Algorithm
	ed        ed25519.PrivateKey
	ec        *secp256k1.PrivateKey
	chainCode []byte
	depth     uint8
	index     uint32
}

// GeneratePrivateKey creates a random key of alg.
func GeneratePrivateKey(alg Algorithm) (*PrivateKey, error) {
	switch alg {
	case Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "generate ed25519 key")
		}
		return &PrivateKey{alg: Ed25519, ed: priv}, nil
	case ECDSASecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate secp256k1 key")
		}
		return &PrivateKey{alg: ECDSASecp256k1, ec: priv}, nil
	default:
		return nil, errors.Errorf("unknown key algorithm %d", alg)
	}
}

// PrivateKeyFromBytes restores a key from its 32-byte raw form. For ed25519
// the 64-byte expanded form is accepted as well.
func PrivateKeyFromBytes(alg Algorithm, b []byte) (*PrivateKey, error) {
	switch alg {
	case Ed25519:
		switch len(b) {
		case ed25519.SeedSize:
			return &PrivateKey{alg: Ed25519, ed: ed25519.NewKeyFromSeed(b)}, nil
		case ed25519.PrivateKeySize:
			return &PrivateKey{alg: Ed25519, ed: ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])}, nil
		}
		return nil, errors.Errorf("invalid ed25519 private key length %d", len(b))
	case ECDSASecp256k1:
		if len(b) != 32 {
			return nil, errors.Errorf("invalid secp256k1 private key length %d", len(b))
		}
		if _, err := hdkey.PublicKey(b); err != nil {
			return nil, err
		}
		return &PrivateKey{alg: ECDSASecp256k1, ec: secp256k1.PrivKeyFromBytes(b)}, nil
	default:
		return nil, errors.Errorf("unknown key algorithm %d", alg)
	}
}

// PrivateKeyFromString parses a hex key, optionally prefixed with 0x.
func PrivateKeyFromString(alg Algorithm, s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	return PrivateKeyFromBytes(alg, b)
}

// FromExtendedKey turns a derived key into a signing key that can derive
// further children.
func FromExtendedKey(ext *hdkey.ExtendedKey) (*PrivateKey, error) {
	alg := Ed25519
	if ext.Curve() == hdkey.Secp256k1 {
		alg = ECDSASecp256k1
	}
	k, err := PrivateKeyFromBytes(alg, ext.Key())
	if err != nil {
		return nil, err
	}
	k.chainCode = ext.ChainCode()
	k.depth = ext.Depth()
	k.index = ext.Index()
	return k, nil
}

func (k *PrivateKey) Algorithm() Algorithm { return k.alg }

// Bytes returns the 32-byte raw private key.
func (k *PrivateKey) Bytes() []byte {
	if k.alg == Ed25519 {
		return append([]byte(nil), k.ed.Seed()...)
	}
	return k.ec.Serialize()
}

// String returns the hex encoding of Bytes.
func (k *PrivateKey) String() string { return hex.EncodeToString(k.Bytes()) }

// ChainCode returns the chain code or nil for keys not derived from a seed.
func (k *PrivateKey) ChainCode() []byte { return append([]byte(nil), k.chainCode...) }

// PublicKey returns the matching public key.
func (k *PrivateKey) PublicKey() PublicKey {
	if k.alg == Ed25519 {
		return PublicKey{alg: Ed25519, raw: append([]byte(nil), k.ed.Public().(ed25519.PublicKey)...)}
	}
	return PublicKey{alg: ECDSASecp256k1, raw: k.ec.PubKey().SerializeCompressed()}
}

// Sign signs message. ed25519 signs the message itself; ECDSA signs its
// keccak-256 digest and returns the 64-byte r||s form.
func (k *PrivateKey) Sign(message []byte) []byte {
	if k.alg == Ed25519 {
		return ed25519.Sign(k.ed, message)
	}
	compact := ecdsa.SignCompact(k.ec, keccak256(message), true)
	return compact[1:]
}

// Derive returns the child key at index. ed25519 children are always
// hardened.
func (k *PrivateKey) Derive(index uint32) (*PrivateKey, error) {
	if len(k.chainCode) == 0 {
		return nil, errors.New("key has no chain code and cannot be derived")
	}
	curve := hdkey.Secp256k1
	if k.alg == Ed25519 {
		curve = hdkey.Ed25519
		index = hdkey.ToHardenedIndex(index)
	}
	child, err := hdkey.NewExtendedKey(curve, k.Bytes(), k.chainCode, k.index, k.depth).Child(index)
	if err != nil {
		return nil, err
	}
	return FromExtendedKey(child)
}

// PublicKey is an ed25519 (32 bytes) or compressed secp256k1 (33 bytes)
// public key.
type PublicKey struct {
	alg Algorithm
	raw []byte
}

// PublicKeyFromBytes infers the algorithm from the length.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	switch len(b) {
	case ed25519.PublicKeySize:
		return PublicKey{alg: Ed25519, raw: append([]byte(nil), b...)}, nil
	case 33:
		if _, err := secp256k1.ParsePubKey(b); err != nil {
			return PublicKey{}, errors.Wrap(err, "parse secp256k1 public key")
		}
		return PublicKey{alg: ECDSASecp256k1, raw: append([]byte(nil), b...)}, nil
	default:
		return PublicKey{}, errors.Errorf("invalid public key length %d", len(b))
	}
}

func (p PublicKey) Algorithm() Algorithm { return p.alg }
func (p PublicKey) Bytes() []byte        { return append([]byte(nil), p.raw...) }
func (p PublicKey) String() string       { return hex.EncodeToString(p.raw) }

// Equal reports whether p and other are the same key.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.alg == other.alg && bytes.Equal(p.raw, other.raw)
}

// Verify checks a signature produced by PrivateKey.Sign.
func (p PublicKey) Verify(message, sig []byte) bool {
	switch p.alg {
	case Ed25519:
		return len(p.raw) == ed25519.PublicKeySize && ed25519.Verify(p.raw, message, sig)
	case ECDSASecp256k1:
		if len(sig) != 64 {
			return false
		}
		pub, err := secp256k1.ParsePubKey(p.raw)
		if err != nil {
			return false
		}
		var r, s secp256k1.ModNScalar
		if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
			return false
		}
		return ecdsa.NewSignature(&r, &s).Verify(keccak256(message), pub)
	default:
		return false
	}
}

func keccak256(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}
