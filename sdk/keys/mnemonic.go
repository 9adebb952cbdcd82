package keys

import (
	"github.com/ledgerlink/ledger-sdk/pkg/hdkey"
)

// Default account paths. The final component is replaced by the index.
const (
	Ed25519Path = "m/44'/3030'/0'/0'"
	ECDSAPath   = "m/44'/60'/0'/0"
)

// FromMnemonic derives the account key at index from a BIP-39 mnemonic.
// ed25519 keys use SLIP-10 (all hardened); ECDSA keys use BIP-32 with a
// non-hardened final index.
func FromMnemonic(alg Algorithm, mnemonic, passphrase string, index uint32) (*PrivateKey, error) {
	seed, err := hdkey.SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return FromSeed(alg, seed, index)
}

// FromSeed derives the account key at index from a raw seed.
func FromSeed(alg Algorithm, seed []byte, index uint32) (*PrivateKey, error) {
	curve, path := hdkey.Ed25519, Ed25519Path
	if alg == ECDSASecp256k1 {
		curve, path = hdkey.Secp256k1, ECDSAPath
	}
	master, err := hdkey.NewMaster(curve, seed)
	if err != nil {
		return nil, err
	}
	account, err := master.DerivePath(path)
	if err != nil {
		return nil, err
	}
	if alg == Ed25519 {
		index = hdkey.ToHardenedIndex(index)
	}
	child, err := account.Child(index)
	if err != nil {
		return nil, err
	}
	return FromExtendedKey(child)
}
