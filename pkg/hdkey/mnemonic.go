package hdkey

import (
	"strings"

	"github.com/cosmos/go-bip39"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// NewMnemonic generates a BIP-39 mnemonic with the given entropy size in
// bits (128 for 12 words, 256 for 24).
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", errors.Wrap(err, "generate entropy")
	}
	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "encode mnemonic")
	}
	return m, nil
}

// SeedFromMnemonic validates mnemonic and returns its 64-byte seed.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	normalized := strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(normalized, passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}
	return seed, nil
}
