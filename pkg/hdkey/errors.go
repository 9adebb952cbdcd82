package hdkey

import (
	"fmt"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// ErrDerivationExhausted is returned when no valid child key was found within
// MaxDerivationAttempts consecutive indices, or when the next index would
// leave the hardened or non-hardened range.
var ErrDerivationExhausted = errors.New("hdkey: derivation attempts exhausted")

// InvalidSeedError reports a seed whose length is outside [MinSeedLen, MaxSeedLen].
type InvalidSeedError struct {
	Len int
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("hdkey: invalid seed length %d, want %d..%d bytes", e.Len, MinSeedLen, MaxSeedLen)
}

// InvalidKeyMaterialError reports a parent key or chain code that cannot be
// used for derivation.
type InvalidKeyMaterialError struct {
	Reason string
}

func (e *InvalidKeyMaterialError) Error() string {
	return "hdkey: invalid key material: " + e.Reason
}
