package hdkey

import (
	"strconv"
	"strings"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// Curve selects the derivation scheme of an ExtendedKey.
type Curve int

const (
	Secp256k1 Curve = iota
	Ed25519
)

func (c Curve) String() string {
	if c == Ed25519 {
		return "ed25519"
	}
	return "secp256k1"
}

// ExtendedKey is a private key together with its chain code and position in
// the derivation tree. Values are immutable.
type ExtendedKey struct {
	curve     Curve
	key       []byte
	chainCode []byte
	index     uint32
	depth     uint8
}

// NewMaster derives the master ExtendedKey of curve from seed.
func NewMaster(curve Curve, seed []byte) (*ExtendedKey, error) {
	var (
		key, chain []byte
		err        error
	)
	switch curve {
	case Secp256k1:
		key, chain, err = FromSeed(seed)
	case Ed25519:
		key, chain, err = FromSeedEd25519(seed)
	default:
		return nil, errors.Errorf("hdkey: unknown curve %d", curve)
	}
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{curve: curve, key: key, chainCode: chain}, nil
}

// NewExtendedKey wraps existing key material. It does not validate key.
func NewExtendedKey(curve Curve, key, chainCode []byte, index uint32, depth uint8) *ExtendedKey {
	return &ExtendedKey{
		curve:     curve,
		key:       append([]byte(nil), key...),
		chainCode: append([]byte(nil), chainCode...),
		index:     index,
		depth:     depth,
	}
}

func (k *ExtendedKey) Curve() Curve      { return k.curve }
func (k *ExtendedKey) Index() uint32     { return k.index }
func (k *ExtendedKey) Depth() uint8      { return k.depth }
func (k *ExtendedKey) IsHardened() bool  { return IsHardenedIndex(k.index) }
func (k *ExtendedKey) Key() []byte       { return append([]byte(nil), k.key...) }
func (k *ExtendedKey) ChainCode() []byte { return append([]byte(nil), k.chainCode...) }

// Child derives the child at index. For secp256k1 the returned key's Index
// may be greater than index if candidates had to be skipped.
func (k *ExtendedKey) Child(index uint32) (*ExtendedKey, error) {
	if k.depth == 255 {
		return nil, errors.New("hdkey: maximum depth reached")
	}
	var (
		key, chain []byte
		used       = index
		err        error
	)
	switch k.curve {
	case Ed25519:
		key, chain, err = DeriveEd25519(k.key, k.chainCode, index)
	default:
		key, chain, used, err = derive(k.key, k.chainCode, index)
	}
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{curve: k.curve, key: key, chainCode: chain, index: used, depth: k.depth + 1}, nil
}

// DerivePath walks a path such as "m/44'/3030'/0'/0/0" from k. Hardened
// components may be marked with ', h or H.
func (k *ExtendedKey) DerivePath(path string) (*ExtendedKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := k
	for _, idx := range indices {
		cur, err = cur.Child(idx)
		if err != nil {
			return nil, errors.Wrap(err, "derive "+path)
		}
	}
	return cur, nil
}

// ParsePath converts a textual derivation path into child indices.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || (parts[0] != "m" && parts[0] != "M") {
		return nil, errors.Errorf("hdkey: path %q must start with m", path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := false
		if n := len(p); n > 0 && (p[n-1] == '\'' || p[n-1] == 'h' || p[n-1] == 'H') {
			hardened = true
			p = p[:n-1]
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil || uint32(v) >= HardenedOffset {
			return nil, errors.Errorf("hdkey: invalid path component %q in %q", p, path)
		}
		idx := uint32(v)
		if hardened {
			idx = ToHardenedIndex(idx)
		}
		out = append(out, idx)
	}
	return out, nil
}
