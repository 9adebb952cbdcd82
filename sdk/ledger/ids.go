// Package ledger holds the identity types, status codes and wire helpers
// shared by the SDK packages.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// AccountID identifies an account or node as shard.realm.num.
type AccountID struct {
	Shard int64
	Realm int64
	Num   int64
}

// NewAccountID returns 0.0.num.
func NewAccountID(num int64) AccountID { return AccountID{Num: num} }

// ParseAccountID parses "shard.realm.num" or a bare "num". Checksums are not
// supported.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) == 1 {
		n, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || n < 0 {
			return AccountID{}, errors.Errorf("invalid account id %q", s)
		}
		return AccountID{Num: n}, nil
	}
	if len(parts) != 3 {
		return AccountID{}, errors.Errorf("invalid account id %q", s)
	}
	var v [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return AccountID{}, errors.Errorf("invalid account id %q", s)
		}
		v[i] = n
	}
	return AccountID{Shard: v[0], Realm: v[1], Num: v[2]}, nil
}

// MustParseAccountID panics on malformed input. Intended for constants.
func MustParseAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Shard, a.Realm, a.Num)
}

// IsZero reports whether a is the unset 0.0.0.
func (a AccountID) IsZero() bool { return a == AccountID{} }

// Marshal encodes AccountID{shard=1, realm=2, num=3}.
func (a AccountID) Marshal() []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(a.Shard))
	b = AppendVarint(b, 2, uint64(a.Realm))
	b = AppendVarint(b, 3, uint64(a.Num))
	return b
}

// UnmarshalAccountID decodes an AccountID message.
func UnmarshalAccountID(b []byte) (AccountID, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return AccountID{}, errors.Wrap(err, "decode account id")
	}
	var a AccountID
	for _, f := range fields {
		switch f.Num {
		case 1:
			a.Shard = int64(f.Varint)
		case 2:
			a.Realm = int64(f.Varint)
		case 3:
			a.Num = int64(f.Varint)
		}
	}
	return a, nil
}

// TransactionID is the payer account plus valid-start time. ValidStart is
// always stored in UTC without a monotonic reading so values compare with ==.
type TransactionID struct {
	AccountID  AccountID
	ValidStart time.Time
	Scheduled  bool
	Nonce      int32
}

// NewTransactionID builds an id for payer starting at validStart.
func NewTransactionID(payer AccountID, validStart time.Time) TransactionID {
	return TransactionID{AccountID: payer, ValidStart: normalizeTime(validStart)}
}

// GenerateTransactionID uses now, backdated slightly so that small clock
// skew against the nodes does not make the start lie in the future.
func GenerateTransactionID(payer AccountID, now time.Time) TransactionID {
	return NewTransactionID(payer, now.Add(-ValidStartSkew))
}

// ValidStartSkew is subtracted from the local clock by GenerateTransactionID.
const ValidStartSkew = 5 * time.Second

// WithOffset returns the id whose valid start is shifted by n nanoseconds.
// Chunk i of a split transaction uses WithOffset(i).
func (t TransactionID) WithOffset(n int) TransactionID {
	out := t
	out.ValidStart = normalizeTime(t.ValidStart.Add(time.Duration(n)))
	return out
}

// IsZero reports whether t is unset.
func (t TransactionID) IsZero() bool {
	return t.AccountID.IsZero() && t.ValidStart.IsZero()
}

func (t TransactionID) String() string {
	s := fmt.Sprintf("%s@%d.%09d", t.AccountID, t.ValidStart.Unix(), t.ValidStart.Nanosecond())
	if t.Scheduled {
		s += "?scheduled"
	}
	if t.Nonce != 0 {
		s += fmt.Sprintf("/%d", t.Nonce)
	}
	return s
}

// Marshal encodes TransactionID{validStart=1, accountID=2, scheduled=3, nonce=4}.
func (t TransactionID) Marshal() []byte {
	var b []byte
	b = AppendMessage(b, 1, MarshalTimestamp(t.ValidStart))
	b = AppendMessage(b, 2, t.AccountID.Marshal())
	b = AppendBool(b, 3, t.Scheduled)
	b = AppendVarint(b, 4, uint64(int64(t.Nonce)))
	return b
}

// UnmarshalTransactionID decodes a TransactionID message.
func UnmarshalTransactionID(b []byte) (TransactionID, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return TransactionID{}, errors.Wrap(err, "decode transaction id")
	}
	var t TransactionID
	for _, f := range fields {
		switch f.Num {
		case 1:
			if t.ValidStart, err = UnmarshalTimestamp(f.Bytes); err != nil {
				return TransactionID{}, err
			}
		case 2:
			if t.AccountID, err = UnmarshalAccountID(f.Bytes); err != nil {
				return TransactionID{}, err
			}
		case 3:
			t.Scheduled = f.Varint != 0
		case 4:
			t.Nonce = int32(f.Varint)
		}
	}
	return t, nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(t.Unix(), int64(t.Nanosecond())).UTC()
}

// LedgerID names the network a client talks to.
type LedgerID string

const (
	Mainnet    LedgerID = "mainnet"
	Testnet    LedgerID = "testnet"
	Previewnet LedgerID = "previewnet"
	LocalNode  LedgerID = "local-node"
)

func (l LedgerID) String() string { return string(l) }

// FileID identifies a file as shard.realm.num.
type FileID AccountID

// ParseFileID parses "shard.realm.num".
func ParseFileID(s string) (FileID, error) {
	id, err := ParseAccountID(s)
	return FileID(id), err
}

func (f FileID) String() string  { return AccountID(f).String() }
func (f FileID) Marshal() []byte { return AccountID(f).Marshal() }

// TopicID identifies a consensus topic as shard.realm.num.
type TopicID AccountID

// ParseTopicID parses "shard.realm.num".
func ParseTopicID(s string) (TopicID, error) {
	id, err := ParseAccountID(s)
	return TopicID(id), err
}

func (t TopicID) String() string  { return AccountID(t).String() }
func (t TopicID) Marshal() []byte { return AccountID(t).Marshal() }
