package transaction

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

const (
	// Transaction
	fieldSignedTransactionBytes protowire.Number = 5

	// SignedTransaction
	fieldBodyBytes protowire.Number = 1
	fieldSigMap    protowire.Number = 2

	// SignatureMap / SignaturePair
	fieldSigPair      protowire.Number = 1
	fieldPubKeyPrefix protowire.Number = 1
	fieldEd25519      protowire.Number = 3
	fieldECDSA        protowire.Number = 6
)

func marshalSignedTransaction(body []byte, sigs []signature) []byte {
	var sigMap []byte
	for _, s := range sigs {
		var pair []byte
		pair = ledger.AppendBytes(pair, fieldPubKeyPrefix, s.pub.Bytes())
		if s.pub.Algorithm() == keys.ECDSASecp256k1 {
			pair = ledger.AppendBytes(pair, fieldECDSA, s.sig)
		} else {
			pair = ledger.AppendBytes(pair, fieldEd25519, s.sig)
		}
		sigMap = ledger.AppendMessage(sigMap, fieldSigPair, pair)
	}
	var out []byte
	out = ledger.AppendBytes(out, fieldBodyBytes, body)
	out = ledger.AppendMessage(out, fieldSigMap, sigMap)
	return out
}

// SignaturePair is one decoded signature of a submitted transaction.
type SignaturePair struct {
	PubKeyPrefix []byte
	Signature    []byte
	ECDSA        bool
}

// DecodedTransaction is the content of a serialized Transaction.
type DecodedTransaction struct {
	BodyBytes  []byte
	Signatures []SignaturePair
}

// DecodeTransaction parses a payload produced by Frozen.Payload.
func DecodeTransaction(payload []byte) (*DecodedTransaction, error) {
	fields, err := ledger.DecodeFields(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}
	var signed []byte
	for _, f := range fields {
		if f.Num == fieldSignedTransactionBytes {
			signed = f.Bytes
		}
	}
	if signed == nil {
		return nil, errors.New("transaction has no signed transaction bytes")
	}

	fields, err = ledger.DecodeFields(signed)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}
	out := &DecodedTransaction{}
	for _, f := range fields {
		switch f.Num {
		case fieldBodyBytes:
			out.BodyBytes = f.Bytes
		case fieldSigMap:
			pairs, err := ledger.DecodeFields(f.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "decode signature map")
			}
			for _, p := range pairs {
				if p.Num != fieldSigPair {
					continue
				}
				pair, err := decodeSignaturePair(p.Bytes)
				if err != nil {
					return nil, err
				}
				out.Signatures = append(out.Signatures, pair)
			}
		}
	}
	return out, nil
}

func decodeSignaturePair(b []byte) (SignaturePair, error) {
	fields, err := ledger.DecodeFields(b)
	if err != nil {
		return SignaturePair{}, errors.Wrap(err, "decode signature pair")
	}
	var p SignaturePair
	for _, f := range fields {
		switch f.Num {
		case fieldPubKeyPrefix:
			p.PubKeyPrefix = f.Bytes
		case fieldEd25519:
			p.Signature = f.Bytes
		case fieldECDSA:
			p.Signature = f.Bytes
			p.ECDSA = true
		}
	}
	return p, nil
}

// DecodedBody is the common header of a TransactionBody plus the raw
// operation field.
type DecodedBody struct {
	TransactionID ledger.TransactionID
	NodeAccountID ledger.AccountID
	Fee           uint64
	ValidDuration time.Duration
	Memo          string
	DataField     protowire.Number
	Data          []byte
}

// DecodeBody parses TransactionBody bytes.
func DecodeBody(b []byte) (*DecodedBody, error) {
	fields, err := ledger.DecodeFields(b)
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction body")
	}
	out := &DecodedBody{}
	for _, f := range fields {
		switch f.Num {
		case fieldTransactionID:
			if out.TransactionID, err = ledger.UnmarshalTransactionID(f.Bytes); err != nil {
				return nil, err
			}
		case fieldNodeAccountID:
			if out.NodeAccountID, err = ledger.UnmarshalAccountID(f.Bytes); err != nil {
				return nil, err
			}
		case fieldTransactionFee:
			out.Fee = f.Varint
		case fieldValidDuration:
			if out.ValidDuration, err = ledger.UnmarshalDuration(f.Bytes); err != nil {
				return nil, err
			}
		case fieldMemo:
			out.Memo = string(f.Bytes)
		default:
			if f.Type == protowire.BytesType {
				out.DataField = f.Num
				out.Data = f.Bytes
			}
		}
	}
	return out, nil
}

// DecodeChunkInfo reads the chunk info of a consensusSubmitMessage body.
func DecodeChunkInfo(data []byte) (ChunkInfo, []byte, error) {
	fields, err := ledger.DecodeFields(data)
	if err != nil {
		return ChunkInfo{}, nil, errors.Wrap(err, "decode submit message")
	}
	var (
		info    ChunkInfo
		message []byte
	)
	for _, f := range fields {
		switch f.Num {
		case 2:
			message = f.Bytes
		case 3:
			inner, err := ledger.DecodeFields(f.Bytes)
			if err != nil {
				return ChunkInfo{}, nil, errors.Wrap(err, "decode chunk info")
			}
			for _, c := range inner {
				switch c.Num {
				case 1:
					if info.InitialTransactionID, err = ledger.UnmarshalTransactionID(c.Bytes); err != nil {
						return ChunkInfo{}, nil, err
					}
				case 2:
					info.Total = int(c.Varint)
				case 3:
					info.Index = int(c.Varint) - 1
				}
			}
		}
	}
	return info, message, nil
}
