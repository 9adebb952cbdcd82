package ledger

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// Status is a node precheck or receipt code.
type Status int32

const (
	StatusOK                            Status = 0
	StatusInvalidTransaction            Status = 1
	StatusPayerAccountNotFound          Status = 2
	StatusInvalidNodeAccount            Status = 3
	StatusTransactionExpired            Status = 4
	StatusInvalidTransactionStart       Status = 5
	StatusInvalidTransactionDuration    Status = 6
	StatusInvalidSignature              Status = 7
	StatusMemoTooLong                   Status = 8
	StatusInsufficientTxFee             Status = 9
	StatusInsufficientPayerBalance      Status = 10
	StatusDuplicateTransaction          Status = 11
	StatusBusy                          Status = 12
	StatusNotSupported                  Status = 13
	StatusInvalidFileID                 Status = 14
	StatusInvalidAccountID              Status = 15
	StatusInvalidTransactionID          Status = 17
	StatusReceiptNotFound               Status = 18
	StatusUnknown                       Status = 21
	StatusSuccess                       Status = 22
	StatusInvalidTransactionBody        Status = 50
	StatusPlatformTransactionNotCreated Status = 64
	StatusPlatformNotActive             Status = 210
)

var statusNames = map[Status]string{
	StatusOK:                            "OK",
	StatusInvalidTransaction:            "INVALID_TRANSACTION",
	StatusPayerAccountNotFound:          "PAYER_ACCOUNT_NOT_FOUND",
	StatusInvalidNodeAccount:            "INVALID_NODE_ACCOUNT",
	StatusTransactionExpired:            "TRANSACTION_EXPIRED",
	StatusInvalidTransactionStart:       "INVALID_TRANSACTION_START",
	StatusInvalidTransactionDuration:    "INVALID_TRANSACTION_DURATION",
	StatusInvalidSignature:              "INVALID_SIGNATURE",
	StatusMemoTooLong:                   "MEMO_TOO_LONG",
	StatusInsufficientTxFee:             "INSUFFICIENT_TX_FEE",
	StatusInsufficientPayerBalance:      "INSUFFICIENT_PAYER_BALANCE",
	StatusDuplicateTransaction:          "DUPLICATE_TRANSACTION",
	StatusBusy:                          "BUSY",
	StatusNotSupported:                  "NOT_SUPPORTED",
	StatusInvalidFileID:                 "INVALID_FILE_ID",
	StatusInvalidAccountID:              "INVALID_ACCOUNT_ID",
	StatusInvalidTransactionID:          "INVALID_TRANSACTION_ID",
	StatusReceiptNotFound:               "RECEIPT_NOT_FOUND",
	StatusUnknown:                       "UNKNOWN",
	StatusSuccess:                       "SUCCESS",
	StatusInvalidTransactionBody:        "INVALID_TRANSACTION_BODY",
	StatusPlatformTransactionNotCreated: "PLATFORM_TRANSACTION_NOT_CREATED",
	StatusPlatformNotActive:             "PLATFORM_NOT_ACTIVE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "STATUS_" + strconv.Itoa(int(s))
}

// IsSuccess reports whether a precheck accepted the request.
func (s Status) IsSuccess() bool {
	return s == StatusOK || s == StatusSuccess
}

// IsRetryable reports whether the same request may succeed if re-sent,
// possibly to another node.
func (s Status) IsRetryable() bool {
	switch s {
	case StatusBusy, StatusPlatformTransactionNotCreated, StatusPlatformNotActive:
		return true
	}
	return false
}

// PrecheckFromTransactionResponse reads TransactionResponse.nodeTransactionPrecheckCode (field 1).
func PrecheckFromTransactionResponse(b []byte) (Status, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return StatusUnknown, errors.Wrap(err, "decode transaction response")
	}
	for _, f := range fields {
		if f.Num == 1 && f.Type == protowire.VarintType {
			return Status(int32(f.Varint)), nil
		}
	}
	return StatusOK, nil
}

// PrecheckFromQueryResponse reads the precheck code of a query Response: the
// set oneof member's header (field 1) carries the code in its field 1.
func PrecheckFromQueryResponse(b []byte) (Status, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return StatusUnknown, errors.Wrap(err, "decode query response")
	}
	for _, f := range fields {
		if f.Type != protowire.BytesType {
			continue
		}
		inner, err := DecodeFields(f.Bytes)
		if err != nil {
			return StatusUnknown, errors.Wrap(err, "decode query response body")
		}
		for _, h := range inner {
			if h.Num != 1 || h.Type != protowire.BytesType {
				continue
			}
			header, err := DecodeFields(h.Bytes)
			if err != nil {
				return StatusUnknown, errors.Wrap(err, "decode response header")
			}
			for _, c := range header {
				if c.Num == 1 {
					return Status(int32(c.Varint)), nil
				}
			}
			return StatusOK, nil
		}
		return StatusOK, nil
	}
	return StatusUnknown, errors.New("query response has no body")
}

// MarshalTransactionResponse encodes a TransactionResponse with code.
func MarshalTransactionResponse(code Status) []byte {
	return AppendVarint(nil, 1, uint64(int64(code)))
}

// MarshalQueryResponse encodes a Response whose oneof member field carries
// a header with code followed by body.
func MarshalQueryResponse(field protowire.Number, code Status, body []byte) []byte {
	header := AppendVarint(nil, 1, uint64(int64(code)))
	inner := AppendMessage(nil, 1, header)
	inner = append(inner, body...)
	return AppendMessage(nil, field, inner)
}
