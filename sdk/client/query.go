package client

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

const (
	// Query.cryptogetAccountBalance and Response.cryptogetAccountBalance
	fieldAccountBalance protowire.Number = 7

	balanceQueryHeader  protowire.Number = 1
	balanceQueryAccount protowire.Number = 2

	balanceResponseAccount protowire.Number = 2
	balanceResponseBalance protowire.Number = 3
)

const (
	cryptoService     = "CryptoService"
	getAccountBalance = "getAccountBalance"
)

// marshalBalanceQuery encodes a free account balance query for id.
func marshalBalanceQuery(id ledger.AccountID) []byte {
	inner := ledger.AppendMessage(nil, balanceQueryHeader, nil)
	inner = ledger.AppendMessage(inner, balanceQueryAccount, id.Marshal())
	return ledger.AppendMessage(nil, fieldAccountBalance, inner)
}

// MarshalBalanceResponse encodes the answer to a balance query. Test nodes
// use it to reply.
func MarshalBalanceResponse(code ledger.Status, id ledger.AccountID, balance uint64) []byte {
	body := ledger.AppendMessage(nil, balanceResponseAccount, id.Marshal())
	body = ledger.AppendVarint(body, balanceResponseBalance, balance)
	return ledger.MarshalQueryResponse(fieldAccountBalance, code, body)
}

// decodeBalance reads the balance from a balance query response.
func decodeBalance(resp []byte) (uint64, error) {
	fields, err := ledger.DecodeFields(resp)
	if err != nil {
		return 0, errors.Wrap(err, "decode balance response")
	}
	for _, f := range fields {
		if f.Num != fieldAccountBalance || f.Type != protowire.BytesType {
			continue
		}
		inner, err := ledger.DecodeFields(f.Bytes)
		if err != nil {
			return 0, errors.Wrap(err, "decode balance body")
		}
		for _, g := range inner {
			if g.Num == balanceResponseBalance && g.Type == protowire.VarintType {
				return g.Varint, nil
			}
		}
		return 0, nil
	}
	return 0, errors.New("response carries no balance")
}
