package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		in      string
		want    AccountID
		wantErr bool
	}{
		{in: "0.0.3", want: AccountID{Num: 3}},
		{in: "1.2.3", want: AccountID{Shard: 1, Realm: 2, Num: 3}},
		{in: "42", want: AccountID{Num: 42}},
		{in: " 0.0.7 ", want: AccountID{Num: 7}},
		{in: "0.0", wantErr: true},
		{in: "0.0.x", wantErr: true},
		{in: "0.0.-1", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccountID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "1.2.3", AccountID{Shard: 1, Realm: 2, Num: 3}.String())
}

func TestAccountIDWire(t *testing.T) {
	id := AccountID{Shard: 1, Realm: 2, Num: 1001}
	got, err := UnmarshalAccountID(id.Marshal())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTransactionIDComparable(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 5, time.Local)
	a := NewTransactionID(NewAccountID(2), start)
	b := NewTransactionID(NewAccountID(2), start.In(time.UTC))
	assert.True(t, a == b)

	seen := map[TransactionID]bool{a: true}
	assert.True(t, seen[b])

	chunk := a.WithOffset(2)
	assert.Equal(t, int64(2), chunk.ValidStart.Sub(a.ValidStart).Nanoseconds())
	assert.Equal(t, a.AccountID, chunk.AccountID)
	assert.Equal(t, "0.0.2@1709294400.000000005", NewTransactionID(NewAccountID(2), time.Unix(1709294400, 5)).String())
}

func TestTransactionIDWire(t *testing.T) {
	id := NewTransactionID(AccountID{Realm: 1, Num: 99}, time.Unix(1700000000, 123456789))
	id.Nonce = 3
	got, err := UnmarshalTransactionID(id.Marshal())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "BUSY", StatusBusy.String())
	assert.Equal(t, "STATUS_9999", Status(9999).String())
	assert.True(t, StatusBusy.IsRetryable())
	assert.True(t, StatusPlatformNotActive.IsRetryable())
	assert.True(t, StatusPlatformTransactionNotCreated.IsRetryable())
	assert.False(t, StatusInvalidSignature.IsRetryable())
	assert.True(t, StatusOK.IsSuccess())
}

func TestPrecheckParsing(t *testing.T) {
	code, err := PrecheckFromTransactionResponse(MarshalTransactionResponse(StatusBusy))
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, code)

	code, err = PrecheckFromTransactionResponse(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, code)

	resp := MarshalQueryResponse(7, StatusInsufficientTxFee, AppendVarint(nil, 3, 100))
	code, err = PrecheckFromQueryResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientTxFee, code)

	_, err = PrecheckFromQueryResponse(nil)
	assert.Error(t, err)

	_, err = DecodeFields([]byte{0x0a, 0x05, 0x01})
	assert.Error(t, err)
}
