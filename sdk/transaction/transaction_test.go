package transaction

import (
	"bytes"
	"crypto/sha512"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

var (
	payer  = ledger.NewAccountID(1001)
	node3  = ledger.NewAccountID(3)
	node4  = ledger.NewAccountID(4)
	topic  = ledger.TopicID{Num: 77}
	baseID = ledger.NewTransactionID(payer, time.Unix(1700000000, 0))
)

func mustKey(t *testing.T, alg keys.Algorithm) *keys.PrivateKey {
	t.Helper()
	k, err := keys.GeneratePrivateKey(alg)
	require.NoError(t, err)
	return k
}

func TestFreezeChunksLargeMessage(t *testing.T) {
	message := bytes.Repeat([]byte("x"), 10*1024)
	b := NewBuilder(TopicMessageBody{TopicID: topic, Message: message})
	require.NoError(t, b.SetTransactionID(baseID))
	require.NoError(t, b.SetChunkSize(4*1024))

	f, err := b.Freeze([]ledger.AccountID{node3, node4})
	require.NoError(t, err)
	require.Equal(t, 3, f.ChunkCount())

	var pieces [][]byte
	for i := 0; i < 3; i++ {
		info, err := f.ChunkInfo(i)
		require.NoError(t, err)
		assert.Equal(t, i, info.Index)
		assert.Equal(t, 3, info.Total)
		assert.Equal(t, baseID, info.InitialTransactionID)

		chunkID, err := f.ChunkTransactionID(i)
		require.NoError(t, err)
		assert.Equal(t, baseID.WithOffset(i), chunkID)

		body, err := f.BodyBytes(i, node3)
		require.NoError(t, err)
		decoded, err := DecodeBody(body)
		require.NoError(t, err)
		assert.Equal(t, chunkID, decoded.TransactionID)
		assert.Equal(t, node3, decoded.NodeAccountID)
		assert.Equal(t, fieldConsensusSubmit, decoded.DataField)

		wireInfo, piece, err := DecodeChunkInfo(decoded.Data)
		require.NoError(t, err)
		assert.Equal(t, info, wireInfo)
		pieces = append(pieces, piece)
	}
	assert.Len(t, pieces[0], 4096)
	assert.Len(t, pieces[2], 2048)
	assert.Equal(t, message, Reassemble(pieces))
}

func TestBodiesDifferOnlyByNode(t *testing.T) {
	b := NewBuilder(TransferBody{Transfers: []Transfer{{Account: payer, Amount: -10}, {Account: node3, Amount: 10}}})
	require.NoError(t, b.SetTransactionID(baseID))
	require.NoError(t, b.SetMemo("hello"))
	f, err := b.Freeze([]ledger.AccountID{node3, node4, node3})
	require.NoError(t, err)

	assert.Equal(t, []ledger.AccountID{node3, node4}, f.Nodes())
	assert.Equal(t, "CryptoService", f.Service())
	assert.Equal(t, "cryptoTransfer", f.Method())

	a, err := f.BodyBytes(0, node3)
	require.NoError(t, err)
	c, err := f.BodyBytes(0, node4)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	da, err := DecodeBody(a)
	require.NoError(t, err)
	dc, err := DecodeBody(c)
	require.NoError(t, err)
	assert.Equal(t, node4, dc.NodeAccountID)
	dc.NodeAccountID = da.NodeAccountID
	assert.Equal(t, da, dc)
	assert.Equal(t, "hello", da.Memo)
	assert.Equal(t, DefaultValidDuration, da.ValidDuration)
	assert.Equal(t, uint64(DefaultMaxFee), da.Fee)

	_, err = f.BodyBytes(0, ledger.NewAccountID(9))
	var unknown *UnknownChunkError
	assert.True(t, errors.As(err, &unknown))
	_, err = f.BodyBytes(1, node3)
	assert.True(t, errors.As(err, &unknown))
}

func TestFrozenBuilderRejectsMutation(t *testing.T) {
	b := NewBuilder(FileAppendBody{FileID: ledger.FileID{Num: 150}, Contents: []byte("abc")})
	require.NoError(t, b.SetPayer(payer))
	f, err := b.Freeze([]ledger.AccountID{node3})
	require.NoError(t, err)
	assert.True(t, b.IsFrozen())

	mutations := map[string]func() error{
		"SetMemo":              func() error { return b.SetMemo("x") },
		"SetPayer":             func() error { return b.SetPayer(node4) },
		"SetTransactionID":     func() error { return b.SetTransactionID(baseID) },
		"SetMaxTransactionFee": func() error { return b.SetMaxTransactionFee(1) },
		"SetValidDuration":     func() error { return b.SetValidDuration(time.Second) },
		"SetChunkSize":         func() error { return b.SetChunkSize(10) },
		"SetMaxChunks":         func() error { return b.SetMaxChunks(10) },
		"SetBody":              func() error { return b.SetBody(TransferBody{}) },
		"Freeze": func() error {
			_, err := b.Freeze([]ledger.AccountID{node3})
			return err
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			var frozenErr *FrozenStateError
			require.True(t, errors.As(mutate(), &frozenErr))
			assert.Equal(t, name, frozenErr.Op)
		})
	}

	// signing a frozen transaction still works
	key := mustKey(t, keys.Ed25519)
	f.Sign(key)
	sigs, err := f.Signatures(0, node3)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestFreezeValidation(t *testing.T) {
	_, err := NewBuilder(TransferBody{}).Freeze([]ledger.AccountID{node3})
	assert.ErrorIs(t, err, ErrNoTransactionID)

	b := NewBuilder(TransferBody{})
	require.NoError(t, b.SetPayer(payer))
	_, err = b.Freeze(nil)
	assert.ErrorIs(t, err, ErrNoNodes)
	assert.False(t, b.IsFrozen())

	_, err = NewBuilder(nil).Freeze([]ledger.AccountID{node3})
	assert.ErrorIs(t, err, ErrNoBody)

	big := NewBuilder(FileAppendBody{Contents: make([]byte, 100)})
	require.NoError(t, big.SetPayer(payer))
	require.NoError(t, big.SetChunkSize(10))
	require.NoError(t, big.SetMaxChunks(5))
	_, err = big.Freeze([]ledger.AccountID{node3})
	var limit *ChunkLimitError
	require.True(t, errors.As(err, &limit))
	assert.Equal(t, 10, limit.Required)

	assert.Error(t, b.SetChunkSize(0))
	assert.Error(t, b.SetMaxChunks(-1))
}

func TestFreezeGeneratesTransactionID(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000100, 0))

	b := NewBuilder(TransferBody{})
	require.NoError(t, b.SetPayer(payer))
	require.NoError(t, b.SetClock(mock))
	f, err := b.Freeze([]ledger.AccountID{node3})
	require.NoError(t, err)

	id := f.TransactionID()
	assert.Equal(t, payer, id.AccountID)
	assert.Equal(t, time.Unix(1700000100, 0).Add(-ledger.ValidStartSkew).Unix(), id.ValidStart.Unix())
	assert.Equal(t, id, b.TransactionID())
}

func TestMultiSignature(t *testing.T) {
	b := NewBuilder(TopicMessageBody{TopicID: topic, Message: []byte("hi")})
	require.NoError(t, b.SetTransactionID(baseID))
	f, err := b.Freeze([]ledger.AccountID{node3, node4})
	require.NoError(t, err)

	edKey := mustKey(t, keys.Ed25519)
	ecKey := mustKey(t, keys.ECDSASecp256k1)
	f.Sign(edKey).Sign(ecKey)

	for _, node := range []ledger.AccountID{node3, node4} {
		payload, err := f.Payload(0, node)
		require.NoError(t, err)
		decoded, err := DecodeTransaction(payload)
		require.NoError(t, err)

		body, err := f.BodyBytes(0, node)
		require.NoError(t, err)
		assert.Equal(t, body, decoded.BodyBytes)
		require.Len(t, decoded.Signatures, 2)

		assert.Equal(t, edKey.PublicKey().Bytes(), decoded.Signatures[0].PubKeyPrefix)
		assert.False(t, decoded.Signatures[0].ECDSA)
		assert.True(t, edKey.PublicKey().Verify(body, decoded.Signatures[0].Signature))

		assert.Equal(t, ecKey.PublicKey().Bytes(), decoded.Signatures[1].PubKeyPrefix)
		assert.True(t, decoded.Signatures[1].ECDSA)
		assert.True(t, ecKey.PublicKey().Verify(body, decoded.Signatures[1].Signature))
	}
}

func TestResignReplacesSignature(t *testing.T) {
	b := NewBuilder(TransferBody{})
	require.NoError(t, b.SetTransactionID(baseID))
	f, err := b.Freeze([]ledger.AccountID{node3})
	require.NoError(t, err)

	key := mustKey(t, keys.Ed25519)
	calls := 0
	signer := SignerFunc(key.PublicKey(), func(msg []byte) []byte {
		calls++
		if calls == 1 {
			return bytes.Repeat([]byte{1}, 64)
		}
		return key.Sign(msg)
	})
	f.Sign(signer)
	f.Sign(signer)

	sigs, err := f.Signatures(0, node3)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	body, _ := f.BodyBytes(0, node3)
	assert.True(t, key.PublicKey().Verify(body, sigs[key.PublicKey().String()]))
}

func TestHash(t *testing.T) {
	b := NewBuilder(TransferBody{})
	require.NoError(t, b.SetTransactionID(baseID))
	f, err := b.Freeze([]ledger.AccountID{node3})
	require.NoError(t, err)
	f.Sign(mustKey(t, keys.Ed25519))

	signed, err := f.SignedBytes(0, node3)
	require.NoError(t, err)
	want := sha512.Sum384(signed)
	got, err := f.Hash(0, node3)
	require.NoError(t, err)
	assert.Equal(t, want[:], got)
	assert.Len(t, got, 48)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]byte{nil}, Chunk(nil, 10))
	assert.Equal(t, [][]byte{[]byte("abc")}, Chunk([]byte("abc"), 10))
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cd"), []byte("e")}, Chunk([]byte("abcde"), 2))
	assert.Equal(t, []byte("abcde"), Reassemble(Chunk([]byte("abcde"), 2)))
}
