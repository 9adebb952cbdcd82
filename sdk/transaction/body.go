package transaction

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

// TransactionBody field numbers.
const (
	fieldTransactionID   protowire.Number = 1
	fieldNodeAccountID   protowire.Number = 2
	fieldTransactionFee  protowire.Number = 3
	fieldValidDuration   protowire.Number = 4
	fieldMemo            protowire.Number = 6
	fieldCryptoTransfer  protowire.Number = 14
	fieldFileAppend      protowire.Number = 16
	fieldConsensusSubmit protowire.Number = 27
)

// ChunkInfo places one chunk within a split transaction.
type ChunkInfo struct {
	// Index is zero based.
	Index int
	Total int
	// InitialTransactionID is the id of the first chunk, shared by all.
	InitialTransactionID ledger.TransactionID
}

// Body is the operation specific part of a transaction.
type Body interface {
	// Service and Method name the RPC the transaction is submitted with.
	Service() string
	Method() string
	// Content returns the payload that may be split into chunks, or nil if
	// the body is not chunkable.
	Content() []byte
	// AppendTo appends the body's TransactionBody field for one chunk
	// carrying content.
	AppendTo(b []byte, chunk ChunkInfo, content []byte) []byte
}

// TopicMessageBody submits a message to a consensus topic.
type TopicMessageBody struct {
	TopicID ledger.TopicID
	Message []byte
}

func (TopicMessageBody) Service() string   { return "ConsensusService" }
func (TopicMessageBody) Method() string    { return "submitMessage" }
func (t TopicMessageBody) Content() []byte { return t.Message }

func (t TopicMessageBody) AppendTo(b []byte, chunk ChunkInfo, content []byte) []byte {
	var info []byte
	info = ledger.AppendMessage(info, 1, chunk.InitialTransactionID.Marshal())
	info = ledger.AppendVarint(info, 2, uint64(chunk.Total))
	info = ledger.AppendVarint(info, 3, uint64(chunk.Index+1))

	var msg []byte
	msg = ledger.AppendMessage(msg, 1, t.TopicID.Marshal())
	msg = ledger.AppendBytes(msg, 2, content)
	msg = ledger.AppendMessage(msg, 3, info)
	return ledger.AppendMessage(b, fieldConsensusSubmit, msg)
}

// FileAppendBody appends contents to a file.
type FileAppendBody struct {
	FileID   ledger.FileID
	Contents []byte
}

func (FileAppendBody) Service() string   { return "FileService" }
func (FileAppendBody) Method() string    { return "appendContent" }
func (f FileAppendBody) Content() []byte { return f.Contents }

func (f FileAppendBody) AppendTo(b []byte, _ ChunkInfo, content []byte) []byte {
	var msg []byte
	msg = ledger.AppendMessage(msg, 2, f.FileID.Marshal())
	msg = ledger.AppendBytes(msg, 4, content)
	return ledger.AppendMessage(b, fieldFileAppend, msg)
}

// Transfer moves Amount (negative for the sender) to or from Account.
type Transfer struct {
	Account ledger.AccountID
	Amount  int64
}

// TransferBody is a crypto transfer. It is never chunked.
type TransferBody struct {
	Transfers []Transfer
}

func (TransferBody) Service() string { return "CryptoService" }
func (TransferBody) Method() string  { return "cryptoTransfer" }
func (TransferBody) Content() []byte { return nil }

func (t TransferBody) AppendTo(b []byte, _ ChunkInfo, _ []byte) []byte {
	var list []byte
	for _, tr := range t.Transfers {
		var aa []byte
		aa = ledger.AppendMessage(aa, 1, tr.Account.Marshal())
		aa = ledger.AppendVarint(aa, 2, protowire.EncodeZigZag(tr.Amount))
		list = ledger.AppendMessage(list, 1, aa)
	}
	msg := ledger.AppendMessage(nil, 1, list)
	return ledger.AppendMessage(b, fieldCryptoTransfer, msg)
}
