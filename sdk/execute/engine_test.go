package execute_test

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/task"
	"github.com/ledgerlink/ledger-sdk/sdk/channel"
	"github.com/ledgerlink/ledger-sdk/sdk/event"
	"github.com/ledgerlink/ledger-sdk/sdk/execute"
	"github.com/ledgerlink/ledger-sdk/sdk/execute/mocks"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
	"github.com/ledgerlink/ledger-sdk/sdk/network"
	"github.com/ledgerlink/ledger-sdk/sdk/transaction"
)

var payer = ledger.NewAccountID(1001)

func nodeID(i int) ledger.AccountID { return ledger.NewAccountID(int64(3 + i)) }
func nodeAddr(i int) string         { return "10.0.0." + strconv.Itoa(i+1) + ":50211" }

// newNetwork registers size nodes 0.0.3, 0.0.4, ... on a frozen mock clock,
// so a node that failed stays backed off for the whole test.
func newNetwork(t *testing.T, size int) *network.Network {
	t.Helper()
	nw := network.New(
		network.WithClock(clock.NewMock()),
		network.WithMinBackoff(time.Millisecond),
		network.WithMaxBackoff(4*time.Millisecond),
	)
	topology := make(map[string]ledger.AccountID, size)
	for i := 0; i < size; i++ {
		topology[nodeAddr(i)] = nodeID(i)
	}
	_, err := nw.SetNetwork(topology)
	require.NoError(t, err)
	return nw
}

func newEngine(nw *network.Network, tr execute.Transport, cfg execute.Config, opts ...execute.Option) *execute.Engine {
	opts = append([]execute.Option{execute.WithClock(clock.New())}, opts...)
	return execute.NewEngine(nw, tr, cfg, opts...)
}

func frozenTransfer(t *testing.T, nodes []ledger.AccountID) *transaction.Frozen {
	t.Helper()
	b := transaction.NewBuilder(transaction.TransferBody{Transfers: []transaction.Transfer{
		{Account: payer, Amount: -5},
		{Account: nodeID(0), Amount: 5},
	}})
	require.NoError(t, b.SetTransactionID(ledger.NewTransactionID(payer, time.Unix(1700000000, 0))))
	f, err := b.Freeze(nodes)
	require.NoError(t, err)
	key, err := keys.GeneratePrivateKey(keys.Ed25519)
	require.NoError(t, err)
	return f.Sign(key)
}

func unavailable(addr string) error {
	return &channel.TransportError{Kind: channel.KindUnavailable, Address: addr, Err: errors.New("connection refused")}
}

type invokeFunc func(ctx context.Context, target channel.Target, service, method string, req []byte, deadline time.Time) ([]byte, error)

func TestExecuteFailsOverToNextCandidate(t *testing.T) {
	nw := newNetwork(t, 4)
	a, b, c := nodeID(0), nodeID(1), nodeID(2)
	nw.RecordFailure(b, network.FailureConnectivity)

	f := frozenTransfer(t, nw.NodeIDs())
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	var first invokeFunc = func(_ context.Context, target channel.Target, _, _ string, req []byte, deadline time.Time) ([]byte, error) {
		assert.Equal(t, nodeAddr(0), target.Address)
		assert.False(t, target.Secure)
		want, err := f.Payload(0, a)
		require.NoError(t, err)
		assert.Equal(t, want, req)
		assert.False(t, deadline.IsZero())
		return nil, unavailable(target.Address)
	}
	var second invokeFunc = func(_ context.Context, target channel.Target, _, _ string, req []byte, _ time.Time) ([]byte, error) {
		assert.Equal(t, nodeAddr(2), target.Address)
		want, err := f.Payload(0, c)
		require.NoError(t, err)
		assert.Equal(t, want, req)
		return ledger.MarshalTransactionResponse(ledger.StatusOK), nil
	}
	gomock.InOrder(
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), "CryptoService", "cryptoTransfer", gomock.Any(), gomock.Any()).DoAndReturn(first),
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), "CryptoService", "cryptoTransfer", gomock.Any(), gomock.Any()).DoAndReturn(second),
	)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	results, err := engine.ExecuteTransaction(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, c, res.Node)
	assert.Equal(t, ledger.StatusOK, res.Status)
	assert.Equal(t, f.TransactionID(), res.TransactionID)
	wantHash, err := f.Hash(0, c)
	require.NoError(t, err)
	assert.Equal(t, wantHash, res.Hash)
	assert.NotEmpty(t, res.ExecutionID)

	ha, _ := nw.Health(a)
	hb, _ := nw.Health(b)
	hc, _ := nw.Health(c)
	assert.Equal(t, 2*time.Millisecond, ha.Delay)
	assert.Equal(t, 2*time.Millisecond, hb.Delay)
	assert.Equal(t, time.Millisecond, hc.Delay)
	assert.True(t, hc.ReadmitAt.IsZero())
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	nw := newNetwork(t, 3)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(invokeFunc(func(_ context.Context, target channel.Target, _, _ string, _ []byte, _ time.Time) ([]byte, error) {
			return nil, unavailable(target.Address)
		})).Times(4)

	cfg := execute.DefaultConfig()
	cfg.MaxAttempts = 4
	engine := newEngine(nw, tr, cfg)

	res, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "CryptoService", MethodName: "getAccountBalance", Body: []byte{1}})
	assert.Nil(t, res)

	var maxErr *execute.MaxAttemptsExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 4, maxErr.Attempts)
	require.Len(t, maxErr.LastErrors, 1)

	var connErr *execute.ConnectivityError
	require.ErrorAs(t, maxErr.LastErrors[nodeID(0)], &connErr)
	assert.Equal(t, nodeID(0), connErr.Node)

	h, _ := nw.Health(nodeID(0))
	assert.Equal(t, 4*time.Millisecond, h.Delay)
	assert.EqualValues(t, 4, h.UseCount)
}

func TestExecuteRetriesBusyStatus(t *testing.T) {
	nw := newNetwork(t, 3)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	body := []byte{0x08, 0x01}
	gomock.InOrder(
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), body, gomock.Any()).
			Return(ledger.MarshalQueryResponse(2, ledger.StatusBusy, nil), nil),
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), body, gomock.Any()).
			Return(ledger.MarshalQueryResponse(2, ledger.StatusOK, []byte{0x10, 0x07}), nil),
	)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	res, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "CryptoService", MethodName: "getAccountBalance", Body: body})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, nodeID(0), res.Node)
	assert.True(t, res.TransactionID.IsZero())

	h, _ := nw.Health(nodeID(0))
	assert.Equal(t, time.Millisecond, h.Delay)
	assert.EqualValues(t, 2, h.UseCount)
}

func TestExecuteReturnsFatalStatusVerbatim(t *testing.T) {
	nw := newNetwork(t, 3)
	f := frozenTransfer(t, nw.NodeIDs())
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	resp := ledger.MarshalTransactionResponse(ledger.StatusInvalidSignature)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(resp, nil).Times(1)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	_, err := engine.ExecuteTransaction(context.Background(), f)

	var fatal *execute.FatalStatusError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, ledger.StatusInvalidSignature, fatal.Status)
	assert.Equal(t, nodeID(0), fatal.Node)
	assert.Equal(t, resp, fatal.Response)

	h, _ := nw.Health(nodeID(0))
	assert.True(t, h.ReadmitAt.IsZero())
}

func TestExecuteUndecodableResponseIsFatal(t *testing.T) {
	nw := newNetwork(t, 1)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{0xff}, nil)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})

	var fatal *execute.FatalStatusError
	require.ErrorAs(t, err, &fatal)
	assert.Error(t, fatal.Err)
}

func TestExecuteUnknownTransportErrorIsNotRetried(t *testing.T) {
	nw := newNetwork(t, 3)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &channel.TransportError{Kind: channel.KindUnknown, Address: nodeAddr(0), Err: errors.New("unimplemented")}).Times(1)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})

	var connErr *execute.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, nodeID(0), connErr.Node)

	h, _ := nw.Health(nodeID(0))
	assert.True(t, h.ReadmitAt.IsZero())
}

func TestExecuteRetriesCallCancelledByNode(t *testing.T) {
	nw := newNetwork(t, 3)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	gomock.InOrder(
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &channel.TransportError{Kind: channel.KindCancelled, Address: nodeAddr(0), Err: status.Error(codes.Canceled, "stream reset")}),
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ledger.MarshalTransactionResponse(ledger.StatusOK), nil),
	)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	res, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, nodeID(0), res.Node)

	h, _ := nw.Health(nodeID(0))
	assert.Equal(t, time.Millisecond, h.Delay)
	assert.EqualValues(t, 2, h.UseCount)
}

func TestExecuteSkipsNodeWithRejectedCertificate(t *testing.T) {
	nw := newNetwork(t, 6)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	gomock.InOrder(
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &channel.TransportError{Kind: channel.KindUnavailable, Address: nodeAddr(0), BadCertificate: true, Err: channel.ErrCertificateMismatch}),
		tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ledger.MarshalQueryResponse(2, ledger.StatusOK, nil), nil),
	)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	res, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})
	require.NoError(t, err)
	assert.Equal(t, nodeID(1), res.Node)
	assert.Equal(t, 2, res.Attempts)

	h, _ := nw.Health(nodeID(0))
	assert.True(t, h.BadCertificate)
	assert.NotContains(t, nw.SelectCandidates(6, nil), nodeID(0))
}

func TestExecuteContactsAtMostAThirdOfTheNetwork(t *testing.T) {
	nw := newNetwork(t, 9)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	var mu sync.Mutex
	contacted := map[string]int{}
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(invokeFunc(func(_ context.Context, target channel.Target, _, _ string, _ []byte, _ time.Time) ([]byte, error) {
			mu.Lock()
			contacted[target.Address]++
			mu.Unlock()
			return nil, unavailable(target.Address)
		})).Times(10)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})

	var maxErr *execute.MaxAttemptsExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, execute.DefaultMaxAttempts, maxErr.Attempts)
	assert.Len(t, contacted, 3)
	assert.Len(t, maxErr.LastErrors, 3)
	// candidates are cycled without repeats until the set is exhausted
	assert.Equal(t, 4, contacted[nodeAddr(0)])
	assert.Equal(t, 3, contacted[nodeAddr(1)])
	assert.Equal(t, 3, contacted[nodeAddr(2)])
}

func TestExecuteHonoursMaxNodesPerRequest(t *testing.T) {
	nw := newNetwork(t, 9)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), channel.Target{Address: nodeAddr(0)}, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, unavailable(nodeAddr(0))).Times(2)

	cfg := execute.DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.MaxNodesPerRequest = 1
	engine := newEngine(nw, tr, cfg)
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})

	var maxErr *execute.MaxAttemptsExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.Attempts)
}

func TestExecuteCancellationAbortsBackoff(t *testing.T) {
	nw := network.New(network.WithMinBackoff(time.Minute), network.WithMaxBackoff(time.Hour))
	_, err := nw.SetNetwork(map[string]ledger.AccountID{nodeAddr(0): nodeID(0)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(invokeFunc(func(_ context.Context, target channel.Target, _, _ string, _ []byte, _ time.Time) ([]byte, error) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			return nil, unavailable(target.Address)
		})).Times(1)

	engine := execute.NewEngine(nw, tr, execute.DefaultConfig())
	start := time.Now()
	_, err = engine.Execute(ctx, &execute.QueryRequest{ServiceName: "S", MethodName: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestExecuteTimeout(t *testing.T) {
	nw := newNetwork(t, 1)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(invokeFunc(func(ctx context.Context, target channel.Target, _, _ string, _ []byte, deadline time.Time) ([]byte, error) {
			<-ctx.Done()
			return nil, &channel.TransportError{Kind: channel.KindDeadlineExceeded, Address: target.Address, Err: ctx.Err()}
		})).Times(1)

	cfg := execute.DefaultConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	engine := newEngine(nw, tr, cfg)
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{ServiceName: "S", MethodName: "m"})

	var timeout *execute.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 1, timeout.Attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteNoEligibleNodes(t *testing.T) {
	nw := newNetwork(t, 3)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	_, err := engine.Execute(context.Background(), &execute.QueryRequest{
		ServiceName: "S",
		MethodName:  "m",
		Nodes:       []ledger.AccountID{ledger.NewAccountID(99)},
	})
	assert.ErrorIs(t, err, execute.ErrNoEligibleNodes)
}

func TestExecuteQueryClassifierAndNodeRestriction(t *testing.T) {
	nw := newNetwork(t, 6)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), channel.Target{Address: nodeAddr(4)}, "NetworkService", "getVersionInfo", gomock.Any(), gomock.Any()).
		Return([]byte("pong"), nil)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	res, err := engine.Execute(context.Background(), &execute.QueryRequest{
		ServiceName: "NetworkService",
		MethodName:  "getVersionInfo",
		Nodes:       []ledger.AccountID{nodeID(4)},
		Classifier: func(resp []byte) (ledger.Status, execute.Outcome, error) {
			if bytes.Equal(resp, []byte("pong")) {
				return ledger.StatusOK, execute.OutcomeSuccess, nil
			}
			return ledger.StatusUnknown, execute.OutcomeFatal, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, nodeID(4), res.Node)
	assert.Equal(t, []byte("pong"), res.Response)
}

func TestExecuteIsTrackedWhileInFlight(t *testing.T) {
	nw := newNetwork(t, 1)
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tracker := task.New()

	var seen map[string][]string
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), "NetworkService", "getVersionInfo", gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, channel.Target, string, string, []byte, time.Time) ([]byte, error) {
			seen = tracker.Snapshot()
			return []byte("pong"), nil
		})

	engine := newEngine(nw, tr, execute.DefaultConfig(), execute.WithTracker(tracker))
	res, err := engine.Execute(context.Background(), &execute.QueryRequest{
		ServiceName: "NetworkService",
		MethodName:  "getVersionInfo",
		Classifier: func([]byte) (ledger.Status, execute.Outcome, error) {
			return ledger.StatusOK, execute.OutcomeSuccess, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"query": {res.ExecutionID}}, seen)
	assert.Equal(t, 0, tracker.Count())
}

func TestExecuteRejectsTransactionAlreadyInFlight(t *testing.T) {
	nw := newNetwork(t, 1)
	f := frozenTransfer(t, nw.NodeIDs())
	req, err := execute.NewTransactionRequest(f, 0)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	entered := make(chan struct{})
	release := make(chan struct{})
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, channel.Target, string, string, []byte, time.Time) ([]byte, error) {
			close(entered)
			<-release
			return ledger.MarshalTransactionResponse(ledger.StatusOK), nil
		}).Times(1)

	tracker := task.New()
	engine := newEngine(nw, tr, execute.DefaultConfig(), execute.WithTracker(tracker))

	done := make(chan error, 1)
	go func() {
		_, err := engine.Execute(context.Background(), req)
		done <- err
	}()
	<-entered

	assert.Equal(t, map[string][]string{"transaction": {f.TransactionID().String()}}, tracker.Snapshot())
	_, err = engine.Execute(context.Background(), req)
	assert.ErrorIs(t, err, task.ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, tracker.Count())
}

func TestExecuteTransactionChunksInOrderWithEvents(t *testing.T) {
	nw := newNetwork(t, 1)
	b := transaction.NewBuilder(transaction.TopicMessageBody{TopicID: ledger.TopicID{Num: 50}, Message: bytes.Repeat([]byte("m"), 2500)})
	require.NoError(t, b.SetTransactionID(ledger.NewTransactionID(payer, time.Unix(1700000000, 0))))
	f, err := b.Freeze(nw.NodeIDs())
	require.NoError(t, err)
	require.Equal(t, 3, f.ChunkCount())

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	var calls []any
	for i := 0; i < 3; i++ {
		payload, err := f.Payload(i, nodeID(0))
		require.NoError(t, err)
		calls = append(calls, tr.EXPECT().
			Invoke(gomock.Any(), gomock.Any(), "ConsensusService", "submitMessage", payload, gomock.Any()).
			Return(ledger.MarshalTransactionResponse(ledger.StatusOK), nil))
	}
	gomock.InOrder(calls...)

	bus := event.NewBus(nil, 4)
	var mu sync.Mutex
	seen := map[event.EventType]int{}
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	engine := newEngine(nw, tr, execute.DefaultConfig(), execute.WithPublisher(bus))
	results, err := engine.ExecuteTransaction(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, f.TransactionID().WithOffset(i), res.TransactionID)
	}

	bus.Close()
	assert.Equal(t, 3, seen[event.ExecutionStarted])
	assert.Equal(t, 3, seen[event.AttemptSucceeded])
	assert.Equal(t, 3, seen[event.ExecutionCompleted])
	assert.Equal(t, 3, seen[event.ChunkCompleted])
}

func TestExecuteTransactionStopsAtFirstFailedChunk(t *testing.T) {
	nw := newNetwork(t, 1)
	b := transaction.NewBuilder(transaction.FileAppendBody{FileID: ledger.FileID{Num: 150}, Contents: bytes.Repeat([]byte("f"), 2048)})
	require.NoError(t, b.SetPayer(payer))
	f, err := b.Freeze(nw.NodeIDs())
	require.NoError(t, err)
	require.Equal(t, 2, f.ChunkCount())

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), "FileService", "appendContent", gomock.Any(), gomock.Any()).
		Return(ledger.MarshalTransactionResponse(ledger.StatusInsufficientTxFee), nil).Times(1)

	engine := newEngine(nw, tr, execute.DefaultConfig())
	results, err := engine.ExecuteTransaction(context.Background(), f)
	assert.Nil(t, results)

	var fatal *execute.FatalStatusError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, ledger.StatusInsufficientTxFee, fatal.Status)
	assert.Contains(t, err.Error(), "chunk 1 of 2")
}

func TestNewTransactionRequestValidatesChunk(t *testing.T) {
	f := frozenTransfer(t, []ledger.AccountID{nodeID(0)})
	_, err := execute.NewTransactionRequest(f, 1)
	assert.Error(t, err)
	_, err = execute.NewTransactionRequest(nil, 0)
	assert.Error(t, err)

	req, err := execute.NewTransactionRequest(f, 0)
	require.NoError(t, err)
	assert.True(t, req.Allows(nodeID(0)))
	assert.False(t, req.Allows(nodeID(1)))
	assert.Equal(t, "transaction", req.Kind())
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, execute.OutcomeSuccess, execute.ClassifyStatus(ledger.StatusOK))
	assert.Equal(t, execute.OutcomeSuccess, execute.ClassifyStatus(ledger.StatusSuccess))
	assert.Equal(t, execute.OutcomeRetryStatus, execute.ClassifyStatus(ledger.StatusBusy))
	assert.Equal(t, execute.OutcomeRetryStatus, execute.ClassifyStatus(ledger.StatusPlatformNotActive))
	assert.Equal(t, execute.OutcomeFatal, execute.ClassifyStatus(ledger.StatusInvalidTransactionBody))
}
