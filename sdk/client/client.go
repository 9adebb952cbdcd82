// Package client is the entry point of the SDK. A Client owns the node
// registry, the channel cache and the execution engine, and signs
// transactions with its operator key.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/metrics"
	"github.com/ledgerlink/ledger-sdk/pkg/task"
	"github.com/ledgerlink/ledger-sdk/sdk/channel"
	"github.com/ledgerlink/ledger-sdk/sdk/config"
	"github.com/ledgerlink/ledger-sdk/sdk/event"
	"github.com/ledgerlink/ledger-sdk/sdk/execute"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
	"github.com/ledgerlink/ledger-sdk/sdk/log"
	"github.com/ledgerlink/ledger-sdk/sdk/network"
	"github.com/ledgerlink/ledger-sdk/sdk/transaction"
)

// pingConcurrency bounds PingAll.
const pingConcurrency = 8

var (
	ErrNoOperator     = errors.New("client has no operator")
	ErrUnknownNetwork = errors.New("unknown network name")
)

type options struct {
	clock       clock.Clock
	recorder    *metrics.Recorder
	transport   execute.Transport
	channelOpts []channel.Option
	busWorkers  int
}

type Option func(*options)

// WithClock replaces the wall clock used for node health and retries.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithMetrics records attempts, executions and channels on r.
func WithMetrics(r *metrics.Recorder) Option { return func(o *options) { o.recorder = r } }

// WithTransport sends requests through t instead of the client's own
// channel manager.
func WithTransport(t execute.Transport) Option { return func(o *options) { o.transport = t } }

// WithChannelOptions passes extra options to the channel manager.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) { o.channelOpts = append(o.channelOpts, opts...) }
}

// WithEventWorkers bounds concurrent event handlers.
func WithEventWorkers(n int) Option { return func(o *options) { o.busWorkers = n } }

type Client struct {
	logger   log.Logger
	network  *network.Network
	channels *channel.Manager
	engine   *execute.Engine
	bus      *event.Bus
	tracker  *task.InMemoryTracker

	mu          sync.RWMutex
	operatorID  ledger.AccountID
	operatorKey *keys.PrivateKey

	closeOnce sync.Once
	closeErr  error
}

// New creates a client for cfg. cfg must name a network source.
func New(cfg config.Config, logger log.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid client config")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	netOpts := []network.Option{
		network.WithMinBackoff(cfg.MinBackoff),
		network.WithMaxBackoff(cfg.MaxBackoff),
		network.WithSecurePort(cfg.SecurePort),
		network.WithLedgerID(ledger.LedgerID(cfg.LedgerID)),
		network.WithLogger(logger),
	}
	if o.clock != nil {
		netOpts = append(netOpts, network.WithClock(o.clock))
	}
	nw := network.New(netOpts...)

	chOpts := append([]channel.Option{
		channel.WithUserAgent(cfg.UserAgent),
		channel.WithMetrics(o.recorder),
	}, o.channelOpts...)
	channels := channel.NewManager(logger, chOpts...)

	var transport execute.Transport = channels
	if o.transport != nil {
		transport = o.transport
	}

	bus := event.NewBus(logger, o.busWorkers)
	tracker := task.New()
	engine := execute.NewEngine(nw, transport, execute.Config{
		MaxAttempts:        cfg.MaxAttempts,
		MaxNodesPerRequest: cfg.MaxNodesPerRequest,
		RequestTimeout:     cfg.RequestTimeout,
		GrpcDeadline:       cfg.GrpcDeadline,
	}, execute.WithLogger(logger), execute.WithMetrics(o.recorder), execute.WithPublisher(bus), execute.WithTracker(tracker))

	c := &Client{
		logger:   logger,
		network:  nw,
		channels: channels,
		engine:   engine,
		tracker:  tracker,
		bus:      bus,
	}

	if err := c.applyNetworkSource(cfg); err != nil {
		_ = channels.CloseAll()
		return nil, err
	}

	id, key, err := cfg.OperatorKey()
	if err != nil {
		_ = channels.CloseAll()
		return nil, err
	}
	if key != nil {
		c.operatorID, c.operatorKey = id, key
	}

	logger.Info(context.Background(), "Client created",
		"nodes", nw.Len(), "ledgerID", string(nw.LedgerID()), "operator", c.operatorID.String())
	return c, nil
}

func (c *Client) applyNetworkSource(cfg config.Config) error {
	switch {
	case len(cfg.Network) > 0:
		nodes, err := cfg.NetworkMap()
		if err != nil {
			return err
		}
		return c.SetNetwork(nodes)
	case cfg.AddressBookFile != "":
		book, err := network.LoadAddressBookFile(cfg.AddressBookFile)
		if err != nil {
			return err
		}
		return c.SetNetworkFromAddressBook(book)
	default:
		p, ok := lookupPreset(cfg.NetworkName)
		if !ok {
			return errors.Errorf("%w: %q", ErrUnknownNetwork, cfg.NetworkName)
		}
		if cfg.LedgerID == "" {
			c.network.SetLedgerID(p.ledgerID)
		}
		return c.SetNetwork(p.nodes)
	}
}

// ForNetwork creates a client for an explicit address to node account map
// with default settings.
func ForNetwork(nodes map[string]ledger.AccountID, opts ...Option) (*Client, error) {
	cfg := config.Default()
	cfg.Network = make(map[string]string, len(nodes))
	for addr, id := range nodes {
		cfg.Network[addr] = id.String()
	}
	return New(cfg, log.NewLogtraceLogger("client"), opts...)
}

// ForMainnet, ForTestnet, ForPreviewnet and ForLocalNode are ForName for
// the built-in networks.
func ForMainnet(opts ...Option) (*Client, error) { return ForName(string(ledger.Mainnet), opts...) }
func ForTestnet(opts ...Option) (*Client, error) { return ForName(string(ledger.Testnet), opts...) }
func ForPreviewnet(opts ...Option) (*Client, error) { return ForName(string(ledger.Previewnet), opts...) }
func ForLocalNode(opts ...Option) (*Client, error) { return ForName(string(ledger.LocalNode), opts...) }

// ForName creates a client for a named network: mainnet, testnet,
// previewnet or local-node.
func ForName(name string, opts ...Option) (*Client, error) {
	if _, ok := lookupPreset(name); !ok {
		return nil, errors.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	cfg := config.Default()
	cfg.NetworkName = name
	return New(cfg, log.NewLogtraceLogger("client"), opts...)
}

// FromConfigFile loads a YAML or JSON configuration and creates a client.
func FromConfigFile(path string, opts ...Option) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(*cfg, log.NewLogtraceLogger("client"), opts...)
}

func (c *Client) Network() *network.Network { return c.network }

// SetNetwork replaces the topology and drops the channels of addresses that
// left the network or whose certificate pin is no longer valid.
func (c *Client) SetNetwork(nodes map[string]ledger.AccountID) error {
	removed, err := c.network.SetNetwork(nodes)
	if err != nil {
		return err
	}
	c.closeChannels(removed)
	return nil
}

// SetNetworkFromAddressBook replaces the topology with the nodes of book. A
// node whose certificate was rejected is dialled afresh with its new pin.
func (c *Client) SetNetworkFromAddressBook(book *network.AddressBook) error {
	removed, err := c.network.SetNetworkFromAddressBook(book)
	if err != nil {
		return err
	}
	c.closeChannels(removed)
	return nil
}

func (c *Client) closeChannels(addresses []string) {
	for _, addr := range addresses {
		if err := c.channels.Forget(addr); err != nil {
			c.logger.Warn(context.Background(), "Failed to close channel", "address", addr, "error", err)
		}
	}
}

// SetOperator sets the account paying for transactions and the key signing
// them.
func (c *Client) SetOperator(id ledger.AccountID, key *keys.PrivateKey) error {
	if id.IsZero() || key == nil {
		return errors.New("operator needs an account id and a key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operatorID, c.operatorKey = id, key
	return nil
}

// Operator returns the operator account and public key.
func (c *Client) Operator() (ledger.AccountID, keys.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.operatorKey == nil {
		return ledger.AccountID{}, keys.PublicKey{}, false
	}
	return c.operatorID, c.operatorKey.PublicKey(), true
}

func (c *Client) updateConfig(fn func(*execute.Config)) {
	cfg := c.engine.Config()
	fn(&cfg)
	c.engine.SetConfig(cfg)
}

func (c *Client) SetMaxAttempts(n int) {
	c.updateConfig(func(cfg *execute.Config) { cfg.MaxAttempts = n })
}

func (c *Client) SetMaxNodesPerRequest(n int) {
	c.updateConfig(func(cfg *execute.Config) { cfg.MaxNodesPerRequest = n })
}

func (c *Client) SetRequestTimeout(d time.Duration) {
	c.updateConfig(func(cfg *execute.Config) { cfg.RequestTimeout = d })
}

func (c *Client) SetGrpcDeadline(d time.Duration) {
	c.updateConfig(func(cfg *execute.Config) { cfg.GrpcDeadline = d })
}

// Freeze freezes b for a fresh set of candidate nodes and signs it with the
// operator key. When b has neither payer nor transaction id the operator
// pays.
func (c *Client) Freeze(b *transaction.Builder) (*transaction.Frozen, error) {
	c.mu.RLock()
	id, key := c.operatorID, c.operatorKey
	c.mu.RUnlock()
	if key == nil {
		return nil, ErrNoOperator
	}
	if b.Payer().IsZero() && b.TransactionID().IsZero() {
		if err := b.SetPayer(id); err != nil {
			return nil, err
		}
	}

	nodes := c.network.SelectCandidates(c.network.FanOutCap(), nil)
	if len(nodes) == 0 {
		return nil, execute.ErrNoEligibleNodes
	}
	f, err := b.Freeze(nodes)
	if err != nil {
		return nil, err
	}
	return f.Sign(key), nil
}

// ExecuteTransaction submits every chunk of f in order.
func (c *Client) ExecuteTransaction(ctx context.Context, f *transaction.Frozen) ([]*execute.Result, error) {
	return c.engine.ExecuteTransaction(ctx, f)
}

// Submit freezes, signs and executes b.
func (c *Client) Submit(ctx context.Context, b *transaction.Builder) ([]*execute.Result, error) {
	f, err := c.Freeze(b)
	if err != nil {
		return nil, err
	}
	return c.ExecuteTransaction(ctx, f)
}

func (c *Client) ExecuteQuery(ctx context.Context, q *execute.QueryRequest) (*execute.Result, error) {
	if q == nil {
		return nil, errors.New("query is nil")
	}
	return c.engine.Execute(ctx, q)
}

// AccountBalance queries the balance of id in tinybars.
func (c *Client) AccountBalance(ctx context.Context, id ledger.AccountID) (uint64, error) {
	res, err := c.ExecuteQuery(ctx, &execute.QueryRequest{
		ServiceName: cryptoService,
		MethodName:  getAccountBalance,
		Body:        marshalBalanceQuery(id),
	})
	if err != nil {
		return 0, err
	}
	return decodeBalance(res.Response)
}

// Ping checks that node answers a free query.
func (c *Client) Ping(ctx context.Context, node ledger.AccountID) error {
	if _, ok := c.network.Node(node); !ok {
		return errors.Errorf("node %s is not registered", node)
	}
	_, err := c.ExecuteQuery(ctx, &execute.QueryRequest{
		ServiceName: cryptoService,
		MethodName:  getAccountBalance,
		Body:        marshalBalanceQuery(node),
		Nodes:       []ledger.AccountID{node},
	})
	return err
}

// PingAll pings every registered node and returns the failures joined.
func (c *Client) PingAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(pingConcurrency)
	for _, id := range c.network.NodeIDs() {
		g.Go(func() error {
			if err := c.Ping(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, errors.Wrap(err, "ping "+id.String()))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// SubscribeToEvents registers a handler for specific event types
func (c *Client) SubscribeToEvents(eventType event.EventType, handler event.Handler) {
	c.logger.Debug(context.Background(), "Subscribing to events", "eventType", eventType)
	c.bus.Subscribe(eventType, handler)
}

// SubscribeToAllEvents registers a handler for all events
func (c *Client) SubscribeToAllEvents(handler event.Handler) {
	c.logger.Debug(context.Background(), "Subscribing to all events")
	c.bus.SubscribeAll(handler)
}

// InFlight lists the executions currently running, keyed by request kind.
func (c *Client) InFlight() map[string][]string {
	return c.tracker.Snapshot()
}

// Close waits for event handlers and releases every channel. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.bus.Close()
		c.closeErr = c.channels.CloseAll()
	})
	return c.closeErr
}
