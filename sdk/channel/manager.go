// Package channel owns the gRPC connections to ledger nodes: one shared
// channel per node address, created on first use, with certificate pinning
// on the secure port.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/metrics"
	"github.com/ledgerlink/ledger-sdk/sdk/log"
)

const (
	DefaultUserAgent      = "ledger-sdk-go"
	DefaultProbeTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 8 * 1024 * 1024

	userAgentHeader = "x-user-agent"
)

// ErrManagerClosed is returned by GetChannel after CloseAll.
var ErrManagerClosed = errors.New("channel manager is closed")

// Target identifies the node endpoint a channel is opened to.
type Target struct {
	Address string
	// CertHash pins the node certificate. Raw SHA-384 or hex encoded.
	CertHash []byte
	Secure   bool
}

// Channel is a gRPC connection bound to one node address. It is safe for
// concurrent use by many calls.
type Channel struct {
	address string
	secure  bool
	pin     []byte
	conn    *grpc.ClientConn

	badCert atomic.Bool
}

func (c *Channel) Address() string { return c.address }
func (c *Channel) Secure() bool    { return c.secure }

// Pin returns the certificate hash the channel verifies against.
func (c *Channel) Pin() []byte { return append([]byte(nil), c.pin...) }

// State returns the connectivity state of the underlying connection.
func (c *Channel) State() connectivity.State { return c.conn.GetState() }

// CertificateRejected reports whether a handshake failed the pin check.
func (c *Channel) CertificateRejected() bool { return c.badCert.Load() }

// Options tune the connections created by a Manager.
type Options struct {
	UserAgent      string
	Keepalive      keepalive.ClientParameters
	ProbeTimeout   time.Duration
	MaxRecvMsgSize int
	MaxSendMsgSize int
	DialOptions    []grpc.DialOption
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		UserAgent: DefaultUserAgent,
		Keepalive: keepalive.ClientParameters{
			Time:                100 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		},
		ProbeTimeout:   DefaultProbeTimeout,
		MaxRecvMsgSize: DefaultMaxMessageSize,
		MaxSendMsgSize: DefaultMaxMessageSize,
	}
}

// Option configures a Manager.
type Option func(*Manager)

func WithUserAgent(ua string) Option {
	return func(m *Manager) { m.opts.UserAgent = ua }
}

func WithKeepalive(p keepalive.ClientParameters) Option {
	return func(m *Manager) { m.opts.Keepalive = p }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.opts.ProbeTimeout = d }
}

// WithDialOptions appends extra dial options to every connection.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(m *Manager) { m.opts.DialOptions = append(m.opts.DialOptions, opts...) }
}

// WithMetrics records the number of open channels.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// Manager caches one Channel per address.
type Manager struct {
	logger  log.Logger
	opts    *Options
	metrics *metrics.Recorder

	mu       sync.Mutex
	channels map[string]*Channel
	closed   bool

	group singleflight.Group
	// certificate hashes learned on first contact with unpinned nodes
	pins *cache.Cache
}

// NewManager creates an empty channel cache.
func NewManager(logger log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	m := &Manager{
		logger:   logger,
		opts:     DefaultOptions(),
		channels: map[string]*Channel{},
		pins:     cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetChannel returns the cached channel for target.Address, creating it if
// needed. Concurrent first calls for one address share a single creation.
func (m *Manager) GetChannel(ctx context.Context, target Target) (*Channel, error) {
	if ch, err := m.cached(target.Address); ch != nil || err != nil {
		return ch, err
	}

	v, err, _ := m.group.Do(target.Address, func() (interface{}, error) {
		if ch, err := m.cached(target.Address); ch != nil || err != nil {
			return ch, err
		}
		ch, err := m.dial(ctx, target)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			_ = ch.conn.Close()
			return nil, ErrManagerClosed
		}
		m.channels[target.Address] = ch
		m.metrics.ChannelOpened()
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Channel), nil
}

func (m *Manager) cached(address string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	return m.channels[address], nil
}

func (m *Manager) dial(ctx context.Context, target Target) (*Channel, error) {
	ch := &Channel{address: target.Address, secure: target.Secure}

	creds := insecure.NewCredentials()
	if target.Secure {
		pin, err := m.resolvePin(ctx, target)
		if err != nil {
			return nil, err
		}
		ch.pin = pin
		creds = credentials.NewTLS(pinnedTLSConfig(pin, func() { ch.badCert.Store(true) }))
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(m.opts.Keepalive),
		grpc.WithUserAgent(m.opts.UserAgent),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(m.opts.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(m.opts.MaxSendMsgSize),
		),
	}
	dialOpts = append(dialOpts, m.opts.DialOptions...)

	conn, err := grpc.NewClient(target.Address, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create channel to "+target.Address)
	}
	ch.conn = conn

	m.logger.Debug(ctx, "Channel created", "address", target.Address, "secure", target.Secure)
	return ch, nil
}

// resolvePin returns the configured pin, a previously learned one, or
// learns one now by fetching the node's certificate.
func (m *Manager) resolvePin(ctx context.Context, target Target) ([]byte, error) {
	pin, err := normalizePin(target.CertHash)
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Address: target.Address, BadCertificate: true, Err: err}
	}
	if pin != nil {
		return pin, nil
	}
	if learned, ok := m.LearnedPin(target.Address); ok {
		return learned, nil
	}

	pin, err = fetchCertificate(ctx, target.Address, m.opts.ProbeTimeout)
	if err != nil {
		te := classify(ctx, target.Address, err)
		if te.Kind == KindUnknown {
			te.Kind = KindUnavailable
		}
		return nil, te
	}
	m.pins.Set(target.Address, pin, cache.NoExpiration)
	m.logger.Info(ctx, "Trusting certificate on first use", "address", target.Address)
	return pin, nil
}

// LearnedPin returns the certificate hash recorded on first contact.
func (m *Manager) LearnedPin(address string) ([]byte, bool) {
	v, ok := m.pins.Get(address)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Send performs one unary call of /proto.<service>/<method> on ch. A zero
// deadline leaves ctx's deadline in place.
func (m *Manager) Send(ctx context.Context, ch *Channel, service, method string, req []byte, deadline time.Time) ([]byte, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, userAgentHeader, m.opts.UserAgent)

	var resp []byte
	err := ch.conn.Invoke(ctx, FullMethod(service, method), req, &resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		te := classify(ctx, ch.address, err)
		if ch.badCert.Load() {
			te.BadCertificate = true
			te.Err = errors.Join(ErrCertificateMismatch, err)
		}
		return nil, te
	}
	return resp, nil
}

// Invoke is GetChannel followed by Send.
func (m *Manager) Invoke(ctx context.Context, target Target, service, method string, req []byte, deadline time.Time) ([]byte, error) {
	ch, err := m.GetChannel(ctx, target)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &TransportError{Kind: KindUnknown, Address: target.Address, Err: err}
	}
	return m.Send(ctx, ch, service, method, req, deadline)
}

// FullMethod returns the gRPC method path for service and method.
func FullMethod(service, method string) string {
	return "/proto." + service + "/" + method
}

// Len is the number of open channels.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// Close releases the channel of address, if any. The learned pin is kept.
func (m *Manager) Close(address string) error {
	m.mu.Lock()
	ch, ok := m.channels[address]
	delete(m.channels, address)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.metrics.ChannelClosed()
	m.logger.Debug(context.Background(), "Channel closed", "address", address)
	return ch.conn.Close()
}

// Forget closes the channel of address and drops any pin learned for it, so
// the next contact dials and pins afresh.
func (m *Manager) Forget(address string) error {
	m.pins.Delete(address)
	return m.Close(address)
}

// CloseAll releases every channel and clears the pin store. The manager
// rejects further GetChannel calls.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	channels := m.channels
	m.channels = map[string]*Channel{}
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for addr, ch := range channels {
		m.metrics.ChannelClosed()
		if err := ch.conn.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close "+addr))
		}
	}
	m.pins.Flush()
	return errors.Join(errs...)
}
