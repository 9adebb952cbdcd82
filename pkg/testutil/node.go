// Package testutil provides an in-process ledger node for tests. It speaks
// the same raw-bytes gRPC protocol as real nodes and answers every method
// through a single handler.
package testutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"github.com/ledgerlink/ledger-sdk/sdk/channel"
)

// Handler answers one call. fullMethod is e.g. "/proto.CryptoService/cryptoTransfer".
type Handler func(ctx context.Context, fullMethod string, req []byte) ([]byte, error)

// Call is a request received by a NodeServer.
type Call struct {
	Method    string
	Body      []byte
	UserAgent string
}

// NodeServer is a running in-process node.
type NodeServer struct {
	Address string
	// CertHash is the hex pin of the server certificate when TLS is on.
	CertHash []byte

	server *grpc.Server

	mu      sync.Mutex
	handler Handler
	calls   []Call
}

type nodeConfig struct {
	tls     bool
	cert    *tls.Certificate
	address string
}

// NodeOption configures StartNode.
type NodeOption func(*nodeConfig)

// WithTLS serves with a freshly generated self-signed certificate.
func WithTLS() NodeOption {
	return func(c *nodeConfig) { c.tls = true }
}

// WithCertificate serves TLS with cert.
func WithCertificate(cert tls.Certificate) NodeOption {
	return func(c *nodeConfig) {
		c.tls = true
		c.cert = &cert
	}
}

// WithAddress listens on addr instead of a random loopback port.
func WithAddress(addr string) NodeOption {
	return func(c *nodeConfig) { c.address = addr }
}

// StartNode starts a node, by default on a random loopback port. It is
// stopped at test cleanup.
func StartNode(t testing.TB, handler Handler, opts ...NodeOption) *NodeServer {
	t.Helper()
	cfg := &nodeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	addr := cfg.address
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	n := &NodeServer{Address: lis.Addr().String(), handler: handler}
	serverOpts := []grpc.ServerOption{
		grpc.ForceServerCodec(channel.RawCodec()),
		grpc.UnknownServiceHandler(n.serve),
	}
	if cfg.tls {
		cert := cfg.cert
		if cert == nil {
			generated, err := SelfSignedCertificate()
			if err != nil {
				t.Fatalf("generate certificate: %v", err)
			}
			cert = &generated
		}
		n.CertHash = []byte(hex.EncodeToString(channel.CertificateHash(cert.Certificate[0])))
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		})))
	}

	n.server = grpc.NewServer(serverOpts...)
	go func() { _ = n.server.Serve(lis) }()
	t.Cleanup(n.Stop)
	return n
}

func (n *NodeServer) serve(_ interface{}, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	var req []byte
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	call := Call{Method: method, Body: append([]byte(nil), req...)}
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		if ua := md.Get("x-user-agent"); len(ua) > 0 {
			call.UserAgent = ua[0]
		}
	}

	n.mu.Lock()
	n.calls = append(n.calls, call)
	handler := n.handler
	n.mu.Unlock()

	if handler == nil {
		return stream.SendMsg([]byte{})
	}
	resp, err := handler(stream.Context(), method, req)
	if err != nil {
		return err
	}
	return stream.SendMsg(resp)
}

// SetHandler replaces the handler for subsequent calls.
func (n *NodeServer) SetHandler(h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// Calls returns the requests received so far.
func (n *NodeServer) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// Stop shuts the server down immediately.
func (n *NodeServer) Stop() {
	n.server.Stop()
}

// Respond returns a handler that always answers with resp.
func Respond(resp []byte) Handler {
	return func(context.Context, string, []byte) ([]byte, error) { return resp, nil }
}

// Fail returns a handler that always fails with err.
func Fail(err error) Handler {
	return func(context.Context, string, []byte) ([]byte, error) { return nil, err }
}

// SelfSignedCertificate creates a P-256 certificate for 127.0.0.1.
func SelfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "ledger-node"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
