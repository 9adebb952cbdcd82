package channel

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"net"
	"strings"
	"time"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// CertificateHash returns the pin of a DER certificate: the SHA-384 digest
// of its PEM encoding.
func CertificateHash(der []byte) []byte {
	encoded := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	sum := sha512.Sum384(encoded)
	return sum[:]
}

// normalizePin accepts a raw 48-byte digest or its hex form (optionally with
// a 0x prefix, as published in address books).
func normalizePin(pin []byte) ([]byte, error) {
	if len(pin) == 0 {
		return nil, nil
	}
	if len(pin) == sha512.Size384 {
		return pin, nil
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(pin)), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != sha512.Size384 {
		return nil, errors.Errorf("certificate hash is neither a SHA-384 digest nor its hex encoding (%d bytes)", len(pin))
	}
	return raw, nil
}

// pinnedTLSConfig verifies the leaf certificate against pin instead of a CA
// chain. onMismatch runs before the handshake is aborted.
func pinnedTLSConfig(pin []byte, onMismatch func()) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// chain verification is replaced by the pin check below
		InsecureSkipVerify: true, //nolint:gosec
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				onMismatch()
				return ErrCertificateMismatch
			}
			if !bytes.Equal(CertificateHash(rawCerts[0]), pin) {
				onMismatch()
				return ErrCertificateMismatch
			}
			return nil
		},
	}
}

// fetchCertificate performs a bare TLS handshake with address and returns
// the hash of the presented leaf certificate.
func fetchCertificate(ctx context.Context, address string, timeout time.Duration) ([]byte, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, //nolint:gosec
		},
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "probe certificate of "+address)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.Errorf("%s presented no certificate", address)
	}
	return CertificateHash(state.PeerCertificates[0].Raw), nil
}
