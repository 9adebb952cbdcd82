//go:generate mockgen -source=transport.go -destination=mocks/transport_mock.go -package=mocks
package execute

import (
	"context"
	"time"

	"github.com/ledgerlink/ledger-sdk/sdk/channel"
)

// Transport sends one request to one node. *channel.Manager implements it.
type Transport interface {
	Invoke(ctx context.Context, target channel.Target, service, method string, req []byte, deadline time.Time) ([]byte, error)
}

var _ Transport = (*channel.Manager)(nil)
