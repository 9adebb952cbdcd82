// Package config holds the client settings: which network to talk to, the
// operator that pays for transactions and the retry limits.
package config

import (
	"net"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

type OperatorConfig struct {
	AccountID  string `mapstructure:"account_id" yaml:"account_id" json:"account_id"`
	PrivateKey string `mapstructure:"private_key" yaml:"private_key" json:"private_key"`
	KeyType    string `mapstructure:"key_type" yaml:"key_type" json:"key_type"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

// Config is the client configuration. Exactly one network source is used,
// in this order: Network, AddressBookFile, NetworkName.
type Config struct {
	// Network maps node address (host:port) to node account id ("0.0.3").
	Network         map[string]string `mapstructure:"network" yaml:"network,omitempty" json:"network,omitempty"`
	NetworkName     string            `mapstructure:"network_name" yaml:"network_name,omitempty" json:"network_name,omitempty"`
	AddressBookFile string            `mapstructure:"address_book_file" yaml:"address_book_file,omitempty" json:"address_book_file,omitempty"`
	LedgerID        string            `mapstructure:"ledger_id" yaml:"ledger_id,omitempty" json:"ledger_id,omitempty"`

	Operator OperatorConfig `mapstructure:"operator" yaml:"operator" json:"operator"`

	MaxAttempts        int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	MaxNodesPerRequest int           `mapstructure:"max_nodes_per_request" yaml:"max_nodes_per_request" json:"max_nodes_per_request"`
	MinBackoff         time.Duration `mapstructure:"min_backoff" yaml:"min_backoff" json:"min_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	GrpcDeadline       time.Duration `mapstructure:"grpc_deadline" yaml:"grpc_deadline" json:"grpc_deadline"`
	SecurePort         int           `mapstructure:"secure_port" yaml:"secure_port" json:"secure_port"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`

	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`
}

// Default returns a configuration with every limit set and no network.
func Default() Config {
	return Config{
		Operator:       OperatorConfig{KeyType: DefaultKeyType},
		MaxAttempts:    DefaultMaxAttempts,
		MinBackoff:     DefaultMinBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		RequestTimeout: DefaultRequestTimeout,
		GrpcDeadline:   DefaultGrpcDeadline,
		SecurePort:     DefaultSecurePort,
		UserAgent:      DefaultUserAgent,
		Log:            LogConfig{Level: DefaultLogLevel},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c Config) Validate() error {
	if len(c.Network) == 0 && c.NetworkName == "" && c.AddressBookFile == "" {
		return errors.New("one of network, network_name or address_book_file is required")
	}
	if _, err := c.NetworkMap(); err != nil {
		return err
	}
	if c.MaxAttempts <= 0 {
		return errors.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.MaxNodesPerRequest < 0 {
		return errors.Errorf("max_nodes_per_request must not be negative, got %d", c.MaxNodesPerRequest)
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		return errors.Errorf("backoff range [%s, %s] is invalid", c.MinBackoff, c.MaxBackoff)
	}
	if c.RequestTimeout <= 0 || c.GrpcDeadline <= 0 {
		return errors.New("request_timeout and grpc_deadline must be positive")
	}
	if c.SecurePort <= 0 || c.SecurePort > 65535 {
		return errors.Errorf("secure_port %d out of range", c.SecurePort)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if _, _, err := c.OperatorKey(); err != nil {
		return err
	}
	return nil
}

// NetworkMap parses Network.
func (c Config) NetworkMap() (map[string]ledger.AccountID, error) {
	out := make(map[string]ledger.AccountID, len(c.Network))
	for addr, account := range c.Network {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, errors.Wrap(err, "network address "+addr)
		}
		id, err := ledger.ParseAccountID(account)
		if err != nil {
			return nil, errors.Wrap(err, "network account for "+addr)
		}
		out[addr] = id
	}
	return out, nil
}

// HasOperator reports whether an operator is configured.
func (c Config) HasOperator() bool {
	return c.Operator.AccountID != "" || c.Operator.PrivateKey != ""
}

// OperatorKey parses the operator. It returns a zero id and nil key when no
// operator is configured; setting only one of the two fields is an error.
func (c Config) OperatorKey() (ledger.AccountID, *keys.PrivateKey, error) {
	if !c.HasOperator() {
		return ledger.AccountID{}, nil, nil
	}
	if c.Operator.AccountID == "" || c.Operator.PrivateKey == "" {
		return ledger.AccountID{}, nil, errors.New("operator needs both account_id and private_key")
	}
	id, err := ledger.ParseAccountID(c.Operator.AccountID)
	if err != nil {
		return ledger.AccountID{}, nil, errors.Wrap(err, "operator.account_id")
	}
	alg, err := keys.ParseAlgorithm(c.Operator.KeyType)
	if err != nil {
		return ledger.AccountID{}, nil, errors.Wrap(err, "operator.key_type")
	}
	key, err := keys.PrivateKeyFromString(alg, c.Operator.PrivateKey)
	if err != nil {
		return ledger.AccountID{}, nil, errors.Wrap(err, "operator.private_key")
	}
	return id, key, nil
}
