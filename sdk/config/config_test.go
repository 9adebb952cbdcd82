package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

const sampleYAML = `
network:
  127.0.0.1:50211: "0.0.3"
  node1.example.com:50212: "0.0.4"
ledger_id: local-node
max_attempts: 5
min_backoff: 100ms
max_backoff: 2s
grpc_deadline: 3s
log:
  level: debug
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "ledger.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"127.0.0.1:50211":         "0.0.3",
		"node1.example.com:50212": "0.0.4",
	}, cfg.Network)
	assert.Equal(t, "local-node", cfg.LedgerID)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.MinBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3*time.Second, cfg.GrpcDeadline)
	assert.Equal(t, "debug", cfg.Log.Level)

	// unset keys fall back to defaults
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultSecurePort, cfg.SecurePort)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)

	nodes, err := cfg.NetworkMap()
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAccountID(4), nodes["node1.example.com:50212"])
}

func TestLoadEnvOverrides(t *testing.T) {
	key, err := keys.GeneratePrivateKey(keys.Ed25519)
	require.NoError(t, err)

	t.Setenv("LEDGER_MAX_ATTEMPTS", "7")
	t.Setenv("LEDGER_OPERATOR_ACCOUNT_ID", "0.0.1001")
	t.Setenv("LEDGER_OPERATOR_PRIVATE_KEY", key.String())

	cfg, err := Load(writeFile(t, "ledger.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxAttempts)

	id, got, err := cfg.OperatorKey()
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAccountID(1001), id)
	assert.True(t, key.PublicKey().Equal(got.PublicKey()))
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"network": {"10.0.0.1:50211": "0.0.3", "10.0.0.2:50211": "0.0.4"},
		"max_nodes_per_request": 2,
		"request_timeout": "30s"
	}`))
	require.NoError(t, err)
	assert.Len(t, cfg.Network, 2)
	assert.Equal(t, 2, cfg.MaxNodesPerRequest)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
}

func TestSaveThenLoad(t *testing.T) {
	key, err := keys.GeneratePrivateKey(keys.ECDSASecp256k1)
	require.NoError(t, err)

	cfg := Default()
	cfg.NetworkName = "local-node"
	cfg.Operator = OperatorConfig{AccountID: "0.0.2", PrivateKey: key.String(), KeyType: "ecdsa"}
	cfg.MinBackoff = 500 * time.Millisecond

	path := filepath.Join(t.TempDir(), "nested", "ledger.yaml")
	require.NoError(t, Save(path, &cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Network = map[string]string{"127.0.0.1:50211": "0.0.3"}
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no network source", func(c *Config) { c.Network = nil }},
		{"address without port", func(c *Config) { c.Network = map[string]string{"127.0.0.1": "0.0.3"} }},
		{"bad account", func(c *Config) { c.Network = map[string]string{"127.0.0.1:50211": "zero"} }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"negative fan out", func(c *Config) { c.MaxNodesPerRequest = -1 }},
		{"inverted backoff", func(c *Config) { c.MaxBackoff = c.MinBackoff / 2 }},
		{"zero deadline", func(c *Config) { c.GrpcDeadline = 0 }},
		{"bad port", func(c *Config) { c.SecurePort = 70000 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"operator without key", func(c *Config) { c.Operator.AccountID = "0.0.2" }},
		{"operator bad key", func(c *Config) {
			c.Operator.AccountID = "0.0.2"
			c.Operator.PrivateKey = "zz"
		}},
		{"operator bad key type", func(c *Config) {
			c.Operator.AccountID = "0.0.2"
			c.Operator.PrivateKey = "00"
			c.Operator.KeyType = "rsa"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestOperatorKeyAbsent(t *testing.T) {
	id, key, err := Default().OperatorKey()
	require.NoError(t, err)
	assert.True(t, id.IsZero())
	assert.Nil(t, key)
}
