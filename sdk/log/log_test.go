package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
)

func TestKVToFields(t *testing.T) {
	tests := []struct {
		name string
		kv   []interface{}
		want logtrace.Fields
	}{
		{
			name: "pairs",
			kv:   []interface{}{"node", "0.0.3", "attempt", 2},
			want: logtrace.Fields{logtrace.FieldModule: "engine", "node": "0.0.3", "attempt": 2},
		},
		{
			name: "dangling key",
			kv:   []interface{}{"node"},
			want: logtrace.Fields{logtrace.FieldModule: "engine", "!BADKEY": "node"},
		},
		{
			name: "non string key",
			kv:   []interface{}{7, true},
			want: logtrace.Fields{logtrace.FieldModule: "engine", "7": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KVToFields("engine", tt.kv))
		})
	}
}

func TestLogtraceLoggerForwards(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logtrace.SetLogger(zap.New(core))
	t.Cleanup(func() { logtrace.SetLogger(nil) })

	l := NewLogtraceLogger("channel")
	l.Info(context.Background(), "channel created", "address", "127.0.0.1:50211")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "channel", entries[0].ContextMap()[logtrace.FieldModule])
		assert.Equal(t, "127.0.0.1:50211", entries[0].ContextMap()["address"])
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	l.Debug(context.Background(), "x", "k", "v")
	l.Error(context.Background(), "x")
}
