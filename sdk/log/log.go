// Package log defines the logger the SDK packages accept. Callers plug in
// their own implementation or use one of the two provided here.
package log

import (
	"context"
	"fmt"

	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
)

// Logger is a leveled key/value logger. keysAndValues alternate key, value.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...interface{})
	Info(ctx context.Context, msg string, keysAndValues ...interface{})
	Warn(ctx context.Context, msg string, keysAndValues ...interface{})
	Error(ctx context.Context, msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...interface{}) {}
func (noopLogger) Info(context.Context, string, ...interface{})  {}
func (noopLogger) Warn(context.Context, string, ...interface{})  {}
func (noopLogger) Error(context.Context, string, ...interface{}) {}

type logtraceLogger struct {
	module string
}

// NewLogtraceLogger returns a Logger that forwards to pkg/logtrace, tagging
// every entry with the given module name.
func NewLogtraceLogger(module string) Logger {
	return &logtraceLogger{module: module}
}

func (l *logtraceLogger) Debug(ctx context.Context, msg string, kv ...interface{}) {
	logtrace.Debug(ctx, msg, l.fields(kv))
}

func (l *logtraceLogger) Info(ctx context.Context, msg string, kv ...interface{}) {
	logtrace.Info(ctx, msg, l.fields(kv))
}

func (l *logtraceLogger) Warn(ctx context.Context, msg string, kv ...interface{}) {
	logtrace.Warn(ctx, msg, l.fields(kv))
}

func (l *logtraceLogger) Error(ctx context.Context, msg string, kv ...interface{}) {
	logtrace.Error(ctx, msg, l.fields(kv))
}

func (l *logtraceLogger) fields(kv []interface{}) logtrace.Fields {
	return KVToFields(l.module, kv)
}

// KVToFields converts alternating key/value pairs to logtrace fields. A
// trailing key without a value is kept under "!BADKEY".
func KVToFields(module string, kv []interface{}) logtrace.Fields {
	fields := logtrace.Fields{}
	if module != "" {
		fields[logtrace.FieldModule] = module
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			fields["!BADKEY"] = key
			break
		}
		fields[key] = kv[i+1]
	}
	return fields
}
