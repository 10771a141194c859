package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds connection-scoped logging context carried in a
// context.Context; the *Ctx logging functions add its non-empty fields to
// every line they write.
type LogContext struct {
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	Special    string    // special-message name (ConnectionRequest, ZoneRequest, ...)
	Field      string    // field name of the object update being processed
	RemoteAddr string    // client TCP remote address
	OID        string    // object ID of the connection's identity, once known
	Zone       uint32    // current zone, once joined
	StartTime  time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection.
func NewLogContext(remoteAddr string) *LogContext {
	return &LogContext{
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithSpecial returns a copy with the special-message name set
func (lc *LogContext) WithSpecial(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Special = name
	}
	return clone
}

// WithField returns a copy with the field name set
func (lc *LogContext) WithField(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Field = name
	}
	return clone
}

// WithIdentity returns a copy with the object ID set
func (lc *LogContext) WithIdentity(oid string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OID = oid
	}
	return clone
}

// WithZone returns a copy with the zone set
func (lc *LogContext) WithZone(zone uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Zone = zone
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
