package logger

import "log/slog"

// Standard field keys for structured logging. Kept consistent across the
// client and server directors so log aggregation can group by them
// regardless of which side emitted the line.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Protocol & Dispatch
	// ========================================================================
	KeySpecial     = "special"      // special-message name: ConnectionRequest, ZoneRequest, ...
	KeyClassNumber = "class"        // class number of the addressed object
	KeyField       = "field"        // field name being packed/unpacked/dispatched
	KeyFieldNumber = "field_number" // wire field number
	KeyKickReason  = "kick_reason"  // KickReason name sent in a Disconnect

	// ========================================================================
	// Identity & Zones
	// ========================================================================
	KeyOID        = "oid"         // object ID, formatted per ObjectID.String()
	KeyOwner      = "owner"       // owning object ID for OwnerSend checks
	KeyZone       = "zone"        // zone ID
	KeyLogin      = "login"       // login name supplied on ConnectionRequest
	KeyRemoteAddr = "remote_addr" // client TCP remote address

	// ========================================================================
	// Sizes & Counts
	// ========================================================================
	KeyBytes      = "bytes"
	KeyFieldCount = "field_count"
	KeyObjectN    = "object_count"

	// ========================================================================
	// Generic
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

func TraceID(id string) slog.Attr          { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr           { return slog.String(KeySpanID, id) }
func Special(name string) slog.Attr        { return slog.String(KeySpecial, name) }
func ClassNumber(n uint16) slog.Attr       { return slog.Uint64(KeyClassNumber, uint64(n)) }
func Field(name string) slog.Attr          { return slog.String(KeyField, name) }
func FieldNumber(n uint16) slog.Attr       { return slog.Uint64(KeyFieldNumber, uint64(n)) }
func KickReasonAttr(name string) slog.Attr { return slog.String(KeyKickReason, name) }
func OID(oid string) slog.Attr             { return slog.String(KeyOID, oid) }
func Owner(oid string) slog.Attr           { return slog.String(KeyOwner, oid) }
func Zone(z uint32) slog.Attr              { return slog.Uint64(KeyZone, uint64(z)) }
func Login(name string) slog.Attr          { return slog.String(KeyLogin, name) }
func RemoteAddr(addr string) slog.Attr     { return slog.String(KeyRemoteAddr, addr) }
func Bytes(n int) slog.Attr                { return slog.Int(KeyBytes, n) }
func FieldCount(n int) slog.Attr           { return slog.Int(KeyFieldCount, n) }
func ObjectCount(n int) slog.Attr          { return slog.Int(KeyObjectN, n) }
func DurationMs(ms float64) slog.Attr      { return slog.Float64(KeyDurationMs, ms) }
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
