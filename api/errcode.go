// Package api implements the upstream vdSM-facing method/notification
// dispatch: session gating, per-device routing by dSID, and the
// property-tree getProperty/setProperty bridge. It deliberately carries
// no concrete wire framing (JSON-RPC, Protobuf) — the wire codec is a
// pluggable external; this package is the semantic layer a transport
// adapter sits in front of.
package api

// Code is the upstream API's numeric error-code space,
// unifying the property-tree codes (204/415/403/501) with the
// session-layer ones (400/401/403/404/503/505).
type Code int

const (
	CodeOutOfRange    Code = 204
	CodeInvalidParams Code = 400
	CodeNoSession     Code = 401
	CodeForbidden     Code = 403 // read-only property, or remove refused while present
	CodeUnknownDSID   Code = 404
	CodeTypeMismatch  Code = 415
	CodeUnknownMethod Code = 501
	CodeWrongPeer     Code = 503
	CodeBadAPIVersion Code = 505
)

// Error is a dispatch-layer failure carrying its numeric code, operation,
// and an optional wrapped cause.
type Error struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + e.Msg
	}
	return e.Op
}

func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to CodeUnknownMethod for
// anything that doesn't carry one (there is no generic "internal error"
// code in this API's space; an uncoded failure is treated as a method
// the dispatcher doesn't actually know how to serve).
func Of(err error) Code {
	if err == nil {
		return 0
	}
	type coder interface{ Code() Code }
	if c, ok := err.(coder); ok {
		return c.Code()
	}
	return CodeUnknownMethod
}
