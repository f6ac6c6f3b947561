package wattbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind categorizes failures so callers can decide between retrying,
// reporting staleness or surfacing the error to a user.
type ErrorKind int

const (
	// KindConnect covers unreachable hosts, timeouts and TLS failures.
	KindConnect ErrorKind = iota + 1
	// KindAuth means credentials were rejected or the session could not be restored.
	KindAuth
	// KindParse means the status response had an unrecognized shape.
	KindParse
	// KindInvalidOutlet means the outlet index is outside the known range.
	KindInvalidOutlet
	// KindCommand means the device rejected or timed out a control request.
	KindCommand
	// KindUnsupported means the firmware or configuration lacks the feature.
	KindUnsupported
	// KindNotReady means no poll has succeeded yet.
	KindNotReady
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect error"
	case KindAuth:
		return "auth error"
	case KindParse:
		return "parse error"
	case KindInvalidOutlet:
		return "invalid outlet"
	case KindCommand:
		return "command error"
	case KindUnsupported:
		return "unsupported"
	case KindNotReady:
		return "not ready"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is. A *DeviceError matches the sentinel of its kind.
var (
	ErrConnect       = &DeviceError{Kind: KindConnect}
	ErrAuth          = &DeviceError{Kind: KindAuth}
	ErrParse         = &DeviceError{Kind: KindParse}
	ErrInvalidOutlet = &DeviceError{Kind: KindInvalidOutlet}
	ErrCommand       = &DeviceError{Kind: KindCommand}
	ErrUnsupported   = &DeviceError{Kind: KindUnsupported}
	ErrNotReady      = &DeviceError{Kind: KindNotReady}
)

// ErrRefreshInProgress is returned by Refresh when another refresh is already
// outstanding. The call was skipped and no request was sent.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// DeviceError is returned by every Client operation that talks to the device.
type DeviceError struct {
	Kind       ErrorKind
	Op         string // e.g. "refresh", "set outlet"
	Outlet     int    // 0 when not outlet specific
	StatusCode int    // HTTP status when one was received
	Msg        string
	Err        error
}

func (e *DeviceError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Outlet > 0 {
			fmt.Fprintf(&b, " %d", e.Outlet)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *DeviceError) Is(target error) bool {
	t, ok := target.(*DeviceError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newError(kind ErrorKind, op string, err error, format string, args ...any) *DeviceError {
	return &DeviceError{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// connectError classifies a transport failure. Errors that are already a
// *DeviceError pass through unchanged.
func connectError(op string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	msg := "request failed"
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		msg = "timed out"
	}
	return &DeviceError{Kind: KindConnect, Op: op, Msg: msg, Err: err}
}

func unexpectedStatus(op string, res *response) error {
	return &DeviceError{Kind: KindConnect, Op: op, StatusCode: res.StatusCode, Msg: "unexpected status"}
}
