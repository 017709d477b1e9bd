// Package ipperr holds the error taxonomy shared by the request builder,
// the transport and the session layer.
package ipperr

import (
	"errors"
	"fmt"
	"net/http"

	goipp "github.com/OpenPrinting/goipp"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindProtocol   Kind = "protocol"
	KindResource   Kind = "resource"
)

var (
	ErrNotOpen       = errors.New("session is not open")
	ErrSessionBusy   = errors.New("session already has an operation in flight")
	ErrConnectFailed = errors.New("connect failed")
	ErrAuthCancelled = errors.New("authentication cancelled")
	ErrNoResponse    = errors.New("no response from server")
)

// ValidationError reports malformed or conflicting caller parameters. It is
// always raised before any network activity.
type ValidationError struct {
	Op     string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Reason
	if e.Param != "" {
		msg = fmt.Sprintf("%s: %s", e.Param, e.Reason)
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ValidationError) Kind() Kind { return KindValidation }

func Invalid(op, param, format string, args ...any) error {
	return &ValidationError{Op: op, Param: param, Reason: fmt.Sprintf(format, args...)}
}

// TransportError carries the HTTP-level status of a failed transport call.
// Status is zero when no HTTP exchange happened (dial failure, I/O error).
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	status := ""
	if e.Status != 0 {
		status = fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	switch {
	case e.Err != nil && status != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, status)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *TransportError) Kind() Kind { return KindTransport }

// ProtocolError carries the IPP status of a response above the ok range.
type ProtocolError struct {
	Op      string
	Status  goipp.Status
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Op == "" {
		return fmt.Sprintf("ipp status 0x%04x: %s", int(e.Status), msg)
	}
	return fmt.Sprintf("%s: ipp status 0x%04x: %s", e.Op, int(e.Status), msg)
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProtocolError) Kind() Kind { return KindProtocol }

// ResourceError reports exhaustion of a bounded resource such as the session
// registry.
type ResourceError struct {
	Resource string
	Limit    int
}

func (e *ResourceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s exhausted (limit %d)", e.Resource, e.Limit)
}

func (e *ResourceError) Kind() Kind { return KindResource }

func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStatus reports whether err is a ProtocolError with the given IPP status.
func IsStatus(err error, status goipp.Status) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Status == status
}

// HTTPStatus returns the HTTP status carried by a TransportError, or 0.
func HTTPStatus(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
