package ipperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
)

func TestKindOfWrappedErrors(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: Invalid("addPrinter", "ppdname", "conflicts with filename"), want: KindValidation},
		{err: fmt.Errorf("wrap: %w", &TransportError{Op: "connect", Err: errors.New("refused")}), want: KindTransport},
		{err: &ProtocolError{Op: "getPrinters", Status: goipp.StatusErrorNotFound}, want: KindProtocol},
		{err: &ResourceError{Resource: "session registry", Limit: 2}, want: KindResource},
		{err: errors.New("plain"), want: ""},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsStatusAndHTTPStatus(t *testing.T) {
	err := fmt.Errorf("outer: %w", &ProtocolError{Status: goipp.StatusErrorNotPossible})
	if !IsStatus(err, goipp.StatusErrorNotPossible) {
		t.Fatalf("expected not-possible status")
	}
	if IsStatus(err, goipp.StatusErrorNotFound) {
		t.Fatalf("unexpected not-found match")
	}
	terr := &TransportError{Op: "request", Status: http.StatusUnauthorized, Err: ErrAuthCancelled}
	if got := HTTPStatus(terr); got != http.StatusUnauthorized {
		t.Fatalf("HTTPStatus = %d", got)
	}
	if !errors.Is(terr, ErrAuthCancelled) {
		t.Fatalf("expected unwrap to ErrAuthCancelled")
	}
}

func TestProtocolErrorMessageFallsBackToStatusName(t *testing.T) {
	err := &ProtocolError{Op: "getJobs", Status: goipp.StatusErrorForbidden}
	if got := err.Error(); got == "" || got == "getJobs: " {
		t.Fatalf("unexpected message %q", got)
	}
	err.Message = "not allowed"
	if got := err.Error(); got != "getJobs: ipp status 0x0401: not allowed" {
		t.Fatalf("unexpected message %q", got)
	}
}
