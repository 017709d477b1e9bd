package session

import (
	"context"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/ippreq"
)

// Target names a printer or class, or gives its URI directly. Exactly one
// of Name and URI is set.
type Target struct {
	Name string
	URI  string
}

// Named is the target for a printer or class name.
func Named(name string) Target {
	return Target{Name: name}
}

func (t Target) check(op string) error {
	switch {
	case t.Name != "" && t.URI != "":
		return ipperr.Invalid(op, "name,uri", "only one of these parameters may be given")
	case t.Name == "" && t.URI == "":
		return ipperr.Invalid(op, "name,uri", "one of these parameters is required")
	}
	return nil
}

// buildFunc builds the request for one target URI. class is set on the
// retry so that printer operations can switch to their class counterpart.
type buildFunc func(uri string, class bool) *ippreq.Builder

// sendTarget sends the request built for the printer URI of t.Name and, if
// the server answers client-error-not-possible, rebuilds it for the class
// URI and sends it once more. An explicit URI is tried once.
func (s *Session) sendTarget(ctx context.Context, op goipp.Op, t Target, build buildFunc) (*goipp.Message, error) {
	if err := t.check(op.String()); err != nil {
		return nil, err
	}
	if t.URI != "" {
		return s.do(ctx, build(t.URI, false))
	}
	resp, err := s.do(ctx, build(ippreq.PrinterURI(t.Name), false))
	if !ipperr.IsStatus(err, goipp.StatusErrorNotPossible) {
		return resp, err
	}
	s.metrics.RecordRetry()
	s.log.Debug().Str("op", op.String()).Str("name", t.Name).Msg("retrying against class uri")
	return s.do(ctx, build(ippreq.ClassURI(t.Name), true))
}

// simpleTarget sends op with nothing but the target URI. classOp, when
// non-zero, replaces op on the class retry.
func (s *Session) simpleTarget(ctx context.Context, op, classOp goipp.Op, name string, fill func(b *ippreq.Builder)) error {
	_, err := s.sendTarget(ctx, op, Named(name), func(uri string, class bool) *ippreq.Builder {
		use := op
		if class && classOp != 0 {
			use = classOp
		}
		b := s.newRequest(use).PrinterURI(uri)
		if fill != nil {
			fill(b)
		}
		return b
	})
	return err
}
