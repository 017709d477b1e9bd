package session

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ipperr"
)

// GetPPD downloads the PPD of a printer queue into a temporary file and
// returns its path. The caller removes the file.
func (s *Session) GetPPD(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ipperr.Invalid("get-ppd", "name", "is required")
	}
	resource := "/printers/" + url.PathEscape(name) + ".ppd"
	return tempFile(func(f *os.File) error {
		return s.GetFile(ctx, resource, f)
	})
}

// GetServerPPD fetches a driver PPD by its ppd-name (see GetPPDs) into a
// temporary file and returns its path. The caller removes the file.
func (s *Session) GetServerPPD(ctx context.Context, ppdName string) (string, error) {
	if strings.TrimSpace(ppdName) == "" {
		return "", ipperr.Invalid(goipp.OpCupsGetPpd.String(), "ppd-name", "is required")
	}
	b := s.newRequest(goipp.OpCupsGetPpd).Operation("ppd-name", goipp.TagName, ppdName)
	return tempFile(func(f *os.File) error {
		_, err := s.send(ctx, b, s.receiveInto(f))
		return err
	})
}

func (s *Session) receiveInto(w io.Writer) sendFunc {
	return func(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string) (*goipp.Message, error) {
		return s.transport.DoReceive(ctx, h, req, resource, w)
	}
}

// GetFile downloads a server resource such as "/admin/conf/cupsd.conf".
func (s *Session) GetFile(ctx context.Context, resource string, w io.Writer) error {
	if err := checkResource("get", resource); err != nil {
		return err
	}
	return s.transfer("get", resource, func(h cupsclient.Handle) error {
		return s.transport.GetFile(ctx, h, resource, w)
	})
}

// PutFile uploads r to a server resource.
func (s *Session) PutFile(ctx context.Context, resource string, r io.ReadSeeker) error {
	if err := checkResource("put", resource); err != nil {
		return err
	}
	if r == nil {
		return ipperr.Invalid("put", "file", "is required")
	}
	return s.transfer("put", resource, func(h cupsclient.Handle) error {
		return s.transport.PutFile(ctx, h, resource, r)
	})
}

// transfer runs a plain HTTP exchange the way send runs an IPP one.
func (s *Session) transfer(op, resource string, fn func(h cupsclient.Handle) error) error {
	h, err := s.openHandle()
	if err != nil {
		return err
	}
	start := time.Now()
	if busy := s.blocking(func() { err = fn(h) }); busy != nil {
		s.metrics.ObserveCall(op, "busy", 0)
		return busy
	}
	s.metrics.ObserveCall(op, outcome(err), time.Since(start))
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Str("resource", resource).Msg("file transfer failed")
	}
	return err
}

func checkResource(op, resource string) error {
	if !strings.HasPrefix(resource, "/") {
		return ipperr.Invalid(op, "resource", "must be an absolute path, got %q", resource)
	}
	return nil
}

// tempFile runs fill on a new temporary file and returns its path, removing
// the file if fill fails.
func tempFile(fill func(f *os.File) error) (string, error) {
	f, err := os.CreateTemp("", "cupsbridge-*.ppd")
	if err != nil {
		return "", err
	}
	err = fill(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
