package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/require"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ipperr"
)

// fakeTransport answers requests from handler and counts every call that
// would have reached the network.
type fakeTransport struct {
	mu        sync.Mutex
	next      cupsclient.Handle
	open      map[cupsclient.Handle]bool
	calls     int
	requests  []*goipp.Message
	resources []string
	bodies    [][]byte
	files     map[string][]byte
	password  cupsclient.PasswordFunc

	connectErr error
	handler    func(req *goipp.Message) *goipp.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: map[cupsclient.Handle]bool{}, files: map[string][]byte{}}
}

func (f *fakeTransport) Connect(ctx context.Context, host string, port int, enc cupsclient.Encryption) (cupsclient.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return 0, f.connectErr
	}
	f.next++
	f.open[f.next] = true
	return f.next, nil
}

func (f *fakeTransport) Close(h cupsclient.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, h)
	return nil
}

func (f *fakeTransport) Do(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string) (*goipp.Message, error) {
	return f.DoFile(ctx, h, req, resource, nil)
}

func (f *fakeTransport) DoFile(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string, data io.ReadSeeker) (*goipp.Message, error) {
	var body []byte
	if data != nil {
		b, err := io.ReadAll(data)
		if err != nil {
			return nil, err
		}
		body = b
	}
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.resources = append(f.resources, resource)
	f.bodies = append(f.bodies, body)
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return response(goipp.StatusOk), nil
	}
	return handler(req), nil
}

func (f *fakeTransport) DoReceive(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string, w io.Writer) (*goipp.Message, error) {
	resp, err := f.DoFile(ctx, h, req, resource, nil)
	if err != nil {
		return nil, err
	}
	if goipp.Status(resp.Code) == goipp.StatusOk {
		_, _ = w.Write([]byte("*PPD-Adobe: \"4.3\"\n"))
	}
	return resp, nil
}

func (f *fakeTransport) GetFile(ctx context.Context, h cupsclient.Handle, resource string, w io.Writer) error {
	f.mu.Lock()
	f.calls++
	f.resources = append(f.resources, resource)
	data, ok := f.files[resource]
	f.mu.Unlock()
	if !ok {
		return &ipperr.TransportError{Op: "get " + resource, Status: 404}
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeTransport) PutFile(ctx context.Context, h cupsclient.Handle, resource string, r io.ReadSeeker) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.resources = append(f.resources, resource)
	f.files[resource] = data
	return nil
}

func (f *fakeTransport) SetPasswordFunc(fn cupsclient.PasswordFunc) {
	f.mu.Lock()
	f.password = fn
	f.mu.Unlock()
}

// challenge plays a 401 for the connection h through the installed
// password function.
func (f *fakeTransport) challenge(h cupsclient.Handle) (string, error) {
	f.mu.Lock()
	fn := f.password
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("no password func")
	}
	pw, ok := fn("Password for tester on localhost? ", h, "POST", "/admin/")
	if !ok {
		return "", ipperr.ErrAuthCancelled
	}
	return pw, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) request(i int) *goipp.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func response(status goipp.Status, groups ...goipp.Group) *goipp.Message {
	op := goipp.Group{Tag: goipp.TagOperationGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")),
		goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-us")),
	}}
	return goipp.NewMessageWithGroups(goipp.DefaultVersion, goipp.Code(status), 1, append(goipp.Groups{op}, groups...))
}

func withStatusMessage(msg *goipp.Message, text string) *goipp.Message {
	msg.Groups[0].Attrs.Add(goipp.MakeAttribute("status-message", goipp.TagText, goipp.String(text)))
	return msg
}

func printerGroup(name string, extra ...goipp.Attribute) goipp.Group {
	attrs := goipp.Attributes{
		goipp.MakeAttribute("printer-name", goipp.TagName, goipp.String(name)),
		goipp.MakeAttribute("printer-state", goipp.TagEnum, goipp.Integer(3)),
	}
	return goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: append(attrs, extra...)}
}

func opAttr(req *goipp.Message, name string) string {
	for _, a := range req.Operation {
		if a.Name == name && len(a.Values) > 0 {
			return a.Values[0].V.String()
		}
	}
	return ""
}

func groupAttr(attrs goipp.Attributes, name string) (goipp.Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return goipp.Attribute{}, false
}

func openTest(t *testing.T, ft *fakeTransport, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithServer("localhost"),
		WithPort(631),
		WithUser("tester"),
		WithTransport(ft),
		WithRegistry(NewRegistry(8)),
	}
	s, err := Open(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func bodyOf(ft *fakeTransport, i int) []byte {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return bytes.Clone(ft.bodies[i])
}
