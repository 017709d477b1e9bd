// Package cupsclient is the IPP-over-HTTP transport to a CUPS server.
// Connections are identified by opaque handles; a 401 answer is routed to a
// process-wide password callback keyed by that handle.
package cupsclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/rs/zerolog"

	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/logging"
)

const (
	defaultTimeout  = 60 * time.Second
	maxAuthAttempts = 3
)

// Handle identifies one open connection.
type Handle uint64

// PasswordFunc answers an authentication challenge for the connection h.
// Returning false, or an empty password, cancels the request.
type PasswordFunc func(prompt string, h Handle, method, resource string) (string, bool)

type Encryption int

const (
	EncryptIfRequested Encryption = iota
	EncryptNever
	EncryptRequired
	EncryptAlways
)

func (e Encryption) String() string {
	switch e {
	case EncryptNever:
		return "never"
	case EncryptRequired:
		return "required"
	case EncryptAlways:
		return "always"
	default:
		return "ifrequested"
	}
}

func ParseEncryption(v string) (Encryption, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ifrequested", "":
		return EncryptIfRequested, nil
	case "never":
		return EncryptNever, nil
	case "required":
		return EncryptRequired, nil
	case "always":
		return EncryptAlways, nil
	}
	return EncryptIfRequested, ipperr.Invalid("encryption", "", "unknown mode %q", v)
}

func (e Encryption) useTLS() bool {
	return e == EncryptRequired || e == EncryptAlways
}

type conn struct {
	host   string
	port   int
	enc    Encryption
	user   string
	auth   string
	client *http.Client
}

type Transport struct {
	mu       sync.Mutex
	conns    map[Handle]*conn
	next     Handle
	password PasswordFunc

	settings Settings
	log      zerolog.Logger
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
}

type Option func(*Transport)

// WithServer overrides the configured server ("host", "host:port" or a URL).
func WithServer(server string) Option {
	return func(t *Transport) {
		if strings.TrimSpace(server) == "" {
			return
		}
		host, port, useTLS := parseServer(server)
		if host != "" {
			t.settings.Host = host
		}
		if port > 0 {
			t.settings.Port = port
		}
		if useTLS {
			t.settings.Encryption = EncryptAlways
		}
	}
}

func WithUser(user string) Option {
	return func(t *Transport) {
		if strings.TrimSpace(user) != "" {
			t.settings.User = user
		}
	}
}

func WithPassword(password string) Option {
	return func(t *Transport) {
		if password != "" {
			t.settings.Password = password
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.settings.Timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// NewFromConfig builds a transport on the client.conf/environment settings.
func NewFromConfig(opts ...Option) *Transport {
	return New(LoadSettings(), opts...)
}

func New(settings Settings, opts ...Option) *Transport {
	t := &Transport{
		conns:    map[Handle]*conn{},
		settings: settings,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.settings.Host == "" {
		t.settings.Host = "localhost"
	}
	if t.settings.Port == 0 {
		t.settings.Port = defaultIPPPort()
	}
	if t.settings.Timeout == 0 {
		t.settings.Timeout = defaultTimeout
	}
	if t.dial == nil {
		d := &net.Dialer{Timeout: t.settings.Timeout}
		t.dial = d.DialContext
	}
	return t
}

// Settings returns the effective defaults.
func (t *Transport) Settings() Settings { return t.settings }

// SetPasswordFunc installs the process-wide challenge callback.
func (t *Transport) SetPasswordFunc(fn PasswordFunc) {
	t.mu.Lock()
	t.password = fn
	t.mu.Unlock()
}

// Connect checks that the server accepts connections and returns a handle
// for it. Empty host and zero port select the configured defaults.
func (t *Transport) Connect(ctx context.Context, host string, port int, enc Encryption) (Handle, error) {
	if host == "" {
		host = t.settings.Host
	}
	if port == 0 {
		port = t.settings.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	nc, err := t.dial(ctx, "tcp", addr)
	if err != nil {
		return 0, &ipperr.TransportError{Op: "connect", Err: err}
	}
	_ = nc.Close()

	c := &conn{
		host: host,
		port: port,
		enc:  enc,
		user: t.settings.User,
		client: &http.Client{
			Timeout: t.settings.Timeout,
			Transport: logging.AccessTransport(&http.Transport{
				DialContext:     t.dial,
				TLSClientConfig: tlsConfig(t.settings),
			}),
		},
	}
	if t.settings.Password != "" {
		c.auth = basicAuth(c.user, t.settings.Password)
	}

	t.mu.Lock()
	t.next++
	h := t.next
	t.conns[h] = c
	t.mu.Unlock()
	t.log.Debug().Str("addr", addr).Str("encryption", enc.String()).Uint64("handle", uint64(h)).Msg("connected")
	return h, nil
}

func (t *Transport) Close(h Handle) error {
	t.mu.Lock()
	c, ok := t.conns[h]
	delete(t.conns, h)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	c.client.CloseIdleConnections()
	t.log.Debug().Uint64("handle", uint64(h)).Msg("closed")
	return nil
}

func (t *Transport) conn(h Handle) (*conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[h]
	if !ok {
		return nil, ipperr.ErrNotOpen
	}
	return c, nil
}

// User returns the user name requests on h are sent as.
func (t *Transport) User(h Handle) string {
	c, err := t.conn(h)
	if err != nil {
		return t.settings.User
	}
	return c.user
}

func (c *conn) url(resource string) string {
	scheme := "http"
	if c.enc.useTLS() {
		scheme = "https"
	}
	if resource == "" {
		resource = "/"
	}
	return scheme + "://" + net.JoinHostPort(c.host, strconv.Itoa(c.port)) + resource
}

// Do sends an IPP request and decodes the response.
func (t *Transport) Do(ctx context.Context, h Handle, req *goipp.Message, resource string) (*goipp.Message, error) {
	return t.DoFile(ctx, h, req, resource, nil)
}

// DoFile sends an IPP request followed by a document.
func (t *Transport) DoFile(ctx context.Context, h Handle, req *goipp.Message, resource string, data io.ReadSeeker) (*goipp.Message, error) {
	resp, err := t.post(ctx, h, req, resource, data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out := &goipp.Message{}
	if err := out.Decode(resp.Body); err != nil {
		return nil, noResponse(req, err)
	}
	return out, nil
}

// DoReceive sends an IPP request and copies the document that follows the
// response into w.
func (t *Transport) DoReceive(ctx context.Context, h Handle, req *goipp.Message, resource string, w io.Writer) (*goipp.Message, error) {
	resp, err := t.post(ctx, h, req, resource, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out := &goipp.Message{}
	if err := out.Decode(resp.Body); err != nil {
		return nil, noResponse(req, err)
	}
	if w != nil {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return out, &ipperr.TransportError{Op: opName(req), Err: err}
		}
	}
	return out, nil
}

// noResponse reports a reply that did not decode as an IPP message.
func noResponse(req *goipp.Message, err error) error {
	return &ipperr.ProtocolError{Op: opName(req), Status: goipp.StatusErrorInternal, Err: fmt.Errorf("%w: %v", ipperr.ErrNoResponse, err)}
}

func (t *Transport) post(ctx context.Context, h Handle, req *goipp.Message, resource string, data io.ReadSeeker) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("missing ipp message")
	}
	payload, err := req.EncodeBytes()
	if err != nil {
		return nil, ipperr.Invalid(opName(req), "", "encode: %v", err)
	}
	var start int64
	if data != nil {
		if start, err = data.Seek(0, io.SeekCurrent); err != nil {
			return nil, &ipperr.TransportError{Op: opName(req), Err: err}
		}
	}
	body := func() (io.Reader, error) {
		if data == nil {
			return bytes.NewReader(payload), nil
		}
		if _, err := data.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		return io.MultiReader(bytes.NewReader(payload), data), nil
	}
	return t.exchange(ctx, h, http.MethodPost, resource, opName(req), goipp.ContentType, body)
}

// GetFile downloads resource into w.
func (t *Transport) GetFile(ctx context.Context, h Handle, resource string, w io.Writer) error {
	resp, err := t.exchange(ctx, h, http.MethodGet, resource, "get "+resource, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &ipperr.TransportError{Op: "get " + resource, Err: err}
	}
	return nil
}

// PutFile uploads r to resource.
func (t *Transport) PutFile(ctx context.Context, h Handle, resource string, r io.ReadSeeker) error {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return &ipperr.TransportError{Op: "put " + resource, Err: err}
	}
	body := func() (io.Reader, error) {
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		return r, nil
	}
	resp, err := t.exchange(ctx, h, http.MethodPut, resource, "put "+resource, "text/plain", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// exchange performs one HTTP request, answering authentication challenges
// through the password callback. body is called once per attempt.
func (t *Transport) exchange(ctx context.Context, h Handle, method, resource, op, contentType string, body func() (io.Reader, error)) (*http.Response, error) {
	c, err := t.conn(h)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		var rd io.Reader
		if body != nil {
			if rd, err = body(); err != nil {
				return nil, &ipperr.TransportError{Op: op, Err: err}
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(resource), rd)
		if err != nil {
			return nil, &ipperr.TransportError{Op: op, Err: err}
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if contentType == goipp.ContentType {
			req.Header.Set("Accept", goipp.ContentType)
		}
		if c.auth != "" {
			req.Header.Set("Authorization", c.auth)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, &ipperr.TransportError{Op: op, Err: err}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			challenge := resp.Header.Get("WWW-Authenticate")
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt >= maxAuthAttempts {
				return nil, &ipperr.TransportError{Op: op, Status: resp.StatusCode}
			}
			if err := t.authenticate(c, h, method, resource, challenge); err != nil {
				return nil, &ipperr.TransportError{Op: op, Status: http.StatusUnauthorized, Err: err}
			}
			continue
		}
		if resp.StatusCode/100 != 2 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &ipperr.TransportError{Op: op, Status: resp.StatusCode}
		}
		return resp, nil
	}
}

func (t *Transport) authenticate(c *conn, h Handle, method, resource, challenge string) error {
	t.mu.Lock()
	fn := t.password
	t.mu.Unlock()
	if fn == nil {
		return ipperr.ErrAuthCancelled
	}
	prompt := fmt.Sprintf("Password for %s on %s? ", c.user, c.host)
	t.log.Debug().Uint64("handle", uint64(h)).Str("resource", resource).Msg("authentication required")
	password, ok := fn(prompt, h, method, resource)
	if !ok || password == "" {
		return ipperr.ErrAuthCancelled
	}
	ch := parseChallenge(challenge)
	switch ch.scheme {
	case "digest":
		c.auth = digestAuth(ch, c.user, password, method, resource)
	default:
		c.auth = basicAuth(c.user, password)
	}
	return nil
}

func tlsConfig(s Settings) *tls.Config {
	skipVerify := s.InsecureSkipVerify
	if insecure, ok := parseBoolEnv("CUPS_IPP_INSECURE"); ok {
		skipVerify = insecure
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: skipVerify}
}

func opName(msg *goipp.Message) string {
	if msg == nil {
		return "ipp"
	}
	return goipp.Op(msg.Code).String()
}
