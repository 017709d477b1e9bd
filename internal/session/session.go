// Package session is the connection-oriented API to a CUPS server: it opens
// a transport connection, builds requests, sends them with the cooperative
// scheduler released, and turns responses into records.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/rs/zerolog"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/ippreq"
	"cupsbridge/internal/logging"
	"cupsbridge/internal/metrics"
	"cupsbridge/internal/store"
)

// Transport issues requests over connections identified by handles.
// *cupsclient.Transport implements it.
type Transport interface {
	Connect(ctx context.Context, host string, port int, enc cupsclient.Encryption) (cupsclient.Handle, error)
	Close(h cupsclient.Handle) error
	Do(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string) (*goipp.Message, error)
	DoFile(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string, data io.ReadSeeker) (*goipp.Message, error)
	DoReceive(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string, w io.Writer) (*goipp.Message, error)
	GetFile(ctx context.Context, h cupsclient.Handle, resource string, w io.Writer) error
	PutFile(ctx context.Context, h cupsclient.Handle, resource string, r io.ReadSeeker) error
	SetPasswordFunc(fn cupsclient.PasswordFunc)
}

type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

var defaultTransport = sync.OnceValue(func() *cupsclient.Transport {
	return cupsclient.NewFromConfig(cupsclient.WithLogger(logging.Component("transport")))
})

type Session struct {
	settings  cupsclient.Settings
	transport Transport
	sched     Scheduler
	registry  *Registry
	store     *store.Store
	log       zerolog.Logger
	metrics   *metrics.SessionMetrics
	parser    *ippattr.Parser

	inFlight atomic.Bool

	mu       sync.Mutex
	state    State
	handle   cupsclient.Handle
	cb       PasswordCallback
	cbEx     PasswordCallbackEx
	userData any
	secret   string
}

type Option func(*Session)

// WithServer overrides the server host.
func WithServer(host string) Option {
	return func(s *Session) {
		if host != "" {
			s.settings.Host = host
		}
	}
}

func WithPort(port int) Option {
	return func(s *Session) {
		if port != 0 {
			s.settings.Port = port
		}
	}
}

func WithEncryption(enc cupsclient.Encryption) Option {
	return func(s *Session) { s.settings.Encryption = enc }
}

func WithUser(user string) Option {
	return func(s *Session) {
		if user != "" {
			s.settings.User = user
		}
	}
}

// WithPassword primes the credential used to answer challenges when no
// callback is installed.
func WithPassword(password string) Option {
	return func(s *Session) { s.secret = password }
}

func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

func WithScheduler(sched Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

func WithRegistry(r *Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithStore attaches the per-user destination store consulted by GetDests.
func WithStore(st *store.Store) Option {
	return func(s *Session) { s.store = st }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCardinality replaces the table deciding which attributes are lists.
func WithCardinality(c *ippattr.Cardinality) Option {
	return func(s *Session) { s.parser.Cardinality = c }
}

// Open connects to the server and registers the session. Defaults come from
// client.conf and the CUPS_* environment.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	s := &Session{
		settings: cupsclient.LoadSettings(),
		sched:    NopScheduler{},
		log:      logging.Component("session"),
		metrics:  metrics.NewSessionMetrics(),
		parser:   ippattr.NewParser(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.settings.Validate(); err != nil {
		return nil, err
	}
	if s.transport == nil {
		s.transport = defaultTransport()
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	s.parser.Log = s.log
	routeChallenges(s.transport, s.registry)

	s.setState(StateConnecting)
	s.sched.Release()
	h, err := s.transport.Connect(ctx, s.settings.Host, s.settings.Port, s.settings.Encryption)
	s.sched.Acquire()
	if err != nil {
		s.setState(StateClosed)
		s.log.Debug().Err(err).Str("host", s.settings.Host).Int("port", s.settings.Port).Msg("connect failed")
		return nil, fmt.Errorf("%w: %w", ipperr.ErrConnectFailed, err)
	}

	s.mu.Lock()
	s.handle = h
	s.state = StateOpen
	s.mu.Unlock()

	token, err := s.registry.add(s)
	if err != nil {
		_ = s.transport.Close(h)
		s.setState(StateClosed)
		return nil, err
	}
	s.log = s.log.With().Stringer("session", token).Logger()
	s.parser.Log = s.log
	s.log.Debug().Str("host", s.settings.Host).Int("port", s.settings.Port).Uint64("handle", uint64(h)).Msg("session open")
	return s, nil
}

// Close removes the session from the registry, then closes its connection.
// Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	h := s.handle
	s.mu.Unlock()

	s.registry.remove(s)
	err := s.transport.Close(h)
	s.log.Debug().Uint64("handle", uint64(h)).Msg("session closed")
	return err
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle is the transport handle; zero once closed.
func (s *Session) Handle() cupsclient.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return 0
	}
	return s.handle
}

func (s *Session) Host() string                       { return s.settings.Host }
func (s *Session) Port() int                          { return s.settings.Port }
func (s *Session) Encryption() cupsclient.Encryption { return s.settings.Encryption }
func (s *Session) User() string                       { return s.settings.User }

func (s *Session) openHandle() (cupsclient.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return 0, ipperr.ErrNotOpen
	}
	return s.handle, nil
}

// blocking runs fn with the scheduler released. Only one blocking call may
// be in flight per session.
func (s *Session) blocking(fn func()) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ipperr.ErrSessionBusy
	}
	defer s.inFlight.Store(false)
	s.sched.Release()
	defer s.sched.Acquire()
	fn()
	return nil
}

type sendFunc func(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string) (*goipp.Message, error)

// do builds the request, sends it and checks the response status.
func (s *Session) do(ctx context.Context, b *ippreq.Builder) (*goipp.Message, error) {
	return s.send(ctx, b, s.transport.Do)
}

func (s *Session) send(ctx context.Context, b *ippreq.Builder, call sendFunc) (*goipp.Message, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	h, err := s.openHandle()
	if err != nil {
		return nil, err
	}
	op := goipp.Op(req.Code).String()
	resource := ippreq.Resource(req)

	var resp *goipp.Message
	start := time.Now()
	if busy := s.blocking(func() {
		resp, err = call(ctx, h, req, resource)
	}); busy != nil {
		s.metrics.ObserveCall(op, "busy", 0)
		return nil, busy
	}
	if err == nil {
		err = checkResponse(op, resp)
	}
	s.metrics.ObserveCall(op, outcome(err), time.Since(start))
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Str("resource", resource).Msg("request failed")
		return resp, err
	}
	return resp, nil
}

// checkResponse turns a status above the ok range into a ProtocolError.
func checkResponse(op string, resp *goipp.Message) error {
	if resp == nil {
		return &ipperr.ProtocolError{Op: op, Status: goipp.StatusErrorInternal, Err: ipperr.ErrNoResponse}
	}
	status := goipp.Status(resp.Code)
	if status <= goipp.StatusOkEventsComplete {
		return nil
	}
	msg := ""
	if a, ok := ippattr.Find(ippattr.Flatten(resp), goipp.TagOperationGroup, "status-message"); ok && len(a.Values) > 0 {
		msg = a.Values[0].String()
	}
	return &ipperr.ProtocolError{Op: op, Status: status, Message: msg}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ipperr.ErrSessionBusy):
		return "busy"
	default:
		return string(ipperr.KindOf(err))
	}
}

// notFound reports an empty catalog answer.
func notFound(err error) bool {
	return ipperr.IsStatus(err, goipp.StatusErrorNotFound)
}

func (s *Session) newRequest(op goipp.Op) *ippreq.Builder {
	return ippreq.New(op).RequestingUser(s.settings.User)
}
