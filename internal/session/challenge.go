package session

import (
	"slices"
	"sync"

	"cupsbridge/internal/cupsclient"
)

// PasswordCallback answers a challenge from the prompt alone. Returning
// false or an empty password cancels the request.
type PasswordCallback func(prompt string) (string, bool)

// PasswordCallbackEx also receives the session, the HTTP method, the
// resource and the value given to SetPasswordCallbackEx.
type PasswordCallbackEx func(s *Session, prompt, method, resource string, userData any) (string, bool)

// SetPasswordCallback installs the simple callback, replacing any other.
func (s *Session) SetPasswordCallback(cb PasswordCallback) {
	s.mu.Lock()
	s.cb, s.cbEx, s.userData = cb, nil, nil
	s.mu.Unlock()
}

// SetPasswordCallbackEx installs the extended callback, replacing any other.
func (s *Session) SetPasswordCallbackEx(cb PasswordCallbackEx, userData any) {
	s.mu.Lock()
	s.cb, s.cbEx, s.userData = nil, cb, userData
	s.mu.Unlock()
}

// challengeRoutes lists the registries with sessions on one transport.
type challengeRoutes struct {
	mu   sync.Mutex
	regs []*Registry
}

var routes sync.Map // Transport -> *challengeRoutes

// routeChallenges adds r to the registries consulted for t's challenges.
// The password function is installed on t once, so sessions opened later
// through other registries do not take over the transport.
func routeChallenges(t Transport, r *Registry) {
	v, loaded := routes.LoadOrStore(t, &challengeRoutes{})
	cr := v.(*challengeRoutes)
	cr.mu.Lock()
	if !slices.Contains(cr.regs, r) {
		cr.regs = append(cr.regs, r)
	}
	cr.mu.Unlock()
	if !loaded {
		t.SetPasswordFunc(cr.passwordFunc(t))
	}
}

// passwordFunc routes each challenge to the session owning the handle; a
// handle no session owns gets no credential.
func (cr *challengeRoutes) passwordFunc(t Transport) cupsclient.PasswordFunc {
	return func(prompt string, h cupsclient.Handle, method, resource string) (string, bool) {
		cr.mu.Lock()
		regs := slices.Clone(cr.regs)
		cr.mu.Unlock()
		for _, r := range regs {
			if s := r.lookup(t, h); s != nil {
				return s.answerChallenge(prompt, method, resource)
			}
		}
		if len(regs) > 0 {
			regs[0].metrics.RecordChallenge("orphan")
			regs[0].log.Debug().Uint64("handle", uint64(h)).Msg("challenge for unknown handle declined")
		}
		return "", false
	}
}

// answerChallenge runs on the transport's goroutine while the scheduler is
// released; it holds the scheduler only for the callback.
func (s *Session) answerChallenge(prompt, method, resource string) (string, bool) {
	s.mu.Lock()
	cb, cbEx, data, cached := s.cb, s.cbEx, s.userData, s.secret
	s.mu.Unlock()

	var (
		password string
		ok       bool
	)
	switch {
	case cbEx != nil:
		s.sched.Acquire()
		password, ok = cbEx(s, prompt, method, resource, data)
		s.sched.Release()
	case cb != nil:
		s.sched.Acquire()
		password, ok = cb(prompt)
		s.sched.Release()
	default:
		password, ok = cached, cached != ""
	}
	if !ok || password == "" {
		s.metrics.RecordChallenge("declined")
		s.log.Debug().Str("resource", resource).Msg("password challenge declined")
		return "", false
	}

	s.mu.Lock()
	s.secret = password
	s.mu.Unlock()
	s.metrics.RecordChallenge("answered")
	s.log.Debug().Str("method", method).Str("resource", resource).Msg("password challenge answered")
	return password, true
}
