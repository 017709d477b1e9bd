package session

import (
	"context"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ipperr"
)

func TestChallengeSimpleCallback(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft)
	var prompts []string
	s.SetPasswordCallback(func(prompt string) (string, bool) {
		prompts = append(prompts, prompt)
		return "secret", true
	})

	pw, err := ft.challenge(s.Handle())
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)
	assert.Equal(t, []string{"Password for tester on localhost? "}, prompts)
}

func TestChallengeExtendedCallback(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft)
	type ctxKey struct{ n int }
	var (
		gotSession  *Session
		gotMethod   string
		gotResource string
		gotData     any
	)
	s.SetPasswordCallbackEx(func(sess *Session, prompt, method, resource string, userData any) (string, bool) {
		gotSession, gotMethod, gotResource, gotData = sess, method, resource, userData
		return "hunter2", true
	}, ctxKey{n: 7})

	pw, err := ft.challenge(s.Handle())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Same(t, s, gotSession)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/admin/", gotResource)
	assert.Equal(t, ctxKey{n: 7}, gotData)
}

func TestChallengeRoutesToOwningSession(t *testing.T) {
	ft := newFakeTransport()
	reg := NewRegistry(8)
	a := openTest(t, ft, WithRegistry(reg))
	b := openTest(t, ft, WithRegistry(reg))
	a.SetPasswordCallback(func(string) (string, bool) { return "for-a", true })
	b.SetPasswordCallback(func(string) (string, bool) { return "for-b", true })

	pw, err := ft.challenge(b.Handle())
	require.NoError(t, err)
	assert.Equal(t, "for-b", pw)
	pw, err = ft.challenge(a.Handle())
	require.NoError(t, err)
	assert.Equal(t, "for-a", pw)
}

func TestChallengeUnknownHandleDeclined(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft)
	s.SetPasswordCallback(func(string) (string, bool) { return "secret", true })

	_, err := ft.challenge(cupsclient.Handle(999))
	assert.ErrorIs(t, err, ipperr.ErrAuthCancelled)
}

func TestChallengeDeclinedByCallback(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft)
	s.SetPasswordCallback(func(string) (string, bool) { return "", true })

	_, err := ft.challenge(s.Handle())
	assert.ErrorIs(t, err, ipperr.ErrAuthCancelled)
}

func TestChallengeUsesPrimedPassword(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft, WithPassword("primed"))

	pw, err := ft.challenge(s.Handle())
	require.NoError(t, err)
	assert.Equal(t, "primed", pw)
}

func TestChallengeCachesAnswer(t *testing.T) {
	ft := newFakeTransport()
	s := openTest(t, ft)
	s.SetPasswordCallback(func(string) (string, bool) { return "typed", true })
	_, err := ft.challenge(s.Handle())
	require.NoError(t, err)

	s.SetPasswordCallback(nil)
	pw, err := ft.challenge(s.Handle())
	require.NoError(t, err)
	assert.Equal(t, "typed", pw)
}

func TestChallengeHoldsSchedulerForCallback(t *testing.T) {
	ft := newFakeTransport()
	sched := &countingScheduler{}
	s := openTest(t, ft, WithScheduler(sched))
	var held bool
	s.SetPasswordCallback(func(string) (string, bool) {
		held = sched.held()
		return "secret", true
	})

	_, err := ft.challenge(s.Handle())
	require.NoError(t, err)
	assert.True(t, held)
	assert.False(t, sched.held())
}

func TestChallengeSharedTransportAcrossRegistries(t *testing.T) {
	ft := newFakeTransport()
	a := openTest(t, ft, WithRegistry(NewRegistry(8)))
	b := openTest(t, ft, WithRegistry(NewRegistry(8)))
	a.SetPasswordCallback(func(string) (string, bool) { return "for-a", true })
	b.SetPasswordCallback(func(string) (string, bool) { return "for-b", true })

	pw, err := ft.challenge(a.Handle())
	require.NoError(t, err)
	assert.Equal(t, "for-a", pw)
	pw, err = ft.challenge(b.Handle())
	require.NoError(t, err)
	assert.Equal(t, "for-b", pw)
}

func TestChallengeDuringRequestUnderHostLock(t *testing.T) {
	lock := &HostLock{}
	lock.Acquire()
	defer lock.Release()

	ft := newFakeTransport()
	s := openTest(t, ft, WithScheduler(lock))
	var lockHeld bool
	s.SetPasswordCallback(func(string) (string, bool) {
		lockHeld = !lock.mu.TryLock()
		if !lockHeld {
			lock.mu.Unlock()
		}
		return "pw", true
	})

	var (
		password     string
		challengeErr error
	)
	ft.handler = func(req *goipp.Message) *goipp.Message {
		password, challengeErr = ft.challenge(s.Handle())
		return response(goipp.StatusOk, printerGroup("office"))
	}

	_, err := s.GetPrinters(context.Background())
	require.NoError(t, err)
	require.NoError(t, challengeErr)
	assert.Equal(t, "pw", password)
	assert.True(t, lockHeld, "callback must run with the host lock held")
	assert.False(t, lock.mu.TryLock(), "host lock must be reacquired after the call")
}
