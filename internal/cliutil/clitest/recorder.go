// Package clitest runs a recording IPP server for command tests.
package clitest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
)

// Call is one request the server saw. Attribute values are the first value
// of each attribute, as text.
type Call struct {
	Op        goipp.Op
	Operation map[string]string
	Printer   map[string]string
	Job       map[string]string
}

// Recorder answers every request with successful-ok and records it.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// NotPossible answers printer-uri requests for this printer name with
	// client-error-not-possible, as CUPS does for a class.
	NotPossible string
}

// Start serves r until the test ends and returns the host:port to pass
// with -h.
func (r *Recorder) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return u.Host
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	var msg goipp.Message
	if err := msg.Decode(req.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c := Call{
		Op:        goipp.Op(msg.Code),
		Operation: firstValues(msg.Operation),
		Printer:   firstValues(msg.Printer),
		Job:       firstValues(msg.Job),
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	status := goipp.StatusOk
	if r.NotPossible != "" && strings.HasSuffix(c.Operation["printer-uri"], "/printers/"+r.NotPossible) {
		status = goipp.StatusErrorNotPossible
	}
	groups := goipp.Groups{{Tag: goipp.TagOperationGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")),
		goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-us")),
	}}}
	resp := goipp.NewMessageWithGroups(msg.Version, goipp.Code(status), msg.RequestID, groups)
	w.Header().Set("Content-Type", goipp.ContentType)
	_ = resp.Encode(w)
}

func firstValues(attrs goipp.Attributes) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if len(a.Values) > 0 {
			out[a.Name] = a.Values[0].V.String()
		}
	}
	return out
}
