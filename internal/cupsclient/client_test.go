package cupsclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
)

func newRequest(op goipp.Op) *goipp.Message {
	req := goipp.NewRequest(goipp.DefaultVersion, op, 1)
	req.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	req.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	return req
}

func connectTo(t *testing.T, tr *Transport, srv *httptest.Server) Handle {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	h, err := tr.Connect(context.Background(), u.Hostname(), port, EncryptNever)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return h
}

func ippHandler(t *testing.T, paths chan<- string, payload []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req goipp.Message
		if err := req.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if paths != nil {
			paths <- r.URL.Path
		}
		w.Header().Set("Content-Type", goipp.ContentType)
		resp := goipp.NewResponse(req.Version, goipp.StatusOk, req.RequestID)
		resp.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
		_ = resp.Encode(w)
		_, _ = w.Write(payload)
	}
}

func TestDoPostsToResource(t *testing.T) {
	paths := make(chan string, 4)
	srv := httptest.NewServer(ippHandler(t, paths, nil))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	defer tr.Close(h)

	resp, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsGetPrinters), "/admin/")
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if goipp.Status(resp.Code) != goipp.StatusOk {
		t.Fatalf("status = %v", goipp.Status(resp.Code))
	}
	if got := <-paths; got != "/admin/" {
		t.Fatalf("path = %q, want /admin/", got)
	}
}

func TestDoReceiveCopiesTrailingDocument(t *testing.T) {
	srv := httptest.NewServer(ippHandler(t, nil, []byte("*PPD-Adobe: \"4.3\"\n")))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	var buf bytes.Buffer
	if _, err := tr.DoReceive(context.Background(), h, newRequest(goipp.OpCupsGetPpd), "/", &buf); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "*PPD-Adobe") {
		t.Fatalf("document = %q", buf.String())
	}
}

func TestDoFileSendsDocumentAfterRequest(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req goipp.Message
		if err := req.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rest, _ := io.ReadAll(r.Body)
		got <- string(rest)
		w.Header().Set("Content-Type", goipp.ContentType)
		_ = goipp.NewResponse(req.Version, goipp.StatusOk, req.RequestID).Encode(w)
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	if _, err := tr.DoFile(context.Background(), h, newRequest(goipp.OpPrintJob), "/printers/p1", strings.NewReader("hello")); err != nil {
		t.Fatalf("do file: %v", err)
	}
	if body := <-got; body != "hello" {
		t.Fatalf("document = %q", body)
	}
}

func TestAuthChallengeUsesPasswordFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			_, _ = io.Copy(io.Discard, r.Body)
			w.Header().Set("WWW-Authenticate", `Basic realm="CUPS"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ippHandler(t, nil, nil)(w, r)
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)

	var calls int
	var gotHandle Handle
	tr.SetPasswordFunc(func(prompt string, ch Handle, method, resource string) (string, bool) {
		calls++
		gotHandle = ch
		if method != http.MethodPost || resource != "/admin/" {
			t.Errorf("challenge for %s %s", method, resource)
		}
		return "secret", true
	})
	if _, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsAddModifyPrinter), "/admin/"); err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 1 || gotHandle != h {
		t.Fatalf("calls=%d handle=%v, want 1 and %v", calls, gotHandle, h)
	}

	if _, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsAddModifyPrinter), "/admin/"); err != nil {
		t.Fatalf("second do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("credential not reused: calls=%d", calls)
	}
}

func TestAuthCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Digest realm="CUPS", nonce="abc", qop="auth"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	tr.SetPasswordFunc(func(string, Handle, string, string) (string, bool) { return "", false })

	_, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsDeletePrinter), "/admin/")
	if !errors.Is(err, ipperr.ErrAuthCancelled) {
		t.Fatalf("err = %v, want auth cancelled", err)
	}
	if ipperr.HTTPStatus(err) != http.StatusUnauthorized {
		t.Fatalf("status = %d", ipperr.HTTPStatus(err))
	}
}

func TestAuthAttemptsCapped(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("WWW-Authenticate", `Basic realm="CUPS"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	tr.SetPasswordFunc(func(string, Handle, string, string) (string, bool) { return "wrong", true })
	_, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsDeletePrinter), "/admin/")
	if ipperr.HTTPStatus(err) != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if hits != maxAuthAttempts+1 {
		t.Fatalf("hits = %d, want %d", hits, maxAuthAttempts+1)
	}
}

func TestGetAndPutFile(t *testing.T) {
	stored := "LogLevel warn\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path != "/admin/conf/cupsd.conf" {
				http.NotFound(w, r)
				return
			}
			_, _ = io.WriteString(w, stored)
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			stored = string(b)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	ctx := context.Background()

	if err := tr.PutFile(ctx, h, "/admin/conf/cupsd.conf", strings.NewReader("LogLevel debug\n")); err != nil {
		t.Fatalf("put: %v", err)
	}
	var buf bytes.Buffer
	if err := tr.GetFile(ctx, h, "/admin/conf/cupsd.conf", &buf); err != nil {
		t.Fatalf("get: %v", err)
	}
	if buf.String() != "LogLevel debug\n" {
		t.Fatalf("file = %q", buf.String())
	}
	err := tr.GetFile(ctx, h, "/admin/conf/missing.conf", &buf)
	if ipperr.HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	srv.Close()
	port, _ := strconv.Atoi(u.Port())

	tr := New(Settings{User: "alice"})
	if _, err := tr.Connect(context.Background(), u.Hostname(), port, EncryptNever); ipperr.KindOf(err) != ipperr.KindTransport {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestClosedHandle(t *testing.T) {
	tr := New(Settings{User: "alice"})
	if _, err := tr.Do(context.Background(), Handle(42), newRequest(goipp.OpGetJobs), "/"); !errors.Is(err, ipperr.ErrNotOpen) {
		t.Fatalf("err = %v", err)
	}
}

func TestDigestAuthHeader(t *testing.T) {
	ch := parseChallenge(`Digest realm="CUPS", nonce="n1", opaque="o1"`)
	if ch.scheme != "digest" || ch.params["realm"] != "CUPS" || ch.params["nonce"] != "n1" {
		t.Fatalf("challenge = %+v", ch)
	}
	got := digestAuth(ch, "alice", "secret", "POST", "/admin/")
	ha1 := md5hex("alice:CUPS:secret")
	ha2 := md5hex("POST:/admin/")
	want := `response="` + md5hex(ha1+":n1:"+ha2) + `"`
	if !strings.Contains(got, want) || !strings.Contains(got, `opaque="o1"`) {
		t.Fatalf("digest header = %q", got)
	}
}

func TestUndecodableReplyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", goipp.ContentType)
		_, _ = w.Write([]byte("<html>not ipp</html>"))
	}))
	defer srv.Close()

	tr := New(Settings{User: "alice"})
	h := connectTo(t, tr, srv)
	defer tr.Close(h)

	_, err := tr.Do(context.Background(), h, newRequest(goipp.OpCupsGetPrinters), "/")
	var pe *ipperr.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T %v, want *ipperr.ProtocolError", err, err)
	}
	if !errors.Is(err, ipperr.ErrNoResponse) {
		t.Fatalf("err = %v, want ErrNoResponse", err)
	}
	if ipperr.KindOf(err) != ipperr.KindProtocol {
		t.Fatalf("kind = %v", ipperr.KindOf(err))
	}
}
