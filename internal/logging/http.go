package logging

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type accessTransport struct {
	next http.RoundTripper
}

// AccessTransport wraps next so that every exchange is written to the
// access log in CUPS access_log format.
func AccessTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &accessTransport{next: next}
}

func (t *accessTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	status := 0
	var size int64
	if resp != nil {
		status = resp.StatusCode
		size = resp.ContentLength
	}
	Access(AccessLogLine(r.URL.Host, parseAuthUser(r), start, r.Method, r.URL.RequestURI(), r.Proto, status, size))
	return resp, err
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *accessTransport) CloseIdleConnections() {
	if c, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

func AccessLogLine(host, user string, when time.Time, method, uri, proto string, status int, size int64) string {
	if strings.TrimSpace(user) == "" {
		user = "-"
	}
	if size < 0 {
		size = 0
	}
	return fmt.Sprintf("%s - %s [%s] \"%s %s %s\" %d %d",
		host,
		user,
		when.Format("02/Jan/2006:15:04:05 -0700"),
		method,
		uri,
		proto,
		status,
		size,
	)
}

func parseAuthUser(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, rest, _ := strings.Cut(auth, " ")
	switch strings.ToLower(scheme) {
	case "basic":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest))
		if err != nil {
			return ""
		}
		user, _, _ := strings.Cut(string(raw), ":")
		return user
	case "digest":
		for _, part := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && strings.EqualFold(k, "username") {
				return strings.Trim(v, `"`)
			}
		}
	}
	return ""
}
