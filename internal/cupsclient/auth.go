package cupsclient

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type challenge struct {
	scheme string
	params map[string]string
}

// parseChallenge reads the first scheme of a WWW-Authenticate header.
func parseChallenge(header string) challenge {
	header = strings.TrimSpace(header)
	ch := challenge{params: map[string]string{}}
	scheme, rest, _ := strings.Cut(header, " ")
	ch.scheme = strings.ToLower(strings.TrimSpace(scheme))
	for rest != "" {
		rest = strings.TrimLeft(rest, " ,")
		key, after, ok := strings.Cut(rest, "=")
		if !ok {
			break
		}
		key = strings.ToLower(strings.TrimSpace(key))
		var value string
		if strings.HasPrefix(after, "\"") {
			end := strings.Index(after[1:], "\"")
			if end < 0 {
				value, rest = after[1:], ""
			} else {
				value, rest = after[1:end+1], after[end+2:]
			}
		} else {
			value, rest, _ = strings.Cut(after, ",")
			value = strings.TrimSpace(value)
		}
		if key != "" {
			ch.params[key] = value
		}
	}
	return ch
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// digestAuth answers an RFC 2617 MD5 challenge.
func digestAuth(ch challenge, user, password, method, uri string) string {
	realm := ch.params["realm"]
	nonce := ch.params["nonce"]
	ha1 := md5hex(user + ":" + realm + ":" + password)
	ha2 := md5hex(method + ":" + uri)

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s"`, user, realm, nonce, uri)
	if qop := pickQop(ch.params["qop"]); qop != "" {
		nc := "00000001"
		cnonce := strings.ReplaceAll(uuid.NewString(), "-", "")
		resp := md5hex(strings.Join([]string{ha1, nonce, nc, cnonce, qop, ha2}, ":"))
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s", response="%s"`, qop, nc, cnonce, resp)
	} else {
		fmt.Fprintf(&b, `, response="%s"`, md5hex(ha1+":"+nonce+":"+ha2))
	}
	if alg := ch.params["algorithm"]; alg != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, alg)
	}
	if opaque := ch.params["opaque"]; opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, opaque)
	}
	return b.String()
}

func pickQop(offered string) string {
	for _, q := range strings.Split(offered, ",") {
		if strings.TrimSpace(q) == "auth" {
			return "auth"
		}
	}
	return ""
}
