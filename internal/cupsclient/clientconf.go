package cupsclient

import (
	"bufio"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"cupsbridge/internal/ipperr"
)

// Settings are the connection defaults taken from client.conf and the
// CUPS_* environment.
type Settings struct {
	Host               string        `validate:"required"`
	Port               int           `validate:"min=1,max=65535"`
	Encryption         Encryption    `validate:"min=0,max=3"`
	User               string        `validate:"required"`
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration `validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return ipperr.Invalid("settings", "", "%v", err)
	}
	return nil
}

// clientDirectives are the client.conf keys LoadSettings reads, lower-cased,
// each with the environment variable that overrides it.
var clientDirectives = map[string]string{
	"servername":    "CUPS_SERVER",
	"encryption":    "CUPS_ENCRYPTION",
	"user":          "CUPS_USER",
	"validatecerts": "CUPS_VALIDATECERTS",
}

// LoadSettings reads client.conf (system, then per-user) and applies the
// environment overrides.
func LoadSettings() Settings {
	conf := readClientConf(clientConfPaths()...)
	for key, env := range clientDirectives {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			conf[key] = v
		}
	}

	s := Settings{
		Host:       "localhost",
		Port:       defaultIPPPort(),
		Encryption: EncryptIfRequested,
		User:       defaultUser(),
		Password:   os.Getenv("CUPS_PASSWORD"),
		Timeout:    defaultTimeout,
	}
	if host, port, useTLS := parseServer(conf["servername"]); host != "" {
		s.Host = host
		if port > 0 {
			s.Port = port
		}
		if useTLS {
			s.Encryption = EncryptAlways
		}
	}
	if v := conf["encryption"]; v != "" {
		if enc, err := ParseEncryption(v); err == nil {
			s.Encryption = enc
		}
	}
	if v := conf["user"]; v != "" {
		s.User = v
	}
	if verify, ok := parseBool(conf["validatecerts"]); ok {
		s.InsecureSkipVerify = !verify
	}
	if insecure, ok := parseBoolEnv("CUPS_IPP_INSECURE"); ok {
		s.InsecureSkipVerify = insecure
	}
	return s
}

// clientConfPaths is CUPS_CLIENT_CONF alone, or the system file followed by
// the per-user one.
func clientConfPaths() []string {
	if v := strings.TrimSpace(os.Getenv("CUPS_CLIENT_CONF")); v != "" {
		return []string{v}
	}
	paths := []string{filepath.Join(defaultClientConfDir(), "client.conf")}
	if dir := userClientConfDir(); dir != "" {
		if p := filepath.Join(dir, "client.conf"); p != paths[0] {
			paths = append(paths, p)
		}
	}
	return paths
}

// readClientConf collects the known directives from paths; later files win.
// Missing files are skipped.
func readClientConf(paths ...string) map[string]string {
	conf := map[string]string{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			key, value, ok := parseConfLine(sc.Text())
			if _, known := clientDirectives[key]; ok && known {
				conf[key] = value
			}
		}
		f.Close()
	}
	return conf
}

// parseConfLine splits "Directive value # comment" into a lower-cased key
// and an unquoted value. A '#' inside quotes belongs to the value.
func parseConfLine(line string) (key, value string, ok bool) {
	var quote rune
	for i, r := range line {
		if quote == 0 && r == '#' {
			line = line[:i]
			break
		}
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		}
	}
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return "", "", false
	}
	value = strings.Trim(strings.TrimSpace(line[i:]), "\"'")
	if value == "" {
		return "", "", false
	}
	return strings.ToLower(line[:i]), value, true
}

// parseServer reads a ServerName or -h value: host, host:port, [v6]:port,
// a socket path, or an ipp, ipps, http or https URL. useTLS reports an
// encrypted scheme.
func parseServer(value string) (host string, port int, useTLS bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", 0, false
	}
	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil && u.Hostname() != "" {
			port, _ = strconv.Atoi(u.Port())
			scheme := strings.ToLower(u.Scheme)
			return u.Hostname(), port, scheme == "https" || scheme == "ipps"
		}
	}
	if h, p, err := net.SplitHostPort(value); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			return h, n, false
		}
	}
	return value, 0, false
}

func defaultIPPPort() int {
	if n, err := strconv.Atoi(os.Getenv("IPP_PORT")); err == nil && n > 0 {
		return n
	}
	return 631
}

func defaultUser() string {
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

func defaultClientConfDir() string {
	switch {
	case os.Getenv("CUPS_CLIENT_CONF_DIR") != "":
		return os.Getenv("CUPS_CLIENT_CONF_DIR")
	case os.Getenv("CUPS_CONF_DIR") != "":
		return os.Getenv("CUPS_CONF_DIR")
	case os.Getenv("CUPS_DATA_DIR") != "":
		return filepath.Join(os.Getenv("CUPS_DATA_DIR"), "conf")
	}
	return "/etc/cups"
}

func userClientConfDir() string {
	if v := os.Getenv("CUPS_USER_CONF_DIR"); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cups")
	}
	return ""
}

func parseBoolEnv(name string) (bool, bool) {
	return parseBool(os.Getenv(name))
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes", "on", "true":
		return true, true
	case "0", "no", "off", "false":
		return false, true
	}
	return false, false
}
