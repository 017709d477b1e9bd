package cliutil

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/logging"
	"cupsbridge/internal/metrics"
	"cupsbridge/internal/session"
	"cupsbridge/internal/store"
)

// ConnFlags are the connection and diagnostics flags every tool takes.
type ConnFlags struct {
	Server  string
	Encrypt bool
	User    string

	LogFile     string
	Debug       bool
	MetricsFile string
	// UseStore opens the lpoptions store for GetDests.
	UseStore bool

	db *store.Store
}

// Register adds the flags to cmd. -h is the server, as in the CUPS tools;
// help stays on --help.
func (f *ConnFlags) Register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.Server, "server", "h", "", "connect to `server[:port]`")
	fl.BoolVar(&f.Encrypt, "encrypt", false, "require encryption")
	fl.StringVarP(&f.User, "user", "U", "", "connect as `username`")
	fl.StringVar(&f.LogFile, "log-file", "", "write the debug log to `path`")
	fl.BoolVar(&f.Debug, "debug", false, "log at debug level")
	fl.StringVar(&f.MetricsFile, "metrics-file", "", "write Prometheus metrics to `path` on exit")
}

// Setup configures logging and, when asked, metrics.
func (f *ConnFlags) Setup() {
	switch {
	case f.LogFile != "":
		level := ""
		if f.Debug {
			level = "debug"
		}
		logging.Configure(logging.Config{ErrorLog: f.LogFile, Level: level, MaxSize: 1 << 20})
	case f.Debug:
		logging.Console(os.Stderr, zerolog.DebugLevel)
	}
	if f.MetricsFile != "" && !metrics.IsEnabled() {
		metrics.InitRegistry()
	}
}

// Finish closes the store and writes the metrics file, if one was
// requested.
func (f *ConnFlags) Finish() error {
	if f.db != nil {
		_ = f.db.Close()
		f.db = nil
	}
	reg := metrics.GetRegistry()
	if f.MetricsFile == "" || reg == nil {
		return nil
	}
	return prometheus.WriteToTextfile(f.MetricsFile, reg)
}

// Store is the lpoptions store Open attached, or nil.
func (f *ConnFlags) Store() *store.Store { return f.db }

// Open connects to the server. Password challenges are answered from in,
// prompting on prompt.
func (f *ConnFlags) Open(ctx context.Context, in io.Reader, prompt io.Writer) (*session.Session, error) {
	tr := cupsclient.NewFromConfig(
		cupsclient.WithServer(f.Server),
		cupsclient.WithUser(f.User),
		cupsclient.WithLogger(logging.Component("transport")),
	)
	st := tr.Settings()
	enc := st.Encryption
	if f.Encrypt {
		enc = cupsclient.EncryptRequired
	}
	opts := []session.Option{
		session.WithTransport(tr),
		session.WithServer(st.Host),
		session.WithPort(st.Port),
		session.WithUser(st.User),
		session.WithEncryption(enc),
		session.WithPassword(st.Password),
	}
	if f.UseStore {
		db, err := store.Open(ctx, store.DefaultPath())
		if err != nil {
			return nil, fmt.Errorf("open lpoptions store: %w", err)
		}
		f.db = db
		opts = append(opts, session.WithStore(db))
	}
	s, err := session.Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if in != nil && st.Password == "" {
		s.SetPasswordCallback(linePrompt(in, prompt))
	}
	return s, nil
}

// linePrompt reads passwords from in. A terminal is read without echo;
// anything else, a pipe or a test reader, is read a line at a time.
func linePrompt(in io.Reader, prompt io.Writer) session.PasswordCallback {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func(p string) (string, bool) {
			fmt.Fprint(prompt, p)
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil || len(pw) == 0 {
				return "", false
			}
			return string(pw), true
		}
	}
	r := bufio.NewReader(in)
	return func(p string) (string, bool) {
		fmt.Fprint(prompt, p)
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil && line == "" {
			return "", false
		}
		return line, line != ""
	}
}
