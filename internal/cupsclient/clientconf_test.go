package cupsclient

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsFromClientConf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.conf")
	conf := "# test\nServerName print.example.com:8631\nEncryption Required\nUser bob # trailing\n"
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	t.Setenv("CUPS_CLIENT_CONF", path)
	t.Setenv("CUPS_SERVER", "")
	t.Setenv("CUPS_ENCRYPTION", "")
	t.Setenv("CUPS_USER", "")

	s := LoadSettings()
	if s.Host != "print.example.com" || s.Port != 8631 {
		t.Fatalf("server = %s:%d", s.Host, s.Port)
	}
	if s.Encryption != EncryptRequired {
		t.Fatalf("encryption = %v", s.Encryption)
	}
	if s.User != "bob" {
		t.Fatalf("user = %q", s.User)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	t.Setenv("CUPS_CLIENT_CONF", filepath.Join(t.TempDir(), "missing.conf"))
	t.Setenv("CUPS_SERVER", "ipps://secure.example.com")
	t.Setenv("CUPS_ENCRYPTION", "")
	t.Setenv("CUPS_USER", "carol")
	t.Setenv("IPP_PORT", "")

	s := LoadSettings()
	if s.Host != "secure.example.com" || s.Port != 631 {
		t.Fatalf("server = %s:%d", s.Host, s.Port)
	}
	if s.Encryption != EncryptAlways {
		t.Fatalf("encryption = %v", s.Encryption)
	}
	if s.User != "carol" {
		t.Fatalf("user = %q", s.User)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
		ok   bool
	}{
		{"valid", Settings{Host: "localhost", Port: 631, User: "root"}, true},
		{"no host", Settings{Port: 631, User: "root"}, false},
		{"bad port", Settings{Host: "localhost", Port: 70000, User: "root"}, false},
		{"bad encryption", Settings{Host: "localhost", Port: 631, User: "root", Encryption: 9}, false},
	}
	for _, tc := range tests {
		err := tc.s.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}
}

func TestParseEncryption(t *testing.T) {
	for in, want := range map[string]Encryption{
		"never": EncryptNever, "IfRequested": EncryptIfRequested, "required": EncryptRequired, "always": EncryptAlways,
	} {
		got, err := ParseEncryption(in)
		if err != nil || got != want {
			t.Fatalf("ParseEncryption(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEncryption("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestParseConfLine(t *testing.T) {
	tests := []struct {
		line, key, value string
		ok               bool
	}{
		{"ServerName print.example.com", "servername", "print.example.com", true},
		{"  User\t'bob smith'  # who", "user", "bob smith", true},
		{`ServerName "host#1"`, "servername", "host#1", true},
		{"# ServerName ignored", "", "", false},
		{"Encryption", "", "", false},
	}
	for _, tc := range tests {
		key, value, ok := parseConfLine(tc.line)
		if key != tc.key || value != tc.value || ok != tc.ok {
			t.Fatalf("parseConfLine(%q) = %q, %q, %v", tc.line, key, value, ok)
		}
	}
}

func TestParseServer(t *testing.T) {
	tests := []struct {
		in     string
		host   string
		port   int
		useTLS bool
	}{
		{"localhost", "localhost", 0, false},
		{"print.example.com:8631", "print.example.com", 8631, false},
		{"[::1]:631", "::1", 631, false},
		{"ipps://secure.example.com:443/", "secure.example.com", 443, true},
		{"/run/cups/cups.sock", "/run/cups/cups.sock", 0, false},
	}
	for _, tc := range tests {
		host, port, useTLS := parseServer(tc.in)
		if host != tc.host || port != tc.port || useTLS != tc.useTLS {
			t.Fatalf("parseServer(%q) = %q, %d, %v", tc.in, host, port, useTLS)
		}
	}
}

func TestLaterClientConfWins(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "system.conf")
	user := filepath.Join(dir, "user.conf")
	if err := os.WriteFile(system, []byte("ServerName system.example.com\nUser alice\nUnknown x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(user, []byte("User bob\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	conf := readClientConf(system, filepath.Join(dir, "missing.conf"), user)
	if conf["servername"] != "system.example.com" || conf["user"] != "bob" {
		t.Fatalf("conf = %v", conf)
	}
	if _, ok := conf["unknown"]; ok {
		t.Fatalf("unknown directive kept: %v", conf)
	}
}
