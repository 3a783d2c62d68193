package eas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/dedovmosol/iwomail/internal/model"
)

func sessionFor(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Session {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	cfg := Config{
		Host:     u.Hostname(),
		Port:     port,
		TLS:      model.TLSModePlain,
		Username: "alice",
		Password: "secret",
		DeviceID: "0123456789abcdef",
	}
	if u.Scheme == "https" {
		cfg.TLS = model.TLSModeTLS
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sess, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestExecuteSetsProtocolHeaders(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess := sessionFor(t, srv, func(c *Config) {
		c.Domain = "CORP"
		c.PolicyKey = func() string { return "1234567890" }
	})
	if _, err := sess.Execute(context.Background(), "FolderSync", []byte{0x03}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got.URL.Query().Get("Cmd") != "FolderSync" {
		t.Errorf("Cmd = %q", got.URL.Query().Get("Cmd"))
	}
	if got.URL.Query().Get("DeviceType") != "IwoMail" {
		t.Errorf("DeviceType = %q", got.URL.Query().Get("DeviceType"))
	}
	if got.Header.Get("MS-ASProtocolVersion") != "14.1" {
		t.Errorf("protocol version = %q", got.Header.Get("MS-ASProtocolVersion"))
	}
	if got.Header.Get("X-MS-PolicyKey") != "1234567890" {
		t.Errorf("policy key = %q", got.Header.Get("X-MS-PolicyKey"))
	}
	user, pass, ok := got.BasicAuth()
	if !ok || user != `CORP\alice` || pass != "secret" {
		t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
	}
}

func TestExecuteStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{449, KindPolicyRequired},
		{http.StatusServiceUnavailable, KindTransport},
		{http.StatusBadGateway, KindTransport},
		{http.StatusInternalServerError, KindServer},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		sess := sessionFor(t, srv, nil)
		_, err := sess.Execute(context.Background(), "Sync", nil)
		srv.Close()

		if err == nil {
			t.Errorf("HTTP %d: expected error", tt.status)
			continue
		}
		if KindOf(err) != tt.kind {
			t.Errorf("HTTP %d: kind = %q, want %q", tt.status, KindOf(err), tt.kind)
		}
		if wantRetry := tt.kind == KindTransport; Retryable(err) != wantRetry {
			t.Errorf("HTTP %d: Retryable = %v", tt.status, Retryable(err))
		}
	}
}

func TestExecuteConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // port is now dead

	sess := sessionFor(t, srv, nil)
	_, err := sess.Execute(context.Background(), "Sync", nil)
	if KindOf(err) != KindTransport {
		t.Fatalf("kind = %q, want %q (err: %v)", KindOf(err), KindTransport, err)
	}
}

func TestPinnedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	leaf := srv.Certificate()
	sum := sha256.Sum256(leaf.Raw)
	pin := hex.EncodeToString(sum[:])

	// The pin matches: the self-signed test certificate is accepted.
	sess := sessionFor(t, srv, func(c *Config) { c.PinnedCertSHA256 = pin })
	if _, err := sess.Execute(context.Background(), "Sync", nil); err != nil {
		t.Fatalf("pinned execute: %v", err)
	}

	// A wrong pin fails the handshake as a transport error.
	wrong := make([]byte, sha256.Size)
	sess = sessionFor(t, srv, func(c *Config) { c.PinnedCertSHA256 = hex.EncodeToString(wrong) })
	_, err := sess.Execute(context.Background(), "Sync", nil)
	if KindOf(err) != KindTransport {
		t.Fatalf("mismatched pin: kind = %q (err: %v)", KindOf(err), err)
	}
}

func TestAcceptAllCerts(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Default chain validation rejects the self-signed certificate.
	sess := sessionFor(t, srv, nil)
	if _, err := sess.Execute(context.Background(), "Sync", nil); KindOf(err) != KindTransport {
		t.Fatalf("strict validation: kind = %q, want transport failure", KindOf(err))
	}

	sess = sessionFor(t, srv, func(c *Config) { c.AcceptAllCerts = true })
	if _, err := sess.Execute(context.Background(), "Sync", nil); err != nil {
		t.Fatalf("accept-all execute: %v", err)
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(Config{}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewSession(Config{Host: "mail.example.com", TLS: model.TLSModeTLS, PinnedCertSHA256: "zz"}); err == nil {
		t.Error("expected error for malformed pin")
	}
	if _, err := NewSession(Config{Host: "mail.example.com", TLS: model.TLSModeMutual}); err == nil {
		t.Error("expected error for mutual TLS without client certificate")
	}
}
