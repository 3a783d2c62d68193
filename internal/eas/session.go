package eas

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/dedovmosol/iwomail/internal/model"
)

const (
	easEndpoint     = "/Microsoft-Server-ActiveSync"
	easContentType  = "application/vnd.ms-sync.wbxml"
	easProtoVersion = "14.1"
	deviceType      = "IwoMail"

	defaultTimeout = 60 * time.Second
)

// Config holds everything a Session needs to reach one server. Secrets are
// resolved by the caller; the session never touches the keyring.
type Config struct {
	Host string
	Port int
	TLS  model.TLSMode

	Username string
	Password string
	Domain   string

	// TokenSource supplies bearer tokens when Auth is AuthModeBearer.
	Auth        model.AuthMode
	TokenSource oauth2.TokenSource

	// AcceptAllCerts bypasses server certificate validation entirely.
	AcceptAllCerts bool

	// PinnedCertSHA256 accepts exactly the certificate with this leaf
	// fingerprint (hex SHA-256), chain validity notwithstanding.
	PinnedCertSHA256 string

	// ClientCert is presented for mutual TLS when TLS is TLSModeMutual.
	ClientCert *tls.Certificate

	DeviceID string

	// PolicyKey is read per request so a provisioning handshake mid-cycle
	// is picked up without rebuilding the session.
	PolicyKey func() string

	Timeout time.Duration
}

// Session issues ActiveSync HTTP requests. It never retries internally;
// retry policy lives in the sync engine so retries stay observable and
// boundable.
type Session struct {
	cfg    Config
	client *http.Client
	base   string
}

// NewSession builds a transport session for one account.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Host == "" {
		return nil, eris.New("session: host is required")
	}
	if cfg.Auth == model.AuthModeBearer && cfg.TokenSource == nil {
		return nil, NewError(KindAuth, "bearer authentication requires a token source")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	scheme := "https"
	if cfg.TLS == model.TLSModePlain {
		scheme = "http"
	}
	host := cfg.Host
	if cfg.Port != 0 {
		host = net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	}

	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig:   tlsCfg,
				ForceAttemptHTTP2: true,
			},
		},
		base: scheme + "://" + host + easEndpoint,
	}, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.TLS == model.TLSModePlain {
		return nil, nil
	}

	tlsCfg := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	switch {
	case cfg.PinnedCertSHA256 != "":
		want, err := hex.DecodeString(strings.ReplaceAll(strings.ToLower(cfg.PinnedCertSHA256), ":", ""))
		if err != nil || len(want) != sha256.Size {
			return nil, eris.New("session: pinned fingerprint is not a hex SHA-256")
		}
		// Pinning replaces chain validation: the pinned leaf is trusted
		// even when self-signed.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("server presented no certificate")
			}
			got := sha256.Sum256(rawCerts[0])
			if !bytes.Equal(got[:], want) {
				return fmt.Errorf("server certificate fingerprint %x does not match pin", got)
			}
			return nil
		}
	case cfg.AcceptAllCerts:
		tlsCfg.InsecureSkipVerify = true
	}

	if cfg.TLS == model.TLSModeMutual {
		if cfg.ClientCert == nil {
			return nil, eris.New("session: mutual TLS requires a client certificate")
		}
		tlsCfg.Certificates = []tls.Certificate{*cfg.ClientCert}
	}

	return tlsCfg, nil
}

// LoadClientCertificate reads a PKCS#12 file and returns the contained
// certificate and key as a TLS client certificate.
func LoadClientCertificate(path, passphrase string) (*tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read client certificate %s", path)
	}
	key, cert, caCerts, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return nil, eris.Wrapf(err, "decode PKCS#12 %s", path)
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}
	for _, ca := range caCerts {
		tlsCert.Certificate = append(tlsCert.Certificate, ca.Raw)
	}
	return &tlsCert, nil
}

// Execute posts one command body and returns the raw response bytes.
// HTTP 449 maps to KindPolicyRequired, 401/403 to KindAuth, network-level
// failures to KindTransport (retryable).
func (s *Session) Execute(ctx context.Context, command string, body []byte) ([]byte, error) {
	q := url.Values{}
	q.Set("Cmd", command)
	q.Set("User", s.cfg.Username)
	q.Set("DeviceId", s.cfg.DeviceID)
	q.Set("DeviceType", deviceType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(KindTransport, "build request", err)
	}
	req.Header.Set("Content-Type", easContentType)
	req.Header.Set("MS-ASProtocolVersion", easProtoVersion)
	req.Header.Set("User-Agent", deviceType+"/1.0")
	if s.cfg.PolicyKey != nil {
		if key := s.cfg.PolicyKey(); key != "" {
			req.Header.Set("X-MS-PolicyKey", key)
		}
	}
	if err := s.authorize(req); err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, WrapError(KindTransport, command+" request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, NewError(KindAuth, fmt.Sprintf("server rejected credentials (HTTP %d)", resp.StatusCode))
	case 449:
		return nil, NewError(KindPolicyRequired, "server requires provisioning (HTTP 449)")
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return nil, NewError(KindTransport, fmt.Sprintf("server unavailable (HTTP %d)", resp.StatusCode))
	default:
		return nil, NewError(KindServer, fmt.Sprintf("%s returned HTTP %d", command, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindTransport, "read response body", err)
	}
	return data, nil
}

func (s *Session) authorize(req *http.Request) error {
	if s.cfg.Auth == model.AuthModeBearer && s.cfg.TokenSource != nil {
		tok, err := s.cfg.TokenSource.Token()
		if err != nil {
			return WrapError(KindAuth, "obtain bearer token", err)
		}
		tok.SetAuthHeader(req)
		return nil
	}

	user := s.cfg.Username
	if s.cfg.Domain != "" {
		user = s.cfg.Domain + "\\" + user
	}
	req.SetBasicAuth(user, s.cfg.Password)
	return nil
}
