// Package sync orchestrates the protocol layer, the local mirror and the
// blob cache: it owns cursors, retries, provisioning recovery and the
// coalescing of concurrent requests for the same collection.
package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dedovmosol/iwomail/internal/account"
	"github.com/dedovmosol/iwomail/internal/eas"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/storage"
	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// Options tunes the engine. Zero values fall back to the defaults below.
type Options struct {
	// MaxParallel bounds concurrent per-folder syncs within one account.
	MaxParallel int

	// WindowSize caps items per sync window.
	WindowSize int

	// RetryAttempts bounds transport-level retries per request.
	RetryAttempts int

	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration

	// RequestsPerSecond rate-limits outgoing requests across the engine.
	RequestsPerSecond float64

	// BodyTruncation caps body bytes fetched during item sync; full bodies
	// come through LoadItemBody on demand.
	BodyTruncation int
}

func (o *Options) fill() {
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if o.WindowSize <= 0 {
		o.WindowSize = 100
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 10
	}
	if o.BodyTruncation <= 0 {
		o.BodyTruncation = 32 * 1024
	}
}

// SecretFunc resolves a keyring reference to its secret value.
type SecretFunc func(ref string) (string, error)

// Engine drives synchronization for all configured accounts.
type Engine struct {
	accounts *account.Store
	mirror   *mirror.Store
	blobs    storage.BlobStore
	secrets  SecretFunc
	opts     Options

	limiter *rate.Limiter

	// inflight coalesces concurrent syncs of the same (account, folder)
	// pair into one network exchange.
	inflight singleflight.Group

	mu      sync.Mutex
	clients map[string]*client
}

// client is the cached per-account protocol state.
type client struct {
	acct model.Account
	sess *eas.Session
	prov *eas.Provisioner
}

// NewEngine wires the engine. secrets may be nil, in which case the OS
// keyring is used.
func NewEngine(accounts *account.Store, m *mirror.Store, blobs storage.BlobStore, secrets SecretFunc, opts Options) *Engine {
	opts.fill()
	if secrets == nil {
		secrets = account.Secret
	}
	return &Engine{
		accounts: accounts,
		mirror:   m,
		blobs:    blobs,
		secrets:  secrets,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		clients:  make(map[string]*client),
	}
}

// DropClient discards the cached session of an account, forcing a rebuild
// on next use. Called after credential or endpoint changes.
func (e *Engine) DropClient(accountID string) {
	e.mu.Lock()
	delete(e.clients, accountID)
	e.mu.Unlock()
}

func (e *Engine) client(accountID string) (*client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[accountID]; ok {
		return c, nil
	}

	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	cfg := eas.Config{
		Host:             acct.Host,
		Port:             acct.Port,
		TLS:              acct.TLS,
		Username:         acct.Username,
		Domain:           acct.Domain,
		Auth:             acct.Auth,
		AcceptAllCerts:   acct.AcceptAllCerts,
		PinnedCertSHA256: acct.PinnedCertSHA256,
		DeviceID:         acct.DeviceID,
	}
	if acct.Auth != model.AuthModeBearer && acct.PasswordRef != "" {
		pw, err := e.secrets(acct.PasswordRef)
		if err != nil {
			return nil, fmt.Errorf("resolve password for %s: %w", acct.Email, err)
		}
		cfg.Password = pw
	}
	if acct.Auth == model.AuthModeBearer {
		if acct.AccessTokenRef == "" {
			return nil, eas.NewError(eas.KindAuth, "account "+acct.Email+" has no access token configured")
		}
		tok, err := e.secrets(acct.AccessTokenRef)
		if err != nil {
			return nil, fmt.Errorf("resolve access token for %s: %w", acct.Email, err)
		}
		if tok == "" {
			return nil, eas.NewError(eas.KindAuth, "access token for "+acct.Email+" is empty")
		}
		cfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
	}
	if acct.TLS == model.TLSModeMutual {
		passphrase := ""
		if acct.ClientCertPassphraseRef != "" {
			passphrase, err = e.secrets(acct.ClientCertPassphraseRef)
			if err != nil {
				return nil, fmt.Errorf("resolve certificate passphrase for %s: %w", acct.Email, err)
			}
		}
		cert, err := eas.LoadClientCertificate(acct.ClientCertPath, passphrase)
		if err != nil {
			return nil, err
		}
		cfg.ClientCert = cert
	}

	accID := acct.ID
	prov := eas.NewProvisioner(acct.PolicyKey, func(key string) error {
		return e.accounts.SetPolicyKey(accID, key)
	})
	cfg.PolicyKey = prov.PolicyKey

	sess, err := eas.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	c := &client{acct: *acct, sess: sess, prov: prov}
	e.clients[accountID] = c
	return c, nil
}

// execute encodes and sends one command, decoding the response. Transport
// failures are retried with doubling backoff up to the configured bound. A
// policy-required rejection triggers one provisioning handshake and one
// resend; a second rejection is surfaced.
func (e *Engine) execute(ctx context.Context, c *client, command string, req *wbxml.Node) (*wbxml.Node, error) {
	body, err := wbxml.Encode(req)
	if err != nil {
		return nil, eas.WrapError(eas.KindDecode, "encode "+command+" request", err)
	}

	provisioned := false
	backoff := e.opts.RetryBackoff
	var raw []byte
	for attempt := 1; ; attempt++ {
		if err = e.limiter.Wait(ctx); err != nil {
			return nil, eas.WrapError(eas.KindTransport, "rate limit wait", err)
		}

		raw, err = c.sess.Execute(ctx, command, body)
		if err == nil {
			break
		}

		switch {
		case eas.KindOf(err) == eas.KindPolicyRequired && !provisioned:
			provisioned = true
			c.prov.Invalidate()
			if _, perr := c.prov.Ensure(ctx, c.sess); perr != nil {
				return nil, perr
			}
			continue
		case eas.Retryable(err) && attempt < e.opts.RetryAttempts:
			log.Printf("WARN: %s attempt %d for %s failed: %v", command, attempt, c.acct.Email, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, eas.WrapError(eas.KindTransport, command+" canceled", ctx.Err())
			}
			backoff *= 2
			continue
		}
		return nil, err
	}

	return eas.DecodeResponse(raw)
}
