package eas

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// Provisioning states.
type ProvisionState int

const (
	StateUnprovisioned ProvisionState = iota
	StateProvisioning
	StateProvisioned
)

const policyTypeWBXML = "MS-EAS-Provisioning-WBXML"

// Provisioner performs the device-policy handshake and owns the account's
// policy token under a single-writer discipline. Every other component
// reads the token through PolicyKey.
type Provisioner struct {
	mu    sync.RWMutex
	state ProvisionState
	key   string

	// sf collapses concurrent Ensure calls into one handshake.
	sf singleflight.Group

	// persist stores the acknowledged token in the external account store.
	persist func(key string) error
}

// NewProvisioner creates a provisioner seeded with the persisted token, if
// any. A non-empty token starts in StateProvisioned.
func NewProvisioner(persistedKey string, persist func(key string) error) *Provisioner {
	p := &Provisioner{key: persistedKey, persist: persist}
	if persistedKey != "" {
		p.state = StateProvisioned
	}
	return p
}

// PolicyKey returns the current policy token ("" when unprovisioned).
func (p *Provisioner) PolicyKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key
}

// State returns the current provisioning state.
func (p *Provisioner) State() ProvisionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Invalidate discards the token, forcing a handshake on the next Ensure.
// Called when the server answers 449 despite a token being present.
func (p *Provisioner) Invalidate() {
	p.mu.Lock()
	p.state = StateUnprovisioned
	p.key = ""
	p.mu.Unlock()
}

// Ensure runs the provisioning handshake if no valid token exists. It is
// safe for concurrent use; concurrent callers share one handshake. Failure
// is fatal for the calling sync attempt but not for the account — the next
// attempt restarts the handshake.
func (p *Provisioner) Ensure(ctx context.Context, sess *Session) (string, error) {
	p.mu.RLock()
	if p.state == StateProvisioned && p.key != "" {
		key := p.key
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.sf.Do("handshake", func() (any, error) {
		p.mu.Lock()
		if p.state == StateProvisioned && p.key != "" {
			key := p.key
			p.mu.Unlock()
			return key, nil
		}
		p.state = StateProvisioning
		p.mu.Unlock()

		key, err := p.handshake(ctx, sess)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.state = StateUnprovisioned
			return "", err
		}
		p.state = StateProvisioned
		p.key = key

		if p.persist != nil {
			if perr := p.persist(key); perr != nil {
				log.Printf("WARN: persist policy key: %v", perr)
			}
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	key, _ := v.(string)
	return key, nil
}

// handshake is the two-leg exchange: request the policy, then acknowledge
// the temporary key to obtain the final one.
func (p *Provisioner) handshake(ctx context.Context, sess *Session) (string, error) {
	tempKey, err := p.leg(ctx, sess, "0", false)
	if err != nil {
		return "", err
	}
	finalKey, err := p.leg(ctx, sess, tempKey, true)
	if err != nil {
		return "", err
	}
	log.Printf("INFO: provisioning complete, policy key acknowledged")
	return finalKey, nil
}

func (p *Provisioner) leg(ctx context.Context, sess *Session, key string, ack bool) (string, error) {
	policy := wbxml.NewNode(wbxml.PageProvision, wbxml.ProvPolicy).Add(
		wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvPolicyType, policyTypeWBXML),
	)
	if ack {
		policy.Add(
			wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvPolicyKey, key),
			wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvStatus, "1"),
		)
	}
	req := wbxml.NewNode(wbxml.PageProvision, wbxml.ProvProvision).Add(
		wbxml.NewNode(wbxml.PageProvision, wbxml.ProvPolicies).Add(policy),
	)

	body, err := wbxml.Encode(req)
	if err != nil {
		return "", WrapError(KindDecode, "encode provision request", err)
	}
	raw, err := sess.Execute(ctx, "Provision", body)
	if err != nil {
		return "", err
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		return "", err
	}

	if !resp.Is(wbxml.PageProvision, wbxml.ProvProvision) {
		return "", NewError(KindDecode, "provision response has wrong document element")
	}
	if st := resp.ChildText(wbxml.PageProvision, wbxml.ProvStatus); st != "" && st != "1" {
		return "", NewError(KindServer, "provisioning refused with status "+st)
	}

	policies := resp.Child(wbxml.PageProvision, wbxml.ProvPolicies)
	if policies == nil {
		return "", NewError(KindDecode, "provision response missing Policies")
	}
	pol := policies.Child(wbxml.PageProvision, wbxml.ProvPolicy)
	if pol == nil {
		return "", NewError(KindDecode, "provision response missing Policy")
	}
	if st := pol.ChildText(wbxml.PageProvision, wbxml.ProvStatus); st != "" && st != "1" {
		return "", NewError(KindServer, "policy refused with status "+st)
	}
	newKey := pol.ChildText(wbxml.PageProvision, wbxml.ProvPolicyKey)
	if newKey == "" {
		return "", NewError(KindDecode, "provision response missing PolicyKey")
	}
	return newKey, nil
}
