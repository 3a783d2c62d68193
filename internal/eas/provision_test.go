package eas

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

func provisionReply(t *testing.T, key string) []byte {
	t.Helper()
	resp := wbxml.NewNode(wbxml.PageProvision, wbxml.ProvProvision).Add(
		wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvStatus, "1"),
		wbxml.NewNode(wbxml.PageProvision, wbxml.ProvPolicies).Add(
			wbxml.NewNode(wbxml.PageProvision, wbxml.ProvPolicy).Add(
				wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvStatus, "1"),
				wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvPolicyKey, key),
			),
		),
	)
	raw, err := wbxml.Encode(resp)
	if err != nil {
		t.Fatalf("encode provision reply: %v", err)
	}
	return raw
}

// isAckLeg reports whether a provision request carries a policy key, which
// distinguishes the acknowledgement leg from the initial request.
func isAckLeg(t *testing.T, body []byte) (bool, string) {
	t.Helper()
	req, err := wbxml.Decode(body)
	if err != nil {
		t.Fatalf("decode provision request: %v", err)
	}
	policy := req.Child(wbxml.PageProvision, wbxml.ProvPolicies).Child(wbxml.PageProvision, wbxml.ProvPolicy)
	if policy == nil {
		t.Fatal("provision request missing Policy")
	}
	if policy.ChildText(wbxml.PageProvision, wbxml.ProvPolicyType) != "MS-EAS-Provisioning-WBXML" {
		t.Errorf("unexpected policy type %q", policy.ChildText(wbxml.PageProvision, wbxml.ProvPolicyType))
	}
	key := policy.ChildText(wbxml.PageProvision, wbxml.ProvPolicyKey)
	return key != "", key
}

func TestEnsureRunsTwoLegHandshake(t *testing.T) {
	var legs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		legs.Add(1)
		ack, key := isAckLeg(t, body)
		if !ack {
			w.Write(provisionReply(t, "TEMP-1"))
			return
		}
		if key != "TEMP-1" {
			t.Errorf("acknowledged key = %q, want TEMP-1", key)
		}
		w.Write(provisionReply(t, "FINAL-9"))
	}))
	defer srv.Close()

	sess := sessionFor(t, srv, nil)

	var persisted string
	prov := NewProvisioner("", func(key string) error {
		persisted = key
		return nil
	})
	if prov.State() != StateUnprovisioned {
		t.Fatalf("initial state = %v", prov.State())
	}

	key, err := prov.Ensure(context.Background(), sess)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if key != "FINAL-9" {
		t.Errorf("key = %q, want FINAL-9", key)
	}
	if legs.Load() != 2 {
		t.Errorf("handshake took %d legs, want 2", legs.Load())
	}
	if persisted != "FINAL-9" {
		t.Errorf("persisted = %q", persisted)
	}
	if prov.State() != StateProvisioned || prov.PolicyKey() != "FINAL-9" {
		t.Errorf("state = %v key = %q after handshake", prov.State(), prov.PolicyKey())
	}

	// A provisioned token short-circuits: no further requests.
	if _, err := prov.Ensure(context.Background(), sess); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if legs.Load() != 2 {
		t.Errorf("second Ensure hit the server (%d legs)", legs.Load())
	}
}

func TestConcurrentEnsureSharesOneHandshake(t *testing.T) {
	var legs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		legs.Add(1)
		// Hold the first leg open long enough for every caller to pile up
		// behind the same handshake.
		time.Sleep(50 * time.Millisecond)
		if ack, _ := isAckLeg(t, body); ack {
			w.Write(provisionReply(t, "SHARED-5"))
			return
		}
		w.Write(provisionReply(t, "TEMP-5"))
	}))
	defer srv.Close()

	sess := sessionFor(t, srv, nil)
	prov := NewProvisioner("", nil)

	var wg sync.WaitGroup
	keys := make([]string, 8)
	for i := 0; i < len(keys); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := prov.Ensure(context.Background(), sess)
			if err != nil {
				t.Errorf("Ensure: %v", err)
			}
			keys[i] = key
		}()
	}
	wg.Wait()

	if legs.Load() != 2 {
		t.Errorf("server saw %d legs, want 2 for a shared handshake", legs.Load())
	}
	for i, key := range keys {
		if key != "SHARED-5" {
			t.Errorf("caller %d got key %q, want SHARED-5", i, key)
		}
	}
}

func TestSeededProvisionerSkipsHandshake(t *testing.T) {
	prov := NewProvisioner("SAVED-3", nil)
	if prov.State() != StateProvisioned {
		t.Fatalf("state = %v, want provisioned", prov.State())
	}
	key, err := prov.Ensure(context.Background(), nil)
	if err != nil || key != "SAVED-3" {
		t.Fatalf("Ensure = %q, %v", key, err)
	}
}

func TestInvalidateForcesNewHandshake(t *testing.T) {
	var legs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		legs.Add(1)
		if ack, _ := isAckLeg(t, body); ack {
			w.Write(provisionReply(t, "FRESH-2"))
			return
		}
		w.Write(provisionReply(t, "TEMP-2"))
	}))
	defer srv.Close()

	prov := NewProvisioner("STALE-1", nil)
	prov.Invalidate()
	if prov.PolicyKey() != "" || prov.State() != StateUnprovisioned {
		t.Fatal("Invalidate did not clear the token")
	}

	key, err := prov.Ensure(context.Background(), sessionFor(t, srv, nil))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if key != "FRESH-2" || legs.Load() != 2 {
		t.Errorf("key = %q legs = %d", key, legs.Load())
	}
}

func TestEnsureSurfacesRefusedPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wbxml.NewNode(wbxml.PageProvision, wbxml.ProvProvision).Add(
			wbxml.NewTextNode(wbxml.PageProvision, wbxml.ProvStatus, "2"),
		)
		raw, _ := wbxml.Encode(resp)
		w.Write(raw)
	}))
	defer srv.Close()

	prov := NewProvisioner("", nil)
	_, err := prov.Ensure(context.Background(), sessionFor(t, srv, nil))
	if KindOf(err) != KindServer {
		t.Fatalf("kind = %q (err: %v)", KindOf(err), err)
	}
	if prov.State() != StateUnprovisioned {
		t.Errorf("state = %v after failed handshake", prov.State())
	}
}
