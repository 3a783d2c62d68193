package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dedovmosol/iwomail/internal/account"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/storage"
	"github.com/dedovmosol/iwomail/internal/sync"
)

func newTestRouter(t *testing.T) (http.Handler, *mirror.Store) {
	t.Helper()
	dir := t.TempDir()
	accounts := account.NewStore(dir)
	store, err := mirror.NewStore(filepath.Join(dir, "mirror.db"))
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := sync.NewEngine(accounts, store, storage.NewFSBlobStore(filepath.Join(dir, "blobs")),
		func(string) (string, error) { return "", nil }, sync.Options{})
	return NewRouter(Config{
		Accounts: accounts,
		Mirror:   store,
		Engine:   engine,
		Service:  sync.NewService(engine),
	}), store
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	w := doRequest(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestListAccountsEmpty(t *testing.T) {
	h, _ := newTestRouter(t)
	w := doRequest(t, h, http.MethodGet, "/api/accounts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	h, _ := newTestRouter(t)
	w := doRequest(t, h, http.MethodPost, "/api/accounts", `{"email":"x@example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = doRequest(t, h, http.MethodPost, "/api/accounts", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListFoldersAndMessages(t *testing.T) {
	h, store := newTestRouter(t)
	ctx := context.Background()

	batch := mirror.Batch{
		Folders: []model.Folder{{
			AccountID: "acc-1", ServerID: "f1", ParentID: "0",
			DisplayName: "Inbox", Kind: model.FolderKindInbox,
		}},
		Mail: []model.MailItem{{
			AccountID: "acc-1", FolderID: "f1", ServerID: "m1",
			From: "a@example.com", Subject: "hello",
		}},
	}
	if err := store.ApplyBatch(ctx, "acc-1", "f1", model.FolderKindInbox, batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doRequest(t, h, http.MethodGet, "/api/accounts/acc-1/folders", "")
	if w.Code != http.StatusOK {
		t.Fatalf("folders status = %d", w.Code)
	}
	var folders []model.Folder
	if err := json.Unmarshal(w.Body.Bytes(), &folders); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(folders) != 1 || folders[0].DisplayName != "Inbox" {
		t.Errorf("folders = %+v", folders)
	}

	w = doRequest(t, h, http.MethodGet, "/api/accounts/acc-1/folders/f1/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d", w.Code)
	}
	var items []model.MailItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(items) != 1 || items[0].Subject != "hello" {
		t.Errorf("items = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/api/accounts/acc-1/folders/f1/messages/m1", "")
	if w.Code != http.StatusOK {
		t.Errorf("message status = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/api/accounts/acc-1/folders/f1/messages/none", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing message status = %d", w.Code)
	}
}

func TestRespondToMeetingValidation(t *testing.T) {
	h, _ := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/api/accounts/acc-1/folders/f1/messages/m1/respond", `{"response":"maybe"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown response status = %d, want 400", w.Code)
	}
	w = doRequest(t, h, http.MethodPost, "/api/accounts/acc-1/folders/f1/messages/m1/respond", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}
}

func TestSyncEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	w := doRequest(t, h, http.MethodGet, "/api/sync", "")
	if w.Code != http.StatusOK {
		t.Errorf("running syncs status = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodDelete, "/api/accounts/acc-1/sync", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cancel without run status = %d", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/api/accounts/acc-1/jobs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("jobs status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("jobs body = %q", got)
	}
}
