// Package web provides the local control API: account management, sync
// triggers and read access to the mirrored data.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dedovmosol/iwomail/internal/account"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/sync"
)

// Config holds dependencies for the web layer.
type Config struct {
	Accounts *account.Store
	Mirror   *mirror.Store
	Engine   *sync.Engine
	Service  *sync.Service
}

// NewRouter creates the Chi router with all routes.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", handleListAccounts(cfg.Accounts))
		r.Post("/accounts", handleCreateAccount(cfg.Accounts))
		r.Get("/sync", handleRunningSyncs(cfg.Service))

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/", handleGetAccount(cfg.Accounts))
			r.Delete("/", handleDeleteAccount(cfg.Accounts, cfg.Engine))

			r.Post("/sync", handleStartSync(cfg.Service))
			r.Delete("/sync", handleCancelSync(cfg.Service))
			r.Get("/jobs", handleListJobs(cfg.Mirror))

			r.Get("/folders", handleListFolders(cfg.Mirror))
			r.Post("/folders", handleCreateFolder(cfg.Engine))
			r.Put("/folders/{folderID}", handleRenameFolder(cfg.Engine))
			r.Delete("/folders/{folderID}", handleDeleteFolder(cfg.Engine))

			r.Get("/folders/{folderID}/messages", handleListMessages(cfg.Mirror))
			r.Get("/folders/{folderID}/messages/{serverID}", handleGetMessage(cfg.Mirror))
			r.Get("/folders/{folderID}/messages/{serverID}/body", handleMessageBody(cfg.Engine))
			r.Get("/folders/{folderID}/messages/{serverID}/attachments", handleListAttachments(cfg.Mirror))
			r.Post("/folders/{folderID}/messages/{serverID}/read", handleMarkRead(cfg.Engine))
			r.Post("/folders/{folderID}/messages/{serverID}/receipt", handleSendReceipt(cfg.Engine))
			r.Post("/folders/{folderID}/messages/{serverID}/respond", handleRespondToMeeting(cfg.Engine))

			r.Get("/attachments/{fileReference}", handleDownloadAttachment(cfg.Mirror, cfg.Engine))

			r.Get("/events", handleListEvents(cfg.Mirror))
			r.Get("/contacts", handleListContacts(cfg.Mirror))
			r.Get("/tasks", handleListTasks(cfg.Mirror))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
