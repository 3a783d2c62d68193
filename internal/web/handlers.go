package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dedovmosol/iwomail/internal/account"
	"github.com/dedovmosol/iwomail/internal/eas"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/sync"
)

// param returns a URL parameter with percent-encoding undone; server IDs
// and file references carry ':' and '/'.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// statusFor maps a protocol failure to an HTTP status for the control API.
func statusFor(err error) int {
	switch eas.KindOf(err) {
	case eas.KindObjectNotFound:
		return http.StatusNotFound
	case eas.KindAuth:
		return http.StatusUnauthorized
	case eas.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- Accounts ---

func handleListAccounts(accounts *account.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := accounts.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []model.Account{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// createAccountRequest carries the one request where secrets cross the API;
// they go straight to the keyring and are never echoed back.
type createAccountRequest struct {
	model.Account
	Password           string `json:"password"`
	AccessToken        string `json:"access_token,omitempty"`
	ClientCertPassword string `json:"client_cert_password,omitempty"`
}

func handleCreateAccount(accounts *account.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Email == "" || req.Host == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "email, host and username are required")
			return
		}

		acct := req.Account
		acct.ID = model.NewID()
		if req.Password != "" {
			acct.PasswordRef = account.PasswordRef(acct.ID)
			if err := account.SetSecret(acct.PasswordRef, req.Password); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if req.AccessToken != "" {
			acct.AccessTokenRef = account.AccessTokenRef(acct.ID)
			if err := account.SetSecret(acct.AccessTokenRef, req.AccessToken); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if req.ClientCertPassword != "" {
			acct.ClientCertPassphraseRef = account.CertPassphraseRef(acct.ID)
			if err := account.SetSecret(acct.ClientCertPassphraseRef, req.ClientCertPassword); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		created, err := accounts.Create(acct)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleGetAccount(accounts *account.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := accounts.Get(param(r, "accountID"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func handleDeleteAccount(accounts *account.Store, engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := param(r, "accountID")
		acct, err := accounts.Get(accountID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if acct.PasswordRef != "" {
			account.DeleteSecret(acct.PasswordRef)
		}
		if acct.AccessTokenRef != "" {
			account.DeleteSecret(acct.AccessTokenRef)
		}
		if acct.ClientCertPassphraseRef != "" {
			account.DeleteSecret(acct.ClientCertPassphraseRef)
		}
		if err := accounts.Delete(accountID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		engine.DropClient(accountID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// --- Sync ---

func handleStartSync(service *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.SyncAccount(param(r, "accountID")); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func handleCancelSync(service *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !service.CancelSync(param(r, "accountID")) {
			writeError(w, http.StatusNotFound, "no sync running")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	}
}

func handleRunningSyncs(service *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.RunningSyncs())
	}
}

func handleListJobs(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		jobs, err := store.RecentJobs(r.Context(), param(r, "accountID"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if jobs == nil {
			jobs = []model.SyncJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// --- Folders ---

func handleListFolders(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folders, err := store.Folders(r.Context(), param(r, "accountID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if folders == nil {
			folders = []model.Folder{}
		}
		writeJSON(w, http.StatusOK, folders)
	}
}

type folderRequest struct {
	ParentID    string `json:"parent_id"`
	DisplayName string `json:"display_name"`
}

func handleCreateFolder(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req folderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "display_name is required")
			return
		}
		if req.ParentID == "" {
			req.ParentID = "0"
		}
		serverID, err := engine.CreateFolder(r.Context(), param(r, "accountID"), req.ParentID, req.DisplayName)
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"server_id": serverID})
	}
}

func handleRenameFolder(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req folderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "display_name is required")
			return
		}
		if req.ParentID == "" {
			req.ParentID = "0"
		}
		err := engine.RenameFolder(r.Context(), param(r, "accountID"), param(r, "folderID"), req.ParentID, req.DisplayName)
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
	}
}

func handleDeleteFolder(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.RemoveFolder(r.Context(), param(r, "accountID"), param(r, "folderID")); err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// --- Messages ---

func handleListMessages(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		items, err := store.MailItems(r.Context(), param(r, "accountID"), param(r, "folderID"), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if items == nil {
			items = []model.MailItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleGetMessage(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := store.MailItem(r.Context(), param(r, "accountID"), param(r, "folderID"), param(r, "serverID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func handleMessageBody(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := engine.LoadItemBody(r.Context(), param(r, "accountID"), param(r, "folderID"), param(r, "serverID"))
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}
}

func handleListAttachments(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atts, err := store.Attachments(r.Context(), param(r, "accountID"), param(r, "serverID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if atts == nil {
			atts = []model.Attachment{}
		}
		writeJSON(w, http.StatusOK, atts)
	}
}

func handleMarkRead(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Read bool `json:"read"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err := engine.MarkRead(r.Context(), param(r, "accountID"), param(r, "folderID"), param(r, "serverID"), req.Read)
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"read": req.Read})
	}
}

func handleRespondToMeeting(engine *sync.Engine) http.HandlerFunc {
	responses := map[string]int{
		"accept":    eas.MeetingAccepted,
		"tentative": eas.MeetingTentative,
		"decline":   eas.MeetingDeclined,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Response string `json:"response"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		response, ok := responses[req.Response]
		if !ok {
			writeError(w, http.StatusBadRequest, "response must be accept, tentative or decline")
			return
		}
		calendarID, err := engine.RespondToMeeting(r.Context(), param(r, "accountID"), param(r, "folderID"), param(r, "serverID"), response)
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "responded", "calendar_id": calendarID})
	}
}

func handleSendReceipt(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := engine.SendReadReceipt(r.Context(), param(r, "accountID"), param(r, "folderID"), param(r, "serverID"))
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

// --- Attachments ---

func handleDownloadAttachment(store *mirror.Store, engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := param(r, "accountID")
		ref := param(r, "fileReference")

		data, err := engine.DownloadAttachment(r.Context(), accountID, ref)
		if err != nil {
			writeError(w, statusFor(err), eas.UserMessage(err))
			return
		}

		contentType := "application/octet-stream"
		name := ""
		if att, aerr := store.AttachmentByReference(r.Context(), accountID, ref); aerr == nil {
			if att.ContentType != "" {
				contentType = att.ContentType
			}
			name = att.DisplayName
		}
		w.Header().Set("Content-Type", contentType)
		if name != "" {
			w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		}
		w.Write(data)
	}
}

// --- Calendar, contacts, tasks ---

func handleListEvents(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, _ := strconv.ParseInt(q.Get("from"), 10, 64)
		to, _ := strconv.ParseInt(q.Get("to"), 10, 64)
		if to == 0 {
			// Default window: the coming month.
			now := time.Now().UTC()
			from = now.Unix()
			to = now.AddDate(0, 1, 0).Unix()
		}
		events, err := store.Events(r.Context(), param(r, "accountID"), from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if events == nil {
			events = []model.CalendarEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handleListContacts(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := store.Contacts(r.Context(), param(r, "accountID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if contacts == nil {
			contacts = []model.Contact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

func handleListTasks(store *mirror.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := store.Tasks(r.Context(), param(r, "accountID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tasks == nil {
			tasks = []model.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}
