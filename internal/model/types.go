// Package model defines core data types shared across the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 (time-ordered) identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails (should never happen).
		return uuid.New().String()
	}
	return id.String()
}

// TLSMode selects the transport security for an account.
type TLSMode string

const (
	TLSModePlain  TLSMode = "PLAIN"
	TLSModeTLS    TLSMode = "TLS"
	TLSModeMutual TLSMode = "MUTUAL_TLS"
)

// AuthMode selects how the transport authenticates to the server.
type AuthMode string

const (
	AuthModeBasic  AuthMode = "BASIC"
	AuthModeBearer AuthMode = "BEARER"
)

// Account is a single ActiveSync account configuration.
// Secrets (password, certificate passphrase, OAuth token) are never stored
// here; the fields ending in Ref are keys into the credential keyring.
type Account struct {
	ID       string  `json:"id" yaml:"id"`
	Email    string  `json:"email" yaml:"email"`
	Host     string  `json:"host" yaml:"host"`
	Port     int     `json:"port,omitempty" yaml:"port,omitempty"`
	Domain   string  `json:"domain,omitempty" yaml:"domain,omitempty"`
	Username string  `json:"username" yaml:"username"`
	TLS      TLSMode `json:"tls" yaml:"tls"`

	Auth        AuthMode `json:"auth,omitempty" yaml:"auth,omitempty"`
	PasswordRef string   `json:"-" yaml:"password_ref,omitempty"`

	// AccessTokenRef names the keyring entry holding the bearer token for
	// AuthModeBearer accounts.
	AccessTokenRef string `json:"-" yaml:"access_token_ref,omitempty"`

	// AcceptAllCerts disables server certificate validation. Unsafe; kept
	// for servers with broken chains on private networks.
	AcceptAllCerts bool `json:"accept_all_certs,omitempty" yaml:"accept_all_certs,omitempty"`

	// PinnedCertSHA256 pins the server leaf certificate (hex SHA-256).
	PinnedCertSHA256 string `json:"pinned_cert_sha256,omitempty" yaml:"pinned_cert_sha256,omitempty"`

	// Client certificate for mutual TLS: a PKCS#12 blob on disk plus the
	// keyring reference of its passphrase.
	ClientCertPath          string `json:"client_cert_path,omitempty" yaml:"client_cert_path,omitempty"`
	ClientCertPassphraseRef string `json:"-" yaml:"client_cert_passphrase_ref,omitempty"`

	// DeviceID identifies this client to the server; generated on creation
	// and stable for the account's lifetime.
	DeviceID string `json:"device_id" yaml:"device_id"`

	// PolicyKey is the opaque provisioning token last acknowledged for this
	// account. Empty until the first successful provisioning handshake.
	PolicyKey string `json:"-" yaml:"policy_key,omitempty"`

	Sync SyncConfig `json:"sync" yaml:"sync"`
}

// SyncConfig controls sync timing for an account.
type SyncConfig struct {
	Interval string `json:"interval" yaml:"interval"` // e.g. "5m", "1h30m"
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// AccountsFile is the on-disk accounts.yml structure.
type AccountsFile struct {
	Accounts []Account `json:"accounts" yaml:"accounts"`
}

// FolderKind classifies a synced folder. Values follow the server's
// FolderSync type codes.
type FolderKind int

const (
	FolderKindOther    FolderKind = 1
	FolderKindInbox    FolderKind = 2
	FolderKindDrafts   FolderKind = 3
	FolderKindDeleted  FolderKind = 4
	FolderKindSent     FolderKind = 5
	FolderKindOutbox   FolderKind = 6
	FolderKindTasks    FolderKind = 7
	FolderKindCalendar FolderKind = 8
	FolderKindContacts FolderKind = 9
	FolderKindNotes    FolderKind = 10
	FolderKindUser     FolderKind = 12
	FolderKindExternal FolderKind = 14 // other-service folder
)

// IsMail reports whether the folder holds mail items (as opposed to
// calendar, contact, or task items).
func (k FolderKind) IsMail() bool {
	switch k {
	case FolderKindCalendar, FolderKindContacts, FolderKindTasks, FolderKindNotes:
		return false
	}
	return true
}

// Folder mirrors one server folder. ServerID and ParentID are
// server-assigned; ParentID "0" means the folder is a root.
type Folder struct {
	AccountID   string     `json:"account_id" db:"account_id"`
	ServerID    string     `json:"server_id" db:"server_id"`
	ParentID    string     `json:"parent_id" db:"parent_id"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Kind        FolderKind `json:"kind" db:"kind"`
	Unread      int        `json:"unread" db:"unread"`
	Total       int        `json:"total" db:"total"`
}

// BodyEncoding tags how a MailItem body was delivered by the server.
type BodyEncoding string

const (
	BodyEncodingPlain BodyEncoding = "PLAIN"
	BodyEncodingHTML  BodyEncoding = "HTML"
	BodyEncodingMIME  BodyEncoding = "MIME"
)

// MailItem mirrors one mail message. Body may be empty because it has not
// been fetched yet; BodyFetched distinguishes that from a server-confirmed
// empty body.
type MailItem struct {
	AccountID string `json:"account_id" db:"account_id"`
	FolderID  string `json:"folder_id" db:"folder_id"`
	ServerID  string `json:"server_id" db:"server_id"`

	From    string    `json:"from" db:"from_addr"`
	To      string    `json:"to" db:"to_addr"`
	Cc      string    `json:"cc,omitempty" db:"cc_addr"`
	Subject string    `json:"subject" db:"subject"`
	Date    time.Time `json:"date" db:"date"`

	Read           bool `json:"read" db:"read"`
	Flagged        bool `json:"flagged" db:"flagged"`
	HasAttachments bool `json:"has_attachments" db:"has_attachments"`

	Body         string       `json:"body,omitempty" db:"body"`
	BodyEncoding BodyEncoding `json:"body_encoding,omitempty" db:"body_encoding"`
	BodyFetched  bool         `json:"body_fetched" db:"body_fetched"`

	// ReadReceiptRequested is set when the sender asked for an MDN and we
	// have not answered yet; cleared once the receipt is sent.
	ReadReceiptRequested bool `json:"read_receipt_requested" db:"read_receipt_requested"`

	// Invitation holds the parsed meeting request carried by the message
	// body, JSON-encoded; empty for regular mail.
	Invitation string `json:"invitation,omitempty" db:"invitation"`
}

// Attachment describes one attachment of a MailItem. FileReference is the
// opaque server handle required to download the bytes; LocalPath is empty
// until the attachment has been fetched and cached.
type Attachment struct {
	AccountID    string `json:"account_id" db:"account_id"`
	ItemServerID string `json:"item_server_id" db:"item_server_id"`
	DisplayName  string `json:"display_name" db:"display_name"`
	ContentType  string `json:"content_type" db:"content_type"`
	SizeEstimate int    `json:"size_estimate" db:"size_estimate"`
	Inline       bool   `json:"inline" db:"inline"`
	ContentID    string `json:"content_id,omitempty" db:"content_id"`

	FileReference string `json:"file_reference" db:"file_reference"`
	LocalPath     string `json:"local_path,omitempty" db:"local_path"`
}

// ResponseStatus is an attendee's reply to a meeting invitation.
type ResponseStatus int

const (
	ResponseUnknown      ResponseStatus = 0
	ResponseTentative    ResponseStatus = 2
	ResponseAccepted     ResponseStatus = 3
	ResponseDeclined     ResponseStatus = 4
	ResponseNotResponded ResponseStatus = 5
)

// BusyStatus is the free/busy state of a calendar event.
type BusyStatus int

const (
	BusyFree        BusyStatus = 0
	BusyTentative   BusyStatus = 1
	BusyBusy        BusyStatus = 2
	BusyOutOfOffice BusyStatus = 3
)

// Attendee is one entry of a CalendarEvent attendee list.
type Attendee struct {
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Status ResponseStatus `json:"status"`
}

// CalendarEvent mirrors one calendar item. Start/End are UTC epoch seconds;
// End is zero when the server sent no end time.
type CalendarEvent struct {
	AccountID string `json:"account_id" db:"account_id"`
	FolderID  string `json:"folder_id" db:"folder_id"`
	ServerID  string `json:"server_id" db:"server_id"`

	Subject  string `json:"subject" db:"subject"`
	Location string `json:"location,omitempty" db:"location"`
	Body     string `json:"body,omitempty" db:"body"`

	Start  int64 `json:"start" db:"start_at"`
	End    int64 `json:"end" db:"end_at"`
	AllDay bool  `json:"all_day" db:"all_day"`

	Organizer string     `json:"organizer,omitempty" db:"organizer"`
	Attendees []Attendee `json:"attendees,omitempty" db:"-"`

	Busy            BusyStatus `json:"busy" db:"busy"`
	Recurring       bool       `json:"recurring" db:"recurring"`
	ReminderMinutes int        `json:"reminder_minutes" db:"reminder_minutes"`
}

// Contact mirrors one address book entry.
type Contact struct {
	AccountID string `json:"account_id" db:"account_id"`
	FolderID  string `json:"folder_id" db:"folder_id"`
	ServerID  string `json:"server_id" db:"server_id"`

	FirstName string `json:"first_name,omitempty" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`
	FileAs    string `json:"file_as,omitempty" db:"file_as"`
	Company   string `json:"company,omitempty" db:"company"`
	Email1    string `json:"email1,omitempty" db:"email1"`
	Email2    string `json:"email2,omitempty" db:"email2"`
	Phone     string `json:"phone,omitempty" db:"phone"`
	Mobile    string `json:"mobile,omitempty" db:"mobile"`
}

// Task mirrors one task item. DueDate is UTC epoch seconds, zero when unset.
type Task struct {
	AccountID string `json:"account_id" db:"account_id"`
	FolderID  string `json:"folder_id" db:"folder_id"`
	ServerID  string `json:"server_id" db:"server_id"`

	Subject    string `json:"subject" db:"subject"`
	Body       string `json:"body,omitempty" db:"body"`
	Complete   bool   `json:"complete" db:"complete"`
	DueDate    int64  `json:"due_date" db:"due_date"`
	Importance int    `json:"importance" db:"importance"`
}

// SyncJob is one recorded sync run, kept for status reporting.
type SyncJob struct {
	ID         string     `json:"id" db:"id"`
	AccountID  string     `json:"account_id" db:"account_id"`
	FolderID   string     `json:"folder_id,omitempty" db:"folder_id"`
	Status     SyncStatus `json:"status" db:"status"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Changed    int        `json:"changed" db:"changed"`
	Error      string     `json:"error,omitempty" db:"error"`
}

// SyncStatus represents the state of a sync job.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusDone    SyncStatus = "done"
	SyncStatusFailed  SyncStatus = "failed"
)
