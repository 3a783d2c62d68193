package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/dedovmosol/iwomail/internal/model"
)

// HierarchyCollection is the pseudo collection ID under which the folder
// hierarchy cursor is stored. Real collection IDs are server-assigned and
// never start with "__".
const HierarchyCollection = "__hierarchy__"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("mirror: not found")

// Store wraps the mirror database.
type Store struct {
	db *sqlx.DB
}

// NewStore opens the database at path.
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Batch is the outcome of one sync window against a single collection,
// applied to the mirror in a single transaction together with the cursor
// advance. Re-applying the same batch is harmless.
type Batch struct {
	Folders     []model.Folder
	Mail        []model.MailItem
	Attachments []model.Attachment
	Events      []model.CalendarEvent
	Contacts    []model.Contact
	Tasks       []model.Task

	// Deletes holds server IDs of items removed from the collection.
	Deletes []string

	// SyncKey is the cursor value valid after this batch. Empty leaves the
	// cursor untouched.
	SyncKey string
}

// ApplyBatch writes a window of changes and the advanced cursor atomically.
// If anything fails the cursor stays where it was and the window will be
// requested again.
func (s *Store) ApplyBatch(ctx context.Context, accountID, collectionID string, kind model.FolderKind, b Batch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin batch")
	}
	defer tx.Rollback()

	for i := range b.Folders {
		if err := upsertFolder(ctx, tx, &b.Folders[i]); err != nil {
			return err
		}
	}
	for i := range b.Mail {
		if err := upsertMail(ctx, tx, &b.Mail[i]); err != nil {
			return err
		}
	}
	for i := range b.Attachments {
		if err := upsertAttachment(ctx, tx, &b.Attachments[i]); err != nil {
			return err
		}
	}
	for i := range b.Events {
		if err := upsertEvent(ctx, tx, &b.Events[i]); err != nil {
			return err
		}
	}
	for i := range b.Contacts {
		if err := upsertContact(ctx, tx, &b.Contacts[i]); err != nil {
			return err
		}
	}
	for i := range b.Tasks {
		if err := upsertTask(ctx, tx, &b.Tasks[i]); err != nil {
			return err
		}
	}
	for _, serverID := range b.Deletes {
		if err := deleteItem(ctx, tx, accountID, collectionID, serverID, kind); err != nil {
			return err
		}
	}
	if collectionID != HierarchyCollection && kind.IsMail() && (len(b.Mail) > 0 || len(b.Deletes) > 0) {
		if err := refreshFolderCounters(ctx, tx, accountID, collectionID); err != nil {
			return err
		}
	}
	if b.SyncKey != "" {
		if err := putCursor(ctx, tx, accountID, collectionID, b.SyncKey); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "mirror: commit batch")
	}
	return nil
}

// Cursor returns the stored sync key for a collection, "0" when the
// collection has never been synced.
func (s *Store) Cursor(ctx context.Context, accountID, collectionID string) (string, error) {
	var key string
	err := s.db.GetContext(ctx, &key,
		"SELECT sync_key FROM sync_cursors WHERE account_id = ? AND collection_id = ?",
		accountID, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "0", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "mirror: read cursor")
	}
	return key, nil
}

// AdvanceCursor stores a new sync key for a collection outside of a batch.
func (s *Store) AdvanceCursor(ctx context.Context, accountID, collectionID, syncKey string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin cursor update")
	}
	defer tx.Rollback()
	if err := putCursor(ctx, tx, accountID, collectionID, syncKey); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetCollection drops the cursor and all mirrored items of a collection.
// The next sync starts from key "0" and rebuilds the collection.
func (s *Store) ResetCollection(ctx context.Context, accountID, collectionID string, kind model.FolderKind) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin reset")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sync_cursors WHERE account_id = ? AND collection_id = ?",
		accountID, collectionID); err != nil {
		return eris.Wrap(err, "mirror: reset cursor")
	}

	var stmt string
	switch {
	case collectionID == HierarchyCollection:
		// Hierarchy reset clears every per-folder cursor too; item tables
		// are rebuilt as their folders resync.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM sync_cursors WHERE account_id = ?", accountID); err != nil {
			return eris.Wrap(err, "mirror: reset folder cursors")
		}
		stmt = "DELETE FROM folders WHERE account_id = ?"
		if _, err := tx.ExecContext(ctx, stmt, accountID); err != nil {
			return eris.Wrap(err, "mirror: reset folders")
		}
		return tx.Commit()
	case kind == model.FolderKindCalendar:
		stmt = "DELETE FROM calendar_events WHERE account_id = ? AND folder_id = ?"
	case kind == model.FolderKindContacts:
		stmt = "DELETE FROM contacts WHERE account_id = ? AND folder_id = ?"
	case kind == model.FolderKindTasks:
		stmt = "DELETE FROM tasks WHERE account_id = ? AND folder_id = ?"
	default:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attachments WHERE account_id = ? AND item_server_id IN
			   (SELECT server_id FROM mail_items WHERE account_id = ? AND folder_id = ?)`,
			accountID, accountID, collectionID); err != nil {
			return eris.Wrap(err, "mirror: reset attachments")
		}
		stmt = "DELETE FROM mail_items WHERE account_id = ? AND folder_id = ?"
	}
	if _, err := tx.ExecContext(ctx, stmt, accountID, collectionID); err != nil {
		return eris.Wrap(err, "mirror: reset items")
	}
	return tx.Commit()
}

func putCursor(ctx context.Context, tx *sqlx.Tx, accountID, collectionID, syncKey string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_cursors (account_id, collection_id, sync_key, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account_id, collection_id)
		DO UPDATE SET sync_key = excluded.sync_key, updated_at = excluded.updated_at`,
		accountID, collectionID, syncKey, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "mirror: store cursor")
	}
	return nil
}

func upsertFolder(ctx context.Context, tx *sqlx.Tx, f *model.Folder) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO folders (account_id, server_id, parent_id, display_name, kind, unread, total)
		VALUES (:account_id, :server_id, :parent_id, :display_name, :kind, :unread, :total)
		ON CONFLICT (account_id, server_id)
		DO UPDATE SET parent_id = excluded.parent_id,
		              display_name = excluded.display_name,
		              kind = excluded.kind`, f)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert folder %s", f.ServerID)
	}
	return nil
}

func upsertMail(ctx context.Context, tx *sqlx.Tx, m *model.MailItem) error {
	// A change without a fetched body must not clobber an already fetched
	// one; the body columns only move forward.
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO mail_items (account_id, folder_id, server_id, from_addr, to_addr,
		    cc_addr, subject, date, read, flagged, has_attachments,
		    body, body_encoding, body_fetched, read_receipt_requested, invitation)
		VALUES (:account_id, :folder_id, :server_id, :from_addr, :to_addr,
		    :cc_addr, :subject, :date, :read, :flagged, :has_attachments,
		    :body, :body_encoding, :body_fetched, :read_receipt_requested, :invitation)
		ON CONFLICT (account_id, folder_id, server_id)
		DO UPDATE SET from_addr = excluded.from_addr,
		              to_addr = excluded.to_addr,
		              cc_addr = excluded.cc_addr,
		              subject = excluded.subject,
		              date = excluded.date,
		              read = excluded.read,
		              flagged = excluded.flagged,
		              has_attachments = excluded.has_attachments,
		              body = CASE WHEN excluded.body_fetched THEN excluded.body ELSE mail_items.body END,
		              body_encoding = CASE WHEN excluded.body_fetched THEN excluded.body_encoding ELSE mail_items.body_encoding END,
		              body_fetched = mail_items.body_fetched OR excluded.body_fetched,
		              read_receipt_requested = excluded.read_receipt_requested,
		              invitation = CASE WHEN excluded.invitation != '' THEN excluded.invitation ELSE mail_items.invitation END`, m)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert mail %s", m.ServerID)
	}
	return nil
}

func upsertAttachment(ctx context.Context, tx *sqlx.Tx, a *model.Attachment) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO attachments (account_id, item_server_id, file_reference,
		    display_name, content_type, size_estimate, inline, content_id, local_path)
		VALUES (:account_id, :item_server_id, :file_reference,
		    :display_name, :content_type, :size_estimate, :inline, :content_id, :local_path)
		ON CONFLICT (account_id, file_reference)
		DO UPDATE SET display_name = excluded.display_name,
		              content_type = excluded.content_type,
		              size_estimate = excluded.size_estimate,
		              inline = excluded.inline,
		              content_id = excluded.content_id,
		              local_path = CASE WHEN excluded.local_path != '' THEN excluded.local_path ELSE attachments.local_path END`, a)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert attachment %s", a.FileReference)
	}
	return nil
}

func upsertEvent(ctx context.Context, tx *sqlx.Tx, e *model.CalendarEvent) error {
	attendees, err := json.Marshal(e.Attendees)
	if err != nil {
		return eris.Wrap(err, "mirror: encode attendees")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO calendar_events (account_id, folder_id, server_id, subject, location,
		    body, start_at, end_at, all_day, organizer, attendees, busy, recurring, reminder_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, folder_id, server_id)
		DO UPDATE SET subject = excluded.subject,
		              location = excluded.location,
		              body = excluded.body,
		              start_at = excluded.start_at,
		              end_at = excluded.end_at,
		              all_day = excluded.all_day,
		              organizer = excluded.organizer,
		              attendees = excluded.attendees,
		              busy = excluded.busy,
		              recurring = excluded.recurring,
		              reminder_minutes = excluded.reminder_minutes`,
		e.AccountID, e.FolderID, e.ServerID, e.Subject, e.Location,
		e.Body, e.Start, e.End, e.AllDay, e.Organizer, string(attendees),
		e.Busy, e.Recurring, e.ReminderMinutes)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert event %s", e.ServerID)
	}
	return nil
}

func upsertContact(ctx context.Context, tx *sqlx.Tx, c *model.Contact) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO contacts (account_id, folder_id, server_id, first_name, last_name,
		    file_as, company, email1, email2, phone, mobile)
		VALUES (:account_id, :folder_id, :server_id, :first_name, :last_name,
		    :file_as, :company, :email1, :email2, :phone, :mobile)
		ON CONFLICT (account_id, folder_id, server_id)
		DO UPDATE SET first_name = excluded.first_name,
		              last_name = excluded.last_name,
		              file_as = excluded.file_as,
		              company = excluded.company,
		              email1 = excluded.email1,
		              email2 = excluded.email2,
		              phone = excluded.phone,
		              mobile = excluded.mobile`, c)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert contact %s", c.ServerID)
	}
	return nil
}

func upsertTask(ctx context.Context, tx *sqlx.Tx, t *model.Task) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO tasks (account_id, folder_id, server_id, subject, body, complete, due_date, importance)
		VALUES (:account_id, :folder_id, :server_id, :subject, :body, :complete, :due_date, :importance)
		ON CONFLICT (account_id, folder_id, server_id)
		DO UPDATE SET subject = excluded.subject,
		              body = excluded.body,
		              complete = excluded.complete,
		              due_date = excluded.due_date,
		              importance = excluded.importance`, t)
	if err != nil {
		return eris.Wrapf(err, "mirror: upsert task %s", t.ServerID)
	}
	return nil
}

func deleteItem(ctx context.Context, tx *sqlx.Tx, accountID, collectionID, serverID string, kind model.FolderKind) error {
	var stmt string
	switch kind {
	case model.FolderKindCalendar:
		stmt = "DELETE FROM calendar_events WHERE account_id = ? AND folder_id = ? AND server_id = ?"
	case model.FolderKindContacts:
		stmt = "DELETE FROM contacts WHERE account_id = ? AND folder_id = ? AND server_id = ?"
	case model.FolderKindTasks:
		stmt = "DELETE FROM tasks WHERE account_id = ? AND folder_id = ? AND server_id = ?"
	default:
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM attachments WHERE account_id = ? AND item_server_id = ?",
			accountID, serverID); err != nil {
			return eris.Wrapf(err, "mirror: delete attachments of %s", serverID)
		}
		stmt = "DELETE FROM mail_items WHERE account_id = ? AND folder_id = ? AND server_id = ?"
	}
	if _, err := tx.ExecContext(ctx, stmt, accountID, collectionID, serverID); err != nil {
		return eris.Wrapf(err, "mirror: delete item %s", serverID)
	}
	return nil
}

// DeleteFolder removes a folder, its items, their attachments and its cursor.
func (s *Store) DeleteFolder(ctx context.Context, accountID, serverID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin folder delete")
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM attachments WHERE account_id = ? AND item_server_id IN
		   (SELECT server_id FROM mail_items WHERE account_id = ? AND folder_id = ?)`,
		"DELETE FROM mail_items WHERE account_id = ? AND folder_id = ?",
		"DELETE FROM calendar_events WHERE account_id = ? AND folder_id = ?",
		"DELETE FROM contacts WHERE account_id = ? AND folder_id = ?",
		"DELETE FROM tasks WHERE account_id = ? AND folder_id = ?",
		"DELETE FROM sync_cursors WHERE account_id = ? AND collection_id = ?",
		"DELETE FROM folders WHERE account_id = ? AND server_id = ?",
	}
	for i, stmt := range steps {
		args := []any{accountID, serverID}
		if i == 0 {
			args = []any{accountID, accountID, serverID}
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return eris.Wrapf(err, "mirror: delete folder %s", serverID)
		}
	}
	return tx.Commit()
}

// Folders returns all mirrored folders of an account.
func (s *Store) Folders(ctx context.Context, accountID string) ([]model.Folder, error) {
	var out []model.Folder
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM folders WHERE account_id = ? ORDER BY kind, display_name", accountID)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list folders")
	}
	return out, nil
}

// Folder returns one folder by server ID.
func (s *Store) Folder(ctx context.Context, accountID, serverID string) (model.Folder, error) {
	var f model.Folder
	err := s.db.GetContext(ctx, &f,
		"SELECT * FROM folders WHERE account_id = ? AND server_id = ?", accountID, serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, eris.Wrap(err, "mirror: read folder")
	}
	return f, nil
}

// MailItems returns messages of a folder, newest first.
func (s *Store) MailItems(ctx context.Context, accountID, folderID string, limit, offset int) ([]model.MailItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.MailItem
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM mail_items WHERE account_id = ? AND folder_id = ?
		ORDER BY date DESC LIMIT ? OFFSET ?`,
		accountID, folderID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list mail")
	}
	return out, nil
}

// MailItem returns one message.
func (s *Store) MailItem(ctx context.Context, accountID, folderID, serverID string) (model.MailItem, error) {
	var m model.MailItem
	err := s.db.GetContext(ctx, &m,
		"SELECT * FROM mail_items WHERE account_id = ? AND folder_id = ? AND server_id = ?",
		accountID, folderID, serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, eris.Wrap(err, "mirror: read mail")
	}
	return m, nil
}

// SetMailBody records a fetched message body.
func (s *Store) SetMailBody(ctx context.Context, accountID, folderID, serverID, body string, enc model.BodyEncoding) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mail_items SET body = ?, body_encoding = ?, body_fetched = 1
		WHERE account_id = ? AND folder_id = ? AND server_id = ?`,
		body, enc, accountID, folderID, serverID)
	if err != nil {
		return eris.Wrap(err, "mirror: store body")
	}
	return nil
}

// SetMailInvitation stores the JSON-encoded meeting request parsed out of a
// message body.
func (s *Store) SetMailInvitation(ctx context.Context, accountID, folderID, serverID, invitation string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mail_items SET invitation = ? WHERE account_id = ? AND folder_id = ? AND server_id = ?",
		invitation, accountID, folderID, serverID)
	if err != nil {
		return eris.Wrap(err, "mirror: store invitation")
	}
	return nil
}

// MarkMailRead flips the local read flag and refreshes the folder's unread
// counter.
func (s *Store) MarkMailRead(ctx context.Context, accountID, folderID, serverID string, read bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mail_items SET read = ? WHERE account_id = ? AND folder_id = ? AND server_id = ?",
		read, accountID, folderID, serverID)
	if err != nil {
		return eris.Wrap(err, "mirror: mark read")
	}
	return refreshFolderCounters(ctx, s.db, accountID, folderID)
}

// refreshFolderCounters recomputes a mail folder's unread and total columns
// from its mirrored items.
func refreshFolderCounters(ctx context.Context, q sqlx.ExtContext, accountID, folderID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE folders SET
		    total = (SELECT COUNT(*) FROM mail_items WHERE account_id = ? AND folder_id = ?),
		    unread = (SELECT COUNT(*) FROM mail_items WHERE account_id = ? AND folder_id = ? AND read = 0)
		WHERE account_id = ? AND server_id = ?`,
		accountID, folderID, accountID, folderID, accountID, folderID)
	if err != nil {
		return eris.Wrapf(err, "mirror: refresh counters of %s", folderID)
	}
	return nil
}

// SetReadReceiptRequested flips the pending-MDN marker: set when a fetched
// body asks for a receipt, cleared once the receipt is sent.
func (s *Store) SetReadReceiptRequested(ctx context.Context, accountID, folderID, serverID string, requested bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mail_items SET read_receipt_requested = ? WHERE account_id = ? AND folder_id = ? AND server_id = ?",
		requested, accountID, folderID, serverID)
	if err != nil {
		return eris.Wrap(err, "mirror: clear receipt flag")
	}
	return nil
}

// Attachments returns the attachments recorded for a message.
func (s *Store) Attachments(ctx context.Context, accountID, itemServerID string) ([]model.Attachment, error) {
	var out []model.Attachment
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM attachments WHERE account_id = ? AND item_server_id = ? ORDER BY display_name",
		accountID, itemServerID)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list attachments")
	}
	return out, nil
}

// AttachmentByReference resolves an attachment by its download handle.
func (s *Store) AttachmentByReference(ctx context.Context, accountID, fileReference string) (model.Attachment, error) {
	var a model.Attachment
	err := s.db.GetContext(ctx, &a,
		"SELECT * FROM attachments WHERE account_id = ? AND file_reference = ?",
		accountID, fileReference)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, eris.Wrap(err, "mirror: read attachment")
	}
	return a, nil
}

// SetAttachmentLocalPath records where a downloaded attachment was cached.
func (s *Store) SetAttachmentLocalPath(ctx context.Context, accountID, fileReference, localPath string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE attachments SET local_path = ? WHERE account_id = ? AND file_reference = ?",
		localPath, accountID, fileReference)
	if err != nil {
		return eris.Wrap(err, "mirror: store attachment path")
	}
	return nil
}

// eventRow carries the attendees JSON column alongside the event fields.
type eventRow struct {
	model.CalendarEvent
	AttendeesJSON string `db:"attendees"`
}

// Events returns calendar events overlapping [from, to) as epoch seconds,
// soonest first. Events without an end time count as instants.
func (s *Store) Events(ctx context.Context, accountID string, from, to int64) ([]model.CalendarEvent, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM calendar_events
		WHERE account_id = ? AND start_at < ? AND (CASE WHEN end_at = 0 THEN start_at ELSE end_at END) >= ?
		ORDER BY start_at`,
		accountID, to, from)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list events")
	}
	out := make([]model.CalendarEvent, 0, len(rows))
	for _, r := range rows {
		ev := r.CalendarEvent
		if r.AttendeesJSON != "" {
			if err := json.Unmarshal([]byte(r.AttendeesJSON), &ev.Attendees); err != nil {
				return nil, eris.Wrapf(err, "mirror: decode attendees of %s", ev.ServerID)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// Contacts returns the mirrored address book of an account.
func (s *Store) Contacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	var out []model.Contact
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM contacts WHERE account_id = ? ORDER BY file_as, last_name", accountID)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list contacts")
	}
	return out, nil
}

// Tasks returns the mirrored tasks of an account, incomplete first.
func (s *Store) Tasks(ctx context.Context, accountID string) ([]model.Task, error) {
	var out []model.Task
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM tasks WHERE account_id = ? ORDER BY complete, due_date", accountID)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list tasks")
	}
	return out, nil
}

// StartJob records the beginning of a sync run.
func (s *Store) StartJob(ctx context.Context, accountID, folderID string) (model.SyncJob, error) {
	job := model.SyncJob{
		ID:        model.NewID(),
		AccountID: accountID,
		FolderID:  folderID,
		Status:    model.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, account_id, folder_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.AccountID, job.FolderID, job.Status, job.StartedAt)
	if err != nil {
		return job, eris.Wrap(err, "mirror: record job start")
	}
	return job, nil
}

// FinishJob records the outcome of a sync run.
func (s *Store) FinishJob(ctx context.Context, jobID string, changed int, runErr error) error {
	status := model.SyncStatusDone
	msg := ""
	if runErr != nil {
		status = model.SyncStatusFailed
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, finished_at = ?, changed = ?, error = ?
		WHERE id = ?`,
		status, time.Now().UTC(), changed, msg, jobID)
	if err != nil {
		return eris.Wrap(err, "mirror: record job end")
	}
	return nil
}

// RecentJobs returns the latest sync runs of an account.
func (s *Store) RecentJobs(ctx context.Context, accountID string, limit int) ([]model.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []model.SyncJob
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM sync_jobs WHERE account_id = ? ORDER BY started_at DESC LIMIT ?",
		accountID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: list jobs")
	}
	return out, nil
}
