package sync

import (
	"context"
	"encoding/json"
	"log"

	"github.com/dedovmosol/iwomail/internal/content"
	"github.com/dedovmosol/iwomail/internal/eas"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/model"
)

// classFor maps a folder kind to its sync item class.
func classFor(kind model.FolderKind) string {
	switch kind {
	case model.FolderKindCalendar:
		return eas.ClassCalendar
	case model.FolderKindContacts:
		return eas.ClassContacts
	case model.FolderKindTasks:
		return eas.ClassTasks
	default:
		return eas.ClassEmail
	}
}

// SyncFolderItems pulls pending changes for one folder and applies them to
// the mirror. Concurrent calls for the same (account, folder) pair share a
// single network exchange. Returns the number of changed items.
func (e *Engine) SyncFolderItems(ctx context.Context, accountID, folderID string) (int, error) {
	v, err, _ := e.inflight.Do(accountID+"|"+folderID, func() (any, error) {
		return e.syncFolderItems(ctx, accountID, folderID)
	})
	n, _ := v.(int)
	return n, err
}

func (e *Engine) syncFolderItems(ctx context.Context, accountID, folderID string) (int, error) {
	folder, err := e.mirror.Folder(ctx, accountID, folderID)
	if err != nil {
		return 0, err
	}
	c, err := e.client(accountID)
	if err != nil {
		return 0, err
	}

	opts := eas.SyncOptions{
		Class:       classFor(folder.Kind),
		WindowSize:  e.opts.WindowSize,
		MIMESupport: folder.Kind.IsMail(),
		// Bodies beyond the cap are fetched on demand.
		TruncationSize: e.opts.BodyTruncation,
	}

	changed := 0
	restarted := false
	for {
		key, err := e.mirror.Cursor(ctx, accountID, folderID)
		if err != nil {
			return changed, err
		}

		resp, err := e.execute(ctx, c, "Sync", eas.SyncRequest(folderID, key, opts))
		var result *eas.SyncResult
		if err == nil {
			result, err = eas.ParseSync(resp)
		}
		if err != nil {
			if eas.KindOf(err) == eas.KindCursorInvalid && !restarted {
				// The server forgot our cursor. Rebuild the collection from
				// scratch, once; a second rejection is surfaced.
				restarted = true
				log.Printf("WARN: sync key rejected for folder %s, full resync", folderID)
				if rerr := e.mirror.ResetCollection(ctx, accountID, folderID, folder.Kind); rerr != nil {
					return changed, rerr
				}
				continue
			}
			return changed, err
		}

		if result.SyncKey == "" {
			// Empty response: nothing changed, cursor stays.
			return changed, nil
		}

		batch := e.projectBatch(accountID, folderID, folder.Kind, result)
		if err := e.mirror.ApplyBatch(ctx, accountID, folderID, folder.Kind, batch); err != nil {
			return changed, err
		}
		changed += len(result.Adds) + len(result.Changes) + len(result.Deletes)

		if key == "0" || result.MoreAvailable {
			// The initial handshake returns only a fresh key; follow up
			// immediately. Likewise while the server reports more windows.
			continue
		}
		return changed, nil
	}
}

// projectBatch turns one window's parsed changes into a mirror batch.
func (e *Engine) projectBatch(accountID, folderID string, kind model.FolderKind, result *eas.SyncResult) mirror.Batch {
	batch := mirror.Batch{SyncKey: result.SyncKey, Deletes: result.Deletes}

	for _, ch := range append(result.Adds, result.Changes...) {
		if ch.Data == nil || ch.ServerID == "" {
			continue
		}
		switch kind {
		case model.FolderKindCalendar:
			ev := eas.ParseCalendarEvent(ch.Data)
			ev.AccountID, ev.FolderID, ev.ServerID = accountID, folderID, ch.ServerID
			batch.Events = append(batch.Events, ev)
		case model.FolderKindContacts:
			ct := eas.ParseContact(ch.Data)
			ct.AccountID, ct.FolderID, ct.ServerID = accountID, folderID, ch.ServerID
			batch.Contacts = append(batch.Contacts, ct)
		case model.FolderKindTasks:
			tk := eas.ParseTask(ch.Data)
			tk.AccountID, tk.FolderID, tk.ServerID = accountID, folderID, ch.ServerID
			batch.Tasks = append(batch.Tasks, tk)
		default:
			item, atts, body := eas.ParseMailItem(ch.Data)
			item.AccountID, item.FolderID, item.ServerID = accountID, folderID, ch.ServerID
			normalizeBody(&item, body)
			for i := range atts {
				atts[i].AccountID = accountID
				atts[i].ItemServerID = ch.ServerID
			}
			batch.Mail = append(batch.Mail, item)
			batch.Attachments = append(batch.Attachments, atts...)
		}
	}
	return batch
}

// normalizeBody turns the wire body into display form. A truncated body is
// kept as a preview but left marked unfetched so LoadItemBody pulls the
// rest on demand.
func normalizeBody(item *model.MailItem, body eas.WireBody) {
	if !body.Present {
		return
	}
	switch body.Encoding {
	case model.BodyEncodingMIME:
		item.Body = content.ExtractPart([]byte(body.Data))
		item.BodyEncoding = model.BodyEncodingHTML
		if _, wants := content.ReadReceiptRequested([]byte(body.Data)); wants && !item.Read {
			item.ReadReceiptRequested = true
		}
		if inv, ok := content.ExtractInvitation([]byte(body.Data)); ok {
			if data, err := json.Marshal(inv); err == nil {
				item.Invitation = string(data)
			}
		}
	default:
		item.Body = content.StripSeparators(body.Data)
		item.BodyEncoding = body.Encoding
	}
	item.BodyFetched = !body.Truncated
}

// SyncCalendar refreshes every calendar folder of an account. Returns the
// number of changed events.
func (e *Engine) SyncCalendar(ctx context.Context, accountID string) (int, error) {
	return e.syncKind(ctx, accountID, model.FolderKindCalendar)
}

// SyncContacts refreshes every contacts folder of an account.
func (e *Engine) SyncContacts(ctx context.Context, accountID string) (int, error) {
	return e.syncKind(ctx, accountID, model.FolderKindContacts)
}

// SyncTasks refreshes every tasks folder of an account.
func (e *Engine) SyncTasks(ctx context.Context, accountID string) (int, error) {
	return e.syncKind(ctx, accountID, model.FolderKindTasks)
}

func (e *Engine) syncKind(ctx context.Context, accountID string, kind model.FolderKind) (int, error) {
	folders, err := e.mirror.Folders(ctx, accountID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, f := range folders {
		if f.Kind != kind {
			continue
		}
		n, err := e.SyncFolderItems(ctx, accountID, f.ServerID)
		changed += n
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// MarkRead flips an item's read state on the server and in the mirror.
func (e *Engine) MarkRead(ctx context.Context, accountID, folderID, serverID string, read bool) error {
	c, err := e.client(accountID)
	if err != nil {
		return err
	}
	key, err := e.mirror.Cursor(ctx, accountID, folderID)
	if err != nil {
		return err
	}
	if key == "0" {
		return eas.NewError(eas.KindCursorInvalid, "folder not synced yet")
	}

	resp, err := e.execute(ctx, c, "Sync", eas.MarkReadRequest(folderID, key, serverID, read))
	if err != nil {
		return err
	}
	result, err := eas.ParseSync(resp)
	if err != nil {
		return err
	}
	if result.SyncKey != "" {
		if err := e.mirror.AdvanceCursor(ctx, accountID, folderID, result.SyncKey); err != nil {
			return err
		}
	}
	return e.mirror.MarkMailRead(ctx, accountID, folderID, serverID, read)
}
