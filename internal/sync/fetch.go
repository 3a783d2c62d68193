package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dedovmosol/iwomail/internal/content"
	"github.com/dedovmosol/iwomail/internal/eas"
	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/storage"
)

// DownloadAttachment fetches an attachment's bytes by its server file
// reference, serving repeated requests from the blob cache. An expired
// reference surfaces as KindObjectNotFound, distinct from transport
// failures.
func (e *Engine) DownloadAttachment(ctx context.Context, accountID, fileReference string) ([]byte, error) {
	cacheKey := storage.AttachmentKey(accountID, fileReference)
	if data, err := e.blobs.Read(ctx, cacheKey); err == nil {
		return data, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("WARN: attachment cache read %s: %v", cacheKey, err)
	}

	c, err := e.client(accountID)
	if err != nil {
		return nil, err
	}
	resp, err := e.execute(ctx, c, "ItemOperations", eas.AttachmentFetchRequest(fileReference))
	if err != nil {
		return nil, err
	}
	result, err := eas.ParseItemOperations(resp)
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, eas.NewError(eas.KindDecode, "attachment fetch returned no data")
	}

	if err := e.blobs.Write(ctx, cacheKey, result.Data); err != nil {
		log.Printf("WARN: cache attachment %s: %v", cacheKey, err)
	} else if err := e.mirror.SetAttachmentLocalPath(ctx, accountID, fileReference, cacheKey); err != nil {
		log.Printf("WARN: record attachment path: %v", err)
	}
	return result.Data, nil
}

// LoadItemBody returns the full display body of a message, fetching it from
// the server on first access. Inline images referenced by cid: URLs are
// embedded as data: URLs.
func (e *Engine) LoadItemBody(ctx context.Context, accountID, folderID, serverID string) (string, error) {
	item, err := e.mirror.MailItem(ctx, accountID, folderID, serverID)
	if err != nil {
		return "", err
	}
	if item.BodyFetched {
		return item.Body, nil
	}

	c, err := e.client(accountID)
	if err != nil {
		return "", err
	}
	resp, err := e.execute(ctx, c, "ItemOperations", eas.ItemBodyFetchRequest(folderID, serverID))
	if err != nil {
		return "", err
	}
	result, err := eas.ParseItemOperations(resp)
	if err != nil {
		return "", err
	}

	raw := result.Data
	if len(raw) == 0 && result.Body.Present {
		raw = []byte(result.Body.Data)
	}
	if len(raw) == 0 {
		// The server confirmed an empty body; remember that so we do not
		// refetch forever.
		if err := e.mirror.SetMailBody(ctx, accountID, folderID, serverID, "", model.BodyEncodingPlain); err != nil {
			return "", err
		}
		return "", nil
	}

	if err := e.blobs.Write(ctx, storage.BodyKey(accountID, folderID, serverID), raw); err != nil {
		log.Printf("WARN: cache body of %s: %v", serverID, err)
	}

	body := content.ExtractPart(raw)
	for cid, dataURL := range content.ExtractInlineImages(raw) {
		body = strings.ReplaceAll(body, "cid:"+cid, dataURL)
	}

	if err := e.mirror.SetMailBody(ctx, accountID, folderID, serverID, body, model.BodyEncodingHTML); err != nil {
		return "", err
	}
	if _, wants := content.ReadReceiptRequested(raw); wants && !item.Read {
		if err := e.mirror.SetReadReceiptRequested(ctx, accountID, folderID, serverID, true); err != nil {
			log.Printf("WARN: record receipt request: %v", err)
		}
	}
	if inv, ok := content.ExtractInvitation(raw); ok {
		if data, merr := json.Marshal(inv); merr == nil {
			if err := e.mirror.SetMailInvitation(ctx, accountID, folderID, serverID, string(data)); err != nil {
				log.Printf("WARN: record invitation: %v", err)
			}
		}
	}
	return body, nil
}

// SendReadReceipt sends the MDN for a message whose sender requested one,
// then clears the pending marker.
func (e *Engine) SendReadReceipt(ctx context.Context, accountID, folderID, serverID string) error {
	c, err := e.client(accountID)
	if err != nil {
		return err
	}
	item, err := e.mirror.MailItem(ctx, accountID, folderID, serverID)
	if err != nil {
		return err
	}
	if item.From == "" {
		return fmt.Errorf("message %s has no sender to answer", serverID)
	}

	mime := buildReadReceipt(c.acct.Email, item)
	resp, err := e.execute(ctx, c, "SendMail", eas.SendMailRequest(model.NewID(), mime, false))
	if err != nil {
		return err
	}
	if err := eas.ParseSendMail(resp); err != nil {
		return err
	}
	return e.mirror.SetReadReceiptRequested(ctx, accountID, folderID, serverID, false)
}

// buildReadReceipt composes the multipart/report MDN message.
func buildReadReceipt(from string, item model.MailItem) []byte {
	boundary := "mdn-" + model.NewID()
	var b strings.Builder

	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }
	header("From", from)
	header("To", item.From)
	header("Subject", "Read: "+item.Subject)
	header("Date", time.Now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `multipart/report; report-type=disposition-notification; boundary="`+boundary+`"`)
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "The message\r\n\r\n  Subject: %s\r\n\r\nwas displayed to the recipient on %s.\r\n",
		item.Subject, time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("\r\n--" + boundary + "\r\n")
	b.WriteString("Content-Type: message/disposition-notification\r\n\r\n")
	header("Reporting-UA", "iwomail")
	header("Final-Recipient", "rfc822;"+from)
	header("Disposition", "manual-action/MDN-sent-manually; displayed")
	b.WriteString("\r\n--" + boundary + "--\r\n")

	return []byte(b.String())
}
