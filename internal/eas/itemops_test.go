package eas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

func itemOpsResponse(children ...*wbxml.Node) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "1"),
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOResponse).Add(
			wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOFetch).Add(
				append([]*wbxml.Node{
					wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "1"),
				}, children...)...,
			),
		),
	)
}

func TestParseItemOperationsOpaquePayload(t *testing.T) {
	payload := []byte("%PDF-1.7 fake")
	resp := itemOpsResponse(
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOProperties).Add(
			wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBContentType, "application/pdf"),
			wbxml.NewOpaqueNode(wbxml.PageItemOperations, wbxml.IOData, payload),
		),
	)

	result, err := ParseItemOperations(resp)
	if err != nil {
		t.Fatalf("ParseItemOperations: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Errorf("Data = %q", result.Data)
	}
	if result.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", result.ContentType)
	}
}

func TestParseItemOperationsBase64Text(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	resp := itemOpsResponse(
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOProperties).Add(
			wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOData, base64.StdEncoding.EncodeToString(payload)),
		),
	)

	result, err := ParseItemOperations(resp)
	if err != nil {
		t.Fatalf("ParseItemOperations: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Errorf("Data = %v", result.Data)
	}
}

func TestParseItemOperationsNotFound(t *testing.T) {
	// Top-level rejection.
	resp := wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "6"),
	)
	_, err := ParseItemOperations(resp)
	if KindOf(err) != KindObjectNotFound {
		t.Fatalf("kind = %q", KindOf(err))
	}
	var easErr *Error
	if !errors.As(err, &easErr) {
		t.Fatal("error does not unwrap to *Error")
	}

	// Per-fetch rejection with an OK envelope.
	resp = wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "1"),
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOResponse).Add(
			wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOFetch).Add(
				wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "6"),
			),
		),
	)
	if _, err := ParseItemOperations(resp); KindOf(err) != KindObjectNotFound {
		t.Errorf("fetch-level kind = %q", KindOf(err))
	}
}

func TestParseItemOperationsMalformed(t *testing.T) {
	if _, err := ParseItemOperations(nil); KindOf(err) != KindDecode {
		t.Errorf("nil: kind = %q", KindOf(err))
	}
	noProps := wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "1"),
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOResponse).Add(
			wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOFetch).Add(
				wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStatus, "1"),
			),
		),
	)
	if _, err := ParseItemOperations(noProps); KindOf(err) != KindDecode {
		t.Errorf("missing properties: kind = %q", KindOf(err))
	}
}

func TestAttachmentFetchRequestShape(t *testing.T) {
	req := AttachmentFetchRequest("5%3a12%3a0")
	fetch := req.Child(wbxml.PageItemOperations, wbxml.IOFetch)
	if fetch == nil {
		t.Fatal("missing Fetch")
	}
	if fetch.ChildText(wbxml.PageItemOperations, wbxml.IOStore) != "Mailbox" {
		t.Errorf("Store = %q", fetch.ChildText(wbxml.PageItemOperations, wbxml.IOStore))
	}
	if fetch.ChildText(wbxml.PageAirSyncBase, wbxml.ASBFileReference) != "5%3a12%3a0" {
		t.Errorf("FileReference = %q", fetch.ChildText(wbxml.PageAirSyncBase, wbxml.ASBFileReference))
	}
}

func TestParseSendMail(t *testing.T) {
	if err := ParseSendMail(nil); err != nil {
		t.Errorf("empty success response: %v", err)
	}
	resp := wbxml.NewNode(wbxml.PageComposeMail, wbxml.CMSendMail).Add(
		wbxml.NewTextNode(wbxml.PageComposeMail, wbxml.CMStatus, "120"),
	)
	if err := ParseSendMail(resp); KindOf(err) != KindServer {
		t.Errorf("kind = %q", KindOf(err))
	}
}
