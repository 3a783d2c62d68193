package eas

import (
	"testing"

	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/wbxml"
)

func folderAdd(serverID, parentID, name, kind string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHAdd).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHServerID, serverID),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHParentID, parentID),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHDisplayName, name),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHType, kind),
	)
}

func TestParseFolderSyncChanges(t *testing.T) {
	resp := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHStatus, "1"),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, "2"),
		wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHChanges).Add(
			folderAdd("5", "0", "Inbox", "2"),
			folderAdd("17", "5", "Projects", "12"),
			wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHDelete).Add(
				wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHServerID, "9"),
			),
		),
	)

	result, err := ParseFolderSync(resp)
	if err != nil {
		t.Fatalf("ParseFolderSync: %v", err)
	}
	if result.SyncKey != "2" {
		t.Errorf("SyncKey = %q", result.SyncKey)
	}
	if len(result.Adds) != 2 {
		t.Fatalf("Adds = %d, want 2", len(result.Adds))
	}
	inbox := result.Adds[0]
	if inbox.ServerID != "5" || inbox.DisplayName != "Inbox" || inbox.Kind != model.FolderKindInbox {
		t.Errorf("inbox = %+v", inbox)
	}
	if result.Adds[1].Kind != model.FolderKindUser {
		t.Errorf("user folder kind = %v", result.Adds[1].Kind)
	}
	if len(result.Deletes) != 1 || result.Deletes[0] != "9" {
		t.Errorf("Deletes = %v", result.Deletes)
	}
}

func TestParseFolderSyncInvalidKey(t *testing.T) {
	resp := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHStatus, "9"),
	)
	_, err := ParseFolderSync(resp)
	if KindOf(err) != KindCursorInvalid {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindCursorInvalid)
	}
}

func TestParseFolderSyncServerFailure(t *testing.T) {
	resp := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHStatus, "6"),
	)
	if _, err := ParseFolderSync(resp); KindOf(err) != KindServer {
		t.Fatalf("kind = %q", KindOf(err))
	}
}

func TestFolderSyncRequestDefaultsKey(t *testing.T) {
	req := FolderSyncRequest("")
	if got := req.ChildText(wbxml.PageFolderHierarchy, wbxml.FHSyncKey); got != "0" {
		t.Errorf("SyncKey = %q, want 0", got)
	}
}

func TestParseFolderOp(t *testing.T) {
	resp := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderCreate).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHStatus, "1"),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, "4"),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHServerID, "22"),
	)
	key, serverID, err := ParseFolderOp(resp)
	if err != nil {
		t.Fatalf("ParseFolderOp: %v", err)
	}
	if key != "4" || serverID != "22" {
		t.Errorf("key = %q serverID = %q", key, serverID)
	}

	rejected := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderDelete).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHStatus, "9"),
	)
	if _, _, err := ParseFolderOp(rejected); KindOf(err) != KindCursorInvalid {
		t.Errorf("kind = %q", KindOf(err))
	}
}
