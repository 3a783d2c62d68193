package eas

import (
	"strconv"

	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// FolderSync status codes (FolderHierarchy namespace).
const (
	folderSyncOK         = "1"
	folderSyncInvalidKey = "9"
)

// FolderChange is one folder add or update from a FolderSync response.
type FolderChange struct {
	ServerID    string
	ParentID    string
	DisplayName string
	Kind        model.FolderKind
}

// FolderSyncResult is the projection of a FolderSync response.
type FolderSyncResult struct {
	SyncKey string
	Adds    []FolderChange
	Updates []FolderChange
	Deletes []string
}

// FolderSyncRequest builds the hierarchy sync command. An empty syncKey
// requests the full hierarchy.
func FolderSyncRequest(syncKey string) *wbxml.Node {
	if syncKey == "" {
		syncKey = "0"
	}
	return wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, syncKey),
	)
}

// ParseFolderSync projects a FolderSync response tree. An invalid-key
// status maps to KindCursorInvalid so the engine can reset and restart.
func ParseFolderSync(resp *wbxml.Node) (*FolderSyncResult, error) {
	if !resp.Is(wbxml.PageFolderHierarchy, wbxml.FHFolderSync) {
		return nil, NewError(KindDecode, "FolderSync response has wrong document element")
	}
	switch status := resp.ChildText(wbxml.PageFolderHierarchy, wbxml.FHStatus); status {
	case folderSyncOK:
	case folderSyncInvalidKey:
		return nil, NewError(KindCursorInvalid, "server rejected hierarchy sync key")
	default:
		return nil, NewError(KindServer, "FolderSync failed with status "+status)
	}

	result := &FolderSyncResult{
		SyncKey: resp.ChildText(wbxml.PageFolderHierarchy, wbxml.FHSyncKey),
	}
	if result.SyncKey == "" {
		return nil, NewError(KindDecode, "FolderSync response missing SyncKey")
	}

	changes := resp.Child(wbxml.PageFolderHierarchy, wbxml.FHChanges)
	if changes == nil {
		return result, nil
	}
	for _, add := range changes.ChildrenOf(wbxml.PageFolderHierarchy, wbxml.FHAdd) {
		result.Adds = append(result.Adds, parseFolderChange(add))
	}
	for _, upd := range changes.ChildrenOf(wbxml.PageFolderHierarchy, wbxml.FHUpdate) {
		result.Updates = append(result.Updates, parseFolderChange(upd))
	}
	for _, del := range changes.ChildrenOf(wbxml.PageFolderHierarchy, wbxml.FHDelete) {
		if id := del.ChildText(wbxml.PageFolderHierarchy, wbxml.FHServerID); id != "" {
			result.Deletes = append(result.Deletes, id)
		}
	}
	return result, nil
}

func parseFolderChange(n *wbxml.Node) FolderChange {
	kind, _ := strconv.Atoi(n.ChildText(wbxml.PageFolderHierarchy, wbxml.FHType))
	if kind == 0 {
		kind = int(model.FolderKindOther)
	}
	return FolderChange{
		ServerID:    n.ChildText(wbxml.PageFolderHierarchy, wbxml.FHServerID),
		ParentID:    n.ChildText(wbxml.PageFolderHierarchy, wbxml.FHParentID),
		DisplayName: n.ChildText(wbxml.PageFolderHierarchy, wbxml.FHDisplayName),
		Kind:        model.FolderKind(kind),
	}
}

// FolderCreateRequest builds the command that creates a user folder on the
// server, under parentID ("0" for root).
func FolderCreateRequest(syncKey, parentID, displayName string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderCreate).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, syncKey),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHParentID, parentID),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHDisplayName, displayName),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHType, strconv.Itoa(int(model.FolderKindUser))),
	)
}

// FolderUpdateRequest builds the rename/move command for a user folder.
func FolderUpdateRequest(syncKey, serverID, parentID, displayName string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderUpdate).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, syncKey),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHServerID, serverID),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHParentID, parentID),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHDisplayName, displayName),
	)
}

// FolderDeleteRequest builds the delete command for a user folder.
func FolderDeleteRequest(syncKey, serverID string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderDelete).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, syncKey),
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHServerID, serverID),
	)
}

// ParseFolderOp projects the response of FolderCreate/Update/Delete:
// the new hierarchy sync key and, for creates, the assigned server id.
func ParseFolderOp(resp *wbxml.Node) (syncKey, serverID string, err error) {
	if resp == nil {
		return "", "", NewError(KindDecode, "empty folder operation response")
	}
	switch status := resp.ChildText(wbxml.PageFolderHierarchy, wbxml.FHStatus); status {
	case folderSyncOK:
	case folderSyncInvalidKey:
		return "", "", NewError(KindCursorInvalid, "server rejected hierarchy sync key")
	default:
		return "", "", NewError(KindServer, "folder operation failed with status "+status)
	}
	syncKey = resp.ChildText(wbxml.PageFolderHierarchy, wbxml.FHSyncKey)
	serverID = resp.ChildText(wbxml.PageFolderHierarchy, wbxml.FHServerID)
	if syncKey == "" {
		return "", "", NewError(KindDecode, "folder operation response missing SyncKey")
	}
	return syncKey, serverID, nil
}
