package sync

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/dedovmosol/iwomail/internal/eas"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/model"
)

// SyncFolders refreshes the folder hierarchy, then syncs the items of every
// syncable folder. The returned count covers the whole run: hierarchy
// adds, updates and deletes plus every item change applied per folder. A
// failure in one folder is logged and does not stop the others; a hierarchy
// failure aborts the whole run.
func (e *Engine) SyncFolders(ctx context.Context, accountID string) (int, error) {
	v, err, _ := e.inflight.Do(accountID+"|"+mirror.HierarchyCollection, func() (any, error) {
		return e.syncFolders(ctx, accountID)
	})
	n, _ := v.(int)
	return n, err
}

func (e *Engine) syncFolders(ctx context.Context, accountID string) (int, error) {
	job, jobErr := e.mirror.StartJob(ctx, accountID, "")
	if jobErr != nil {
		log.Printf("WARN: record sync job: %v", jobErr)
	}

	changed, err := e.syncHierarchy(ctx, accountID)
	if err != nil {
		e.finishJob(ctx, job, changed, err)
		return changed, err
	}

	folders, err := e.mirror.Folders(ctx, accountID)
	if err != nil {
		e.finishJob(ctx, job, changed, err)
		return changed, err
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		results = make([]int, len(folders))
	)
	g.SetLimit(e.opts.MaxParallel)
	for i, f := range folders {
		if !syncable(f.Kind) {
			continue
		}
		g.Go(func() error {
			n, ferr := e.SyncFolderItems(gctx, accountID, f.ServerID)
			results[i] = n
			if ferr != nil {
				// One broken folder must not block the rest.
				log.Printf("ERROR: sync folder %q (%s): %v", f.DisplayName, f.ServerID, ferr)
			}
			return nil
		})
	}
	g.Wait()
	for _, n := range results {
		changed += n
	}

	e.finishJob(ctx, job, changed, nil)
	log.Printf("INFO: synced account %s: %d changes", accountID, changed)
	return changed, nil
}

// syncable reports whether the engine pulls items for a folder kind.
// Outbox is server-managed and notes have no sync class.
func syncable(k model.FolderKind) bool {
	switch k {
	case model.FolderKindOutbox, model.FolderKindNotes, model.FolderKindExternal:
		return false
	}
	return true
}

// syncHierarchy brings the mirrored folder list up to date. A rejected
// hierarchy key resets the cursor and restarts from scratch exactly once.
func (e *Engine) syncHierarchy(ctx context.Context, accountID string) (int, error) {
	restarted := false
	for {
		c, err := e.client(accountID)
		if err != nil {
			return 0, err
		}
		key, err := e.mirror.Cursor(ctx, accountID, mirror.HierarchyCollection)
		if err != nil {
			return 0, err
		}

		resp, err := e.execute(ctx, c, "FolderSync", eas.FolderSyncRequest(key))
		if err == nil {
			var result *eas.FolderSyncResult
			result, err = eas.ParseFolderSync(resp)
			if err == nil {
				return e.applyHierarchy(ctx, accountID, result)
			}
		}

		if eas.KindOf(err) == eas.KindCursorInvalid && !restarted {
			restarted = true
			log.Printf("WARN: hierarchy key rejected for account %s, rebuilding folder list", accountID)
			if rerr := e.mirror.ResetCollection(ctx, accountID, mirror.HierarchyCollection, 0); rerr != nil {
				return 0, rerr
			}
			continue
		}
		return 0, err
	}
}

func (e *Engine) applyHierarchy(ctx context.Context, accountID string, result *eas.FolderSyncResult) (int, error) {
	batch := mirror.Batch{SyncKey: result.SyncKey}
	for _, ch := range append(result.Adds, result.Updates...) {
		batch.Folders = append(batch.Folders, model.Folder{
			AccountID:   accountID,
			ServerID:    ch.ServerID,
			ParentID:    ch.ParentID,
			DisplayName: ch.DisplayName,
			Kind:        ch.Kind,
		})
	}
	if err := e.mirror.ApplyBatch(ctx, accountID, mirror.HierarchyCollection, 0, batch); err != nil {
		return 0, err
	}
	for _, serverID := range result.Deletes {
		if err := e.mirror.DeleteFolder(ctx, accountID, serverID); err != nil {
			return 0, err
		}
	}
	return len(batch.Folders) + len(result.Deletes), nil
}

// CreateFolder creates a user folder on the server under parentID ("0" for
// root) and mirrors it locally. Returns the assigned server ID.
func (e *Engine) CreateFolder(ctx context.Context, accountID, parentID, displayName string) (string, error) {
	c, err := e.client(accountID)
	if err != nil {
		return "", err
	}
	key, err := e.hierarchyKey(ctx, accountID)
	if err != nil {
		return "", err
	}

	resp, err := e.execute(ctx, c, "FolderCreate", eas.FolderCreateRequest(key, parentID, displayName))
	if err != nil {
		return "", err
	}
	newKey, serverID, err := eas.ParseFolderOp(resp)
	if err != nil {
		return "", err
	}

	batch := mirror.Batch{
		Folders: []model.Folder{{
			AccountID:   accountID,
			ServerID:    serverID,
			ParentID:    parentID,
			DisplayName: displayName,
			Kind:        model.FolderKindUser,
		}},
		SyncKey: newKey,
	}
	if err := e.mirror.ApplyBatch(ctx, accountID, mirror.HierarchyCollection, 0, batch); err != nil {
		return "", err
	}
	return serverID, nil
}

// RenameFolder renames (or moves) a user folder on the server and in the
// mirror.
func (e *Engine) RenameFolder(ctx context.Context, accountID, serverID, parentID, displayName string) error {
	c, err := e.client(accountID)
	if err != nil {
		return err
	}
	key, err := e.hierarchyKey(ctx, accountID)
	if err != nil {
		return err
	}

	resp, err := e.execute(ctx, c, "FolderUpdate", eas.FolderUpdateRequest(key, serverID, parentID, displayName))
	if err != nil {
		return err
	}
	newKey, _, err := eas.ParseFolderOp(resp)
	if err != nil {
		return err
	}

	folder, err := e.mirror.Folder(ctx, accountID, serverID)
	if err != nil {
		return err
	}
	folder.ParentID = parentID
	folder.DisplayName = displayName
	return e.mirror.ApplyBatch(ctx, accountID, mirror.HierarchyCollection, 0, mirror.Batch{
		Folders: []model.Folder{folder},
		SyncKey: newKey,
	})
}

// RemoveFolder deletes a user folder on the server and drops its mirrored
// contents.
func (e *Engine) RemoveFolder(ctx context.Context, accountID, serverID string) error {
	c, err := e.client(accountID)
	if err != nil {
		return err
	}
	key, err := e.hierarchyKey(ctx, accountID)
	if err != nil {
		return err
	}

	resp, err := e.execute(ctx, c, "FolderDelete", eas.FolderDeleteRequest(key, serverID))
	if err != nil {
		return err
	}
	newKey, _, err := eas.ParseFolderOp(resp)
	if err != nil {
		return err
	}

	if err := e.mirror.DeleteFolder(ctx, accountID, serverID); err != nil {
		return err
	}
	return e.mirror.AdvanceCursor(ctx, accountID, mirror.HierarchyCollection, newKey)
}

// hierarchyKey returns the current hierarchy cursor, refusing to run folder
// mutations before the first hierarchy sync.
func (e *Engine) hierarchyKey(ctx context.Context, accountID string) (string, error) {
	key, err := e.mirror.Cursor(ctx, accountID, mirror.HierarchyCollection)
	if err != nil {
		return "", err
	}
	if key == "0" {
		return "", eas.NewError(eas.KindCursorInvalid, "folder hierarchy not synced yet")
	}
	return key, nil
}

func (e *Engine) finishJob(ctx context.Context, job model.SyncJob, changed int, err error) {
	if job.ID == "" {
		return
	}
	if ferr := e.mirror.FinishJob(ctx, job.ID, changed, err); ferr != nil {
		log.Printf("WARN: record sync job end: %v", ferr)
	}
}
