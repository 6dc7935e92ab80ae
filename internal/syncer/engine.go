package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/samber/lo"
)

const DefaultPageSize = 100

// Query cache key families invalidated after a file changed.
const (
	PhotosKey       = "photos"
	PhotoMetaKey    = "photo-meta"
	PhotoLibraryKey = "photo-library"
)

// CursorState is the resumable position of both walks.
type CursorState struct {
	LastQueryBatchCursor        string
	MostRecentQueryModifiedTime int64
}

type Config struct {
	PageSize int
	// Params scopes which remote files are mirrored.
	Params remote.QueryParams
}

// DefaultParams mirrors every media file regardless of its archival status.
func DefaultParams() remote.QueryParams {
	return remote.QueryParams{
		FileType: []int{remote.MediaFileType},
		ArchivalStatus: []remote.ArchivalStatus{
			remote.ArchivalStatusActive,
			remote.ArchivalStatusArchived,
			remote.ArchivalStatusBin,
			remote.ArchivalStatusAppGenerated,
		},
	}
}

// Engine keeps the local mirror eventually consistent with the remote drive.
type Engine struct {
	mutex sync.Mutex

	client remote.Client
	mirror store.MirrorStore
	state  store.StateStore
	cache  *querycache.Cache
	log    log.LoggerService

	pageSize int
	params   remote.QueryParams
}

func NewEngine(client remote.Client, mirror store.MirrorStore, state store.StateStore, cache *querycache.Cache, logger log.LoggerService, cfg Config) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if len(cfg.Params.FileType) == 0 && len(cfg.Params.ArchivalStatus) == 0 {
		cfg.Params = DefaultParams()
	}

	return &Engine{
		client:   client,
		mirror:   mirror,
		state:    state,
		cache:    cache,
		log:      logger,
		pageSize: cfg.PageSize,
		params:   cfg.Params,
	}
}

// Sync resumes both walks from the persisted cursor of drive. The cursor is
// saved after every committed page, so an aborted pass resumes after the
// last page that made it into the mirror.
func (e *Engine) Sync(ctx context.Context, drive remote.TargetDrive) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	saved, err := e.state.GetCursor(ctx, drive.Key())
	if err != nil {
		return err
	}

	cursor := CursorState{
		LastQueryBatchCursor:        saved.LastQueryBatchCursor,
		MostRecentQueryModifiedTime: saved.MostRecentQueryModifiedTime,
	}

	e.log.Debug("Starting sync of drive '%s' (cursor: '%s', modified since: %d)",
		drive.Key(), cursor.LastQueryBatchCursor, cursor.MostRecentQueryModifiedTime)

	result, err := e.syncLocalDb(ctx, drive, e.params, cursor, func(c CursorState) error {
		return e.saveCursor(ctx, drive, c)
	})
	if err != nil {
		return fmt.Errorf("failed to sync drive '%s': %w", drive.Key(), err)
	}

	if err := e.saveCursor(ctx, drive, result); err != nil {
		return err
	}

	e.invalidate(drive, "")
	e.log.Info("Completed sync of drive '%s'", drive.Key())
	return nil
}

// SyncLocalDb runs the batch walk to completion, then the modified walk,
// and returns the combined cursor for the caller to persist.
func (e *Engine) SyncLocalDb(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, cursor CursorState) (CursorState, error) {
	return e.syncLocalDb(ctx, drive, params, cursor, nil)
}

func (e *Engine) syncLocalDb(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, cursor CursorState, checkpoint func(CursorState) error) (CursorState, error) {
	batchCheckpoint := func(batchCursor string) error {
		if checkpoint == nil {
			return nil
		}
		return checkpoint(CursorState{
			LastQueryBatchCursor:        batchCursor,
			MostRecentQueryModifiedTime: cursor.MostRecentQueryModifiedTime,
		})
	}

	batchCursor, queryTime, err := e.batchWalk(ctx, drive, params, cursor.LastQueryBatchCursor, batchCheckpoint)
	if err != nil {
		return cursor, err
	}
	cursor.LastQueryBatchCursor = batchCursor

	e.log.Debug("Batch walk finished at cursor '%s' (query time: %d)", batchCursor, queryTime)

	modifiedCheckpoint := func(modified int64) error {
		if checkpoint == nil {
			return nil
		}
		return checkpoint(CursorState{
			LastQueryBatchCursor:        cursor.LastQueryBatchCursor,
			MostRecentQueryModifiedTime: modified,
		})
	}

	modified, err := e.modifiedWalk(ctx, drive, params, cursor.MostRecentQueryModifiedTime, modifiedCheckpoint)
	if err != nil {
		return cursor, err
	}
	cursor.MostRecentQueryModifiedTime = modified

	return cursor, nil
}

func (e *Engine) batchWalk(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, cursor string, checkpoint func(string) error) (string, int64, error) {
	var queryTime int64

	for {
		result, err := e.client.QueryBatch(ctx, drive, params, remote.BatchOptions{
			CursorState:           cursor,
			MaxRecords:            e.pageSize,
			IncludeMetadataHeader: true,
		})
		if err != nil {
			return cursor, queryTime, fmt.Errorf("failed to query batch: %w", err)
		}

		if err := e.mirror.UpsertHeaders(ctx, drive.Key(), result.SearchResults); err != nil {
			return cursor, queryTime, fmt.Errorf("failed to apply batch page: %w", err)
		}

		if result.CursorState != "" {
			cursor = result.CursorState
		}
		queryTime = result.QueryTime

		if err := checkpoint(cursor); err != nil {
			return cursor, queryTime, err
		}

		e.log.Debug("Applied batch page of %d headers", len(result.SearchResults))
		if len(result.SearchResults) < e.pageSize {
			return cursor, queryTime, nil
		}
	}
}

func (e *Engine) modifiedWalk(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, since int64, checkpoint func(int64) error) (int64, error) {
	for {
		result, err := e.client.QueryModified(ctx, drive, params, remote.ModifiedOptions{
			Cursor:               since,
			MaxRecords:           e.pageSize,
			IncludeHeaderContent: true,
		})
		if err != nil {
			return since, fmt.Errorf("failed to query modified: %w", err)
		}

		active := lo.Filter(result.SearchResults, func(h remote.FileHeader, _ int) bool {
			return h.IsActive()
		})
		if err := e.mirror.UpsertHeaders(ctx, drive.Key(), active); err != nil {
			return since, fmt.Errorf("failed to apply modified page: %w", err)
		}

		if result.Cursor > since {
			since = result.Cursor
		}

		if err := checkpoint(since); err != nil {
			return since, err
		}

		e.log.Debug("Applied modified page of %d headers (%d inactive skipped)",
			len(active), len(result.SearchResults)-len(active))
		if len(result.SearchResults) < e.pageSize {
			return since, nil
		}
	}
}

// SyncHeaderFile refreshes a single file from the remote: it is upserted
// if it still exists and removed from the mirror otherwise.
func (e *Engine) SyncHeaderFile(ctx context.Context, drive remote.TargetDrive, fileID string) error {
	header, err := e.client.GetFileHeader(ctx, drive, fileID)
	if errors.Is(err, remote.ErrNotFound) {
		if err := e.mirror.DeleteHeader(ctx, drive.Key(), fileID); err != nil {
			return fmt.Errorf("failed to delete header %s: %w", fileID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch header %s: %w", fileID, err)
	}

	if err := e.mirror.UpsertHeaders(ctx, drive.Key(), []remote.FileHeader{*header}); err != nil {
		return fmt.Errorf("failed to upsert header %s: %w", fileID, err)
	}
	return nil
}

// HandleNotification applies a push notification. Library metadata files
// only invalidate the cached libraries, every other file is resynced.
func (e *Engine) HandleNotification(ctx context.Context, n remote.Notification) error {
	fileID := n.Header.FileID
	if fileID == "" {
		return nil
	}

	if n.Header.FileMetadata.AppData.FileType == remote.PhotoLibraryMetadataFileType {
		e.cache.Invalidate(querycache.Key{PhotoLibraryKey, n.TargetDrive.Key()})
		return nil
	}

	e.log.Debug("Received '%s' for file %s", n.NotificationType, fileID)
	if err := e.SyncHeaderFile(ctx, n.TargetDrive, fileID); err != nil {
		return err
	}

	e.invalidate(n.TargetDrive, fileID)
	return nil
}

// Reset drops the mirror and forgets the cursor of drive, the next Sync
// starts from the beginning.
func (e *Engine) Reset(ctx context.Context, drive remote.TargetDrive) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if err := e.mirror.Reset(ctx); err != nil {
		return err
	}
	if err := e.state.DeleteCursor(ctx, drive.Key()); err != nil {
		return err
	}

	e.cache.Remove(querycache.Key{PhotosKey, drive.Key()})
	e.cache.Remove(querycache.Key{PhotoMetaKey, drive.Key()})
	return nil
}

// HaveData reports whether a full walk has committed at least one page for drive.
func (e *Engine) HaveData(ctx context.Context, drive remote.TargetDrive) (bool, error) {
	cursor, err := e.state.GetCursor(ctx, drive.Key())
	if err != nil {
		return false, err
	}
	return cursor.LastQueryBatchCursor != "", nil
}

func (e *Engine) saveCursor(ctx context.Context, drive remote.TargetDrive, c CursorState) error {
	return e.state.SaveCursor(ctx, &models.SyncCursor{
		DriveID:                     drive.Key(),
		LastQueryBatchCursor:        c.LastQueryBatchCursor,
		MostRecentQueryModifiedTime: c.MostRecentQueryModifiedTime,
	})
}

func (e *Engine) invalidate(drive remote.TargetDrive, fileID string) {
	e.cache.Invalidate(querycache.Key{PhotosKey, drive.Key()})
	if fileID != "" {
		e.cache.Invalidate(querycache.Key{PhotoMetaKey, drive.Key(), remote.NormalizeGUID(fileID)})
	}
}
