package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/mwantia/gophotos/pkg/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDrive = remote.TargetDrive{Alias: "photos", Type: "drive"}

type fixture struct {
	server *remotetest.Server
	mirror *store.SQLiteStore
	state  *store.SQLiteStateStore
	cache  *querycache.Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	mirror, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(dir, "mirror.db")})
	require.NoError(t, err)
	require.NoError(t, mirror.Connect(ctx))
	require.NoError(t, mirror.Migrate(ctx))
	t.Cleanup(func() { mirror.Close() })

	state, err := store.NewSQLiteStateStore(store.SQLiteConfig{Path: filepath.Join(dir, "state.db")})
	require.NoError(t, err)
	require.NoError(t, state.Connect(ctx))
	require.NoError(t, state.Migrate(ctx))
	t.Cleanup(func() { state.Close() })

	return &fixture{
		server: remotetest.NewServer(),
		mirror: mirror,
		state:  state,
		cache:  querycache.New(),
	}
}

func (f *fixture) engine(client remote.Client, pageSize int) *Engine {
	return NewEngine(client, f.mirror, f.state, f.cache, log.NewNopLoggerService(), Config{PageSize: pageSize})
}

func (f *fixture) put(n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		h := f.server.Put(testDrive, remote.FileHeader{})
		ids = append(ids, h.FileID)
	}
	return ids
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.mirror.CountHeaders(context.Background(), testDrive.Key())
	require.NoError(t, err)
	return n
}

// failingClient fails the n-th QueryBatch call and records every batch cursor it sees.
type failingClient struct {
	*remotetest.Server

	mutex   sync.Mutex
	failAt  int
	calls   int
	cursors []string
}

func (c *failingClient) QueryBatch(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, opts remote.BatchOptions) (*remote.BatchResult, error) {
	c.mutex.Lock()
	c.calls++
	c.cursors = append(c.cursors, opts.CursorState)
	fail := c.calls == c.failAt
	c.mutex.Unlock()

	if fail {
		return nil, errors.New("connection reset")
	}
	return c.Server.QueryBatch(ctx, drive, params, opts)
}

func TestEngine_SyncMirrorsAllPages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(250)

	e := f.engine(f.server, 100)
	require.NoError(t, e.Sync(ctx, testDrive))

	assert.Equal(t, int64(250), f.count(t))
	assert.Equal(t, 3, f.server.Calls(remotetest.OpQueryBatch))

	cursor, err := f.state.GetCursor(ctx, testDrive.Key())
	require.NoError(t, err)
	assert.Equal(t, "250", cursor.LastQueryBatchCursor)
	assert.NotZero(t, cursor.MostRecentQueryModifiedTime)

	have, err := e.HaveData(ctx, testDrive)
	require.NoError(t, err)
	assert.True(t, have)
}

func TestEngine_SyncLocalDbReturnsCursor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(3)

	e := f.engine(f.server, 2)
	cursor, err := e.SyncLocalDb(ctx, testDrive, DefaultParams(), CursorState{})
	require.NoError(t, err)

	assert.Equal(t, "3", cursor.LastQueryBatchCursor)
	assert.Equal(t, int64(1_700_000_000_003), cursor.MostRecentQueryModifiedTime)

	// Nothing is persisted by SyncLocalDb itself.
	have, err := e.HaveData(ctx, testDrive)
	require.NoError(t, err)
	assert.False(t, have)
}

func TestEngine_SyncResumesFromLastCommittedPage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(5)

	client := &failingClient{Server: f.server, failAt: 2}
	e := f.engine(client, 2)

	require.Error(t, e.Sync(ctx, testDrive))
	assert.Equal(t, int64(2), f.count(t))

	cursor, err := f.state.GetCursor(ctx, testDrive.Key())
	require.NoError(t, err)
	assert.Equal(t, "2", cursor.LastQueryBatchCursor)

	require.NoError(t, e.Sync(ctx, testDrive))
	assert.Equal(t, int64(5), f.count(t))

	// The retry starts at the page after the committed one.
	assert.Equal(t, []string{"", "2", "2", "4"}, client.cursors)
}

func TestEngine_ModifiedWalkSkipsInactive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.put(3)

	e := f.engine(f.server, 100)
	require.NoError(t, e.Sync(ctx, testDrive))

	changed, ok := f.server.Header(testDrive, ids[0])
	require.True(t, ok)
	changed.FileMetadata.Updated = 0
	changed.FileMetadata.AppData.Tags = []string{"fav"}
	f.server.Put(testDrive, changed)
	f.server.Delete(testDrive, ids[1])

	require.NoError(t, e.Sync(ctx, testDrive))

	h, err := f.mirror.GetHeader(ctx, testDrive.Key(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"fav"}, h.Tags)

	// Deletions are left to push notifications and single file resyncs.
	_, err = f.mirror.GetHeader(ctx, testDrive.Key(), ids[1])
	require.NoError(t, err)

	deleted, _ := f.server.Header(testDrive, ids[1])
	require.NoError(t, e.HandleNotification(ctx, remote.Notification{
		NotificationType: remote.NotificationFileDeleted,
		TargetDrive:      testDrive,
		Header:           deleted,
	}))
	_, err = f.mirror.GetHeader(ctx, testDrive.Key(), ids[1])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_SyncHeaderFileIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.put(1)
	e := f.engine(f.server, 100)

	require.NoError(t, e.SyncHeaderFile(ctx, testDrive, ids[0]))
	first, err := f.mirror.GetHeader(ctx, testDrive.Key(), ids[0])
	require.NoError(t, err)

	require.NoError(t, e.SyncHeaderFile(ctx, testDrive, ids[0]))
	second, err := f.mirror.GetHeader(ctx, testDrive.Key(), ids[0])
	require.NoError(t, err)

	assert.Equal(t, first, second)

	f.server.Delete(testDrive, ids[0])
	require.NoError(t, e.SyncHeaderFile(ctx, testDrive, ids[0]))
	_, err = f.mirror.GetHeader(ctx, testDrive.Key(), ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_SyncHeaderFilePropagatesRemoteErrors(t *testing.T) {
	f := setup(t)
	ids := f.put(1)
	e := f.engine(f.server, 100)

	f.server.FailNext(remotetest.OpGetFileHeader, &remote.StatusError{StatusCode: 503})
	assert.Error(t, e.SyncHeaderFile(context.Background(), testDrive, ids[0]))
	assert.Zero(t, f.count(t))
}

func TestEngine_HandleNotificationInvalidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.put(1)
	e := f.engine(f.server, 100)

	libraryKey := querycache.Key{PhotoLibraryKey, testDrive.Key(), "photos"}
	photosKey := querycache.Key{PhotosKey, testDrive.Key(), "photos", "2024-03"}
	f.cache.Set(libraryKey, "library")
	f.cache.Set(photosKey, "photos")

	library := remote.FileHeader{FileID: "lib", FileMetadata: remote.FileMetadata{
		AppData: remote.AppData{FileType: remote.PhotoLibraryMetadataFileType},
	}}
	require.NoError(t, e.HandleNotification(ctx, remote.Notification{
		NotificationType: remote.NotificationFileModified,
		TargetDrive:      testDrive,
		Header:           library,
	}))

	_, _, fresh := f.cache.Get(libraryKey)
	assert.False(t, fresh)
	_, _, fresh = f.cache.Get(photosKey)
	assert.True(t, fresh)
	assert.Zero(t, f.server.Calls(remotetest.OpGetFileHeader))

	added, _ := f.server.Header(testDrive, ids[0])
	require.NoError(t, e.HandleNotification(ctx, remote.Notification{
		NotificationType: remote.NotificationFileAdded,
		TargetDrive:      testDrive,
		Header:           added,
	}))

	_, _, fresh = f.cache.Get(photosKey)
	assert.False(t, fresh)
	assert.Equal(t, int64(1), f.count(t))
}

func TestEngine_Reset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(3)
	e := f.engine(f.server, 100)

	require.NoError(t, e.Sync(ctx, testDrive))
	require.NoError(t, e.Reset(ctx, testDrive))

	assert.Zero(t, f.count(t))
	have, err := e.HaveData(ctx, testDrive)
	require.NoError(t, err)
	assert.False(t, have)

	require.NoError(t, e.Sync(ctx, testDrive))
	assert.Equal(t, int64(3), f.count(t))
}
