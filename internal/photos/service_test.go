package photos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/syncer"
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
	server  *remotetest.Server
	mirror  *store.SQLiteStore
	cache   *querycache.Cache
	engine  *syncer.Engine
	library *library.Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := log.NewNopLoggerService()

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

	f := &fixture{
		server: remotetest.NewServer(),
		mirror: mirror,
		cache:  querycache.New(),
	}
	f.engine = syncer.NewEngine(f.server, mirror, state, f.cache, logger, syncer.Config{})
	f.library = library.NewCache(library.NewRemote(f.server, logger), f.cache, logger, library.Config{
		Debounce:  time.Hour,
		RetryBase: time.Millisecond,
	})
	t.Cleanup(func() { f.library.Close(context.Background()) })
	return f
}

func (f *fixture) service(source MonthSource, pageSize int) *Service {
	return NewService(f.server, f.mirror, source, f.engine, f.library, f.cache, log.NewNopLoggerService(), Config{MonthPageSize: pageSize})
}

func (f *fixture) put(t time.Time, status remote.ArchivalStatus, tags ...string) string {
	h := f.server.Put(testDrive, remote.FileHeader{
		FileMetadata: remote.FileMetadata{
			Created: t.UnixMilli(),
			AppData: remote.AppData{
				FileType:       remote.MediaFileType,
				ArchivalStatus: status,
				Tags:           tags,
			},
		},
	})
	return remote.NormalizeGUID(h.FileID)
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.engine.Sync(context.Background(), testDrive))
}

func (f *fixture) count(t *testing.T, typ library.Type, year int, month time.Month) int {
	t.Helper()

	md, err := f.library.Get(context.Background(), testDrive, typ)
	require.NoError(t, err)
	count, _ := md.CountFor(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	return count
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
}

func ids(photos []Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.FileID
	}
	return out
}

func TestService_FetchMonthWalksAllPages(t *testing.T) {
	f := setup(t)
	var march []string
	for d := 1; d <= 5; d++ {
		march = append(march, f.put(day(2024, time.March, d), remote.ArchivalStatusActive))
	}
	f.put(day(2024, time.April, 1), remote.ArchivalStatusActive)
	f.put(day(2024, time.March, 9), remote.ArchivalStatusArchived)
	f.sync(t)

	photos, err := f.service(NewLocalMonths(f.mirror), 2).FetchMonth(context.Background(), testDrive, library.TypePhotos, 2024, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{march[4], march[3], march[2], march[1], march[0]}, ids(photos))
	for i := 1; i < len(photos); i++ {
		assert.True(t, photos[i-1].DisplayDate.After(photos[i].DisplayDate))
	}
}

func TestService_LocalAndRemoteMonthsAgree(t *testing.T) {
	f := setup(t)
	for d := 1; d <= 4; d++ {
		f.put(day(2023, time.December, d), remote.ArchivalStatusActive, remote.FavoriteTag)
	}
	f.put(day(2023, time.December, 10), remote.ArchivalStatusActive)
	f.put(day(2024, time.January, 1), remote.ArchivalStatusActive, remote.FavoriteTag)
	f.sync(t)

	ctx := context.Background()
	local, err := f.service(NewLocalMonths(f.mirror), 3).FetchMonth(ctx, testDrive, library.TypeFavorites, 2023, 12)
	require.NoError(t, err)

	f.cache.Remove(querycache.Key{syncer.PhotosKey})
	remoteListing, err := f.service(NewRemoteMonths(f.server), 3).FetchMonth(ctx, testDrive, library.TypeFavorites, 2023, 12)
	require.NoError(t, err)

	assert.Len(t, local, 4)
	assert.Equal(t, ids(local), ids(remoteListing))
}

func TestService_FetchMonthIsCached(t *testing.T) {
	f := setup(t)
	f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)

	ctx := context.Background()
	svc := f.service(NewRemoteMonths(f.server), 10)

	_, err := svc.FetchMonth(ctx, testDrive, library.TypePhotos, 2024, 3)
	require.NoError(t, err)
	calls := f.server.Calls(remotetest.OpQueryBatch)

	_, err = svc.FetchMonth(ctx, testDrive, library.TypePhotos, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, calls, f.server.Calls(remotetest.OpQueryBatch))

	f.cache.Invalidate(querycache.Key{syncer.PhotosKey, testDrive.Key()})
	_, err = svc.FetchMonth(ctx, testDrive, library.TypePhotos, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.server.Calls(remotetest.OpQueryBatch))
}

func TestService_FetchMonthCorrectsLibraryCount(t *testing.T) {
	for _, wrong := range []int{0, 1, 9} {
		f := setup(t)
		for d := 1; d <= 3; d++ {
			f.put(day(2024, time.March, d), remote.ArchivalStatusActive)
		}
		f.sync(t)

		require.Equal(t, 3, f.count(t, library.TypePhotos, 2024, time.March))
		require.True(t, f.library.UpdateCount(testDrive, library.TypePhotos, day(2024, time.March, 1), wrong))

		_, err := f.service(NewLocalMonths(f.mirror), 2).FetchMonth(context.Background(), testDrive, library.TypePhotos, 2024, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, f.count(t, library.TypePhotos, 2024, time.March), "from %d", wrong)
	}
}

func TestService_ArchiveMovesBetweenLibraries(t *testing.T) {
	f := setup(t)
	id := f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)
	f.put(day(2024, time.March, 2), remote.ArchivalStatusActive)
	f.sync(t)

	require.Equal(t, 2, f.count(t, library.TypePhotos, 2024, time.March))
	require.Equal(t, 0, f.count(t, library.TypeArchive, 2024, time.March))

	ctx := context.Background()
	svc := f.service(NewLocalMonths(f.mirror), 10)
	require.NoError(t, svc.Archive(ctx, testDrive, id))

	assert.Equal(t, 1, f.count(t, library.TypePhotos, 2024, time.March))
	assert.Equal(t, 1, f.count(t, library.TypeArchive, 2024, time.March))

	row, err := f.mirror.GetHeader(ctx, testDrive.Key(), id)
	require.NoError(t, err)
	assert.Equal(t, int(remote.ArchivalStatusArchived), row.ArchivalStatus)

	archived, err := svc.FetchMonth(ctx, testDrive, library.TypeArchive, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(archived))

	require.NoError(t, svc.Restore(ctx, testDrive, id))
	assert.Equal(t, 2, f.count(t, library.TypePhotos, 2024, time.March))
	assert.Equal(t, 0, f.count(t, library.TypeArchive, 2024, time.March))
}

func TestService_MoveToBin(t *testing.T) {
	f := setup(t)
	id := f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)
	f.sync(t)
	require.Equal(t, 1, f.count(t, library.TypePhotos, 2024, time.March))

	require.NoError(t, f.service(NewLocalMonths(f.mirror), 10).MoveToBin(context.Background(), testDrive, id))

	assert.Equal(t, 0, f.count(t, library.TypePhotos, 2024, time.March))
	header, ok := f.server.Header(testDrive, id)
	require.True(t, ok)
	assert.Equal(t, remote.ArchivalStatusBin, header.FileMetadata.AppData.ArchivalStatus)
}

func TestService_Tags(t *testing.T) {
	f := setup(t)
	id := f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)
	f.sync(t)
	require.Equal(t, 0, f.count(t, library.TypeFavorites, 2024, time.March))

	ctx := context.Background()
	svc := f.service(NewLocalMonths(f.mirror), 10)

	require.NoError(t, svc.AddTag(ctx, testDrive, id, remote.FavoriteTag))
	require.NoError(t, svc.AddTag(ctx, testDrive, id, remote.FavoriteTag))
	assert.Equal(t, 1, f.count(t, library.TypeFavorites, 2024, time.March))

	photo, err := svc.GetPhoto(ctx, testDrive, id)
	require.NoError(t, err)
	assert.Equal(t, []string{remote.NormalizeGUID(remote.FavoriteTag)}, photo.Tags)

	require.NoError(t, svc.RemoveTag(ctx, testDrive, id, remote.FavoriteTag))
	assert.Equal(t, 0, f.count(t, library.TypeFavorites, 2024, time.March))
	assert.Equal(t, 1, f.count(t, library.TypePhotos, 2024, time.March))
}

func TestService_SetUserDateMovesMonth(t *testing.T) {
	f := setup(t)
	id := f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)
	f.put(day(2024, time.March, 2), remote.ArchivalStatusActive)
	f.sync(t)
	require.Equal(t, 2, f.count(t, library.TypePhotos, 2024, time.March))

	ctx := context.Background()
	svc := f.service(NewLocalMonths(f.mirror), 10)
	require.NoError(t, svc.SetUserDate(ctx, testDrive, id, day(2020, time.January, 15)))

	assert.Equal(t, 1, f.count(t, library.TypePhotos, 2024, time.March))
	assert.Equal(t, 1, f.count(t, library.TypePhotos, 2020, time.January))

	january, err := svc.FetchMonth(ctx, testDrive, library.TypePhotos, 2020, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(january))
}

func TestService_RegisterUploaded(t *testing.T) {
	f := setup(t)
	f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)
	f.sync(t)
	require.Equal(t, 1, f.count(t, library.TypePhotos, 2024, time.March))

	id := f.put(day(2024, time.March, 20), remote.ArchivalStatusActive)

	ctx := context.Background()
	require.NoError(t, f.service(NewLocalMonths(f.mirror), 10).RegisterUploaded(ctx, testDrive, id))

	assert.Equal(t, 2, f.count(t, library.TypePhotos, 2024, time.March))
	_, err := f.mirror.GetHeader(ctx, testDrive.Key(), id)
	assert.NoError(t, err)
}

func TestService_UnknownPhoto(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.service(NewLocalMonths(f.mirror), 10)

	assert.ErrorIs(t, svc.Archive(ctx, testDrive, "missing"), ErrPhotoNotFound)

	_, err := svc.GetPhoto(ctx, testDrive, "missing")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestService_GetPhotoFallsBackToRemote(t *testing.T) {
	f := setup(t)
	id := f.put(day(2024, time.March, 1), remote.ArchivalStatusActive)

	photo, err := f.service(NewLocalMonths(f.mirror), 10).GetPhoto(context.Background(), testDrive, id)
	require.NoError(t, err)
	assert.Equal(t, id, photo.FileID)
	assert.True(t, day(2024, time.March, 1).Equal(photo.DisplayDate))
}

func TestService_FindByUniqueID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.service(NewLocalMonths(f.mirror), 10)

	binned := f.server.Put(testDrive, remote.FileHeader{
		FileMetadata: remote.FileMetadata{
			Created: day(2024, time.March, 1).UnixMilli(),
			AppData: remote.AppData{
				FileType:       remote.MediaFileType,
				ArchivalStatus: remote.ArchivalStatusBin,
				UniqueID:       "AB12-CD34",
			},
		},
	})
	f.sync(t)

	calls := f.server.Calls(remotetest.OpQueryBatch)
	photo, err := svc.FindByUniqueID(ctx, testDrive, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, remote.NormalizeGUID(binned.FileID), photo.FileID)
	assert.Equal(t, calls, f.server.Calls(remotetest.OpQueryBatch), "mirror hits stay local")

	// Not mirrored yet.
	fresh := f.server.Put(testDrive, remote.FileHeader{
		FileMetadata: remote.FileMetadata{
			Created: day(2024, time.April, 1).UnixMilli(),
			AppData: remote.AppData{FileType: remote.MediaFileType, UniqueID: "EF56"},
		},
	})
	photo, err = svc.FindByUniqueID(ctx, testDrive, "EF56")
	require.NoError(t, err)
	assert.Equal(t, remote.NormalizeGUID(fresh.FileID), photo.FileID)
	assert.Equal(t, "ef56", photo.UniqueID)

	_, err = svc.FindByUniqueID(ctx, testDrive, "unknown")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
	_, err = svc.FindByUniqueID(ctx, testDrive, "")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}
