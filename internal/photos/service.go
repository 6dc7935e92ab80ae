package photos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/syncer"
	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
)

var ErrPhotoNotFound = errors.New("photo not found")

type Config struct {
	MonthPageSize int
}

// Service answers photo listings and applies photo mutations.
type Service struct {
	client  remote.Client
	mirror  store.MirrorStore
	source  MonthSource
	engine  *syncer.Engine
	library *library.Cache
	cache   *querycache.Cache
	log     log.LoggerService

	pageSize int
}

func NewService(client remote.Client, mirror store.MirrorStore, source MonthSource, engine *syncer.Engine, lib *library.Cache, cache *querycache.Cache, logger log.LoggerService, cfg Config) *Service {
	if cfg.MonthPageSize <= 0 {
		cfg.MonthPageSize = DefaultMonthPageSize
	}

	return &Service{
		client:   client,
		mirror:   mirror,
		source:   source,
		engine:   engine,
		library:  lib,
		cache:    cache,
		log:      logger,
		pageSize: cfg.MonthPageSize,
	}
}

// MonthKey is the query cache key of one library month.
func MonthKey(drive remote.TargetDrive, t library.Type, year, month int) querycache.Key {
	return querycache.Key{syncer.PhotosKey, drive.Key(), string(t), fmt.Sprintf("%04d-%02d", year, month)}
}

func photoKey(drive remote.TargetDrive, fileID string) querycache.Key {
	return querycache.Key{syncer.PhotoMetaKey, drive.Key(), remote.NormalizeGUID(fileID)}
}

// FetchMonth returns every photo of a library month, newest first. A
// loaded library whose count for the month disagrees with the listing
// is corrected.
func (s *Service) FetchMonth(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int) ([]Photo, error) {
	key := MonthKey(drive, t, year, month)
	if photos, found, fresh := querycache.GetAs[[]Photo](s.cache, key); found && fresh {
		return photos, nil
	}

	var (
		photos []Photo
		cursor string
	)
	for {
		page, err := s.source.MonthPage(ctx, drive, t, year, month, cursor, s.pageSize)
		if err != nil {
			return nil, err
		}

		photos = append(photos, page.Photos...)
		cursor = page.Cursor

		if !page.HasNextPage {
			break
		}
	}

	s.cache.Set(key, photos)
	s.reconcile(drive, t, year, month, len(photos))
	return photos, nil
}

func (s *Service) reconcile(drive remote.TargetDrive, t library.Type, year, month, count int) {
	md, ok := s.library.Peek(drive, t)
	if !ok {
		return
	}

	day := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	cached, found := md.CountFor(day)
	if !found || cached == count {
		return
	}

	s.log.Debug("Correcting '%s' library count of %04d-%02d from %d to %d", t, year, month, cached, count)
	s.library.UpdateCount(drive, t, day, count)
}

// GetPhoto resolves a photo from the mirror and falls back to the remote.
func (s *Service) GetPhoto(ctx context.Context, drive remote.TargetDrive, fileID string) (*Photo, error) {
	key := photoKey(drive, fileID)
	if photo, found, fresh := querycache.GetAs[*Photo](s.cache, key); found && fresh {
		return photo, nil
	}

	var photo Photo
	row, err := s.mirror.GetHeader(ctx, drive.Key(), fileID)
	switch {
	case err == nil:
		photo = fromHeaderRow(row)

	case errors.Is(err, store.ErrNotFound):
		header, err := s.client.GetFileHeader(ctx, drive, fileID)
		if errors.Is(err, remote.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, fileID)
		}
		if err != nil {
			return nil, err
		}
		photo = fromFileHeader(header)

	default:
		return nil, err
	}

	s.cache.Set(key, &photo)
	return &photo, nil
}

// FindByUniqueID looks up an already uploaded photo by the unique id of its
// source asset, in any library. The mirror is asked first, the remote only
// when the mirror has no match. Results are not cached.
func (s *Service) FindByUniqueID(ctx context.Context, drive remote.TargetDrive, uniqueID string) (*Photo, error) {
	if remote.NormalizeGUID(uniqueID) == "" {
		return nil, fmt.Errorf("%w: empty unique id", ErrPhotoNotFound)
	}

	params := syncer.DefaultParams()
	params.ClientUniqueIDAtLeastOne = []string{uniqueID}

	rows, err := s.mirror.QueryHeaders(ctx, drive.Key(), params, store.ResultOptions{Take: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		photo := fromHeaderRow(&rows[0])
		return &photo, nil
	}

	result, err := s.client.QueryBatch(ctx, drive, params, remote.BatchOptions{
		MaxRecords:            1,
		IncludeMetadataHeader: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query unique id %s: %w", uniqueID, err)
	}
	if len(result.SearchResults) == 0 {
		return nil, fmt.Errorf("%w: unique id %s", ErrPhotoNotFound, uniqueID)
	}

	s.log.Debug("Unique id %s is only known remotely as file %s", uniqueID, result.SearchResults[0].FileID)
	photo := fromFileHeader(&result.SearchResults[0])
	return &photo, nil
}
