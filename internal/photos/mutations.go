package photos

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/syncer"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
)

func (s *Service) Archive(ctx context.Context, drive remote.TargetDrive, fileID string) error {
	return s.setArchivalStatus(ctx, drive, fileID, remote.ArchivalStatusArchived)
}

func (s *Service) Restore(ctx context.Context, drive remote.TargetDrive, fileID string) error {
	return s.setArchivalStatus(ctx, drive, fileID, remote.ArchivalStatusActive)
}

func (s *Service) MoveToBin(ctx context.Context, drive remote.TargetDrive, fileID string) error {
	return s.setArchivalStatus(ctx, drive, fileID, remote.ArchivalStatusBin)
}

func (s *Service) setArchivalStatus(ctx context.Context, drive remote.TargetDrive, fileID string, status remote.ArchivalStatus) error {
	return s.modify(ctx, drive, fileID, func(app *remote.AppData) {
		app.ArchivalStatus = status
	})
}

func (s *Service) AddTag(ctx context.Context, drive remote.TargetDrive, fileID, tag string) error {
	return s.modify(ctx, drive, fileID, func(app *remote.AppData) {
		if !slices.Contains(remote.NormalizeGUIDs(app.Tags), remote.NormalizeGUID(tag)) {
			app.Tags = append(app.Tags, tag)
		}
	})
}

func (s *Service) RemoveTag(ctx context.Context, drive remote.TargetDrive, fileID, tag string) error {
	return s.modify(ctx, drive, fileID, func(app *remote.AppData) {
		app.Tags = slices.DeleteFunc(app.Tags, func(t string) bool {
			return remote.NormalizeGUID(t) == remote.NormalizeGUID(tag)
		})
	})
}

// SetUserDate overrides the display date. The zero time falls back to the
// creation time.
func (s *Service) SetUserDate(ctx context.Context, drive remote.TargetDrive, fileID string, date time.Time) error {
	return s.modify(ctx, drive, fileID, func(app *remote.AppData) {
		if date.IsZero() {
			app.UserDate = 0
			return
		}
		app.UserDate = date.UnixMilli()
	})
}

// RegisterUploaded mirrors a freshly uploaded photo and counts it in every
// loaded library it belongs to.
func (s *Service) RegisterUploaded(ctx context.Context, drive remote.TargetDrive, fileID string) error {
	header, err := s.client.GetFileHeader(ctx, drive, fileID)
	if err != nil {
		return fmt.Errorf("failed to fetch uploaded photo %s: %w", fileID, err)
	}

	if err := s.engine.SyncHeaderFile(ctx, drive, fileID); err != nil {
		return err
	}

	for _, t := range library.Types {
		if t.Contains(header) {
			s.library.AddDay(drive, t, header.DisplayDate())
		}
	}

	s.invalidate(drive, fileID)
	return nil
}

// modify applies change as a metadata-only update, resyncs the mirror and
// moves the photo between the library counts it affects.
func (s *Service) modify(ctx context.Context, drive remote.TargetDrive, fileID string, change func(*remote.AppData)) error {
	before, err := s.client.GetFileHeader(ctx, drive, fileID)
	if errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPhotoNotFound, fileID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch photo %s: %w", fileID, err)
	}

	after := *before
	after.FileMetadata.AppData.Tags = slices.Clone(before.FileMetadata.AppData.Tags)
	change(&after.FileMetadata.AppData)

	_, err = s.client.UploadHeader(ctx, drive, remote.UploadRequest{
		FileID:     before.FileID,
		VersionTag: before.FileMetadata.VersionTag,
		Metadata: remote.UploadMetadata{
			IsEncrypted: before.FileMetadata.IsEncrypted,
			AppData:     after.FileMetadata.AppData,
			VersionTag:  before.FileMetadata.VersionTag,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update photo %s: %w", fileID, err)
	}

	if err := s.engine.SyncHeaderFile(ctx, drive, fileID); err != nil {
		return err
	}

	s.moveBetweenLibraries(drive, before, &after)
	s.invalidate(drive, fileID)
	return nil
}

func (s *Service) moveBetweenLibraries(drive remote.TargetDrive, before, after *remote.FileHeader) {
	from, to := before.DisplayDate(), after.DisplayDate()
	sameMonth := from.Year() == to.Year() && from.Month() == to.Month()

	for _, t := range library.Types {
		was, is := t.Contains(before), t.Contains(after)
		if was && is && sameMonth {
			continue
		}

		if was {
			s.decrement(drive, t, from)
		}
		if is {
			s.library.AddDay(drive, t, to)
		}
	}
}

func (s *Service) decrement(drive remote.TargetDrive, t library.Type, day time.Time) {
	md, ok := s.library.Peek(drive, t)
	if !ok {
		return
	}
	if count, found := md.CountFor(day); found {
		s.library.UpdateCount(drive, t, day, count-1)
	}
}

func (s *Service) invalidate(drive remote.TargetDrive, fileID string) {
	s.cache.Invalidate(querycache.Key{syncer.PhotosKey, drive.Key()})
	s.cache.Invalidate(photoKey(drive, fileID))
}
