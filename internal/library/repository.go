package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/remote"
)

const DefaultRebuildPageSize = 1200

// Remote persists library metadata as metadata-only files on the drive.
type Remote struct {
	client remote.Client
	log    log.LoggerService
}

func NewRemote(client remote.Client, logger log.LoggerService) *Remote {
	return &Remote{
		client: client,
		log:    logger,
	}
}

// Fetch loads the remote copy of a library. With a known lastCursor only a
// copy modified after it is returned. A nil result without error means there
// is no (newer) remote copy.
func (r *Remote) Fetch(ctx context.Context, drive remote.TargetDrive, t Type, lastCursor int64) (*Metadata, error) {
	params := t.metadataParams()

	var (
		headers []remote.FileHeader
		cursor  int64
	)

	if lastCursor != 0 {
		result, err := r.client.QueryModified(ctx, drive, params, remote.ModifiedOptions{
			Cursor:               lastCursor,
			MaxRecords:           2,
			IncludeHeaderContent: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query modified %s library: %w", t, err)
		}
		headers, cursor = result.SearchResults, result.Cursor
	} else {
		result, err := r.client.QueryBatch(ctx, drive, params, remote.BatchOptions{
			MaxRecords:            2,
			IncludeMetadataHeader: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s library: %w", t, err)
		}
		headers, cursor = result.SearchResults, result.QueryTime
	}

	var active []remote.FileHeader
	for _, h := range headers {
		if h.IsActive() {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	if len(active) > 1 {
		r.log.Error("Found %d metadata files for library '%s', using %s", len(active), t, active[0].FileID)
	}

	header := active[0]
	md, err := decodeContent(header.FileMetadata.AppData.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s library %s: %w", t, header.FileID, err)
	}

	md.FileID = header.FileID
	md.VersionTag = header.FileMetadata.VersionTag
	md.LastUpdated = header.FileMetadata.Updated
	md.LastCursor = cursor
	md.normalize()
	return md, nil
}

// Save uploads md and returns it with the identity assigned by the remote.
// A copy without a file id takes over an existing remote file of the same
// library instead of creating a second one.
func (r *Remote) Save(ctx context.Context, drive remote.TargetDrive, t Type, md *Metadata) (*Metadata, error) {
	fileID, versionTag := md.FileID, md.VersionTag
	if fileID == "" {
		existing, err := r.Fetch(ctx, drive, t, 0)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			fileID, versionTag = existing.FileID, existing.VersionTag
		}
	}

	content, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s library: %w", t, err)
	}

	result, err := r.client.UploadHeader(ctx, drive, remote.UploadRequest{
		FileID:     fileID,
		VersionTag: versionTag,
		Metadata: remote.UploadMetadata{
			AppData: remote.AppData{
				FileType:       remote.PhotoLibraryMetadataFileType,
				ArchivalStatus: t.storedArchivalStatus(),
				Tags:           []string{t.tag()},
				Content:        content,
			},
			VersionTag: versionTag,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s library: %w", t, err)
	}

	if result.FileID != "" {
		fileID = result.FileID
	}
	return md.withIdentity(fileID, result.NewVersionTag), nil
}

// ScanPhotos walks every photo of the library.
func (r *Remote) ScanPhotos(ctx context.Context, drive remote.TargetDrive, t Type, pageSize int) ([]remote.FileHeader, error) {
	if pageSize <= 0 {
		pageSize = DefaultRebuildPageSize
	}

	var (
		headers []remote.FileHeader
		cursor  string
	)

	for {
		result, err := r.client.QueryBatch(ctx, drive, t.PhotoParams(), remote.BatchOptions{
			CursorState:           cursor,
			MaxRecords:            pageSize,
			IncludeMetadataHeader: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s photos: %w", t, err)
		}

		headers = append(headers, result.SearchResults...)
		cursor = result.CursorState

		if len(result.SearchResults) < pageSize || cursor == "" {
			return headers, nil
		}
	}
}

// decodeContent accepts the histogram as a JSON object or as a JSON
// encoded string holding that object.
func decodeContent(content json.RawMessage) (*Metadata, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return &Metadata{}, nil
	}

	if content[0] == '"' {
		var raw string
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
		content = json.RawMessage(raw)
	}

	var md Metadata
	if err := json.Unmarshal(content, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
