// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/samber/lo"
)

const (
	OpQueryBatch    = "QueryBatch"
	OpQueryModified = "QueryModified"
	OpGetFileHeader = "GetFileHeader"
	OpUploadHeader  = "UploadHeader"
)

type file struct {
	seq    int
	drive  string
	header remote.FileHeader
}

// Server keeps files per drive and mimics cursor pagination of the real API.
// Batch cursors are offsets, modified cursors are `updated` watermarks.
type Server struct {
	mu sync.Mutex

	files    map[string]*file
	seq      int
	clock    int64
	failures map[string][]error
	calls    map[string]int
}

var _ remote.Client = (*Server)(nil)

func NewServer() *Server {
	return &Server{
		files:    make(map[string]*file),
		clock:    1_700_000_000_000,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// Put stores h as active file. Missing ids, version tags and
// update timestamps are generated.
func (s *Server) Put(drive remote.TargetDrive, h remote.FileHeader) remote.FileHeader {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.FileID == "" {
		h.FileID = uuid.NewString()
	}
	if h.FileState == "" {
		h.FileState = remote.FileStateActive
	}
	if h.FileMetadata.VersionTag == "" {
		h.FileMetadata.VersionTag = uuid.NewString()
	}
	if h.FileMetadata.Updated == 0 {
		h.FileMetadata.Updated = s.tick()
	} else if h.FileMetadata.Updated > s.clock {
		s.clock = h.FileMetadata.Updated
	}
	if h.FileMetadata.Created == 0 {
		h.FileMetadata.Created = h.FileMetadata.Updated
	}

	key := s.key(drive, h.FileID)
	if existing, ok := s.files[key]; ok {
		existing.header = h
		return h
	}

	s.seq++
	s.files[key] = &file{seq: s.seq, drive: drive.Key(), header: h}
	return h
}

// Delete marks a file as deleted and bumps its update timestamp.
func (s *Server) Delete(drive remote.TargetDrive, fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.files[s.key(drive, fileID)]; ok {
		f.header.FileState = remote.FileStateDeleted
		f.header.FileMetadata.Updated = s.tick()
		f.header.FileMetadata.VersionTag = uuid.NewString()
	}
}

// Header returns the stored header regardless of its state.
func (s *Server) Header(drive remote.TargetDrive, fileID string) (remote.FileHeader, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[s.key(drive, fileID)]
	if !ok {
		return remote.FileHeader{}, false
	}
	return f.header, true
}

// FailNext makes the next call of op return err.
func (s *Server) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how often op was invoked.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[op]
}

func (s *Server) QueryBatch(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, opts remote.BatchOptions) (*remote.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpQueryBatch); err != nil {
		return nil, err
	}

	offset := 0
	if opts.CursorState != "" {
		n, err := strconv.Atoi(opts.CursorState)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor state %q", opts.CursorState)
		}
		offset = n
	}

	matches := lo.Filter(s.sorted(drive, opts.Sorting, opts.Ordering), func(f *file, _ int) bool {
		return f.header.IsActive() && match(f.header, params)
	})

	page := paginate(matches, offset, opts.MaxRecords)
	return &remote.BatchResult{
		SearchResults: lo.Map(page, func(f *file, _ int) remote.FileHeader { return f.header }),
		CursorState:   strconv.Itoa(offset + len(page)),
		QueryTime:     s.clock,
	}, nil
}

func (s *Server) QueryModified(ctx context.Context, drive remote.TargetDrive, params remote.QueryParams, opts remote.ModifiedOptions) (*remote.ModifiedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpQueryModified); err != nil {
		return nil, err
	}

	matches := lo.Filter(s.sorted(drive, "", ""), func(f *file, _ int) bool {
		return f.header.FileMetadata.Updated > opts.Cursor && match(f.header, params)
	})
	slices.SortStableFunc(matches, func(a, b *file) int {
		return cmp.Compare(a.header.FileMetadata.Updated, b.header.FileMetadata.Updated)
	})

	page := paginate(matches, 0, opts.MaxRecords)
	cursor := opts.Cursor
	if len(page) > 0 {
		cursor = page[len(page)-1].header.FileMetadata.Updated
	}

	return &remote.ModifiedResult{
		SearchResults: lo.Map(page, func(f *file, _ int) remote.FileHeader { return f.header }),
		Cursor:        cursor,
	}, nil
}

func (s *Server) GetFileHeader(ctx context.Context, drive remote.TargetDrive, fileID string) (*remote.FileHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpGetFileHeader); err != nil {
		return nil, err
	}

	f, ok := s.files[s.key(drive, fileID)]
	if !ok || !f.header.IsActive() {
		return nil, remote.ErrNotFound
	}

	h := f.header
	return &h, nil
}

func (s *Server) UploadHeader(ctx context.Context, drive remote.TargetDrive, req remote.UploadRequest) (*remote.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpUploadHeader); err != nil {
		return nil, err
	}

	if req.FileID == "" {
		now := s.tick()
		h := remote.FileHeader{
			FileID:    uuid.NewString(),
			FileState: remote.FileStateActive,
			FileMetadata: remote.FileMetadata{
				Created:     now,
				Updated:     now,
				IsEncrypted: req.Metadata.IsEncrypted,
				VersionTag:  uuid.NewString(),
				AppData:     req.Metadata.AppData,
			},
		}

		s.seq++
		s.files[s.key(drive, h.FileID)] = &file{seq: s.seq, drive: drive.Key(), header: h}
		return &remote.UploadResult{FileID: h.FileID, NewVersionTag: h.FileMetadata.VersionTag}, nil
	}

	f, ok := s.files[s.key(drive, req.FileID)]
	if !ok || !f.header.IsActive() {
		return nil, remote.ErrNotFound
	}

	if req.VersionTag != f.header.FileMetadata.VersionTag {
		return nil, fmt.Errorf("upload of %s: %w", req.FileID, remote.ErrVersionConflict)
	}

	f.header.FileMetadata.AppData = req.Metadata.AppData
	f.header.FileMetadata.IsEncrypted = req.Metadata.IsEncrypted
	f.header.FileMetadata.Updated = s.tick()
	f.header.FileMetadata.VersionTag = uuid.NewString()

	return &remote.UploadResult{FileID: f.header.FileID, NewVersionTag: f.header.FileMetadata.VersionTag}, nil
}

func (s *Server) enter(op string) error {
	s.calls[op]++

	if queue := s.failures[op]; len(queue) > 0 {
		s.failures[op] = queue[1:]
		return queue[0]
	}
	return nil
}

func (s *Server) tick() int64 {
	s.clock++
	return s.clock
}

func (s *Server) key(drive remote.TargetDrive, fileID string) string {
	return drive.Key() + "/" + remote.NormalizeGUID(fileID)
}

func (s *Server) sorted(drive remote.TargetDrive, sorting remote.Sorting, ordering remote.Ordering) []*file {
	files := lo.Filter(lo.Values(s.files), func(f *file, _ int) bool {
		return f.drive == drive.Key()
	})

	slices.SortStableFunc(files, func(a, b *file) int {
		var c int
		switch sorting {
		case remote.SortingUserDate:
			c = cmp.Compare(a.header.DisplayDate().UnixMilli(), b.header.DisplayDate().UnixMilli())
		case remote.SortingFileID:
			c = cmp.Compare(remote.NormalizeGUID(a.header.FileID), remote.NormalizeGUID(b.header.FileID))
		default:
			c = a.seq - b.seq
		}
		if c == 0 {
			c = a.seq - b.seq
		}
		if ordering == remote.OrderingNewestFirst {
			return -c
		}
		return c
	})

	return files
}

func match(h remote.FileHeader, p remote.QueryParams) bool {
	app := h.FileMetadata.AppData
	tags := remote.NormalizeGUIDs(app.Tags)

	if len(p.FileType) > 0 && !slices.Contains(p.FileType, app.FileType) {
		return false
	}
	if len(p.DataType) > 0 && !slices.Contains(p.DataType, app.DataType) {
		return false
	}
	if len(p.ArchivalStatus) > 0 && !slices.Contains(p.ArchivalStatus, app.ArchivalStatus) {
		return false
	}
	if len(p.TagsMatchAtLeastOne) > 0 && len(lo.Intersect(tags, remote.NormalizeGUIDs(p.TagsMatchAtLeastOne))) == 0 {
		return false
	}
	if len(p.TagsMatchAll) > 0 && !lo.Every(tags, remote.NormalizeGUIDs(p.TagsMatchAll)) {
		return false
	}
	if len(p.ClientUniqueIDAtLeastOne) > 0 &&
		!slices.Contains(remote.NormalizeGUIDs(p.ClientUniqueIDAtLeastOne), remote.NormalizeGUID(app.UniqueID)) {
		return false
	}
	if p.UserDate != nil {
		date := h.DisplayDate().UnixMilli()
		if date < p.UserDate.Start || (p.UserDate.End != 0 && date > p.UserDate.End) {
			return false
		}
	}
	return true
}

func paginate(files []*file, offset, limit int) []*file {
	if offset >= len(files) {
		return nil
	}
	end := len(files)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return files[offset:end]
}
