package photos

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/samber/lo"
)

const DefaultMonthPageSize = 1000

type MonthPage struct {
	Photos      []Photo
	Cursor      string
	HasNextPage bool
}

// MonthSource lists the photos of one library month, newest first.
type MonthSource interface {
	MonthPage(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int, cursor string, pageSize int) (*MonthPage, error)
}

func monthParams(t library.Type, year, month int) remote.QueryParams {
	params := t.PhotoParams()
	params.UserDate = lo.ToPtr(MonthRange(year, month))
	return params
}

// LocalMonths reads months from the local mirror.
type LocalMonths struct {
	mirror store.MirrorStore
}

func NewLocalMonths(mirror store.MirrorStore) *LocalMonths {
	return &LocalMonths{mirror: mirror}
}

func (s *LocalMonths) MonthPage(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int, cursor string, pageSize int) (*MonthPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid month cursor '%s': %w", cursor, err)
		}
		offset = n
	}

	headers, err := s.mirror.QueryHeaders(ctx, drive.Key(), monthParams(t, year, month), store.ResultOptions{
		Sorting:  remote.SortingUserDate,
		Ordering: remote.OrderingNewestFirst,
		Skip:     offset,
		Take:     pageSize + 1,
	})
	if err != nil {
		return nil, err
	}

	page := &MonthPage{HasNextPage: len(headers) > pageSize}
	if page.HasNextPage {
		headers = headers[:pageSize]
	}
	page.Photos = lo.Map(headers, func(h models.Header, _ int) Photo { return fromHeaderRow(&h) })
	page.Cursor = strconv.Itoa(offset + len(headers))
	return page, nil
}

// RemoteMonths queries months directly on the remote drive.
type RemoteMonths struct {
	client remote.Client
}

func NewRemoteMonths(client remote.Client) *RemoteMonths {
	return &RemoteMonths{client: client}
}

func (s *RemoteMonths) MonthPage(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int, cursor string, pageSize int) (*MonthPage, error) {
	result, err := s.client.QueryBatch(ctx, drive, monthParams(t, year, month), remote.BatchOptions{
		CursorState:           cursor,
		MaxRecords:            pageSize,
		IncludeMetadataHeader: true,
		Sorting:               remote.SortingUserDate,
		Ordering:              remote.OrderingNewestFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query month %04d-%02d: %w", year, month, err)
	}

	return &MonthPage{
		Photos:      lo.Map(result.SearchResults, func(h remote.FileHeader, _ int) Photo { return fromFileHeader(&h) }),
		Cursor:      result.CursorState,
		HasNextPage: len(result.SearchResults) >= pageSize && result.CursorState != "",
	}, nil
}
