package selection

import (
	"context"
	"slices"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/photos"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/remote"
	"golang.org/x/sync/errgroup"
)

const monthConcurrency = 4

// PhotoSource resolves photos and month listings.
type PhotoSource interface {
	GetPhoto(ctx context.Context, drive remote.TargetDrive, fileID string) (*photos.Photo, error)
	FetchMonth(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int) ([]photos.Photo, error)
}

// MonthIndex lists the months of a library.
type MonthIndex interface {
	Get(ctx context.Context, drive remote.TargetDrive, t library.Type) (*library.Metadata, error)
}

type Selector struct {
	photos PhotoSource
	index  MonthIndex
	log    log.LoggerService
}

func NewSelector(source PhotoSource, index MonthIndex, logger log.LoggerService) *Selector {
	return &Selector{
		photos: source,
		index:  index,
		log:    logger,
	}
}

type endpoint struct {
	year, month int
	position    int
	listing     []photos.Photo
}

func (e *endpoint) ordinal() int {
	return e.year*12 + e.month - 1
}

// SelectRange returns the ids of all photos from fromID to toID inclusive,
// in display order (newest first). fromID must not be older than toID.
// If an endpoint cannot be resolved or the endpoints are reversed, the
// result is empty.
func (s *Selector) SelectRange(ctx context.Context, drive remote.TargetDrive, t library.Type, fromID, toID string) ([]string, error) {
	from, ok := s.resolve(ctx, drive, t, fromID)
	if !ok {
		return []string{}, nil
	}
	to, ok := s.resolve(ctx, drive, t, toID)
	if !ok {
		return []string{}, nil
	}

	if from.ordinal() == to.ordinal() {
		if from.position > to.position {
			return []string{}, nil
		}
		return fileIDs(from.listing[from.position : to.position+1]), nil
	}
	if from.ordinal() < to.ordinal() {
		s.log.Debug("Range from %s to %s is reversed", fromID, toID)
		return []string{}, nil
	}

	md, err := s.index.Get(ctx, drive, t)
	if err != nil {
		return nil, err
	}

	var between []library.MonthRef
	for _, ref := range md.FlatMonths() {
		ordinal := ref.Year*12 + ref.Month - 1
		if ordinal < from.ordinal() && ordinal > to.ordinal() {
			between = append(between, ref)
		}
	}

	listings := make([][]photos.Photo, len(between))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(monthConcurrency)
	for i, ref := range between {
		g.Go(func() error {
			listing, err := s.photos.FetchMonth(gctx, drive, t, ref.Year, ref.Month)
			if err != nil {
				return err
			}
			listings[i] = listing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := fileIDs(from.listing[from.position:])
	for _, listing := range listings {
		result = append(result, fileIDs(listing)...)
	}
	return append(result, fileIDs(to.listing[:to.position+1])...), nil
}

func (s *Selector) resolve(ctx context.Context, drive remote.TargetDrive, t library.Type, fileID string) (*endpoint, bool) {
	photo, err := s.photos.GetPhoto(ctx, drive, fileID)
	if err != nil {
		s.log.Debug("Unable to resolve range endpoint %s: %v", fileID, err)
		return nil, false
	}

	year, month := photo.DisplayDate.Year(), int(photo.DisplayDate.Month())
	listing, err := s.photos.FetchMonth(ctx, drive, t, year, month)
	if err != nil {
		s.log.Debug("Unable to list month %04d-%02d of range endpoint %s: %v", year, month, fileID, err)
		return nil, false
	}

	position := slices.IndexFunc(listing, func(p photos.Photo) bool {
		return p.FileID == photo.FileID
	})
	if position < 0 {
		s.log.Debug("Range endpoint %s is not part of the '%s' library", fileID, t)
		return nil, false
	}

	return &endpoint{year: year, month: month, position: position, listing: listing}, true
}

func fileIDs(list []photos.Photo) []string {
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.FileID
	}
	return ids
}
