package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/photos"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDrive = remote.TargetDrive{Alias: "photos", Type: "drive"}

type fakeSource struct {
	months  map[string][]photos.Photo
	failing map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		months:  make(map[string][]photos.Photo),
		failing: make(map[string]bool),
	}
}

func monthID(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// add appends photos to a month, each one day older than the previous.
func (f *fakeSource) add(year, month int, ids ...string) {
	key := monthID(year, month)
	for _, id := range ids {
		d := 28 - len(f.months[key])
		f.months[key] = append(f.months[key], photos.Photo{
			FileID:      id,
			DisplayDate: time.Date(year, time.Month(month), d, 12, 0, 0, 0, time.UTC),
		})
	}
}

func (f *fakeSource) GetPhoto(ctx context.Context, drive remote.TargetDrive, fileID string) (*photos.Photo, error) {
	for _, listing := range f.months {
		for _, p := range listing {
			if p.FileID == fileID {
				return &p, nil
			}
		}
	}
	return nil, photos.ErrPhotoNotFound
}

func (f *fakeSource) FetchMonth(ctx context.Context, drive remote.TargetDrive, t library.Type, year, month int) ([]photos.Photo, error) {
	if f.failing[monthID(year, month)] {
		return nil, errors.New("month unavailable")
	}
	return f.months[monthID(year, month)], nil
}

type fakeIndex struct {
	md *library.Metadata
}

func (f *fakeIndex) Get(ctx context.Context, drive remote.TargetDrive, t library.Type) (*library.Metadata, error) {
	return f.md, nil
}

func indexOf(refs ...library.MonthRef) *fakeIndex {
	md := &library.Metadata{}
	for _, ref := range refs {
		n := len(md.YearsWithMonths)
		if n == 0 || md.YearsWithMonths[n-1].Year != ref.Year {
			md.YearsWithMonths = append(md.YearsWithMonths, library.Year{Year: ref.Year})
			n++
		}
		md.YearsWithMonths[n-1].Months = append(md.YearsWithMonths[n-1].Months, library.Month{Month: ref.Month, PhotosThisMonth: ref.Count})
	}
	return &fakeIndex{md: md}
}

func selector(source *fakeSource, index *fakeIndex) *Selector {
	return NewSelector(source, index, log.NewNopLoggerService())
}

func TestSelectRange_SameMonth(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 3, "p0", "p1", "p2", "p3")
	s := selector(source, indexOf(library.MonthRef{Year: 2024, Month: 3, Count: 4}))

	ctx := context.Background()
	ids, err := s.SelectRange(ctx, testDrive, library.TypePhotos, "p1", "p3")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids)

	ids, err = s.SelectRange(ctx, testDrive, library.TypePhotos, "p2", "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids)

	ids, err = s.SelectRange(ctx, testDrive, library.TypePhotos, "p3", "p1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSelectRange_AcrossMonths(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 6, "z1")
	source.add(2024, 5, "a1", "a2", "a3", "a4")
	source.add(2024, 3, "c1", "c2", "c3")
	source.add(2024, 2, "d1")
	index := indexOf(
		library.MonthRef{Year: 2024, Month: 6, Count: 1},
		library.MonthRef{Year: 2024, Month: 5, Count: 4},
		library.MonthRef{Year: 2024, Month: 4, Count: 0},
		library.MonthRef{Year: 2024, Month: 3, Count: 3},
		library.MonthRef{Year: 2024, Month: 2, Count: 1},
	)

	ids, err := selector(source, index).SelectRange(context.Background(), testDrive, library.TypePhotos, "a3", "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a4", "c1", "c2"}, ids)
}

func TestSelectRange_IncludesFullMonthsBetween(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 1, "a1", "a2")
	source.add(2023, 12, "b1", "b2")
	source.add(2023, 11, "c1")
	source.add(2023, 10, "d1", "d2")
	index := indexOf(
		library.MonthRef{Year: 2024, Month: 1, Count: 2},
		library.MonthRef{Year: 2023, Month: 12, Count: 2},
		library.MonthRef{Year: 2023, Month: 11, Count: 1},
		library.MonthRef{Year: 2023, Month: 10, Count: 2},
	)

	ids, err := selector(source, index).SelectRange(context.Background(), testDrive, library.TypePhotos, "a2", "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "b1", "b2", "c1", "d1"}, ids)
}

func TestSelectRange_ReversedMonths(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 5, "a1")
	source.add(2024, 3, "c1")
	index := indexOf(library.MonthRef{Year: 2024, Month: 5, Count: 1}, library.MonthRef{Year: 2024, Month: 3, Count: 1})

	ids, err := selector(source, index).SelectRange(context.Background(), testDrive, library.TypePhotos, "c1", "a1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSelectRange_UnresolvableEndpoint(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 5, "a1", "a2")
	s := selector(source, indexOf(library.MonthRef{Year: 2024, Month: 5, Count: 2}))

	ids, err := s.SelectRange(context.Background(), testDrive, library.TypePhotos, "a1", "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)

	source.failing[monthID(2024, 5)] = true
	ids, err = s.SelectRange(context.Background(), testDrive, library.TypePhotos, "a1", "a2")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSelectRange_FailingMonthBetween(t *testing.T) {
	source := newFakeSource()
	source.add(2024, 5, "a1")
	source.add(2024, 4, "b1")
	source.add(2024, 3, "c1")
	source.failing[monthID(2024, 4)] = true
	index := indexOf(
		library.MonthRef{Year: 2024, Month: 5, Count: 1},
		library.MonthRef{Year: 2024, Month: 4, Count: 1},
		library.MonthRef{Year: 2024, Month: 3, Count: 1},
	)

	ids, err := selector(source, index).SelectRange(context.Background(), testDrive, library.TypePhotos, "a1", "c1")
	assert.Error(t, err)
	assert.Empty(t, ids)
}
