package library

import (
	"slices"
	"time"

	"github.com/mwantia/gophotos/pkg/remote"
)

type Month struct {
	Month           int `json:"month"`
	PhotosThisMonth int `json:"photosThisMonth"`
}

type Year struct {
	Year   int     `json:"year"`
	Months []Month `json:"months"`
}

// Metadata is the per month photo histogram of one library.
// Years and months are kept newest first. Values are never mutated once
// handed out: every operation returns a new Metadata.
type Metadata struct {
	YearsWithMonths     []Year `json:"yearsWithMonths"`
	TotalNumberOfPhotos int    `json:"totalNumberOfPhotos"`
	LastUpdated         int64  `json:"lastUpdated,omitempty"`
	LastCursor          int64  `json:"lastCursor,omitempty"`

	FileID     string `json:"-"`
	VersionTag string `json:"-"`
}

// MonthRef identifies one month of the histogram.
type MonthRef struct {
	Year  int
	Month int
	Count int
}

var now = time.Now

// Build buckets headers by display date. Duplicate file ids are counted once.
func Build(headers []remote.FileHeader) *Metadata {
	md := &Metadata{}
	seen := make(map[string]struct{}, len(headers))

	for i := range headers {
		id := remote.NormalizeGUID(headers[i].FileID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		md.increment(headers[i].DisplayDate())
	}

	md.normalize()
	md.LastUpdated = now().UnixMilli()
	return md
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}

	c := *m
	c.YearsWithMonths = make([]Year, len(m.YearsWithMonths))
	for i, y := range m.YearsWithMonths {
		c.YearsWithMonths[i] = Year{Year: y.Year, Months: slices.Clone(y.Months)}
	}
	return &c
}

// AddDay counts one more photo in the month of t.
func (m *Metadata) AddDay(t time.Time) *Metadata {
	c := m.Clone()
	c.increment(t)
	c.normalize()
	c.LastUpdated = now().UnixMilli()
	return c
}

// UpdateCount overwrites the count of the month of t. It returns false
// if the month is not part of the library.
func (m *Metadata) UpdateCount(t time.Time, count int) (*Metadata, bool) {
	year, month := bucket(t)

	c := m.Clone()
	y := c.findYear(year)
	if y == nil {
		return m, false
	}
	mo := y.findMonth(month)
	if mo == nil {
		return m, false
	}

	mo.PhotosThisMonth = max(count, 0)
	c.normalize()
	c.LastUpdated = now().UnixMilli()
	return c, true
}

// CountFor returns the count of the month of t.
func (m *Metadata) CountFor(t time.Time) (int, bool) {
	year, month := bucket(t)

	y := m.findYear(year)
	if y == nil {
		return 0, false
	}
	mo := y.findMonth(month)
	if mo == nil {
		return 0, false
	}
	return mo.PhotosThisMonth, true
}

// FlatMonths lists every month newest first.
func (m *Metadata) FlatMonths() []MonthRef {
	var refs []MonthRef
	for _, y := range m.YearsWithMonths {
		for _, mo := range y.Months {
			refs = append(refs, MonthRef{Year: y.Year, Month: mo.Month, Count: mo.PhotosThisMonth})
		}
	}
	return refs
}

// Merge reconciles a server copy with the local copy. The server copy is
// authoritative for the remote identity, counts take the larger of both
// sides so that no increment is lost.
func Merge(server, local *Metadata) *Metadata {
	switch {
	case server == nil:
		return local.Clone()
	case local == nil:
		return server.Clone()
	}

	merged := server.Clone()
	for _, ly := range local.YearsWithMonths {
		y := merged.findYear(ly.Year)
		if y == nil {
			merged.YearsWithMonths = append(merged.YearsWithMonths, Year{Year: ly.Year})
			y = &merged.YearsWithMonths[len(merged.YearsWithMonths)-1]
		}

		for _, lm := range ly.Months {
			if mo := y.findMonth(lm.Month); mo != nil {
				mo.PhotosThisMonth = max(mo.PhotosThisMonth, lm.PhotosThisMonth)
				continue
			}
			y.Months = append(y.Months, lm)
		}
	}

	merged.LastUpdated = max(server.LastUpdated, local.LastUpdated)
	if merged.LastCursor == 0 {
		merged.LastCursor = local.LastCursor
	}
	merged.normalize()
	return merged
}

func (m *Metadata) withIdentity(fileID, versionTag string) *Metadata {
	c := m.Clone()
	c.FileID = fileID
	c.VersionTag = versionTag
	return c
}

func (m *Metadata) increment(t time.Time) {
	year, month := bucket(t)

	y := m.findYear(year)
	if y == nil {
		m.YearsWithMonths = append(m.YearsWithMonths, Year{Year: year})
		y = &m.YearsWithMonths[len(m.YearsWithMonths)-1]
	}

	mo := y.findMonth(month)
	if mo == nil {
		y.Months = append(y.Months, Month{Month: month})
		mo = &y.Months[len(y.Months)-1]
	}
	mo.PhotosThisMonth++
}

func (m *Metadata) normalize() {
	total := 0
	for i := range m.YearsWithMonths {
		months := m.YearsWithMonths[i].Months
		slices.SortFunc(months, func(a, b Month) int { return b.Month - a.Month })
		for _, mo := range months {
			total += mo.PhotosThisMonth
		}
	}
	slices.SortFunc(m.YearsWithMonths, func(a, b Year) int { return b.Year - a.Year })
	m.TotalNumberOfPhotos = total
}

func (m *Metadata) findYear(year int) *Year {
	for i := range m.YearsWithMonths {
		if m.YearsWithMonths[i].Year == year {
			return &m.YearsWithMonths[i]
		}
	}
	return nil
}

func (y *Year) findMonth(month int) *Month {
	for i := range y.Months {
		if y.Months[i].Month == month {
			return &y.Months[i]
		}
	}
	return nil
}

func bucket(t time.Time) (int, int) {
	t = t.UTC()
	return t.Year(), int(t.Month())
}
