package photos

import (
	"time"

	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/remote"
)

// Photo is the listing view of a media file.
type Photo struct {
	FileID         string                `json:"fileId"`
	UniqueID       string                `json:"uniqueId,omitempty"`
	DisplayDate    time.Time             `json:"displayDate"`
	ArchivalStatus remote.ArchivalStatus `json:"archivalStatus"`
	Tags           []string              `json:"tags,omitempty"`
	VersionTag     string                `json:"versionTag"`
}

func fromHeaderRow(h *models.Header) Photo {
	p := Photo{
		FileID:         h.FileID,
		DisplayDate:    time.UnixMilli(h.DisplayDate()).UTC(),
		ArchivalStatus: remote.ArchivalStatus(h.ArchivalStatus),
		Tags:           h.Tags,
		VersionTag:     h.VersionTag,
	}
	if h.UniqueID != nil {
		p.UniqueID = *h.UniqueID
	}
	return p
}

func fromFileHeader(h *remote.FileHeader) Photo {
	app := h.FileMetadata.AppData
	return Photo{
		FileID:         remote.NormalizeGUID(h.FileID),
		UniqueID:       remote.NormalizeGUID(app.UniqueID),
		DisplayDate:    h.DisplayDate(),
		ArchivalStatus: app.ArchivalStatus,
		Tags:           remote.NormalizeGUIDs(app.Tags),
		VersionTag:     h.FileMetadata.VersionTag,
	}
}

// MonthRange returns the first and last millisecond of a month in UTC.
func MonthRange(year, month int) remote.DateRange {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return remote.DateRange{
		Start: start.UnixMilli(),
		End:   start.AddDate(0, 1, 0).UnixMilli() - 1,
	}
}
