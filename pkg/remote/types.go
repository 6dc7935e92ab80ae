package remote

import (
	"encoding/json"
	"time"
)

const (
	MediaFileType                = 0
	AlbumDefinitionFileType      = 400
	PhotoLibraryMetadataFileType = 900
)

// TargetDrive identifies a drive on the identity server.
type TargetDrive struct {
	Alias string `json:"alias" url:"alias"`
	Type  string `json:"type"  url:"type"`
}

// Key returns the normalized identity of the drive, used to scope local state.
func (d TargetDrive) Key() string {
	return NormalizeGUID(d.Alias) + "_" + NormalizeGUID(d.Type)
}

type FileState string

const (
	FileStateActive  FileState = "active"
	FileStateDeleted FileState = "deleted"
)

type ArchivalStatus int

const (
	ArchivalStatusActive       ArchivalStatus = 0
	ArchivalStatusArchived     ArchivalStatus = 1
	ArchivalStatusBin          ArchivalStatus = 2
	ArchivalStatusAppGenerated ArchivalStatus = 3
)

type FileHeader struct {
	FileID                         string          `json:"fileId"`
	FileState                      FileState       `json:"fileState"`
	FileMetadata                   FileMetadata    `json:"fileMetadata"`
	Priority                       int             `json:"priority"`
	SharedSecretEncryptedKeyHeader json.RawMessage `json:"sharedSecretEncryptedKeyHeader,omitempty"`
}

type FileMetadata struct {
	Created      int64           `json:"created"`
	Updated      int64           `json:"updated"`
	IsEncrypted  bool            `json:"isEncrypted"`
	SenderOdinID string          `json:"senderOdinId,omitempty"`
	VersionTag   string          `json:"versionTag"`
	Payloads     json.RawMessage `json:"payloads,omitempty"`
	AppData      AppData         `json:"appData"`
}

type AppData struct {
	UniqueID         string          `json:"uniqueId,omitempty"`
	ArchivalStatus   ArchivalStatus  `json:"archivalStatus"`
	FileType         int             `json:"fileType"`
	DataType         int             `json:"dataType"`
	UserDate         int64           `json:"userDate,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	Content          json.RawMessage `json:"content,omitempty"`
	PreviewThumbnail json.RawMessage `json:"previewThumbnail,omitempty"`
}

// IsActive reports whether the file still exists on the remote.
func (h *FileHeader) IsActive() bool {
	return h.FileState == FileStateActive
}

// DisplayDate is the user supplied date if set, the creation time otherwise.
func (h *FileHeader) DisplayDate() time.Time {
	ms := h.FileMetadata.AppData.UserDate
	if ms == 0 {
		ms = h.FileMetadata.Created
	}
	return time.UnixMilli(ms).UTC()
}

type Ordering string

const (
	OrderingNewestFirst Ordering = "newestFirst"
	OrderingOldestFirst Ordering = "oldestFirst"
)

type Sorting string

const (
	SortingFileID   Sorting = "fileId"
	SortingUserDate Sorting = "userDate"
)

// DateRange filters by display date, both bounds inclusive, in Unix milliseconds.
// An End of zero leaves the range open.
type DateRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end,omitempty"`
}

type QueryParams struct {
	FileType                 []int            `json:"fileType,omitempty"`
	DataType                 []int            `json:"dataType,omitempty"`
	ArchivalStatus           []ArchivalStatus `json:"archivalStatus,omitempty"`
	TagsMatchAll             []string         `json:"tagsMatchAll,omitempty"`
	TagsMatchAtLeastOne      []string         `json:"tagsMatchAtLeastOne,omitempty"`
	UserDate                 *DateRange       `json:"userDate,omitempty"`
	ClientUniqueIDAtLeastOne []string         `json:"clientUniqueIdAtLeastOne,omitempty"`
	Sender                   []string         `json:"sender,omitempty"`
	GroupID                  []string         `json:"groupId,omitempty"`
	SystemFileType           string           `json:"systemFileType,omitempty"`
}

type BatchOptions struct {
	CursorState           string   `json:"cursorState,omitempty"`
	MaxRecords            int      `json:"maxRecords"`
	IncludeMetadataHeader bool     `json:"includeMetadataHeader"`
	Sorting               Sorting  `json:"sorting,omitempty"`
	Ordering              Ordering `json:"ordering,omitempty"`
}

type BatchResult struct {
	SearchResults []FileHeader `json:"searchResults"`
	CursorState   string       `json:"cursorState"`
	QueryTime     int64        `json:"queryTime"`
}

type ModifiedOptions struct {
	Cursor               int64 `json:"cursor,omitempty"`
	MaxRecords           int   `json:"maxRecords"`
	IncludeHeaderContent bool  `json:"includeHeaderContent"`
}

type ModifiedResult struct {
	SearchResults []FileHeader `json:"searchResults"`
	Cursor        int64        `json:"cursor"`
}

// UploadMetadata is the metadata-only part of an upload.
type UploadMetadata struct {
	AllowDistribution bool    `json:"allowDistribution"`
	IsEncrypted       bool    `json:"isEncrypted"`
	AppData           AppData `json:"appData"`
	VersionTag        string  `json:"versionTag,omitempty"`
}

// UploadRequest overwrites FileID when set and creates a new file otherwise.
// VersionTag must match the remote's current tag or the upload is rejected.
type UploadRequest struct {
	FileID     string         `json:"overwriteFileId,omitempty"`
	VersionTag string         `json:"versionTag,omitempty"`
	Metadata   UploadMetadata `json:"metadata"`
}

type UploadResult struct {
	FileID        string `json:"fileId"`
	NewVersionTag string `json:"newVersionTag"`
}

type NotificationType string

const (
	NotificationFileAdded    NotificationType = "fileAdded"
	NotificationFileDeleted  NotificationType = "fileDeleted"
	NotificationFileModified NotificationType = "fileModified"
)

type Notification struct {
	NotificationType NotificationType `json:"notificationType"`
	TargetDrive      TargetDrive      `json:"targetDrive"`
	Header           FileHeader       `json:"header"`
}
