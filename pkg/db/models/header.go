package models

// Header mirrors a remote file header.
// A row only exists while the remote file is active.
type Header struct {
	FileID             string  `gorm:"column:file_id;primaryKey;type:text"`
	DriveID            string  `gorm:"column:drive_id;type:text;not null;index:idx_headers_drive_date,priority:1"`
	UniqueID           *string `gorm:"column:unique_id;type:text;index:idx_headers_unique"`
	ArchivalStatus     int     `gorm:"column:archival_status;not null"`
	DataType           int     `gorm:"column:data_type;not null"`
	FileType           int     `gorm:"column:file_type;not null"`
	UserDate           *int64  `gorm:"column:user_date;index:idx_headers_drive_date,priority:2"`
	Created            int64   `gorm:"column:created;not null"`
	Updated            int64   `gorm:"column:updated;not null"`
	IsEncrypted        bool    `gorm:"column:is_encrypted;not null"`
	SenderIdentity     string  `gorm:"column:sender_identity;type:text"`
	VersionTag         string  `gorm:"column:version_tag;type:text"`
	Priority           int     `gorm:"column:priority;not null"`
	PreviewThumbnail   string  `gorm:"column:preview_thumbnail;type:text"`
	Payloads           string  `gorm:"column:payloads;type:text"`
	Content            string  `gorm:"column:content;type:text"`
	EncryptedKeyHeader string  `gorm:"column:encrypted_key_header;type:text"`

	// Tags is loaded from the tags table.
	Tags []string `gorm:"-"`
}

func (Header) TableName() string {
	return "headers"
}

// DisplayDate returns the user supplied date or the creation time, in Unix milliseconds.
func (h *Header) DisplayDate() int64 {
	if h.UserDate != nil {
		return *h.UserDate
	}
	return h.Created
}
