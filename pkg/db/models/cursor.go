package models

import "time"

// SyncCursor tracks the per drive sync position for resumability.
// An empty batch cursor starts from the beginning, a zero modified time
// replays every modification.
type SyncCursor struct {
	DriveID                     string `gorm:"column:drive_id;primaryKey;type:text"`
	LastQueryBatchCursor        string `gorm:"column:last_query_batch_cursor;type:text"`
	MostRecentQueryModifiedTime int64  `gorm:"column:most_recent_query_modified_time;not null"`

	UpdatedAt time.Time
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}
