package models

// Tag links a header to one of its tag ids.
type Tag struct {
	FileID  string `gorm:"column:file_id;primaryKey;type:text"`
	TagID   string `gorm:"column:tag_id;primaryKey;type:text;index:idx_tags_tag"`
	DriveID string `gorm:"column:drive_id;type:text;not null"`
}

func (Tag) TableName() string {
	return "tags"
}
