package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/gophotos/pkg/db/migrations"
	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var headerUpdateColumns = []string{
	"drive_id", "unique_id", "archival_status", "data_type", "file_type",
	"user_date", "created", "updated", "is_encrypted", "sender_identity",
	"version_tag", "priority", "preview_thumbnail", "payloads", "content",
	"encrypted_key_header",
}

// SQLiteStore implements MirrorStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

func openSQLite(cfg SQLiteConfig) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return db, nil
}

func connectSQLite(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

func closeSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// NewSQLiteStore creates a new SQLite-backed mirror store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := openSQLite(cfg)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	return connectSQLite(ctx, s.db)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return closeSQLite(s.db)
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db, migrations.Mirror()).Migrate(ctx)
}

// Migrations reports which mirror migrations are applied.
func (s *SQLiteStore) Migrations(ctx context.Context) ([]migrations.MigrationStatus, error) {
	return migrations.NewMigrator(s.db, migrations.Mirror()).Status(ctx)
}

// Rollback reverts the last applied mirror migration.
func (s *SQLiteStore) Rollback(ctx context.Context) error {
	return migrations.NewMigrator(s.db, migrations.Mirror()).Rollback(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := migrations.NewMigrator(s.db, migrations.Mirror()).Reapply(ctx); err != nil {
		return fmt.Errorf("failed to reset mirror tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertHeaders(ctx context.Context, driveID string, headers []remote.FileHeader) error {
	if len(headers) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range headers {
			if err := upsertHeader(tx, driveID, &headers[i]); err != nil {
				return fmt.Errorf("failed to upsert header %s: %w", headers[i].FileID, err)
			}
		}
		return nil
	})
}

func upsertHeader(tx *gorm.DB, driveID string, header *remote.FileHeader) error {
	fileID := remote.NormalizeGUID(header.FileID)

	if !header.IsActive() {
		return deleteHeader(tx, driveID, fileID)
	}

	row := toHeaderRow(driveID, header)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}},
		DoUpdates: clause.AssignmentColumns(headerUpdateColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "excluded.updated > headers.updated"},
		}},
	}).Create(row)
	if res.Error != nil {
		return res.Error
	}

	// Unchanged rows keep their tags.
	if res.RowsAffected == 0 {
		return nil
	}

	if err := tx.Where("file_id = ?", fileID).Delete(&models.Tag{}).Error; err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}

	tags := lo.Uniq(remote.NormalizeGUIDs(header.FileMetadata.AppData.Tags))
	if len(tags) == 0 {
		return nil
	}

	rows := lo.Map(tags, func(tagID string, _ int) models.Tag {
		return models.Tag{FileID: fileID, TagID: tagID, DriveID: driveID}
	})
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert tags: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHeader(ctx context.Context, driveID, fileID string) (*models.Header, error) {
	var header models.Header
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND drive_id = ?", remote.NormalizeGUID(fileID), driveID).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get header: %w", err)
	}

	headers := []models.Header{header}
	if err := s.loadTags(ctx, driveID, headers); err != nil {
		return nil, err
	}
	return &headers[0], nil
}

func (s *SQLiteStore) CountHeaders(ctx context.Context, driveID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Header{}).Where("drive_id = ?", driveID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count headers: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) DeleteHeader(ctx context.Context, driveID, fileID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteHeader(tx, driveID, remote.NormalizeGUID(fileID))
	})
}

func deleteHeader(tx *gorm.DB, driveID, fileID string) error {
	if err := tx.Where("file_id = ? AND drive_id = ?", fileID, driveID).Delete(&models.Tag{}).Error; err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	if err := tx.Where("file_id = ? AND drive_id = ?", fileID, driveID).Delete(&models.Header{}).Error; err != nil {
		return fmt.Errorf("failed to delete header: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadTags(ctx context.Context, driveID string, headers []models.Header) error {
	if len(headers) == 0 {
		return nil
	}

	ids := lo.Map(headers, func(h models.Header, _ int) string { return h.FileID })

	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("drive_id = ? AND file_id IN ?", driveID, ids).
		Order("tag_id").
		Find(&tags).Error
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	byFile := lo.GroupBy(tags, func(t models.Tag) string { return t.FileID })
	for i := range headers {
		headers[i].Tags = lo.Map(byFile[headers[i].FileID], func(t models.Tag, _ int) string { return t.TagID })
	}
	return nil
}

func toHeaderRow(driveID string, h *remote.FileHeader) *models.Header {
	app := h.FileMetadata.AppData

	row := &models.Header{
		FileID:             remote.NormalizeGUID(h.FileID),
		DriveID:            driveID,
		ArchivalStatus:     int(app.ArchivalStatus),
		DataType:           app.DataType,
		FileType:           app.FileType,
		Created:            h.FileMetadata.Created,
		Updated:            h.FileMetadata.Updated,
		IsEncrypted:        h.FileMetadata.IsEncrypted,
		SenderIdentity:     h.FileMetadata.SenderOdinID,
		VersionTag:         h.FileMetadata.VersionTag,
		Priority:           h.Priority,
		PreviewThumbnail:   string(app.PreviewThumbnail),
		Payloads:           string(h.FileMetadata.Payloads),
		Content:            string(app.Content),
		EncryptedKeyHeader: string(h.SharedSecretEncryptedKeyHeader),
	}

	if app.UniqueID != "" {
		row.UniqueID = lo.ToPtr(remote.NormalizeGUID(app.UniqueID))
	}
	if app.UserDate != 0 {
		row.UserDate = lo.ToPtr(app.UserDate)
	}
	return row
}
