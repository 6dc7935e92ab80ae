package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/gophotos/pkg/db/migrations"
	"github.com/mwantia/gophotos/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteStateStore implements StateStore in its own SQLite database,
// separate from the mirror.
type SQLiteStateStore struct {
	db *gorm.DB
}

func NewSQLiteStateStore(cfg SQLiteConfig) (*SQLiteStateStore, error) {
	db, err := openSQLite(cfg)
	if err != nil {
		return nil, err
	}
	return &SQLiteStateStore{db: db}, nil
}

func (s *SQLiteStateStore) Connect(ctx context.Context) error {
	return connectSQLite(ctx, s.db)
}

func (s *SQLiteStateStore) Close() error {
	return closeSQLite(s.db)
}

func (s *SQLiteStateStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db, migrations.State()).Migrate(ctx)
}

func (s *SQLiteStateStore) Migrations(ctx context.Context) ([]migrations.MigrationStatus, error) {
	return migrations.NewMigrator(s.db, migrations.State()).Status(ctx)
}

func (s *SQLiteStateStore) Rollback(ctx context.Context) error {
	return migrations.NewMigrator(s.db, migrations.State()).Rollback(ctx)
}

func (s *SQLiteStateStore) GetCursor(ctx context.Context, driveID string) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	err := s.db.WithContext(ctx).Where("drive_id = ?", driveID).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.SyncCursor{DriveID: driveID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}
	return &cursor, nil
}

func (s *SQLiteStateStore) SaveCursor(ctx context.Context, cursor *models.SyncCursor) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "drive_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_query_batch_cursor", "most_recent_query_modified_time", "updated_at"}),
	}).Create(cursor).Error
	if err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}

func (s *SQLiteStateStore) DeleteCursor(ctx context.Context, driveID string) error {
	err := s.db.WithContext(ctx).Where("drive_id = ?", driveID).Delete(&models.SyncCursor{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete sync cursor: %w", err)
	}
	return nil
}
