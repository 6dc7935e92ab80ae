package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMigrator_MirrorLifecycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	m := NewMigrator(db, Mirror())

	require.NoError(t, m.Migrate(ctx))
	assert.True(t, db.Migrator().HasTable(&models.Header{}))
	assert.True(t, db.Migrator().HasTable(&models.Tag{}))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	assert.True(t, statuses[1].Applied)

	// Running again is a no-op.
	require.NoError(t, m.Migrate(ctx))

	var ddl string
	require.NoError(t, db.Raw("SELECT sql FROM sqlite_master WHERE name = 'headers'").Scan(&ddl).Error)
	assert.Contains(t, ddl, "WITHOUT ROWID")

	require.NoError(t, m.Rollback(ctx))
	statuses, err = m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, statuses[1].Applied)
	assert.True(t, db.Migrator().HasTable(&models.Header{}))
}

func TestMigrator_Reapply(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	m := NewMigrator(db, Mirror())

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, db.Create(&models.Header{FileID: "f1", DriveID: "d", Created: 1, Updated: 1}).Error)

	require.NoError(t, m.Reapply(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Header{}).Count(&count).Error)
	assert.Zero(t, count)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
}

func TestMigrator_State(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, NewMigrator(db, State()).Migrate(context.Background()))
	assert.True(t, db.Migrator().HasTable(&models.SyncCursor{}))
}
