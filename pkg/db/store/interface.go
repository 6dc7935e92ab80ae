package store

import (
	"context"

	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/remote"
)

// MirrorStore is the local relational mirror of remote file headers.
type MirrorStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// UpsertHeaders applies a batch of remote headers in one transaction.
	// Inactive headers delete their row, active headers are only written
	// if newer than the stored row.
	UpsertHeaders(ctx context.Context, driveID string, headers []remote.FileHeader) error
	GetHeader(ctx context.Context, driveID, fileID string) (*models.Header, error)
	QueryHeaders(ctx context.Context, driveID string, params remote.QueryParams, opts ResultOptions) ([]models.Header, error)
	CountHeaders(ctx context.Context, driveID string) (int64, error)
	DeleteHeader(ctx context.Context, driveID, fileID string) error

	// Reset drops and recreates the mirror tables.
	Reset(ctx context.Context) error
}

// StateStore persists sync cursors outside of the mirror.
type StateStore interface {
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// GetCursor returns the zero cursor if none was saved yet.
	GetCursor(ctx context.Context, driveID string) (*models.SyncCursor, error)
	SaveCursor(ctx context.Context, cursor *models.SyncCursor) error
	DeleteCursor(ctx context.Context, driveID string) error
}

type ResultOptions struct {
	Sorting  remote.Sorting
	Ordering remote.Ordering
	Skip     int
	Take     int
}
