package remote

import "context"

// Client is the subset of the identity server drive API used by the photo library.
type Client interface {
	QueryBatch(ctx context.Context, drive TargetDrive, params QueryParams, opts BatchOptions) (*BatchResult, error)

	QueryModified(ctx context.Context, drive TargetDrive, params QueryParams, opts ModifiedOptions) (*ModifiedResult, error)

	// GetFileHeader returns ErrNotFound if the file does not exist or is no longer active.
	GetFileHeader(ctx context.Context, drive TargetDrive, fileID string) (*FileHeader, error)

	// UploadHeader returns ErrVersionConflict if req.VersionTag is outdated.
	UploadHeader(ctx context.Context, drive TargetDrive, req UploadRequest) (*UploadResult, error)
}

type NotificationHandler func(ctx context.Context, n Notification)

// Subscriber delivers server push notifications until ctx is done
// or the underlying connection fails.
type Subscriber interface {
	Subscribe(ctx context.Context, drives []TargetDrive, handler NotificationHandler) error
}
