package store

import (
	"context"
	"fmt"

	"github.com/mwantia/gophotos/pkg/db/models"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const displayDateExpr = "COALESCE(user_date, created)"

// QueryHeaders translates params into SQL predicates. Predicates that cannot
// be answered from the mirror return ErrUnsupportedPredicate before any query runs.
func (s *SQLiteStore) QueryHeaders(ctx context.Context, driveID string, params remote.QueryParams, opts ResultOptions) ([]models.Header, error) {
	if err := checkSupported(params); err != nil {
		return nil, err
	}

	query := applyPredicates(s.db.WithContext(ctx).Model(&models.Header{}), driveID, params)
	query = applyResultOptions(query, opts)

	var headers []models.Header
	if err := query.Find(&headers).Error; err != nil {
		return nil, fmt.Errorf("failed to query headers: %w", err)
	}

	if err := s.loadTags(ctx, driveID, headers); err != nil {
		return nil, err
	}
	return headers, nil
}

func checkSupported(params remote.QueryParams) error {
	switch {
	case params.SystemFileType != "":
		return fmt.Errorf("systemFileType: %w", ErrUnsupportedPredicate)
	case len(params.Sender) > 0:
		return fmt.Errorf("sender: %w", ErrUnsupportedPredicate)
	case len(params.GroupID) > 0:
		return fmt.Errorf("groupId: %w", ErrUnsupportedPredicate)
	}
	return nil
}

func applyPredicates(query *gorm.DB, driveID string, params remote.QueryParams) *gorm.DB {
	query = query.Where("drive_id = ?", driveID)

	if len(params.FileType) > 0 {
		query = query.Where("file_type IN ?", params.FileType)
	}
	if len(params.DataType) > 0 {
		query = query.Where("data_type IN ?", params.DataType)
	}
	if len(params.ArchivalStatus) > 0 {
		query = query.Where("archival_status IN ?", lo.Map(params.ArchivalStatus, func(a remote.ArchivalStatus, _ int) int {
			return int(a)
		}))
	}

	if params.UserDate != nil {
		query = query.Where(displayDateExpr+" >= ?", params.UserDate.Start)
		if params.UserDate.End != 0 {
			query = query.Where(displayDateExpr+" <= ?", params.UserDate.End)
		}
	}

	if len(params.TagsMatchAtLeastOne) > 0 {
		query = query.Where("file_id IN (SELECT file_id FROM tags WHERE drive_id = ? AND tag_id IN ?)",
			driveID, lo.Uniq(remote.NormalizeGUIDs(params.TagsMatchAtLeastOne)))
	}
	if len(params.TagsMatchAll) > 0 {
		tags := lo.Uniq(remote.NormalizeGUIDs(params.TagsMatchAll))
		query = query.Where("file_id IN (SELECT file_id FROM tags WHERE drive_id = ? AND tag_id IN ? "+
			"GROUP BY file_id HAVING COUNT(DISTINCT tag_id) = ?)", driveID, tags, len(tags))
	}

	if len(params.ClientUniqueIDAtLeastOne) > 0 {
		query = query.Where("unique_id IN ?", remote.NormalizeGUIDs(params.ClientUniqueIDAtLeastOne))
	}

	return query
}

func applyResultOptions(query *gorm.DB, opts ResultOptions) *gorm.DB {
	direction := "DESC"
	if opts.Ordering == remote.OrderingOldestFirst {
		direction = "ASC"
	}

	switch opts.Sorting {
	case remote.SortingFileID:
		query = query.Order("file_id " + direction)
	default:
		query = query.Order(displayDateExpr + " " + direction).Order("file_id " + direction)
	}

	if opts.Take > 0 {
		query = query.Limit(opts.Take)
	}
	if opts.Skip > 0 {
		query = query.Offset(opts.Skip)
	}
	return query
}
