package remote

import (
	"crypto/md5"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	MainTag     = ToGuidID("main-lib")
	FavoriteTag = ToGuidID("favorite")
)

// NormalizeGUID lower-cases id and strips dashes so that every
// textual form of the same guid compares equal.
func NormalizeGUID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "-", "")
}

// ToGuidID derives a stable guid from a name.
func ToGuidID(name string) string {
	return uuid.UUID(md5.Sum([]byte(name))).String()
}

// NormalizeGUIDs applies NormalizeGUID to every element.
func NormalizeGUIDs(ids []string) []string {
	return lo.Map(ids, func(id string, _ int) string {
		return NormalizeGUID(id)
	})
}
