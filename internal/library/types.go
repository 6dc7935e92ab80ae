package library

import (
	"fmt"

	"github.com/mwantia/gophotos/pkg/remote"
)

// Type selects one of the photo libraries kept per drive.
type Type string

const (
	TypePhotos    Type = "photos"
	TypeArchive   Type = "archive"
	TypeBin       Type = "bin"
	TypeApps      Type = "apps"
	TypeFavorites Type = "favorites"
)

var Types = []Type{TypePhotos, TypeArchive, TypeBin, TypeApps, TypeFavorites}

func ParseType(value string) (Type, error) {
	for _, t := range Types {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown library type '%s'", value)
}

// ArchivalStatuses lists the archival states of photos counted by the library.
func (t Type) ArchivalStatuses() []remote.ArchivalStatus {
	switch t {
	case TypeBin:
		return []remote.ArchivalStatus{remote.ArchivalStatusBin}
	case TypeArchive:
		return []remote.ArchivalStatus{remote.ArchivalStatusArchived}
	case TypeApps:
		return []remote.ArchivalStatus{remote.ArchivalStatusAppGenerated}
	case TypeFavorites:
		return []remote.ArchivalStatus{
			remote.ArchivalStatusActive,
			remote.ArchivalStatusArchived,
			remote.ArchivalStatusAppGenerated,
		}
	}
	return []remote.ArchivalStatus{remote.ArchivalStatusActive}
}

// storedArchivalStatus is the archival status of the metadata file itself.
func (t Type) storedArchivalStatus() remote.ArchivalStatus {
	switch t {
	case TypeBin:
		return remote.ArchivalStatusBin
	case TypeArchive:
		return remote.ArchivalStatusArchived
	case TypeApps:
		return remote.ArchivalStatusAppGenerated
	}
	return remote.ArchivalStatusActive
}

func (t Type) tag() string {
	if t == TypeFavorites {
		return remote.FavoriteTag
	}
	return remote.MainTag
}

// PhotoParams selects the photos that belong to the library.
func (t Type) PhotoParams() remote.QueryParams {
	params := remote.QueryParams{
		FileType:       []int{remote.MediaFileType},
		ArchivalStatus: t.ArchivalStatuses(),
	}
	if t == TypeFavorites {
		params.TagsMatchAll = []string{remote.FavoriteTag}
	}
	return params
}

// Contains reports whether a photo with the given state is counted by the library.
func (t Type) Contains(h *remote.FileHeader) bool {
	app := h.FileMetadata.AppData
	if app.FileType != remote.MediaFileType {
		return false
	}

	matches := false
	for _, status := range t.ArchivalStatuses() {
		if status == app.ArchivalStatus {
			matches = true
		}
	}
	if !matches {
		return false
	}

	if t == TypeFavorites {
		for _, tag := range app.Tags {
			if remote.NormalizeGUID(tag) == remote.NormalizeGUID(remote.FavoriteTag) {
				return true
			}
		}
		return false
	}
	return true
}

func (t Type) metadataParams() remote.QueryParams {
	return remote.QueryParams{
		FileType:            []int{remote.PhotoLibraryMetadataFileType},
		TagsMatchAtLeastOne: []string{t.tag()},
		ArchivalStatus:      t.ArchivalStatuses(),
	}
}
