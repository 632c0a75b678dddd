// Package keycodec encodes and decodes the object-store key of an image and
// the partition/sort keys of repository entities. It is the only place that
// knows either layout.
package keycodec

import (
	"strconv"
	"strings"

	"github.com/savak1990/my-dogs/internal/apperr"
)

// StorageKey is the decoded form of users/{owner}/dogs/{dog}/images/{image}.{ext}.
type StorageKey struct {
	OwnerID   string
	DogID     int64
	ImageID   int64
	Extension string
}

// String encodes k.
func (k StorageKey) String() string {
	return EncodeStorageKey(k.OwnerID, k.DogID, k.ImageID, k.Extension)
}

// EncodeStorageKey builds the object-store key for an image.
func EncodeStorageKey(ownerID string, dogID, imageID int64, ext string) string {
	var b strings.Builder
	b.WriteString("users/")
	b.WriteString(ownerID)
	b.WriteString("/dogs/")
	b.WriteString(strconv.FormatInt(dogID, 10))
	b.WriteString("/images/")
	b.WriteString(strconv.FormatInt(imageID, 10))
	b.WriteByte('.')
	b.WriteString(ext)
	return b.String()
}

// DecodeStorageKey parses a key produced by EncodeStorageKey. It never
// returns a partially populated result.
func DecodeStorageKey(key string) (StorageKey, error) {
	const op = "DecodeStorageKey"
	if key == "" {
		return StorageKey{}, apperr.Parse(op, "empty key")
	}
	parts := strings.Split(key, "/")
	if len(parts) != 6 {
		return StorageKey{}, apperr.Parse(op, "key %q: expected 6 segments, got %d", key, len(parts))
	}
	if parts[0] != "users" || parts[2] != "dogs" || parts[4] != "images" {
		return StorageKey{}, apperr.Parse(op, "key %q: unexpected layout", key)
	}
	owner := parts[1]
	if owner == "" {
		return StorageKey{}, apperr.Parse(op, "key %q: empty owner", key)
	}
	dogID, err := parseID(parts[3])
	if err != nil {
		return StorageKey{}, apperr.Parse(op, "key %q: dog id: %v", key, err)
	}

	name := parts[5]
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		return StorageKey{}, apperr.Parse(op, "key %q: missing extension", key)
	}
	imageID, err := parseID(name[:dot])
	if err != nil {
		return StorageKey{}, apperr.Parse(op, "key %q: image id: %v", key, err)
	}
	ext := name[dot+1:]
	if !validExtension(ext) {
		return StorageKey{}, apperr.Parse(op, "key %q: invalid extension %q", key, ext)
	}

	return StorageKey{OwnerID: owner, DogID: dogID, ImageID: imageID, Extension: ext}, nil
}

// NormalizeExtension lower-cases ext and strips surrounding space and a
// leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ValidExtension reports whether ext can appear in a storage key.
func ValidExtension(ext string) bool {
	return validExtension(ext)
}

func validExtension(ext string) bool {
	if ext == "" {
		return false
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// parseID accepts canonical positive decimal ids only: no sign, no leading
// zeros.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	if s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
