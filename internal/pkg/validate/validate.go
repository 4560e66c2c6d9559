package validate

import (
	"strings"
	"unicode/utf8"
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxRunes reports whether value is at most limit characters long.
func MaxRunes(value string, limit int) bool {
	return utf8.RuneCountInString(value) <= limit
}

// ObjectKey reports whether key looks like "<prefix>/<name>" with both parts set.
func ObjectKey(key string) bool {
	prefix, name, ok := strings.Cut(key, "/")
	return ok && Required(prefix) && Required(name)
}

// OwnedKey reports whether key is stored under owner's prefix.
func OwnedKey(key, owner string) bool {
	return Required(owner) && strings.HasPrefix(key, owner+"/") && ObjectKey(key)
}
