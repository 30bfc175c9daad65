package domain

import (
	"strings"
	"time"
	"unicode"
)

// TagRecord is one tag as supplied by the data-acquisition layer. Records are
// owned by the caller for the duration of one listing request; nothing in
// this package persists them.
type TagRecord struct {
	Name       string
	CreatedAt  time.Time // zero when the caller did not resolve creation times
	Annotation string    // message of an annotated tag, empty for lightweight tags
}

// forbiddenTagChars are the metacharacters git refuses in ref names.
const forbiddenTagChars = `~^:?*[]\`

// ValidateTagName reports whether name is acceptable as a tag name: non-empty
// with no whitespace, no control characters and none of ~ ^ : ? * [ ] \.
func ValidateTagName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
		if strings.ContainsRune(forbiddenTagChars, r) {
			return false
		}
	}
	return true
}
