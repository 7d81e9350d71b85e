// Package security validates the user-supplied model names that end up in
// file names and HTTP headers.
package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxModelNameLen is the longest model name accepted, in bytes.
const MaxModelNameLen = 128

var ErrInvalidModelName = errors.New("invalid model name")

// ValidateModelName rejects names that are empty, too long, contain
// control characters or path separators, or are "." or "..".
func ValidateModelName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	case len(name) > MaxModelNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidModelName, MaxModelNameLen)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidModelName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidModelName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: contains a path separator", ErrInvalidModelName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control character %U", ErrInvalidModelName, r)
		}
	}
	return nil
}

// SanitizeFilename makes a safe file stem from a model name. Characters
// other than ASCII letters, digits, dot, underscore and dash become a
// single underscore; leading and trailing dots and underscores are
// trimmed. An empty result becomes "model".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= MaxModelNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "model"
	}
	return out
}
