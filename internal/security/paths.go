// Package security guards the file paths the CLI writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned when a path resolves outside its root.
var ErrPathEscapes = errors.New("path escapes output root")

// maxNameLen caps names produced by SanitizeFilename.
const maxNameLen = 128

// ValidatePathWithinDirectory reports whether path stays inside root once
// both are made absolute and symlinks are resolved. path need not exist; the
// deepest existing ancestor is resolved instead, so a symlinked directory
// inside root cannot redirect output elsewhere. root must exist.
func ValidatePathWithinDirectory(path, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	realPath := resolveExisting(absPath)

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrPathEscapes)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s is outside %s: %w", path, root, ErrPathEscapes)
	}
	return nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of an
// absolute path and re-appends the rest.
func resolveExisting(abs string) string {
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(real, rest)
		}
		if parent := filepath.Dir(dir); parent == dir {
			return abs
		}
	}
}

// SanitizeFilename turns an arbitrary label into a single path element made
// of ASCII letters, digits, dot, underscore and dash. Runs of other
// characters become one underscore, leading and trailing dots and
// underscores are trimmed, and an empty result becomes "unnamed".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
		if !ok {
			if !pending {
				b.WriteByte('_')
				pending = true
			}
			continue
		}
		b.WriteRune(r)
		pending = false
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
