// Package security confines client-supplied paths to the media directories
// the server was started with.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotRegularFile is returned when a media path names a directory or device.
var ErrNotRegularFile = errors.New("not a regular file")

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir,
// following symlinks on both sides. Paths that do not exist yet are resolved
// through their nearest existing parent.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	relPath, err := filepath.Rel(canonicalSafeDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath, or in its deepest existing
// parent when absPath itself does not exist.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, absPath)
			return filepath.Join(resolved, rel)
		}
		if parent := filepath.Dir(dir); parent == dir {
			return absPath
		}
	}
}

// ValidatePathWithinAllowedDirs checks that filePath is inside at least one
// of allowedDirs.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if err := ValidatePathWithinDirectory(filePath, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ResolveMediaPath maps a clip name from a request to a file inside one of
// mediaDirs. Relative names are looked up in each directory in order;
// absolute names must already lie inside one of them. The result must be an
// existing regular file.
func ResolveMediaPath(name string, mediaDirs []string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty media path")
	}

	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = candidates[:0]
		for _, dir := range mediaDirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	var lastErr error = fmt.Errorf("no media directories configured")
	for _, path := range candidates {
		if err := ValidatePathWithinAllowedDirs(path, mediaDirs); err != nil {
			lastErr = err
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			lastErr = err
			continue
		}
		if !info.Mode().IsRegular() {
			lastErr = fmt.Errorf("%s: %w", name, ErrNotRegularFile)
			continue
		}
		return path, nil
	}
	return "", lastErr
}

// SanitizeFilename makes a safe file name from an arbitrary string: anything
// other than ASCII letters, digits, dot, underscore or dash becomes a single
// underscore, and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
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
		return "unknown"
	}
	return out
}

// ReportFilename names the report of a clip: the clip's base name without
// extension, sanitized, with ext appended.
func ReportFilename(sourcePath, ext string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return SanitizeFilename(base) + ext
}
