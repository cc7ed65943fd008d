// Package pathsafe canonicalizes user-supplied relative file names and
// resolves them under a fixed base directory.
package pathsafe

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalid marks input that is malformed regardless of where it points.
	ErrInvalid = errors.New("invalid filename")
	// ErrTraversal marks input that would resolve outside the base directory.
	ErrTraversal = errors.New("path traversal detected")
)

var allowedChars = regexp.MustCompile(`^[A-Za-z0-9._\-/]+$`)

// SanitizeRelPath returns the cleaned, slash-separated relative form of input.
// Input is percent-decoded once before checks so encoded dot segments are caught.
func SanitizeRelPath(input string) (string, error) {
	s := input
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, "/"))

	switch {
	case s == "":
		return "", ErrInvalid
	case strings.ContainsRune(s, 0):
		return "", ErrInvalid
	case strings.HasPrefix(s, "/"):
		return "", ErrTraversal
	case !allowedChars.MatchString(s):
		return "", ErrInvalid
	}

	norm := path.Clean(s)
	if norm == "." || norm == ".." || strings.HasPrefix(norm, "../") {
		return "", ErrTraversal
	}
	return norm, nil
}

// ResolveSafe sanitizes input and joins it to baseDir, verifying the result
// stays strictly inside baseDir. It does not touch the filesystem.
func ResolveSafe(baseDir, input string) (string, error) {
	rel, err := SanitizeRelPath(input)
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(base, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return full, nil
}
