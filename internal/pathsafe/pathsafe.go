// Package pathsafe confines artifact writes to a session root, rejecting
// traversal and absolute paths. It is the one piece of the core with no
// good third-party candidate in the retrieved corpus: path containment is
// a handful of filepath/strings calls, and nothing in the examples (not
// even Raven's doublestar globbing) does this kind of defensive
// containment check — doublestar matches patterns, it does not validate
// that a resolved path stays under a root. Standard library it is.
package pathsafe

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Error is returned for any rejected path.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return "pathsafe: " + e.Path + ": " + e.Reason
}

// protectedNames can never be the final path component of a write.
var protectedNames = map[string]bool{
	"session.json":        true,
	"standards-bundle.md": true,
}

// Normalize replaces backslashes with forward slashes and collapses
// repeated separators, without resolving against any root.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// Validate checks a session-root-relative artifact path per §4.7:
//   - no ".." segments
//   - not absolute (leading "/" or a drive-letter prefix on any OS)
//   - does not resolve outside sessionRoot
//   - final component is not a protected filename
//
// It returns the normalized, forward-slash relative path on success.
func Validate(sessionRoot, rawPath string) (string, error) {
	if rawPath == "" {
		return "", errors.WithStack(&Error{Path: rawPath, Reason: "empty path"})
	}

	normalized := Normalize(rawPath)

	if isAbsoluteAnyOS(rawPath) || isAbsoluteAnyOS(normalized) {
		return "", errors.WithStack(&Error{Path: rawPath, Reason: "absolute paths are not allowed"})
	}

	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return "", errors.WithStack(&Error{Path: rawPath, Reason: "path traversal (..) is not allowed"})
		}
	}

	base := path.Base(normalized)
	if protectedNames[base] {
		return "", errors.WithStack(&Error{Path: rawPath, Reason: "refuses to overwrite protected file " + base})
	}

	absRoot, err := filepath.Abs(sessionRoot)
	if err != nil {
		return "", errors.Wrap(err, "pathsafe: resolving session root")
	}
	candidate := filepath.Join(absRoot, filepath.FromSlash(normalized))
	resolved, err := filepath.Abs(candidate)
	if err != nil {
		return "", errors.Wrap(err, "pathsafe: resolving candidate path")
	}
	if !isDescendant(absRoot, resolved) {
		return "", errors.WithStack(&Error{Path: rawPath, Reason: "resolves outside session root"})
	}

	return normalized, nil
}

// ValidateForWrite re-validates a path immediately before a file is opened
// for write and returns its absolute form under sessionRoot. The check is
// lexical: symlinks are not resolved, so a symlink inside the session root
// that points elsewhere is not detected.
func ValidateForWrite(sessionRoot, relPath string) (string, error) {
	normalized, err := Validate(sessionRoot, relPath)
	if err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(sessionRoot)
	if err != nil {
		return "", errors.Wrap(err, "pathsafe: resolving session root")
	}
	absPath := filepath.Join(absRoot, filepath.FromSlash(normalized))
	if !isDescendant(absRoot, absPath) {
		return "", errors.WithStack(&Error{Path: relPath, Reason: "resolves outside session root"})
	}
	return absPath, nil
}

func isAbsoluteAnyOS(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	// Windows drive-letter prefix, e.g. "C:\" or "C:/", checked regardless
	// of host OS since profile-emitted paths may target either convention.
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

func isDescendant(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// NormalizeContextPaths walks a context map and normalizes any string
// value whose key ends in "_path" or "_file" through Validate, so
// path-valued metadata (e.g. a profile's schema_file) gets the same
// traversal protection as artifact writes instead of being trusted
// verbatim. Grounded on the original implementation's
// normalize_metadata_paths, which applies this check at context-build
// time rather than only at write time.
func NormalizeContextPaths(sessionRoot string, context map[string]any) error {
	for k, v := range context {
		if !strings.HasSuffix(k, "_path") && !strings.HasSuffix(k, "_file") {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		normalized, err := Validate(sessionRoot, s)
		if err != nil {
			return errors.Wrapf(err, "context field %q", k)
		}
		context[k] = normalized
	}
	return nil
}
