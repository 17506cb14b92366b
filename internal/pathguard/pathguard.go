// Package pathguard confines caller-supplied relative paths to a
// configured root directory.
//
// Every rejection is reported as ErrTraversal, whatever the cause (bad
// encoding, null byte, escape attempt). Callers must not be able to tell
// "does not exist" apart from "escapes the sandbox".
package pathguard

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxDecodeRounds bounds percent-decoding so single, double and triple
// encodings are unwrapped.
const maxDecodeRounds = 3

// ErrTraversal is returned for any path that cannot be proven to stay
// inside the root.
var ErrTraversal = errors.New("path traversal")

// Guard resolves relative paths against a canonical root.
type Guard struct {
	root string
}

// New canonicalizes root (absolute, symlinks evaluated). The root must
// exist.
func New(root string) (*Guard, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("pathguard: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("pathguard: resolve root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("pathguard: canonicalize root: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("pathguard: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pathguard: root %s is not a directory", canonical)
	}
	return &Guard{root: canonical}, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string {
	return g.root
}

// Resolve returns the canonical absolute path for rel, guaranteed to be
// the root or one of its descendants.
func (g *Guard) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: empty path", ErrTraversal)
	}

	decoded, err := decode(rel)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(decoded, 0) {
		return "", fmt.Errorf("%w: null byte", ErrTraversal)
	}
	if !utf8.ValidString(decoded) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrTraversal)
	}

	// Fullwidth dots and solidi fold to ASCII under NFKC.
	decoded = norm.NFKC.String(decoded)
	decoded = strings.ReplaceAll(decoded, `\`, "/")
	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%w: empty path", ErrTraversal)
	}
	if isAbsolute(decoded) {
		return "", fmt.Errorf("%w: absolute path", ErrTraversal)
	}
	for _, segment := range strings.Split(decoded, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: parent segment", ErrTraversal)
		}
	}

	resolved := filepath.Join(g.root, filepath.FromSlash(decoded))
	if !g.contains(resolved) || hasParentSegment(resolved) {
		return "", fmt.Errorf("%w: escapes root", ErrTraversal)
	}

	// A symlink inside the root may still point outside it.
	real, err := evalExisting(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: unresolvable path", ErrTraversal)
	}
	if !g.contains(real) {
		return "", fmt.Errorf("%w: symlink escapes root", ErrTraversal)
	}

	return real, nil
}

// Confine checks that an absolute path, after symlink evaluation, is still
// inside the root. It is used for paths derived from a resolved one.
func (g *Guard) Confine(abs string) (string, error) {
	if !filepath.IsAbs(abs) {
		return "", fmt.Errorf("%w: not absolute", ErrTraversal)
	}
	cleaned := filepath.Clean(abs)
	if !g.contains(cleaned) {
		return "", fmt.Errorf("%w: escapes root", ErrTraversal)
	}
	real, err := evalExisting(cleaned)
	if err != nil || !g.contains(real) {
		return "", fmt.Errorf("%w: symlink escapes root", ErrTraversal)
	}
	return real, nil
}

// Rel returns abs relative to the root in slash form. The root itself is
// ".".
func (g *Guard) Rel(abs string) string {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// evalExisting evaluates symlinks on the longest existing prefix of p and
// re-attaches the part that does not exist yet.
func evalExisting(p string) (string, error) {
	existing := p
	var missing []string
	for {
		real, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := append([]string{real}, missing...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}
}

func (g *Guard) contains(path string) bool {
	if path == g.root {
		return true
	}
	prefix := g.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// decode percent-decodes s until it stops changing. Input still encoded
// after maxDecodeRounds is rejected.
func decode(s string) (string, error) {
	current := s
	for range maxDecodeRounds {
		next, err := url.PathUnescape(current)
		if err != nil {
			return "", fmt.Errorf("%w: malformed escape", ErrTraversal)
		}
		if next == current {
			return current, nil
		}
		current = next
	}
	if next, err := url.PathUnescape(current); err != nil || next != current {
		return "", fmt.Errorf("%w: nested encoding", ErrTraversal)
	}
	return current, nil
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return true
	}
	// Drive letters ("C:") are rejected on every platform.
	return len(p) >= 2 && p[1] == ':' && isASCIILetter(p[0])
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func hasParentSegment(p string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(p), "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
