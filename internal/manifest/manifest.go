// SPDX-License-Identifier: MIT
// Package manifest reads the list of repositories a workspace is made of.
//
// A manifest has one repository per line:
//
//	<remote-url> [<local-dir>]
//
// The local directory may contain spaces and defaults to the last path
// segment of the URL. Blank lines and lines starting with '#' are ignored.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFile is the manifest name looked up in the working directory.
const DefaultFile = "manifest.txt"

// ErrManifestNotFound is returned when the manifest file does not exist.
var ErrManifestNotFound = errors.New("manifest file does not exist")

// Entry is one repository of the set.
type Entry struct {
	// URL is the remote the repository is cloned from.
	URL string `json:"url" yaml:"url"`
	// Path is the absolute working-copy directory.
	Path string `json:"path" yaml:"path"`
	// Name is the base name of Path, used in banners and tables.
	Name string `json:"name" yaml:"name"`
}

// Options tunes how a manifest is resolved.
type Options struct {
	// KeepInvalid keeps entries whose directory does not exist yet.
	KeepInvalid bool
}

// Set is the ordered, de-duplicated list of repositories.
type Set struct {
	Root    string
	Entries []Entry
	// Skipped lists directories left out because they do not exist.
	Skipped []string
}

// Load reads the manifest at file and resolves directories against root.
func Load(file, root string, opts Options) (*Set, error) {
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, file)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, root, opts)
}

// Parse reads manifest lines from r.
func Parse(r io.Reader, root string, opts Options) (*Set, error) {
	set := &Set{Root: root}
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawURL, dir, _ := strings.Cut(line, " ")
		dir = strings.TrimSpace(dir)
		if dir == "" {
			dir = DirFromURL(rawURL)
		}
		if dir == "" {
			return nil, fmt.Errorf("cannot derive a directory from %q", rawURL)
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		if _, dup := seen[rawURL]; dup {
			continue
		}
		seen[rawURL] = struct{}{}
		if !opts.KeepInvalid && !isDir(dir) {
			set.Skipped = append(set.Skipped, dir)
			continue
		}
		set.Entries = append(set.Entries, Entry{URL: rawURL, Path: dir, Name: filepath.Base(dir)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return set, nil
}

// DirFromURL returns the percent-decoded last path segment of a remote URL.
func DirFromURL(rawURL string) string {
	var p string
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else {
		// scp-like host:path
		p = rawURL
		if i := strings.LastIndex(p, ":"); i >= 0 {
			p = p[i+1:]
		}
		if decoded, err := url.PathUnescape(p); err == nil {
			p = decoded
		}
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Select keeps the entries whose name or root-relative path matches any of
// the doublestar patterns. No patterns keeps everything.
func (s *Set) Select(patterns []string) (*Set, error) {
	if len(patterns) == 0 {
		return s, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	out := &Set{Root: s.Root, Skipped: s.Skipped}
	for _, e := range s.Entries {
		rel := e.Name
		if r, err := filepath.Rel(s.Root, e.Path); err == nil {
			rel = filepath.ToSlash(r)
		}
		for _, p := range patterns {
			if doublestar.MatchUnvalidated(p, e.Name) || doublestar.MatchUnvalidated(p, rel) {
				out.Entries = append(out.Entries, e)
				break
			}
		}
	}
	return out, nil
}

// FormatLine renders an entry as a manifest line relative to root. The
// directory is omitted when it matches the URL default.
func FormatLine(root string, e Entry) string {
	rel, err := filepath.Rel(root, e.Path)
	if err != nil {
		rel = e.Path
	}
	rel = filepath.ToSlash(rel)
	if rel == DirFromURL(e.URL) {
		return e.URL
	}
	return e.URL + " " + rel
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
