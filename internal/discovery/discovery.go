// Package discovery walks a directory tree to find git working copies, so a
// manifest can be generated from an existing checkout layout.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/model"
)

// DefaultExclude lists directories that never hold working copies worth
// listing in a manifest.
var DefaultExclude = []string{"**/node_modules/**", "**/vendor/**", "**/.topickeeper/**"}

// RepoReader is the subset of vcs.Adapter discovery needs.
type RepoReader interface {
	IsRepo(ctx context.Context, dir string) (bool, error)
	Remotes(ctx context.Context, dir string) ([]model.Remote, error)
}

// Result represents a discovered working copy.
type Result struct {
	Path          string // absolute path to the working copy
	RepoID        string // normalized remote URL
	RemoteURL     string // raw URL of the primary remote
	PrimaryRemote string
	Remotes       []model.Remote
}

// Options configures the discovery scan.
type Options struct {
	Root           string
	Exclude        []string // glob patterns to skip
	FollowSymlinks bool
	RepoReader     RepoReader
}

// Scan walks Root and returns discovered working copies in walk order.
// It does not recurse into .git directories, matched exclusions, or
// discovered working copies.
func Scan(ctx context.Context, opts Options) ([]Result, error) {
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	var results []Result
	visited := make(map[string]struct{})
	if err := walkRoot(ctx, absRoot, opts, visited, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ManifestEntries converts results to manifest entries relative to root,
// dropping working copies without a remote. Copies whose remote normalizes
// to a RepoID already seen are returned as duplicates; the first one wins,
// as it does when a manifest is loaded.
func ManifestEntries(root string, results []Result) (entries []manifest.Entry, duplicates []Result) {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.RemoteURL == "" {
			continue
		}
		if _, ok := seen[r.RepoID]; ok {
			duplicates = append(duplicates, r)
			continue
		}
		seen[r.RepoID] = struct{}{}
		entries = append(entries, manifest.Entry{
			URL:  r.RemoteURL,
			Path: r.Path,
			Name: filepath.Base(r.Path),
		})
	}
	return entries, duplicates
}

// MatchesExclude checks whether a path matches any of the given exclude
// glob patterns.
func MatchesExclude(path string, patterns []string) bool {
	slashPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		match, err := doublestar.Match(filepath.ToSlash(pattern), slashPath)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

func walkRoot(ctx context.Context, root string, opts Options, visited map[string]struct{}, results *[]Result) error {
	realRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = resolved
	}
	if _, ok := visited[realRoot]; ok {
		return nil
	}
	visited[realRoot] = struct{}{}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		symlink := d.Type()&os.ModeSymlink != 0
		if !d.IsDir() && !symlink {
			return nil
		}
		if d.Name() == ".git" || MatchesExclude(path, opts.Exclude) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if symlink {
			if !opts.FollowSymlinks {
				return nil
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			info, err := os.Stat(target)
			if err != nil || !info.IsDir() {
				return nil
			}
			return walkRoot(ctx, target, opts, visited, results)
		}

		ok, err := isWorkingCopy(ctx, opts.RepoReader, path)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		result, err := buildResult(ctx, opts.RepoReader, path)
		if err != nil {
			return err
		}
		*results = append(*results, result)
		return fs.SkipDir
	})
}

func isWorkingCopy(ctx context.Context, p RepoReader, dir string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false, nil
	}
	if info.Mode().IsRegular() {
		if _, ok := gitdirFromFile(filepath.Join(dir, ".git")); !ok {
			return false, nil
		}
	}
	return p.IsRepo(ctx, dir)
}

func gitdirFromFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "gitdir:") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(content, "gitdir:"))
	if raw == "" {
		return "", false
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), true
	}
	return filepath.Clean(filepath.Join(filepath.Dir(path), raw)), true
}

func buildResult(ctx context.Context, p RepoReader, dir string) (Result, error) {
	remotes, err := p.Remotes(ctx, dir)
	if err != nil {
		return Result{}, err
	}
	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Name)
	}
	primary := gitx.PrimaryRemote(names)
	var remoteURL string
	for _, r := range remotes {
		if r.Name == primary {
			remoteURL = r.URL
			break
		}
	}
	return Result{
		Path:          dir,
		RepoID:        gitx.NormalizeURL(remoteURL),
		RemoteURL:     remoteURL,
		PrimaryRemote: primary,
		Remotes:       remotes,
	}, nil
}
