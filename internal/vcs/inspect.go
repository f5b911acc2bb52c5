package vcs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skaphos/topickeeper/internal/model"
)

// Inspector reads repository state in-process through go-git, without
// spawning git. It never mutates the repository.
type Inspector struct{}

// NewInspector returns a go-git backed Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// IsRepo reports whether dir is the top of a git working copy.
func (i *Inspector) IsRepo(ctx context.Context, dir string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open git repo: %w", err)
	}
	return true, nil
}

// Head reports the branch and commit HEAD points at. An unborn branch has an
// empty Commit.
func (i *Inspector) Head(ctx context.Context, dir string) (model.Head, error) {
	if err := ctx.Err(); err != nil {
		return model.Head{}, err
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return model.Head{}, fmt.Errorf("open git repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return model.Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	var head model.Head
	if ref.Type() == plumbing.SymbolicReference {
		head.Branch = ref.Target().Short()
	} else {
		head.Detached = true
		head.Commit = ref.Hash().String()
		return head, nil
	}

	resolved, err := repo.Head()
	if err == nil {
		head.Commit = resolved.Hash().String()
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return model.Head{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	return head, nil
}

// Remotes lists configured remotes with their first URL, sorted by name.
func (i *Inspector) Remotes(ctx context.Context, dir string) ([]model.Remote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repo: %w", err)
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}
	out := make([]model.Remote, 0, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		url := ""
		if len(cfg.URLs) > 0 {
			url = cfg.URLs[0]
		}
		out = append(out, model.Remote{Name: cfg.Name, URL: url})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}
