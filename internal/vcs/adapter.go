// Package vcs exposes the version-control operations TopicKeeper needs as a
// single interface, so workflow code never shells out directly.
package vcs

import (
	"context"

	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/model"
)

// Adapter defines the VCS operations TopicKeeper relies on. Every call takes
// the working-copy directory explicitly.
type Adapter interface {
	Name() string
	IsRepo(ctx context.Context, dir string) (bool, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
	HeadCommit(ctx context.Context, dir string) (string, error)
	HeadMessage(ctx context.Context, dir string) (string, error)
	Remotes(ctx context.Context, dir string) ([]model.Remote, error)
	RevParse(ctx context.Context, dir, ref string) (string, error)
	MergeBase(ctx context.Context, dir, a, b string) (string, error)
	Cherry(ctx context.Context, dir, upstream, head string) (model.CherrySet, error)

	Fetch(ctx context.Context, dir, remote, ref string) error
	Checkout(ctx context.Context, dir, ref string, detach bool) error
	CreateBranch(ctx context.Context, dir, name string) error
	ForceBranch(ctx context.Context, dir, name string) error
	RenameBranch(ctx context.Context, dir, name string) error
	DeleteBranch(ctx context.Context, dir, name string) error
	CherryPick(ctx context.Context, dir, commit string) error
	CherryPickContinue(ctx context.Context, dir string) error
	CherryPickAbort(ctx context.Context, dir string) error
	Push(ctx context.Context, dir, remote, refspec string, options []string) error
	Clone(ctx context.Context, dir, remoteURL string) error
	StashPush(ctx context.Context, dir string) error
	StashPop(ctx context.Context, dir string) error
	StashList(ctx context.Context, dir string) ([]string, error)
}

// GitAdapter implements Adapter using the git CLI via gitx.
type GitAdapter struct {
	Runner gitx.Runner
}

// NewGitAdapter returns a git adapter. A nil runner gets the default git
// binary with the commit editor disabled, so cherry-pick --continue never
// blocks on an interactive editor.
func NewGitAdapter(runner gitx.Runner) *GitAdapter {
	if runner == nil {
		runner = &gitx.GitRunner{Env: []string{"GIT_EDITOR=true"}}
	}
	return &GitAdapter{Runner: runner}
}

func (g *GitAdapter) Name() string { return "git" }

func (g *GitAdapter) IsRepo(ctx context.Context, dir string) (bool, error) {
	return gitx.IsRepo(ctx, g.Runner, dir)
}

func (g *GitAdapter) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return gitx.CurrentBranch(ctx, g.Runner, dir)
}

func (g *GitAdapter) HeadCommit(ctx context.Context, dir string) (string, error) {
	return gitx.RevParse(ctx, g.Runner, dir, "HEAD")
}

func (g *GitAdapter) HeadMessage(ctx context.Context, dir string) (string, error) {
	return gitx.HeadMessage(ctx, g.Runner, dir)
}

func (g *GitAdapter) Remotes(ctx context.Context, dir string) ([]model.Remote, error) {
	return gitx.Remotes(ctx, g.Runner, dir)
}

func (g *GitAdapter) RevParse(ctx context.Context, dir, ref string) (string, error) {
	return gitx.RevParse(ctx, g.Runner, dir, ref)
}

func (g *GitAdapter) MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	return gitx.MergeBase(ctx, g.Runner, dir, a, b)
}

func (g *GitAdapter) Cherry(ctx context.Context, dir, upstream, head string) (model.CherrySet, error) {
	return gitx.Cherry(ctx, g.Runner, dir, upstream, head)
}

func (g *GitAdapter) Fetch(ctx context.Context, dir, remote, ref string) error {
	return gitx.Fetch(ctx, g.Runner, dir, remote, ref)
}

func (g *GitAdapter) Checkout(ctx context.Context, dir, ref string, detach bool) error {
	return gitx.Checkout(ctx, g.Runner, dir, ref, detach)
}

func (g *GitAdapter) CreateBranch(ctx context.Context, dir, name string) error {
	return gitx.CreateBranch(ctx, g.Runner, dir, name)
}

func (g *GitAdapter) ForceBranch(ctx context.Context, dir, name string) error {
	return gitx.ForceBranch(ctx, g.Runner, dir, name)
}

func (g *GitAdapter) RenameBranch(ctx context.Context, dir, name string) error {
	return gitx.RenameBranch(ctx, g.Runner, dir, name)
}

func (g *GitAdapter) DeleteBranch(ctx context.Context, dir, name string) error {
	return gitx.DeleteBranch(ctx, g.Runner, dir, name)
}

func (g *GitAdapter) CherryPick(ctx context.Context, dir, commit string) error {
	return gitx.CherryPick(ctx, g.Runner, dir, commit)
}

func (g *GitAdapter) CherryPickContinue(ctx context.Context, dir string) error {
	return gitx.CherryPickContinue(ctx, g.Runner, dir)
}

func (g *GitAdapter) CherryPickAbort(ctx context.Context, dir string) error {
	return gitx.CherryPickAbort(ctx, g.Runner, dir)
}

func (g *GitAdapter) Push(ctx context.Context, dir, remote, refspec string, options []string) error {
	return gitx.Push(ctx, g.Runner, dir, remote, refspec, options)
}

func (g *GitAdapter) Clone(ctx context.Context, dir, remoteURL string) error {
	return gitx.Clone(ctx, g.Runner, dir, remoteURL)
}

func (g *GitAdapter) StashPush(ctx context.Context, dir string) error {
	return gitx.StashPush(ctx, g.Runner, dir)
}

func (g *GitAdapter) StashPop(ctx context.Context, dir string) error {
	return gitx.StashPop(ctx, g.Runner, dir)
}

func (g *GitAdapter) StashList(ctx context.Context, dir string) ([]string, error) {
	return gitx.StashList(ctx, g.Runner, dir)
}
