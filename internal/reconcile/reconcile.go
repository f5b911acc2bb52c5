// SPDX-License-Identifier: MIT
// Package reconcile replays a topic branch onto a new base while skipping
// commits whose Change-Id already landed at the target.
//
// A reconcile is a small state machine. Begin does the setup and replays
// commits until it either finishes or a cherry-pick conflicts. A paused Run
// waits in StateAwaitingConflictResolution until the caller either resolves
// the conflict and calls Continue, or gives up with Abort.
package reconcile

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/model"
)

var (
	// ErrProcessAborted is returned when the operator aborts a paused run.
	ErrProcessAborted = errors.New("process aborted")
	// ErrUnrelatedHistory is returned when the target shares no commit with HEAD.
	ErrUnrelatedHistory = errors.New("target has no history in common with HEAD")
	// ErrNotPaused is returned by Continue and Abort on a run that is not
	// awaiting conflict resolution.
	ErrNotPaused = errors.New("reconcile is not awaiting conflict resolution")
)

// Repo is the subset of the VCS adapter the reconciler drives.
type Repo interface {
	CurrentBranch(ctx context.Context, dir string) (string, error)
	RevParse(ctx context.Context, dir, ref string) (string, error)
	MergeBase(ctx context.Context, dir, a, b string) (string, error)
	Cherry(ctx context.Context, dir, upstream, head string) (model.CherrySet, error)
	Checkout(ctx context.Context, dir, ref string, detach bool) error
	CreateBranch(ctx context.Context, dir, name string) error
	ForceBranch(ctx context.Context, dir, name string) error
	DeleteBranch(ctx context.Context, dir, name string) error
	CherryPick(ctx context.Context, dir, commit string) error
	CherryPickContinue(ctx context.Context, dir string) error
	CherryPickAbort(ctx context.Context, dir string) error
}

// State is where a Run stands.
type State int

const (
	StateDone State = iota
	StateAwaitingConflictResolution
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateAwaitingConflictResolution:
		return "awaiting-conflict-resolution"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options tunes a single reconcile.
type Options struct {
	// IgnoreChangeIDs replays every unique commit without looking for
	// changes that already landed at the target.
	IgnoreChangeIDs bool
}

// Conflict describes the cherry-pick a paused Run is waiting on.
type Conflict struct {
	Dir    string
	Commit model.Commit
	Err    error
}

// Reconciler starts reconcile runs against a repository.
type Reconciler struct {
	repo    Repo
	log     zerolog.Logger
	newName func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for replay events.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = log }
}

// WithBranchNamer overrides how throwaway branch names are generated.
func WithBranchNamer(fn func() string) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.newName = fn
		}
	}
}

// New returns a Reconciler driving repo.
func New(repo Repo, opts ...Option) *Reconciler {
	entropy := ulid.Monotonic(rand.Reader, 0)
	r := &Reconciler{
		repo: repo,
		log:  zerolog.Nop(),
		newName: func() string {
			id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy)
			return "tmp." + strings.ToLower(id.String())
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is one reconcile of a working copy onto a target ref.
type Run struct {
	r         *Reconciler
	dir       string
	target    string
	branch    string
	throwaway bool

	landed  model.CherrySet
	replay  model.CherrySet
	next    int
	picked  []model.Commit
	skipped []model.Commit

	state    State
	conflict *Conflict
}

// State returns the current state.
func (run *Run) State() State { return run.state }

// Conflict returns the pending conflict, or nil when the run is not paused.
func (run *Run) Conflict() *Conflict { return run.conflict }

// Branch is the working branch name; a synthesized tmp.* name when HEAD
// was detached.
func (run *Run) Branch() string { return run.branch }

// Throwaway reports whether Branch was synthesized for this run.
func (run *Run) Throwaway() bool { return run.throwaway }

// Picked lists the commits cherry-picked so far, oldest first.
func (run *Run) Picked() []model.Commit { return run.picked }

// Skipped lists the commits left out because their change already landed.
func (run *Run) Skipped() []model.Commit { return run.skipped }

// Begin reconciles the working copy at dir onto target. The returned Run is
// either done or paused on a conflict; errors mean the run could not start
// or a non-conflict step failed.
func (r *Reconciler) Begin(ctx context.Context, dir, target string, opts Options) (*Run, error) {
	run := &Run{r: r, dir: dir, target: target}

	branch, err := r.repo.CurrentBranch(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("read current branch: %w", err)
	}
	targetCommit, err := r.repo.RevParse(ctx, dir, target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	base, err := r.repo.MergeBase(ctx, dir, "HEAD", target)
	if err != nil {
		if errors.Is(err, gitx.ErrNoMergeBase) {
			return nil, fmt.Errorf("%w: %s", ErrUnrelatedHistory, target)
		}
		return nil, fmt.Errorf("merge-base HEAD %s: %w", target, err)
	}
	if base == targetCommit {
		// HEAD already contains target.
		run.branch = branch
		run.state = StateDone
		r.log.Debug().Str("dir", dir).Str("target", target).Msg("already up to date")
		return run, nil
	}

	if branch == "" {
		branch = r.newName()
		if err := r.repo.CreateBranch(ctx, dir, branch); err != nil {
			return nil, fmt.Errorf("create throwaway branch: %w", err)
		}
		run.throwaway = true
	}
	run.branch = branch

	if err := r.repo.Checkout(ctx, dir, target, true); err != nil {
		return nil, run.restoreAfter(ctx, fmt.Errorf("checkout %s: %w", target, err))
	}
	if !opts.IgnoreChangeIDs {
		run.landed, err = r.repo.Cherry(ctx, dir, branch, "HEAD")
		if err != nil {
			return nil, run.restoreAfter(ctx, fmt.Errorf("list landed changes: %w", err))
		}
	}
	run.replay, err = r.repo.Cherry(ctx, dir, "HEAD", branch)
	if err != nil {
		return nil, run.restoreAfter(ctx, fmt.Errorf("list commits to replay: %w", err))
	}
	r.log.Debug().
		Str("dir", dir).
		Str("target", target).
		Str("branch", branch).
		Int("landed", len(run.landed)).
		Int("replay", len(run.replay)).
		Msg("reconcile started")

	if err := run.advance(ctx); err != nil {
		return nil, err
	}
	return run, nil
}

// Continue resumes a paused run once the operator has resolved the conflict.
// When the continue step fails again the run stays paused with the new
// error in Conflict.
func (run *Run) Continue(ctx context.Context) error {
	if run.state != StateAwaitingConflictResolution {
		return ErrNotPaused
	}
	if err := run.r.repo.CherryPickContinue(ctx, run.dir); err != nil {
		run.conflict.Err = err
		return nil
	}
	run.picked = append(run.picked, run.conflict.Commit)
	run.conflict = nil
	run.next++
	run.state = StateDone
	return run.advance(ctx)
}

// Abort cancels the pending cherry-pick and puts the working branch back
// where it was. It always returns an error wrapping ErrProcessAborted.
func (run *Run) Abort(ctx context.Context) error {
	if run.state != StateAwaitingConflictResolution {
		return ErrNotPaused
	}
	var errs []error
	if err := run.r.repo.CherryPickAbort(ctx, run.dir); err != nil {
		errs = append(errs, fmt.Errorf("cherry-pick --abort: %w", err))
	}
	if err := run.restore(ctx); err != nil {
		errs = append(errs, err)
	}
	run.state = StateAborted
	run.conflict = nil
	run.r.log.Info().Str("dir", run.dir).Str("branch", run.branch).Msg("reconcile aborted")
	return errors.Join(append([]error{ErrProcessAborted}, errs...)...)
}

func (run *Run) advance(ctx context.Context) error {
	for run.next < len(run.replay) {
		commit := run.replay[run.next]
		if run.landed.Contains(commit.ChangeID) {
			run.r.log.Info().
				Str("dir", run.dir).
				Str("commit", commit.Hash).
				Str("change_id", commit.ChangeID).
				Msg("skipping change already at target")
			run.skipped = append(run.skipped, commit)
			run.next++
			continue
		}
		if err := run.r.repo.CherryPick(ctx, run.dir, commit.Hash); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.state = StateAwaitingConflictResolution
			run.conflict = &Conflict{Dir: run.dir, Commit: commit, Err: err}
			run.r.log.Warn().
				Str("dir", run.dir).
				Str("commit", commit.Hash).
				Str("change_id", commit.ChangeID).
				Msg("cherry-pick stopped on a conflict")
			return nil
		}
		run.picked = append(run.picked, commit)
		run.next++
	}
	return run.finalize(ctx)
}

func (run *Run) finalize(ctx context.Context) error {
	if run.throwaway {
		if err := run.r.repo.DeleteBranch(ctx, run.dir, run.branch); err != nil {
			return fmt.Errorf("delete throwaway branch %s: %w", run.branch, err)
		}
	} else if err := run.r.repo.ForceBranch(ctx, run.dir, run.branch); err != nil {
		return fmt.Errorf("move %s to reconciled tip: %w", run.branch, err)
	}
	run.state = StateDone
	return nil
}

// restore returns the working copy to the pre-reconcile position: the named
// branch is checked out again, or for a throwaway branch HEAD is detached at
// its commit and the branch removed.
func (run *Run) restore(ctx context.Context) error {
	if !run.throwaway {
		if err := run.r.repo.Checkout(ctx, run.dir, run.branch, false); err != nil {
			return fmt.Errorf("checkout %s: %w", run.branch, err)
		}
		return nil
	}
	if err := run.r.repo.Checkout(ctx, run.dir, run.branch, true); err != nil {
		return fmt.Errorf("checkout %s: %w", run.branch, err)
	}
	if err := run.r.repo.DeleteBranch(ctx, run.dir, run.branch); err != nil {
		return fmt.Errorf("delete throwaway branch %s: %w", run.branch, err)
	}
	return nil
}

func (run *Run) restoreAfter(ctx context.Context, cause error) error {
	if err := run.restore(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
