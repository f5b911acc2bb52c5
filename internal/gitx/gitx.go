// Package gitx provides helpers for executing git commands and parsing
// their output. It shells out to the installed git binary.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/skaphos/topickeeper/internal/model"
)

// ErrNoMergeBase is returned by MergeBase when two refs share no history.
var ErrNoMergeBase = errors.New("no common ancestor")

// Runner executes git commands in a given repo directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns
	// combined stdout/stderr output.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
	// Env holds extra KEY=VALUE pairs appended to the process environment.
	Env []string
}

// Run executes a git command.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		gitErr := &Error{Args: args, Output: text, ExitCode: -1, Kind: kindOf(text), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			gitErr.ExitCode = exitErr.ExitCode()
		}
		return text, gitErr
	}
	return text, nil
}

// Error is a failed git invocation. It matches the class sentinel picked
// from its output (ErrAuthFailure, ErrNetworkFailure, ...) with errors.Is.
type Error struct {
	Args   []string
	Output string
	// ExitCode is the process exit status, or -1 when git was killed or
	// never started.
	ExitCode int
	// Kind is a class sentinel, or nil when the output is not recognized.
	Kind error
	Err  error
}

func (e *Error) Error() string {
	cmd := "git " + strings.Join(e.Args, " ")
	if e.Output != "" {
		return fmt.Sprintf("%s: %s: %v", cmd, e.Output, e.Err)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Kind}
}

// IsRepo checks whether the given path is inside a git working tree.
func IsRepo(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) == "true", nil
}

// Remotes returns all configured remotes for the repo, in git's listing order.
func Remotes(ctx context.Context, r Runner, dir string) ([]model.Remote, error) {
	out, err := r.Run(ctx, dir, "remote")
	if err != nil {
		return nil, fmt.Errorf("git remote: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	names := strings.Split(strings.TrimSpace(out), "\n")
	var remotes []model.Remote
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		url, err := r.Run(ctx, dir, "remote", "get-url", name)
		if err != nil {
			continue
		}
		remotes = append(remotes, model.Remote{
			Name: name,
			URL:  strings.TrimSpace(url),
		})
	}
	return remotes, nil
}

// CurrentBranch returns the checked out branch name, or "" when HEAD is detached.
func CurrentBranch(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RevParse resolves ref to a full commit hash.
func RevParse(ctx context.Context, r Runner, dir, ref string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadMessage returns the full message of the HEAD commit.
func HeadMessage(ctx context.Context, r Runner, dir string) (string, error) {
	return r.Run(ctx, dir, "log", "-1", "--format=%B")
}

// CommitBody returns the body (message without subject) of a commit.
func CommitBody(ctx context.Context, r Runner, dir, commit string) (string, error) {
	return r.Run(ctx, dir, "show", "-s", "--format=%b", commit)
}

// Cherry returns the commits of head that have no patch-equivalent in
// upstream, annotated with their Change-Id. Commits without a Change-Id
// trailer are left out.
func Cherry(ctx context.Context, r Runner, dir, upstream, head string) (model.CherrySet, error) {
	out, err := r.Run(ctx, dir, "cherry", upstream, head)
	if err != nil {
		return nil, err
	}
	var set model.CherrySet
	for _, line := range ParseCherry(out) {
		if !line.Unique {
			continue
		}
		body, err := CommitBody(ctx, r, dir, line.Hash)
		if err != nil {
			return nil, err
		}
		if id := ChangeIDFromMessage(body); id != "" {
			set = append(set, model.Commit{Hash: line.Hash, ChangeID: id})
		}
	}
	return set, nil
}

// MergeBase returns the best common ancestor of a and b. It returns
// ErrNoMergeBase when the histories are unrelated.
func MergeBase(ctx context.Context, r Runner, dir, a, b string) (string, error) {
	out, err := r.Run(ctx, dir, "merge-base", a, b)
	if err != nil {
		// merge-base exits 1 without output when there is no common ancestor.
		var gitErr *Error
		if errors.As(err, &gitErr) && gitErr.ExitCode == 1 && strings.TrimSpace(out) == "" {
			return "", ErrNoMergeBase
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Fetch fetches a single ref from a remote name or URL into FETCH_HEAD.
func Fetch(ctx context.Context, r Runner, dir, remote, ref string) error {
	_, err := r.Run(ctx, dir, "fetch", remote, ref)
	return err
}

// Checkout switches to ref. With detach, HEAD is detached at ref.
func Checkout(ctx context.Context, r Runner, dir, ref string, detach bool) error {
	args := []string{"checkout"}
	if detach {
		args = append(args, "--detach")
	}
	args = append(args, ref)
	_, err := r.Run(ctx, dir, args...)
	return err
}

// CreateBranch creates name at HEAD and checks it out.
func CreateBranch(ctx context.Context, r Runner, dir, name string) error {
	_, err := r.Run(ctx, dir, "checkout", "-b", name)
	return err
}

// ForceBranch creates or resets name at HEAD and checks it out.
func ForceBranch(ctx context.Context, r Runner, dir, name string) error {
	_, err := r.Run(ctx, dir, "checkout", "-B", name)
	return err
}

// RenameBranch renames the current branch.
func RenameBranch(ctx context.Context, r Runner, dir, name string) error {
	_, err := r.Run(ctx, dir, "branch", "-m", name)
	return err
}

// DeleteBranch force-deletes a local branch.
func DeleteBranch(ctx context.Context, r Runner, dir, name string) error {
	_, err := r.Run(ctx, dir, "branch", "-D", name)
	return err
}

// CherryPick applies commit on top of HEAD.
func CherryPick(ctx context.Context, r Runner, dir, commit string) error {
	_, err := r.Run(ctx, dir, "cherry-pick", commit)
	return err
}

// CherryPickContinue resumes a cherry-pick after conflicts were resolved.
func CherryPickContinue(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "cherry-pick", "--continue")
	return err
}

// CherryPickAbort cancels an in-progress cherry-pick.
func CherryPickAbort(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "cherry-pick", "--abort")
	return err
}

// Push pushes refspec to remote, passing each option with -o.
func Push(ctx context.Context, r Runner, dir, remote, refspec string, options []string) error {
	args := []string{"push", remote, refspec}
	for _, opt := range options {
		args = append(args, "-o", opt)
	}
	_, err := r.Run(ctx, dir, args...)
	return err
}

// Clone clones remoteURL into dir, which must exist and be empty.
func Clone(ctx context.Context, r Runner, dir, remoteURL string) error {
	_, err := r.Run(ctx, dir, "clone", remoteURL, ".")
	return err
}

// StashPush stashes local modifications.
func StashPush(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "stash")
	return err
}

// StashPop applies and drops the latest stash entry.
func StashPop(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "stash", "pop")
	return err
}

// StashList returns the stash entries, newest first.
func StashList(ctx context.Context, r Runner, dir string) ([]string, error) {
	out, err := r.Run(ctx, dir, "stash", "list")
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}
