// Package engine runs per-repository operations over a manifest's
// repository set. A failing repository is recorded and the sweep moves on.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/skaphos/topickeeper/internal/gerrit"
	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/pushlog"
	"github.com/skaphos/topickeeper/internal/reconcile"
	"github.com/skaphos/topickeeper/internal/review"
)

var (
	// ErrNoRepositories is returned when the set holds no repository.
	ErrNoRepositories = errors.New("no valid repository in manifest")
	// ErrInterrupted is returned when the sweep was cancelled before every
	// repository ran.
	ErrInterrupted = errors.New("interrupted")
)

// RepoFunc is a per-repository operation. It receives the repository
// directory through entry.Path and must not change the process directory.
type RepoFunc func(ctx context.Context, entry manifest.Entry) error

// SetFunc is a set-level operation. It sees every repository at once and
// reports its own per-repository results.
type SetFunc func(ctx context.Context, set *manifest.Set) ([]RepoResult, error)

// StartCallback is invoked before a repository operation begins.
type StartCallback func(manifest.Entry)

// ResultCallback is invoked after a repository operation ends.
// Callbacks run on the calling goroutine.
type ResultCallback func(RepoResult)

// RepoResult records the outcome for a single repository.
type RepoResult struct {
	// Name is the repository directory name.
	Name string
	// Path is the absolute repository directory.
	Path string
	// Err is the failure, nil on success.
	Err error
	// ErrorClass is a coarse error class suitable for summaries.
	ErrorClass string
}

// OK reports whether the repository operation succeeded.
func (r RepoResult) OK() bool { return r.Err == nil }

// Result aggregates the outcome of one sweep.
type Result struct {
	Repos []RepoResult
	// Pending lists repositories never reached because of cancellation.
	Pending []string
}

// Failed returns the paths of the repositories that failed, in manifest order.
func (r *Result) Failed() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, repo := range r.Repos {
		if !repo.OK() {
			out = append(out, repo.Path)
		}
	}
	return out
}

// OK reports whether every repository succeeded.
func (r *Result) OK() bool { return len(r.Failed()) == 0 }

// Engine executes operations across a repository set, sequentially and in
// manifest order.
type Engine struct {
	log        zerolog.Logger
	onStart    StartCallback
	onComplete ResultCallback
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for per-repository events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCallbacks installs start/complete hooks, used for progress output.
func WithCallbacks(onStart StartCallback, onComplete ResultCallback) Option {
	return func(e *Engine) {
		e.onStart = onStart
		e.onComplete = onComplete
	}
}

// New creates a new Engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunEach invokes fn once per repository. Errors are captured per repository;
// only an empty set or cancellation produce a returned error. The returned
// Result is always non-nil.
func (e *Engine) RunEach(ctx context.Context, set *manifest.Set, fn RepoFunc) (*Result, error) {
	res := &Result{}
	if set == nil || set.Len() == 0 {
		return res, ErrNoRepositories
	}
	for i, entry := range set.Entries {
		if ctx.Err() != nil {
			for _, rest := range set.Entries[i:] {
				res.Pending = append(res.Pending, rest.Path)
			}
			e.log.Warn().Int("pending", len(res.Pending)).Msg("sweep interrupted")
			return res, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		if e.onStart != nil {
			e.onStart(entry)
		}
		repo := e.runOne(ctx, entry, fn)
		res.Repos = append(res.Repos, repo)
		if e.onComplete != nil {
			e.onComplete(repo)
		}
	}
	return res, nil
}

func (e *Engine) runOne(ctx context.Context, entry manifest.Entry, fn RepoFunc) RepoResult {
	repo := RepoResult{Name: entry.Name, Path: entry.Path}
	err := os.MkdirAll(entry.Path, 0o755)
	if err == nil {
		err = fn(ctx, entry)
	}
	if err != nil {
		repo.Err = err
		repo.ErrorClass = Classify(err)
		e.log.Error().Err(err).Str("repo", entry.Name).Str("path", entry.Path).
			Str("class", repo.ErrorClass).Msg("repository failed")
		return repo
	}
	e.log.Debug().Str("repo", entry.Name).Str("path", entry.Path).Msg("repository done")
	return repo
}

// RunSet hands the whole set to fn. Callbacks are not invoked: set-level
// operations do their own reporting.
func (e *Engine) RunSet(ctx context.Context, set *manifest.Set, fn SetFunc) (*Result, error) {
	res := &Result{}
	if set == nil || set.Len() == 0 {
		return res, ErrNoRepositories
	}
	repos, err := fn(ctx, set)
	for i := range repos {
		if repos[i].Err != nil && repos[i].ErrorClass == "" {
			repos[i].ErrorClass = Classify(repos[i].Err)
		}
	}
	res.Repos = repos
	return res, err
}

// Classify maps an error to a short class for the failure summary.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, review.ErrMissingChangeID):
		return "missing_change_id"
	case errors.Is(err, review.ErrOperationAborted), errors.Is(err, reconcile.ErrProcessAborted):
		return "aborted"
	case errors.Is(err, review.ErrUnknownLocalCommits):
		return "unknown_commits"
	case errors.Is(err, reconcile.ErrUnrelatedHistory):
		return "unrelated_history"
	case errors.Is(err, review.ErrNoRemote):
		return "missing_remote"
	case errors.Is(err, pushlog.ErrCorrupt):
		return "corrupt"
	}
	var gerr *gerrit.Error
	if errors.As(err, &gerr) || errors.Is(err, gerrit.ErrInvalidTopic) {
		return "gerrit"
	}
	return gitx.ClassifyError(err)
}
