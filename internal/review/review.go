// Package review decides what push and pull mean for one working copy by
// comparing local HEAD, the change on Gerrit, and the last commit this tool
// pushed for that change.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skaphos/topickeeper/internal/gerrit"
	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/model"
)

var (
	// ErrMissingChangeID is returned when HEAD carries no Change-Id trailer.
	ErrMissingChangeID = errors.New("unable to extract Change-Id from HEAD")
	// ErrOperationAborted is returned when the operator declines an overwrite.
	ErrOperationAborted = errors.New("operation aborted")
	// ErrUnknownLocalCommits is returned by Pull when HEAD is not a revision
	// Gerrit knows for the change.
	ErrUnknownLocalCommits = errors.New("local commits unknown to Gerrit")
	// ErrNoRemote is returned when no usable git remote can be found.
	ErrNoRemote = errors.New("no git remote configured")
	// ErrNoFetchInfo is returned when Gerrit advertises no download location
	// for the current revision.
	ErrNoFetchInfo = errors.New("no fetch information for revision")
)

// Default settings used when Config leaves them empty.
const (
	DefaultTargetBranch    = "master"
	DefaultCrossRepoPrefix = "crossrepo/"
	DefaultFetchProtocol   = "ssh"
)

// Repo is the subset of the VCS adapter the state machine needs.
type Repo interface {
	CurrentBranch(ctx context.Context, dir string) (string, error)
	HeadCommit(ctx context.Context, dir string) (string, error)
	HeadMessage(ctx context.Context, dir string) (string, error)
	Remotes(ctx context.Context, dir string) ([]model.Remote, error)
	Fetch(ctx context.Context, dir, remote, ref string) error
	Checkout(ctx context.Context, dir, ref string, detach bool) error
	CreateBranch(ctx context.Context, dir, name string) error
	DeleteBranch(ctx context.Context, dir, name string) error
	Push(ctx context.Context, dir, remote, refspec string, options []string) error
}

// Server reads change metadata from the review server and updates topics.
type Server interface {
	GetChange(ctx context.Context, project, branch, changeID string, options ...string) (*gerrit.Change, error)
	SetTopic(ctx context.Context, id, topic string) error
}

// History remembers the last commit pushed per project and Change-Id.
type History interface {
	LastPushed(ctx context.Context, project, changeID string) (string, error)
	RecordPush(ctx context.Context, project, changeID, commit string) error
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Config holds workspace defaults.
type Config struct {
	// RemoteName selects the git remote; empty means the first one listed.
	RemoteName string
	// TargetBranch is the branch changes are reviewed against.
	TargetBranch string
	// CrossRepoPrefix marks branch names that double as push topics.
	CrossRepoPrefix string
	// FetchProtocol is the preferred Gerrit download scheme.
	FetchProtocol string
}

func (c Config) withDefaults() Config {
	if c.TargetBranch == "" {
		c.TargetBranch = DefaultTargetBranch
	}
	if c.CrossRepoPrefix == "" {
		c.CrossRepoPrefix = DefaultCrossRepoPrefix
	}
	if c.FetchProtocol == "" {
		c.FetchProtocol = DefaultFetchProtocol
	}
	return c
}

// Machine runs the push and pull decisions.
type Machine struct {
	repo    Repo
	server  Server
	history History
	confirm Confirmer
	cfg     Config
	log     zerolog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for decisions.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// New returns a Machine. A nil confirmer declines every overwrite.
func New(repo Repo, server Server, history History, confirm Confirmer, cfg Config, opts ...Option) *Machine {
	if confirm == nil {
		confirm = ConfirmerFunc(func(context.Context, string) (bool, error) { return false, nil })
	}
	m := &Machine{
		repo:    repo,
		server:  server,
		history: history,
		confirm: confirm,
		cfg:     cfg.withDefaults(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// localState is what both decisions read from the working copy.
type localState struct {
	changeID string
	project  string
	remote   string
	commit   string
	branch   string
}

// inspect reads the Change-Id, remote and HEAD of dir. repoURL stands in for
// the remote when the working copy has none configured.
func (m *Machine) inspect(ctx context.Context, dir, repoURL string) (localState, error) {
	var st localState
	msg, err := m.repo.HeadMessage(ctx, dir)
	if err != nil {
		return st, fmt.Errorf("read HEAD message: %w", err)
	}
	st.changeID = gitx.ChangeIDFromMessage(msg)
	if st.changeID == "" {
		return st, ErrMissingChangeID
	}

	remotes, err := m.repo.Remotes(ctx, dir)
	if err != nil {
		return st, err
	}
	remoteURL := ""
	if r, ok := gitx.SelectRemote(remotes, m.cfg.RemoteName); ok {
		st.remote, remoteURL = r.Name, r.URL
	} else if m.cfg.RemoteName != "" {
		return st, fmt.Errorf("%w: %s", ErrNoRemote, m.cfg.RemoteName)
	} else if repoURL != "" {
		st.remote, remoteURL = repoURL, repoURL
	} else {
		return st, ErrNoRemote
	}
	st.project = gitx.ProjectFromURL(remoteURL)

	if st.commit, err = m.repo.HeadCommit(ctx, dir); err != nil {
		return st, fmt.Errorf("read HEAD: %w", err)
	}
	if st.branch, err = m.repo.CurrentBranch(ctx, dir); err != nil {
		return st, fmt.Errorf("read current branch: %w", err)
	}
	return st, nil
}

func (m *Machine) targetBranch(branch string) string {
	if branch != "" {
		return branch
	}
	return m.cfg.TargetBranch
}
