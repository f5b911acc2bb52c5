package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/topickeeper/internal/gerrit"
)

// PullOutcome is the result of Pull.
type PullOutcome int

const (
	PullNoRemote PullOutcome = iota
	PullUpToDate
	PullAhead
	PullPulled
	PullRejected
)

func (o PullOutcome) String() string {
	switch o {
	case PullNoRemote:
		return "no-remote"
	case PullUpToDate:
		return "up-to-date"
	case PullAhead:
		return "ahead"
	case PullPulled:
		return "pulled"
	case PullRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PullOutcome(%d)", int(o))
	}
}

// PullOptions tunes a single pull.
type PullOptions struct {
	// Branch is the review target branch; empty uses the configured default.
	Branch string
}

// PullResult reports what Pull did.
type PullResult struct {
	Outcome  PullOutcome
	Project  string
	ChangeID string
	// Commit is the revision checked out by a successful pull.
	Commit string
}

// Pull brings the working copy up to the current patch set of its change,
// provided HEAD is an older patch set Gerrit knows about.
func (m *Machine) Pull(ctx context.Context, dir, repoURL string, opts PullOptions) (PullResult, error) {
	st, err := m.inspect(ctx, dir, repoURL)
	if err != nil {
		return PullResult{}, err
	}
	res := PullResult{Project: st.project, ChangeID: st.changeID}

	change, err := m.server.GetChange(ctx, st.project, m.targetBranch(opts.Branch), st.changeID, gerrit.OptionAllRevisions)
	if errors.Is(err, gerrit.ErrNotFound) {
		res.Outcome = PullNoRemote
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("query change %s: %w", st.changeID, err)
	}

	remote := change.CurrentRevision
	if remote == st.commit {
		res.Outcome = PullUpToDate
		return res, nil
	}
	last, err := m.history.LastPushed(ctx, st.project, st.changeID)
	if err != nil {
		return res, err
	}
	if remote == last {
		res.Outcome = PullAhead
		return res, nil
	}
	if !change.HasRevision(st.commit) {
		res.Outcome = PullRejected
		return res, ErrUnknownLocalCommits
	}

	fetch, ok := change.FetchInfo(remote, m.cfg.FetchProtocol)
	if !ok {
		return res, fmt.Errorf("%w %s", ErrNoFetchInfo, short(remote))
	}
	if err := m.repo.Fetch(ctx, dir, fetch.URL, fetch.Ref); err != nil {
		return res, err
	}
	if err := m.repo.Checkout(ctx, dir, "FETCH_HEAD", true); err != nil {
		return res, err
	}
	if st.branch != "" {
		if err := m.repo.DeleteBranch(ctx, dir, st.branch); err != nil {
			return res, err
		}
		if err := m.repo.CreateBranch(ctx, dir, st.branch); err != nil {
			return res, err
		}
	}
	m.log.Info().
		Str("project", st.project).
		Str("change_id", st.changeID).
		Str("commit", remote).
		Msg("pulled patch set")
	res.Outcome = PullPulled
	res.Commit = remote
	return res, nil
}
