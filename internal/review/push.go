package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/topickeeper/internal/gerrit"
)

// PushOutcome is the result of Push.
type PushOutcome int

const (
	PushPushed PushOutcome = iota
	PushNoOp
	PushRejected
)

func (o PushOutcome) String() string {
	switch o {
	case PushPushed:
		return "pushed"
	case PushNoOp:
		return "no-op"
	case PushRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PushOutcome(%d)", int(o))
	}
}

// PushOptions tunes a single push.
type PushOptions struct {
	// Topic overrides the topic derived from a cross-repository branch.
	Topic string
	// Branch is the review target branch; empty uses the configured default.
	Branch string
}

// PushResult reports what Push did.
type PushResult struct {
	Outcome  PushOutcome
	Project  string
	ChangeID string
	Commit   string
	Topic    string
	// TopicUpdated is set when a no-op push moved the existing change to
	// the requested topic.
	TopicUpdated bool
}

// Push uploads HEAD for review unless Gerrit already has it, asking before
// replacing a patch set this tool did not push.
func (m *Machine) Push(ctx context.Context, dir, repoURL string, opts PushOptions) (PushResult, error) {
	st, err := m.inspect(ctx, dir, repoURL)
	if err != nil {
		return PushResult{}, err
	}
	res := PushResult{Project: st.project, ChangeID: st.changeID, Commit: st.commit}
	branch := m.targetBranch(opts.Branch)

	res.Topic = opts.Topic
	if res.Topic == "" {
		res.Topic = gerrit.ImplicitTopic(st.branch, m.cfg.CrossRepoPrefix)
	}
	pushOpts, err := gerrit.PushOptions(res.Topic)
	if err != nil {
		return res, err
	}

	change, err := m.server.GetChange(ctx, st.project, branch, st.changeID, gerrit.OptionCurrentRevision)
	switch {
	case errors.Is(err, gerrit.ErrNotFound):
		m.log.Debug().Str("project", st.project).Str("change_id", st.changeID).Msg("new change")
	case err != nil:
		return res, fmt.Errorf("query change %s: %w", st.changeID, err)
	default:
		if change.CurrentRevision == st.commit {
			res.Outcome = PushNoOp
			// Gerrit ignores push options on a no-op push.
			if opts.Topic != "" && change.Topic != opts.Topic {
				if err := m.server.SetTopic(ctx, gerrit.FullChangeID(st.project, branch, st.changeID), opts.Topic); err != nil {
					return res, fmt.Errorf("set topic: %w", err)
				}
				res.TopicUpdated = true
			}
			return res, nil
		}
		last, err := m.history.LastPushed(ctx, st.project, st.changeID)
		if err != nil {
			return res, err
		}
		if change.CurrentRevision != last {
			prompt := fmt.Sprintf("Change %s on %s has patch sets you have not seen (remote %s). Overwrite them?",
				st.changeID, st.project, short(change.CurrentRevision))
			ok, err := m.confirm.Confirm(ctx, prompt)
			if err != nil {
				return res, err
			}
			if !ok {
				res.Outcome = PushRejected
				return res, ErrOperationAborted
			}
		}
	}

	if err := m.repo.Push(ctx, dir, st.remote, gerrit.PushRefSpec(branch), pushOpts); err != nil {
		return res, err
	}
	if err := m.history.RecordPush(ctx, st.project, st.changeID, st.commit); err != nil {
		return res, fmt.Errorf("record push: %w", err)
	}
	m.log.Info().
		Str("project", st.project).
		Str("change_id", st.changeID).
		Str("commit", st.commit).
		Str("topic", res.Topic).
		Msg("pushed for review")
	res.Outcome = PushPushed
	return res, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
