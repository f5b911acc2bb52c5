package reconcile

import (
	"context"
	"errors"
)

// Resolution is the operator's answer to a conflict.
type Resolution int

const (
	// ResolutionContinue means the conflict was fixed and staged.
	ResolutionContinue Resolution = iota
	// ResolutionAbort gives up on the whole reconcile.
	ResolutionAbort
)

// Resolver decides what to do about a paused run.
type Resolver interface {
	Resolve(ctx context.Context, conflict Conflict) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, conflict Conflict) (Resolution, error)

func (f ResolverFunc) Resolve(ctx context.Context, conflict Conflict) (Resolution, error) {
	return f(ctx, conflict)
}

// Drive loops a run through resolver until it is done or aborted. A resolver
// error aborts the run and is returned alongside ErrProcessAborted.
func Drive(ctx context.Context, run *Run, resolver Resolver) error {
	for run.State() == StateAwaitingConflictResolution {
		resolution, err := resolver.Resolve(ctx, *run.Conflict())
		if err != nil {
			return errors.Join(err, run.Abort(context.WithoutCancel(ctx)))
		}
		if resolution == ResolutionAbort {
			return run.Abort(ctx)
		}
		if err := run.Continue(ctx); err != nil {
			return err
		}
	}
	if run.State() == StateAborted {
		return ErrProcessAborted
	}
	return nil
}

// Reconcile runs Begin and then Drive.
func (r *Reconciler) Reconcile(ctx context.Context, dir, target string, opts Options, resolver Resolver) (*Run, error) {
	run, err := r.Begin(ctx, dir, target, opts)
	if err != nil {
		return nil, err
	}
	if err := Drive(ctx, run, resolver); err != nil {
		return run, err
	}
	return run, nil
}
