package reconcile_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/model"
)

type fakeCommit struct {
	hash     string
	patch    string
	changeID string
}

// fakeRepo is an in-memory git with linear histories. Branches and a
// detached HEAD each hold the full list of commits from the root.
type fakeRepo struct {
	branches map[string][]fakeCommit
	head     string
	detached []fakeCommit
	commits  map[string]fakeCommit

	conflicts     map[string]bool
	continueFails int
	pending       *fakeCommit
	seq           int

	picks []string
	calls []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		branches:  map[string][]fakeCommit{},
		commits:   map[string]fakeCommit{},
		conflicts: map[string]bool{},
	}
}

func (f *fakeRepo) commit(hash, patch, changeID string) fakeCommit {
	c := fakeCommit{hash: hash, patch: patch, changeID: changeID}
	f.commits[hash] = c
	return c
}

func (f *fakeRepo) setBranch(name string, commits ...fakeCommit) {
	f.branches[name] = append([]fakeCommit(nil), commits...)
}

func (f *fakeRepo) history(ref string) ([]fakeCommit, error) {
	if ref == "HEAD" {
		return f.current(), nil
	}
	if h, ok := f.branches[ref]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("unknown ref %s", ref)
}

func (f *fakeRepo) current() []fakeCommit {
	if f.head != "" {
		return f.branches[f.head]
	}
	return f.detached
}

func (f *fakeRepo) setCurrent(h []fakeCommit) {
	if f.head != "" {
		f.branches[f.head] = h
		return
	}
	f.detached = h
}

func (f *fakeRepo) tip(ref string) string {
	h, err := f.history(ref)
	if err != nil || len(h) == 0 {
		return ""
	}
	return h[len(h)-1].hash
}

func (f *fakeRepo) patches(ref string) []string {
	h, _ := f.history(ref)
	out := make([]string, 0, len(h))
	for _, c := range h {
		out = append(out, c.patch)
	}
	return out
}

func commonPrefix(a, b []fakeCommit) int {
	n := 0
	for n < len(a) && n < len(b) && a[n].hash == b[n].hash {
		n++
	}
	return n
}

func (f *fakeRepo) log(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRepo) CurrentBranch(context.Context, string) (string, error) {
	return f.head, nil
}

func (f *fakeRepo) RevParse(_ context.Context, _ string, ref string) (string, error) {
	h, err := f.history(ref)
	if err != nil {
		return "", err
	}
	return h[len(h)-1].hash, nil
}

func (f *fakeRepo) MergeBase(_ context.Context, _ string, a, b string) (string, error) {
	ha, err := f.history(a)
	if err != nil {
		return "", err
	}
	hb, err := f.history(b)
	if err != nil {
		return "", err
	}
	n := commonPrefix(ha, hb)
	if n == 0 {
		return "", gitx.ErrNoMergeBase
	}
	return ha[n-1].hash, nil
}

func (f *fakeRepo) Cherry(_ context.Context, _ string, upstream, head string) (model.CherrySet, error) {
	up, err := f.history(upstream)
	if err != nil {
		return nil, err
	}
	hd, err := f.history(head)
	if err != nil {
		return nil, err
	}
	n := commonPrefix(up, hd)
	upPatches := map[string]bool{}
	for _, c := range up[n:] {
		upPatches[c.patch] = true
	}
	var set model.CherrySet
	for _, c := range hd[n:] {
		if upPatches[c.patch] || c.changeID == "" {
			continue
		}
		set = append(set, model.Commit{Hash: c.hash, ChangeID: c.changeID})
	}
	return set, nil
}

func (f *fakeRepo) Checkout(_ context.Context, _ string, ref string, detach bool) error {
	f.log("checkout %s detach=%v", ref, detach)
	h, err := f.history(ref)
	if err != nil {
		return err
	}
	if detach {
		f.head = ""
		f.detached = append([]fakeCommit(nil), h...)
		return nil
	}
	if _, ok := f.branches[ref]; !ok {
		return fmt.Errorf("not a branch: %s", ref)
	}
	f.head = ref
	return nil
}

func (f *fakeRepo) CreateBranch(_ context.Context, _ string, name string) error {
	f.log("branch create %s", name)
	if _, ok := f.branches[name]; ok {
		return fmt.Errorf("branch %s exists", name)
	}
	f.branches[name] = append([]fakeCommit(nil), f.current()...)
	f.head = name
	return nil
}

func (f *fakeRepo) ForceBranch(_ context.Context, _ string, name string) error {
	f.log("branch force %s", name)
	f.branches[name] = append([]fakeCommit(nil), f.current()...)
	f.head = name
	return nil
}

func (f *fakeRepo) DeleteBranch(_ context.Context, _ string, name string) error {
	f.log("branch delete %s", name)
	if f.head == name {
		return fmt.Errorf("cannot delete checked out branch %s", name)
	}
	if _, ok := f.branches[name]; !ok {
		return fmt.Errorf("no branch %s", name)
	}
	delete(f.branches, name)
	return nil
}

func (f *fakeRepo) apply(c fakeCommit) {
	f.seq++
	picked := fakeCommit{hash: fmt.Sprintf("%s'%d", c.hash, f.seq), patch: c.patch, changeID: c.changeID}
	f.commits[picked.hash] = picked
	f.setCurrent(append(append([]fakeCommit(nil), f.current()...), picked))
}

func (f *fakeRepo) CherryPick(_ context.Context, _ string, hash string) error {
	f.log("cherry-pick %s", hash)
	f.picks = append(f.picks, hash)
	c, ok := f.commits[hash]
	if !ok {
		return fmt.Errorf("bad object %s", hash)
	}
	if f.conflicts[hash] {
		f.pending = &c
		return errors.New("error: could not apply " + hash)
	}
	f.apply(c)
	return nil
}

func (f *fakeRepo) CherryPickContinue(context.Context, string) error {
	f.log("cherry-pick --continue")
	if f.pending == nil {
		return errors.New("no cherry-pick in progress")
	}
	if f.continueFails > 0 {
		f.continueFails--
		return errors.New("you must edit all merge conflicts")
	}
	f.apply(*f.pending)
	f.pending = nil
	return nil
}

func (f *fakeRepo) CherryPickAbort(context.Context, string) error {
	f.log("cherry-pick --abort")
	if f.pending == nil {
		return errors.New("no cherry-pick in progress")
	}
	f.pending = nil
	return nil
}
