// SPDX-License-Identifier: MIT
package gitx_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/model"
)

var _ = Describe("GitRunner.Run", func() {
	var runner *gitx.GitRunner

	BeforeEach(func() {
		runner = &gitx.GitRunner{}
	})

	It("runs git version successfully", func() {
		out, err := runner.Run(context.Background(), "", "version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("git version"))
	})

	It("errors for nonexistent directory", func() {
		_, err := runner.Run(context.Background(), "/nonexistent/path/xyz", "status")
		Expect(err).To(HaveOccurred())
	})

	It("includes the command in failures", func() {
		_, err := runner.Run(context.Background(), "", "definitely-not-a-subcommand")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("git definitely-not-a-subcommand"))
	})

	It("tags failures with their exit code and class", func() {
		_, err := runner.Run(context.Background(), GinkgoT().TempDir(), "rev-parse", "--verify", "HEAD")
		var gitErr *gitx.Error
		Expect(errors.As(err, &gitErr)).To(BeTrue())
		Expect(gitErr.ExitCode).To(Equal(128))
		Expect(errors.Is(err, gitx.ErrCorruptRepo)).To(BeTrue())
		Expect(gitx.ClassifyError(err)).To(Equal("corrupt"))
	})

	It("respects context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runner.Run(ctx, "", "version")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("IsRepo", func() {
	It("returns true for a valid repo", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --is-inside-work-tree": {Output: "true"},
		}}
		ok, err := gitx.IsRepo(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("returns false on error", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --is-inside-work-tree": {Err: errors.New("not a repo")},
		}}
		ok, err := gitx.IsRepo(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Remotes", func() {
	It("lists remotes with URLs in order", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:remote":                {Output: "gerrit\norigin"},
			"/repo:remote get-url gerrit": {Output: "ssh://host:29418/p"},
			"/repo:remote get-url origin": {Output: "https://host/p"},
		}}
		remotes, err := gitx.Remotes(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(Equal([]model.Remote{
			{Name: "gerrit", URL: "ssh://host:29418/p"},
			{Name: "origin", URL: "https://host/p"},
		}))
	})

	It("returns nil when there are none", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{"/repo:remote": {}}}
		remotes, err := gitx.Remotes(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(BeNil())
	})
})

var _ = Describe("CurrentBranch", func() {
	It("returns empty when detached", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{"/repo:branch --show-current": {}}}
		branch, err := gitx.CurrentBranch(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(BeEmpty())
	})

	It("returns the branch name", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{"/repo:branch --show-current": {Output: "crossrepo/x"}}}
		branch, err := gitx.CurrentBranch(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(Equal("crossrepo/x"))
	})
})

var _ = Describe("Cherry", func() {
	It("collects unique commits that carry a Change-Id", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:cherry master HEAD":      {Output: "+ aaa\n- bbb\n+ ccc\n+ ddd"},
			"/repo:show -s --format=%b aaa": {Output: "Change-Id: Ia"},
			"/repo:show -s --format=%b ccc": {Output: "no trailer"},
			"/repo:show -s --format=%b ddd": {Output: "body\n\nChange-Id: Id"},
		}}
		set, err := gitx.Cherry(context.Background(), mock, "/repo", "master", "HEAD")
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(model.CherrySet{
			{Hash: "aaa", ChangeID: "Ia"},
			{Hash: "ddd", ChangeID: "Id"},
		}))
	})

	It("propagates cherry failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:cherry master HEAD": {Err: errors.New("bad revision")},
		}}
		_, err := gitx.Cherry(context.Background(), mock, "/repo", "master", "HEAD")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MergeBase", func() {
	It("returns the common ancestor", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:merge-base HEAD FETCH_HEAD": {Output: "abc\n"},
		}}
		base, err := gitx.MergeBase(context.Background(), mock, "/repo", "HEAD", "FETCH_HEAD")
		Expect(err).NotTo(HaveOccurred())
		Expect(base).To(Equal("abc"))
	})

	It("maps exit status 1 without output to ErrNoMergeBase", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:merge-base HEAD other": {Err: &gitx.Error{Args: []string{"merge-base", "HEAD", "other"}, ExitCode: 1, Err: errors.New("exit status 1")}},
		}}
		_, err := gitx.MergeBase(context.Background(), mock, "/repo", "HEAD", "other")
		Expect(err).To(MatchError(gitx.ErrNoMergeBase))
	})

	It("does not mistake a killed process for unrelated history", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:merge-base HEAD other": {Err: &gitx.Error{Args: []string{"merge-base", "HEAD", "other"}, ExitCode: -1, Err: context.Canceled}},
		}}
		_, err := gitx.MergeBase(context.Background(), mock, "/repo", "HEAD", "other")
		Expect(errors.Is(err, gitx.ErrNoMergeBase)).To(BeFalse())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("keeps other failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:merge-base HEAD nope": {Output: "fatal: Not a valid object name nope", Err: errors.New("exit status 128")},
		}}
		_, err := gitx.MergeBase(context.Background(), mock, "/repo", "HEAD", "nope")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, gitx.ErrNoMergeBase)).To(BeFalse())
	})
})

var _ = Describe("write operations", func() {
	ctx := context.Background()

	It("pushes with options after the refspec", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:push origin HEAD:refs/for/master -o topic=crossrepo/x": {},
		}}
		Expect(gitx.Push(ctx, mock, "/repo", "origin", "HEAD:refs/for/master", []string{"topic=crossrepo/x"})).To(Succeed())
	})

	It("detaches on checkout when asked", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:checkout --detach FETCH_HEAD": {},
			"/repo:checkout topic":               {},
		}}
		Expect(gitx.Checkout(ctx, mock, "/repo", "FETCH_HEAD", true)).To(Succeed())
		Expect(gitx.Checkout(ctx, mock, "/repo", "topic", false)).To(Succeed())
	})

	It("drives branch commands", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:checkout -b t":          {},
			"/repo:checkout -B t":          {},
			"/repo:branch -m u":            {},
			"/repo:branch -D t":            {},
			"/repo:cherry-pick abc":        {},
			"/repo:cherry-pick --continue": {},
			"/repo:cherry-pick --abort":    {},
		}}
		Expect(gitx.CreateBranch(ctx, mock, "/repo", "t")).To(Succeed())
		Expect(gitx.ForceBranch(ctx, mock, "/repo", "t")).To(Succeed())
		Expect(gitx.RenameBranch(ctx, mock, "/repo", "u")).To(Succeed())
		Expect(gitx.DeleteBranch(ctx, mock, "/repo", "t")).To(Succeed())
		Expect(gitx.CherryPick(ctx, mock, "/repo", "abc")).To(Succeed())
		Expect(gitx.CherryPickContinue(ctx, mock, "/repo")).To(Succeed())
		Expect(gitx.CherryPickAbort(ctx, mock, "/repo")).To(Succeed())
	})

	It("lists stash entries", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:stash list": {Output: "stash@{0}: WIP on x\nstash@{1}: WIP on y\n"},
		}}
		entries, err := gitx.StashList(ctx, mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
	})
})
