package vcs_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/topickeeper/internal/vcs"
)

var _ = Describe("Inspector", func() {
	var (
		dir  string
		repo *git.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		var err error
		repo, err = git.PlainInit(dir, false)
		Expect(err).NotTo(HaveOccurred())
	})

	commit := func() plumbing.Hash {
		Expect(os.WriteFile(filepath.Join(dir, "README"), []byte("hello\n"), 0o644)).To(Succeed())
		wt, err := repo.Worktree()
		Expect(err).NotTo(HaveOccurred())
		_, err = wt.Add("README")
		Expect(err).NotTo(HaveOccurred())
		hash, err := wt.Commit("initial\n\nChange-Id: I1", &git.CommitOptions{
			Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
		})
		Expect(err).NotTo(HaveOccurred())
		return hash
	}

	It("reports an unborn branch", func() {
		head, err := vcs.NewInspector().Head(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Branch).NotTo(BeEmpty())
		Expect(head.Commit).To(BeEmpty())
		Expect(head.Detached).To(BeFalse())
	})

	It("reports the branch and commit", func() {
		hash := commit()
		head, err := vcs.NewInspector().Head(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Commit).To(Equal(hash.String()))
		Expect(head.Detached).To(BeFalse())
	})

	It("reports a detached HEAD", func() {
		hash := commit()
		wt, err := repo.Worktree()
		Expect(err).NotTo(HaveOccurred())
		Expect(wt.Checkout(&git.CheckoutOptions{Hash: hash})).To(Succeed())

		head, err := vcs.NewInspector().Head(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Detached).To(BeTrue())
		Expect(head.Branch).To(BeEmpty())
		Expect(head.Commit).To(Equal(hash.String()))
	})

	It("lists remotes sorted by name", func() {
		_, err := repo.CreateRemote(&config.RemoteConfig{Name: "upstream", URLs: []string{"https://example.com/u"}})
		Expect(err).NotTo(HaveOccurred())
		_, err = repo.CreateRemote(&config.RemoteConfig{Name: "gerrit", URLs: []string{"ssh://review:29418/p"}})
		Expect(err).NotTo(HaveOccurred())

		remotes, err := vcs.NewInspector().Remotes(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(HaveLen(2))
		Expect(remotes[0].Name).To(Equal("gerrit"))
		Expect(remotes[1].URL).To(Equal("https://example.com/u"))
	})

	It("recognizes a working copy", func() {
		ok, err := vcs.NewInspector().IsRepo(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = vcs.NewInspector().IsRepo(ctx, GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("fails outside a repository", func() {
		_, err := vcs.NewInspector().Head(ctx, GinkgoT().TempDir())
		Expect(err).To(HaveOccurred())
	})
})
