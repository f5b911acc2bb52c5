package discovery_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/topickeeper/internal/discovery"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/model"
	"github.com/skaphos/topickeeper/internal/vcs"
)

type stubRepoReader struct {
	remotes map[string][]model.Remote
}

func (s *stubRepoReader) IsRepo(context.Context, string) (bool, error) { return true, nil }

func (s *stubRepoReader) Remotes(_ context.Context, dir string) ([]model.Remote, error) {
	return s.remotes[dir], nil
}

func fakeRepo(path string) {
	Expect(os.MkdirAll(filepath.Join(path, ".git"), 0o755)).To(Succeed())
}

var _ = Describe("Discovery", func() {
	It("matches exclude patterns", func() {
		Expect(discovery.MatchesExclude("C:/code/repo/.git", []string{"**/.git/**"})).To(BeTrue())
		Expect(discovery.MatchesExclude("/code/node_modules", []string{"**/node_modules/**"})).To(BeTrue())
		Expect(discovery.MatchesExclude("/code/vendor/repo", []string{"**/vendor/**"})).To(BeTrue())
		Expect(discovery.MatchesExclude("/code/repo", []string{"**/node_modules/**"})).To(BeFalse())
	})

	It("finds working copies and picks the primary remote", func() {
		root := GinkgoT().TempDir()
		app := filepath.Join(root, "app")
		lib := filepath.Join(root, "libs", "core")
		fakeRepo(app)
		fakeRepo(lib)
		fakeRepo(filepath.Join(app, "nested"))

		reader := &stubRepoReader{remotes: map[string][]model.Remote{
			app: {{Name: "upstream", URL: "ssh://review:29418/app"}, {Name: "origin", URL: "ssh://review:29418/app-fork"}},
			lib: {{Name: "gerrit", URL: "https://review/core"}},
		}}
		results, err := discovery.Scan(context.Background(), discovery.Options{Root: root, RepoReader: reader})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Path).To(Equal(app))
		Expect(results[0].PrimaryRemote).To(Equal("origin"))
		Expect(results[0].RemoteURL).To(Equal("ssh://review:29418/app-fork"))
		Expect(results[1].PrimaryRemote).To(Equal("gerrit"))

		entries, _ := discovery.ManifestEntries(root, results)
		Expect(manifest.FormatLine(root, entries[1])).To(Equal("https://review/core libs/core"))
	})

	It("drops working copies without a remote from the manifest", func() {
		root := GinkgoT().TempDir()
		fakeRepo(filepath.Join(root, "scratch"))
		results, err := discovery.Scan(context.Background(), discovery.Options{Root: root, RepoReader: &stubRepoReader{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		entries, duplicates := discovery.ManifestEntries(root, results)
		Expect(entries).To(BeEmpty())
		Expect(duplicates).To(BeEmpty())
	})

	It("keeps the first working copy of a repository", func() {
		root := "/w"
		results := []discovery.Result{
			{Path: "/w/build", RepoID: "review/tools/build", RemoteURL: "ssh://review:29418/tools/build"},
			{Path: "/w/build-copy", RepoID: "review/tools/build", RemoteURL: "https://review/tools/build.git"},
			{Path: "/w/docs", RepoID: "review/docs", RemoteURL: "ssh://review:29418/docs"},
		}
		entries, duplicates := discovery.ManifestEntries(root, results)
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Path).To(Equal("/w/build"))
		Expect(entries[1].Name).To(Equal("docs"))
		Expect(duplicates).To(HaveLen(1))
		Expect(duplicates[0].Path).To(Equal("/w/build-copy"))
	})

	It("respects exclude patterns during scan", func() {
		root := GinkgoT().TempDir()
		fakeRepo(filepath.Join(root, "vendor", "repo2"))
		results, err := discovery.Scan(context.Background(), discovery.Options{
			Root:       root,
			Exclude:    discovery.DefaultExclude,
			RepoReader: &stubRepoReader{},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("detects linked .git files", func() {
		root := GinkgoT().TempDir()
		repo := filepath.Join(root, "repo3")
		Expect(os.MkdirAll(repo, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(repo, ".git"), []byte("gitdir: ../repo3.gitdir"), 0o644)).To(Succeed())

		results, err := discovery.Scan(context.Background(), discovery.Options{Root: root, RepoReader: &stubRepoReader{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Path).To(Equal(repo))
	})

	It("scans real git repositories", func() {
		if _, err := exec.LookPath("git"); err != nil {
			Skip("git not installed")
		}
		root := GinkgoT().TempDir()
		repo := filepath.Join(root, "repo1")
		Expect(exec.Command("git", "init", repo).Run()).To(Succeed())
		Expect(exec.Command("git", "-C", repo, "remote", "add", "origin", "https://review/repo1").Run()).To(Succeed())

		results, err := discovery.Scan(context.Background(), discovery.Options{
			Root:       root,
			RepoReader: vcs.NewGitAdapter(nil),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].RepoID).To(Equal("review/repo1"))
	})
})
