package pushlog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/topickeeper/internal/pushlog"
)

var _ = Describe("FileStore", func() {
	var (
		ctx  context.Context
		root string
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		path = filepath.Join(root, pushlog.DataDir, pushlog.FileName)
	})

	It("starts empty without creating the file", func() {
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		commit, err := s.LastPushed(ctx, "tools/build", "I1")
		Expect(err).NotTo(HaveOccurred())
		Expect(commit).To(BeEmpty())
		_, err = os.Stat(path)
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("persists a push and reloads it", func() {
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RecordPush(ctx, "tools/build", "I1", "abc")).To(Succeed())

		commit, err := s.LastPushed(ctx, "tools/build", "I1")
		Expect(err).NotTo(HaveOccurred())
		Expect(commit).To(Equal("abc"))

		reopened, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		commit, err = reopened.LastPushed(ctx, "tools/build", "I1")
		Expect(err).NotTo(HaveOccurred())
		Expect(commit).To(Equal("abc"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{"tools/build":{"I1":{"last-pushed-commit":"abc"}}}`))
	})

	It("preserves keys it does not understand", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{
			"tools/build": {"I1": {"last-pushed-commit": "old", "reviewer": "bob"}},
			"other": {"I9": {"last-pushed-commit": "zzz"}}
		}`), 0o644)).To(Succeed())

		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RecordPush(ctx, "tools/build", "I1", "new")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"tools/build": {"I1": {"last-pushed-commit": "new", "reviewer": "bob"}},
			"other": {"I9": {"last-pushed-commit": "zzz"}}
		}`))
	})

	It("merges with edits made on disk after loading", func() {
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RecordPush(ctx, "a", "I1", "one")).To(Succeed())

		Expect(os.WriteFile(path, []byte(`{"a":{"I1":{"last-pushed-commit":"one"}},"b":{"I2":{"last-pushed-commit":"two"}}}`), 0o644)).To(Succeed())
		Expect(s.RecordPush(ctx, "a", "I3", "three")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"a": {"I1": {"last-pushed-commit": "one"}, "I3": {"last-pushed-commit": "three"}},
			"b": {"I2": {"last-pushed-commit": "two"}}
		}`))
		commit, err := s.LastPushed(ctx, "b", "I2")
		Expect(err).NotTo(HaveOccurred())
		Expect(commit).To(Equal("two"))
	})

	It("rejects a document of the wrong shape", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{"tools/build": "abc"}`), 0o644)).To(Succeed())
		_, err := pushlog.OpenFile(path)
		Expect(errors.Is(err, pushlog.ErrCorrupt)).To(BeTrue())
	})

	It("accepts numeric keys written by other tools", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{"tools/build": {"I1": {"last-pushed-commit": "abc", "attempts": 3}}}`), 0o644)).To(Succeed())
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		commit, err := s.LastPushed(ctx, "tools/build", "I1")
		Expect(err).NotTo(HaveOccurred())
		Expect(commit).To(Equal("abc"))
	})

	It("rejects a non-string last pushed commit", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{"tools/build": {"I1": {"last-pushed-commit": 42}}}`), 0o644)).To(Succeed())
		_, err := pushlog.OpenFile(path)
		Expect(errors.Is(err, pushlog.ErrCorrupt)).To(BeTrue())
	})

	It("rejects invalid JSON", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(`{nope`), 0o644)).To(Succeed())
		_, err := pushlog.OpenFile(path)
		Expect(errors.Is(err, pushlog.ErrCorrupt)).To(BeTrue())
	})

	It("lists records in order", func() {
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RecordPush(ctx, "b", "I2", "two")).To(Succeed())
		Expect(s.RecordPush(ctx, "a", "I9", "nine")).To(Succeed())
		Expect(s.RecordPush(ctx, "a", "I1", "one")).To(Succeed())

		records, err := s.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(Equal([]pushlog.Record{
			{Project: "a", ChangeID: "I1", Commit: "one"},
			{Project: "a", ChangeID: "I9", Commit: "nine"},
			{Project: "b", ChangeID: "I2", Commit: "two"},
		}))
	})

	It("leaves no temp files behind", func() {
		s, err := pushlog.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RecordPush(ctx, "a", "I1", "one")).To(Succeed())
		entries, err := os.ReadDir(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})
})

var _ = Describe("Open", func() {
	It("selects the backend by driver", func() {
		root := GinkgoT().TempDir()
		fileStore, err := pushlog.Open(root, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(fileStore).To(BeAssignableToTypeOf(&pushlog.FileStore{}))

		sqlStore, err := pushlog.Open(root, pushlog.DriverSQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlStore).To(BeAssignableToTypeOf(&pushlog.SQLiteStore{}))
		Expect(sqlStore.Close()).To(Succeed())
		Expect(filepath.Join(root, pushlog.DataDir, pushlog.DBName)).To(BeARegularFile())

		_, err = pushlog.Open(root, "redis")
		Expect(err).To(HaveOccurred())
	})
})
