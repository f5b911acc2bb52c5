package pushlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrCorrupt is returned when the history document cannot be understood.
var ErrCorrupt = errors.New("corrupt push history")

// Document is the on-disk shape: project -> Change-Id -> entry.
type Document map[string]map[string]*Entry

// Entry is the per-change record. Keys other than last-pushed-commit are kept
// verbatim across rewrites.
type Entry struct {
	LastPushedCommit string         `json:"last-pushed-commit"`
	Unknown          jsontext.Value `json:",unknown"`
}

// FileStore keeps the history in a single JSON document.
type FileStore struct {
	path string
	doc  Document
}

// OpenFile loads the document at path. A missing file is an empty history;
// the file is created on the first RecordPush.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load rereads the document from disk.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = Document{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read push history: %w", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	s.doc = doc
	return nil
}

func (s *FileStore) LastPushed(ctx context.Context, project, changeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if entry := s.doc[project][changeID]; entry != nil {
		return entry.LastPushedCommit, nil
	}
	return "", nil
}

// RecordPush merges the new marker into whatever is on disk now and rewrites
// the file atomically.
func (s *FileStore) RecordPush(ctx context.Context, project, changeID, commit string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := json.Marshal(Document{project: {changeID: {LastPushedCommit: commit}}})
	if err != nil {
		return fmt.Errorf("encode push history patch: %w", err)
	}

	base, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		base = []byte("{}")
	case err != nil:
		return fmt.Errorf("read push history: %w", err)
	default:
		if err := validateDocument(base); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
	}

	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return fmt.Errorf("merge push history: %w", err)
	}
	doc, err := decodeDocument(merged)
	if err != nil {
		return err
	}
	out, err := json.Marshal(doc, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("encode push history: %w", err)
	}
	if err := writeAtomic(s.path, append(out, '\n')); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

func (s *FileStore) Records(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Record
	for project, changes := range s.doc {
		for changeID, entry := range changes {
			if entry == nil {
				continue
			}
			out = append(out, Record{Project: project, ChangeID: changeID, Commit: entry.LastPushedCommit})
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) Close() error { return nil }

func decodeDocument(data []byte) (Document, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create push history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp push history: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write push history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync push history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close push history: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace push history: %w", err)
	}
	return nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Project != records[j].Project {
			return records[i].Project < records[j].Project
		}
		return records[i].ChangeID < records[j].ChangeID
	})
}
