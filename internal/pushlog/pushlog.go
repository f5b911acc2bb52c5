// SPDX-License-Identifier: MIT
// Package pushlog persists the last commit pushed for review per project and
// Change-Id. It is read before push/pull decisions and written only after a
// push succeeds. One process at a time is assumed.
package pushlog

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	// DataDir is the hidden per-workspace directory holding the history.
	DataDir = ".topickeeper"
	// FileName is the JSON history document inside DataDir.
	FileName = "data"
	// DBName is the SQLite history database inside DataDir.
	DBName = "history.db"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Record is one remembered push.
type Record struct {
	Project  string `json:"project" yaml:"project"`
	ChangeID string `json:"change_id" yaml:"change_id"`
	Commit   string `json:"commit" yaml:"commit"`
}

// Store is the push-history contract used by the review state machine.
type Store interface {
	// LastPushed returns the recorded commit, or "" when nothing was pushed.
	LastPushed(ctx context.Context, project, changeID string) (string, error)
	// RecordPush remembers commit and persists the store.
	RecordPush(ctx context.Context, project, changeID, commit string) error
	// Records lists every remembered push ordered by project then Change-Id.
	Records(ctx context.Context) ([]Record, error)
	Close() error
}

// Open returns the history store for the workspace rooted at root.
func Open(root, driver string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return OpenFile(filepath.Join(root, DataDir, FileName))
	case DriverSQLite:
		return OpenSQLite(filepath.Join(root, DataDir, DBName))
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}
}
