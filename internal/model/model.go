// Package model defines the core data types used throughout TopicKeeper.
package model

// Remote represents a single git remote.
type Remote struct {
	// Name is the configured remote name (for example, "origin").
	Name string `json:"name" yaml:"name"`
	// URL is the remote fetch/push URL.
	URL string `json:"url" yaml:"url"`
}

// Head represents the current HEAD state of a working copy.
type Head struct {
	// Branch is the current branch name. Empty when HEAD is detached.
	Branch string `json:"branch" yaml:"branch"`
	// Commit is the full hash HEAD points at. Empty for unborn branches.
	Commit string `json:"commit" yaml:"commit"`
	// Detached reports whether HEAD is detached.
	Detached bool `json:"detached" yaml:"detached"`
}

// Commit is a single commit with its Change-Id trailer, when present.
type Commit struct {
	// Hash is the full commit hash.
	Hash string `json:"hash" yaml:"hash"`
	// ChangeID is the Gerrit Change-Id found in the message body.
	ChangeID string `json:"change_id,omitempty" yaml:"change_id,omitempty"`
}

// CherrySet is the ordered list of commits unique to one ref relative to
// another, as reported by "git cherry", restricted to commits that carry a
// Change-Id. Order is oldest first.
type CherrySet []Commit

// Contains reports whether a commit with the given Change-Id is in c.
func (c CherrySet) Contains(changeID string) bool {
	for _, commit := range c {
		if commit.ChangeID == changeID {
			return true
		}
	}
	return false
}
