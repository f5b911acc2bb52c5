package gerrit

import "sort"

// Query options accepted by GetChange.
const (
	OptionCurrentRevision = "CURRENT_REVISION"
	OptionAllRevisions    = "ALL_REVISIONS"
)

// Change is the subset of a Gerrit ChangeInfo TopicKeeper reads.
type Change struct {
	ID              string               `json:"id"`
	Project         string               `json:"project"`
	Branch          string               `json:"branch"`
	ChangeID        string               `json:"change_id"`
	Subject         string               `json:"subject,omitempty"`
	Status          string               `json:"status,omitempty"`
	Topic           string               `json:"topic,omitempty"`
	Number          int                  `json:"_number,omitempty"`
	CurrentRevision string               `json:"current_revision,omitempty"`
	Revisions       map[string]*Revision `json:"revisions,omitempty"`
}

// Revision is a Gerrit RevisionInfo, keyed by commit hash in Change.Revisions.
type Revision struct {
	Number int               `json:"_number"`
	Ref    string            `json:"ref,omitempty"`
	Fetch  map[string]*Fetch `json:"fetch,omitempty"`
}

// Fetch is a Gerrit FetchInfo: where a revision can be downloaded from.
type Fetch struct {
	URL string `json:"url"`
	Ref string `json:"ref"`
}

// HasRevision reports whether commit is one of the change's known patch sets.
func (c *Change) HasRevision(commit string) bool {
	if c == nil || commit == "" {
		return false
	}
	_, ok := c.Revisions[commit]
	return ok
}

// FetchInfo returns how to download revision commit. The preferred protocol
// is used when advertised; otherwise the first advertised protocol in sorted
// order wins.
func (c *Change) FetchInfo(commit, protocol string) (Fetch, bool) {
	if c == nil {
		return Fetch{}, false
	}
	rev, ok := c.Revisions[commit]
	if !ok || rev == nil || len(rev.Fetch) == 0 {
		return Fetch{}, false
	}
	if f, ok := rev.Fetch[protocol]; ok && f != nil {
		return *f, true
	}
	names := make([]string, 0, len(rev.Fetch))
	for name := range rev.Fetch {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if f := rev.Fetch[name]; f != nil {
			return *f, true
		}
	}
	return Fetch{}, false
}
