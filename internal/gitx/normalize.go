package gitx

import (
	"net/url"
	"sort"
	"strings"

	"github.com/skaphos/topickeeper/internal/model"
)

// NormalizeURL converts a git remote URL into a canonical repo_id.
//
// Rules:
//   - Strip protocol (https://, git://, ssh://) and user (git@)
//   - Convert git@host:path to host/path
//   - Lowercase the host portion
//   - Strip trailing ".git"
//   - Strip trailing slashes
//
// Examples:
//
//	git@github.com:Org/Repo.git  → github.com/Org/Repo
//	https://github.com/Org/Repo.git → github.com/Org/Repo
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	var host, path string

	// Handle SSH shorthand: git@host:path
	if i := strings.Index(rawURL, "@"); i >= 0 && !strings.Contains(rawURL[:i], "://") {
		// SSH shorthand like git@github.com:Org/Repo.git
		rest := rawURL[i+1:]
		if colonIdx := strings.Index(rest, ":"); colonIdx >= 0 {
			host = rest[:colonIdx]
			path = rest[colonIdx+1:]
		}
	} else {
		// URL with protocol
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return rawURL
		}
		host = parsed.Hostname()
		path = strings.TrimPrefix(parsed.Path, "/")
	}

	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimRight(path, "/")

	if host == "" {
		return path
	}
	return host + "/" + path
}

// ProjectFromURL returns the Gerrit project name addressed by a remote URL:
// the URL path without its leading slash or trailing ".git". On http and
// https URLs the "a/" prefix Gerrit uses for authenticated access is dropped
// too; elsewhere "a" is an ordinary project directory.
//
// Examples:
//
//	ssh://me@review.example.com:29418/tools/build → tools/build
//	https://review.example.com/a/tools/build.git → tools/build
//	ssh://review.example.com:29418/a/tools       → a/tools
//	review.example.com:tools/build              → tools/build
func ProjectFromURL(rawURL string) string {
	var path string
	httpAuth := false
	if strings.Contains(rawURL, "://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return ""
		}
		path = parsed.Path
		httpAuth = parsed.Scheme == "http" || parsed.Scheme == "https"
	} else if i := strings.Index(rawURL, ":"); i >= 0 {
		path = rawURL[i+1:]
	} else {
		path = rawURL
	}
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if httpAuth {
		path = strings.TrimPrefix(path, "a/")
	}
	return path
}

// SelectRemote picks the remote to talk to. A non-empty preferred name must
// match a configured remote; otherwise the first listed remote wins, which is
// what git itself treats as the default for a fresh clone.
func SelectRemote(remotes []model.Remote, preferred string) (model.Remote, bool) {
	if len(remotes) == 0 {
		return model.Remote{}, false
	}
	if preferred == "" {
		return remotes[0], true
	}
	for _, r := range remotes {
		if r.Name == preferred {
			return r, true
		}
	}
	return model.Remote{}, false
}

// PrimaryRemote selects the preferred remote from a list.
// Prefers "origin", falls back to first alphabetically.
func PrimaryRemote(remoteNames []string) string {
	if len(remoteNames) == 0 {
		return ""
	}
	for _, name := range remoteNames {
		if name == "origin" {
			return "origin"
		}
	}
	sorted := make([]string, len(remoteNames))
	copy(sorted, remoteNames)
	sort.Strings(sorted)
	return sorted[0]
}
