package gerrit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTopic is returned for topics Gerrit would reject.
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrInvalidPatch is returned for malformed <change>/<patchset> ids.
	ErrInvalidPatch = errors.New("invalid patch id")
)

var patchRE = regexp.MustCompile(`^(\d+)/(\d+)$`)

// PushRefSpec returns the refspec that uploads HEAD for review on branch.
func PushRefSpec(branch string) string {
	return "HEAD:refs/for/" + branch
}

// ValidateTopic rejects topics containing a comma, which git push options
// cannot carry.
func ValidateTopic(topic string) error {
	if strings.Contains(topic, ",") {
		return fmt.Errorf("%w %q: must not contain a comma", ErrInvalidTopic, topic)
	}
	return nil
}

// PushOptions returns the git push -o values for a topic. An empty topic
// yields no options.
func PushOptions(topic string) ([]string, error) {
	if topic == "" {
		return nil, nil
	}
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	return []string{"topic=" + topic}, nil
}

// ImplicitTopic returns the topic derived from a branch name: the branch
// itself when it carries the cross-repository prefix, else "".
func ImplicitTopic(branch, prefix string) string {
	if prefix != "" && strings.HasPrefix(branch, prefix) {
		return branch
	}
	return ""
}

// PatchRef turns "<change>/<patchset>" into the ref Gerrit serves it under,
// refs/changes/<last two digits of change>/<change>/<patchset>.
func PatchRef(patch string) (string, error) {
	m := patchRE.FindStringSubmatch(strings.TrimSpace(patch))
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPatch, patch)
	}
	change := m[1]
	tail := change
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	n, err := strconv.Atoi(tail)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPatch, patch)
	}
	return fmt.Sprintf("refs/changes/%02d/%s/%s", n, change, m[2]), nil
}
