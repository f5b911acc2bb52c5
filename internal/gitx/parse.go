package gitx

import (
	"strings"
)

// changeIDTrailer is the commit message trailer Gerrit uses to track a change.
const changeIDTrailer = "Change-Id:"

// CherryLine represents a single line from git cherry output.
type CherryLine struct {
	// Unique is true for "+" lines: the commit has no equivalent upstream.
	Unique bool
	Hash   string
}

// ParseCherry parses the output of:
//
//	git cherry <upstream> <head>
//
// Lines look like "+ <sha>" or "- <sha>", oldest commit first.
func ParseCherry(output string) []CherryLine {
	var lines []CherryLine
	for _, line := range nonEmptyLines(output) {
		op, hash, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		hash = strings.TrimSpace(hash)
		if hash == "" {
			continue
		}
		switch op {
		case "+":
			lines = append(lines, CherryLine{Unique: true, Hash: hash})
		case "-":
			lines = append(lines, CherryLine{Unique: false, Hash: hash})
		}
	}
	return lines
}

// ChangeIDFromMessage returns the value of the first Change-Id trailer line
// in a commit message, or "" when there is none.
func ChangeIDFromMessage(message string) string {
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, changeIDTrailer) {
			return strings.TrimSpace(line[len(changeIDTrailer):])
		}
	}
	return ""
}

func nonEmptyLines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
