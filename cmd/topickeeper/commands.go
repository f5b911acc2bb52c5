package topickeeper

import (
	"context"

	"github.com/skaphos/topickeeper/internal/engine"
	"github.com/skaphos/topickeeper/internal/manifest"
)

// Command identifies a manifest-wide command.
type Command int

const (
	CmdSync Command = iota
	CmdStart
	CmdSwitch
	CmdEnd
	CmdForall
	CmdTopic
	CmdPush
	CmdPull
	CmdDownload
	CmdRebase
	CmdRename
	CmdStash
	CmdPop
	commandCount
)

func (c Command) String() string {
	if c < 0 || c >= commandCount {
		return "unknown"
	}
	return commandTable[c].name
}

// repoHandler runs in one repository.
type repoHandler func(ctx context.Context, ws *workspace, entry manifest.Entry) error

// setHandler runs once with the whole set.
type setHandler func(ctx context.Context, ws *workspace, set *manifest.Set) ([]engine.RepoResult, error)

type commandSpec struct {
	name string
	// keepInvalid keeps manifest entries whose directory does not exist yet.
	keepInvalid bool
	// needsGerrit opens the Gerrit client and the push history.
	needsGerrit bool
	repo        repoHandler
	set         setHandler
}

var commandTable = [...]commandSpec{
	CmdSync:     {name: "sync", keepInvalid: true, repo: runSync},
	CmdStart:    {name: "start", repo: runStart},
	CmdSwitch:   {name: "switch", repo: runSwitch},
	CmdEnd:      {name: "end", repo: runEnd},
	CmdForall:   {name: "forall", repo: runForall},
	CmdTopic:    {name: "topic", set: runTopic},
	CmdPush:     {name: "push", needsGerrit: true, repo: runPush},
	CmdPull:     {name: "pull", needsGerrit: true, repo: runPull},
	CmdDownload: {name: "download", repo: runDownload},
	CmdRebase:   {name: "rebase", repo: runRebase},
	CmdRename:   {name: "rename", repo: runRename},
	CmdStash:    {name: "stash", repo: runStash},
	CmdPop:      {name: "pop", repo: runPop},
}

// Fails to compile unless commandTable has exactly one row per Command.
var _ = [1]struct{}{}[len(commandTable)-int(commandCount)]
