package playback

// CommandKind discriminates Command.
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdQueueOrder
	CmdQueuePattern
	CmdJumpToOrder
	CmdJumpToPattern
	CmdSetLoopRows
	CmdLoopTillRow
	CmdToggleMute
	CmdToggleSolo
	CmdSetVolume
	CmdMuteAll
	CmdUnmuteAll
	CmdSetPitch
	CmdSetPatternMode
	CmdRetrigger
)

var commandNames = [...]string{
	CmdNone:           "none",
	CmdQueueOrder:     "queue-order",
	CmdQueuePattern:   "queue-pattern",
	CmdJumpToOrder:    "jump-to-order",
	CmdJumpToPattern:  "jump-to-pattern",
	CmdSetLoopRows:    "set-loop-rows",
	CmdLoopTillRow:    "loop-till-row",
	CmdToggleMute:     "toggle-mute",
	CmdToggleSolo:     "toggle-solo",
	CmdSetVolume:      "set-volume",
	CmdMuteAll:        "mute-all",
	CmdUnmuteAll:      "unmute-all",
	CmdSetPitch:       "set-pitch",
	CmdSetPatternMode: "set-pattern-mode",
	CmdRetrigger:      "retrigger",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Command is a control request carried from the control context to the
// render context. It is a plain value so enqueueing never allocates.
// Arg is the order, pattern, row count, row or channel depending on Kind.
type Command struct {
	Kind  CommandKind
	Arg   int
	Value float64
}

func QueueOrder(order int) Command     { return Command{Kind: CmdQueueOrder, Arg: order} }
func QueuePattern(pattern int) Command { return Command{Kind: CmdQueuePattern, Arg: pattern} }
func JumpToOrder(order int) Command    { return Command{Kind: CmdJumpToOrder, Arg: order} }
func JumpToPattern(pattern int) Command {
	return Command{Kind: CmdJumpToPattern, Arg: pattern}
}

// SetLoopRows overrides the pattern loop length; 0 restores the full pattern.
func SetLoopRows(rows int) Command { return Command{Kind: CmdSetLoopRows, Arg: rows} }

// LoopTillRow loops the current pattern until row is reached on the next pass.
func LoopTillRow(row int) Command { return Command{Kind: CmdLoopTillRow, Arg: row} }

func ToggleMute(channel int) Command { return Command{Kind: CmdToggleMute, Arg: channel} }
func ToggleSolo(channel int) Command { return Command{Kind: CmdToggleSolo, Arg: channel} }

func SetVolume(channel int, volume float64) Command {
	return Command{Kind: CmdSetVolume, Arg: channel, Value: volume}
}

func MuteAll() Command   { return Command{Kind: CmdMuteAll} }
func UnmuteAll() Command { return Command{Kind: CmdUnmuteAll} }

func SetPitch(multiplier float64) Command {
	return Command{Kind: CmdSetPitch, Value: multiplier}
}

func SetPatternMode(enabled bool) Command {
	c := Command{Kind: CmdSetPatternMode}
	if enabled {
		c.Value = 1
	}
	return c
}

func Retrigger() Command { return Command{Kind: CmdRetrigger} }
