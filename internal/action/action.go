package action

import (
	"fmt"
	"strings"
)

// Action is the closed set of control actions shared by input dispatch,
// performance replay and phrases.
type Action int

const (
	None Action = iota

	// Transport
	Play
	Stop
	Pause

	// Navigation. Param is the order or pattern index where one is needed.
	NextOrder
	PrevOrder
	JumpToOrder
	JumpToPattern
	QueueOrder
	QueuePattern

	// Loop control
	PatternMode // Value != 0 enables pattern loop
	SetLoopRows // Param = rows, 0 restores full pattern length
	LoopTillRow // Param = target row
	Retrigger

	// Channel control. Param is the channel index.
	ChannelMute
	ChannelSolo
	ChannelVolume // Value in [0,1]
	MuteAll
	UnmuteAll

	// Pitch
	SetPitch // Value is the multiplier
	PitchUp
	PitchDown
	PitchReset

	// Effects. Param is an effects stage (toggle) or parameter id.
	EffectToggle
	EffectParam // Value normalized to [0,1]

	// Phrase and performance
	TriggerPhrase // Param is the phrase index
	StopPhrase
	PerformanceRecord
	PerformancePlay
	PerformanceReset

	numActions
)

var names = [numActions]string{
	None:              "none",
	Play:              "play",
	Stop:              "stop",
	Pause:             "pause",
	NextOrder:         "next_order",
	PrevOrder:         "prev_order",
	JumpToOrder:       "jump_order",
	JumpToPattern:     "jump_pattern",
	QueueOrder:        "queue_order",
	QueuePattern:      "queue_pattern",
	PatternMode:       "pattern_mode",
	SetLoopRows:       "loop_rows",
	LoopTillRow:       "loop_till_row",
	Retrigger:         "retrigger",
	ChannelMute:       "channel_mute",
	ChannelSolo:       "channel_solo",
	ChannelVolume:     "channel_volume",
	MuteAll:           "mute_all",
	UnmuteAll:         "unmute_all",
	SetPitch:          "pitch",
	PitchUp:           "pitch_up",
	PitchDown:         "pitch_down",
	PitchReset:        "pitch_reset",
	EffectToggle:      "effect_toggle",
	EffectParam:       "effect_param",
	TriggerPhrase:     "phrase",
	StopPhrase:        "phrase_stop",
	PerformanceRecord: "perf_record",
	PerformancePlay:   "perf_play",
	PerformanceReset:  "perf_reset",
}

func (a Action) String() string {
	if a >= 0 && a < numActions {
		return names[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is a known, non-empty action.
func (a Action) Valid() bool {
	return a > None && a < numActions
}

// Replayable reports whether a may be executed from performance playback.
// Phrase triggers and the performance transport itself are suppressed so
// playback cannot feed back into the timeline.
func (a Action) Replayable() bool {
	switch a {
	case TriggerPhrase, StopPhrase, PerformanceRecord, PerformancePlay, PerformanceReset:
		return false
	}
	return a.Valid()
}

// Recordable reports whether a user-issued a is captured by recording.
func (a Action) Recordable() bool {
	return a.Replayable()
}

// Parse resolves an action name as produced by String.
func Parse(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name && Action(i) != None {
			return Action(i), nil
		}
	}
	return None, fmt.Errorf("unknown action %q", name)
}

// Source tags where an executed action came from.
type Source int

const (
	SourceUser Source = iota
	SourcePlayback
	SourcePhrase
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourcePlayback:
		return "playback"
	case SourcePhrase:
		return "phrase"
	}
	return "unknown"
}

// Func executes one action. Exactly one is registered by the host.
type Func func(a Action, param int, value float64, src Source)
