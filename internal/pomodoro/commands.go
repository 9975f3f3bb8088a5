package pomodoro

import (
	"sort"
	"strings"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
)

type Command string

const (
	CommandNew           Command = "new"
	CommandJoin          Command = "join"
	CommandLeave         Command = "leave"
	CommandEdit          Command = "edit"
	CommandTime          Command = "time"
	CommandStart         Command = "start"
	CommandPause         Command = "pause"
	CommandResume        Command = "resume"
	CommandSkip          Command = "skip"
	CommandReset         Command = "reset"
	CommandBump          Command = "bump"
	CommandBigBump       Command = "big bump"
	CommandLower         Command = "lower"
	CommandBigLower      Command = "big lower"
	CommandStop          Command = "stop"
	CommandSettings      Command = "settings"
	CommandTemplateSave  Command = "template save"
	CommandTemplateClear Command = "template clear"
	CommandBan           Command = "ban"
	CommandUnban         Command = "unban"
)

const (
	DefaultShortBump = 5
	DefaultBigBump   = 20
)

const (
	EmojiPlay       = "▶"
	EmojiPause      = "⏸"
	EmojiStop       = "⏹"
	EmojiSkip       = "⏩"
	EmojiReset      = "🔄"
	EmojiUp         = "🔼"
	EmojiDown       = "🔽"
	EmojiDoubleUp   = "⏫"
	EmojiDoubleDown = "⏬"
	EmojiJoin       = "🙋"
	EmojiLeave      = "🙅"
)

// CommandSpec describes how a command is offered to members. Commands with
// an emoji can also be triggered by reacting to the status message.
type CommandSpec struct {
	Description string
	Arguments   string
	Emoji       string
	Priority    int
	// RemoveAfterUse takes the member's reaction off again so the emoji can
	// be pressed repeatedly.
	RemoveAfterUse bool
	AdminOnly      bool
}

const settingsArguments = "[work time] [break time] [{long break time} {work sessions before long break}] [pings:on] [auto:on] [delete:on] [images:on] [date:on]"

// commandOrder is the help order and the tie breaker for equal priorities.
var commandOrder = []Command{
	CommandNew, CommandJoin, CommandLeave, CommandEdit, CommandTime, CommandStart, CommandPause,
	CommandResume, CommandSkip, CommandReset, CommandBump, CommandBigBump, CommandLower,
	CommandBigLower, CommandStop, CommandSettings, CommandTemplateSave, CommandTemplateClear,
	CommandBan, CommandUnban,
}

var commandTable = map[Command]CommandSpec{
	CommandNew:      {Description: "Create a new pomodoro session", Arguments: settingsArguments},
	CommandJoin:     {Description: "Join the ping party and let everyone know what you're working on", Arguments: "[noPing] [currently working on]", Emoji: EmojiJoin, Priority: 10, RemoveAfterUse: true},
	CommandLeave:    {Description: "Leave the ping party, also removes your 'working on' text from the list", Emoji: EmojiLeave, Priority: 12, RemoveAfterUse: true},
	CommandEdit:     {Description: "Update session settings", Arguments: settingsArguments},
	CommandTime:     {Description: "Gives the time left in the current state"},
	CommandStart:    {Description: "Start the timer", Emoji: EmojiPlay, Priority: 0},
	CommandPause:    {Description: "Pause the session", Emoji: EmojiPause, Priority: 5},
	CommandResume:   {Description: "Resume a paused session", Emoji: EmojiPlay, Priority: 5},
	CommandSkip:     {Description: "Skip to the next state", Emoji: EmojiSkip, Priority: 3},
	CommandReset:    {Description: "Restart the timer for the current state", Emoji: EmojiReset, Priority: 19, RemoveAfterUse: true},
	CommandBump:     {Description: "Increase the length of the current timer (default 5)", Arguments: "[minutes]", Emoji: EmojiUp, Priority: 12, RemoveAfterUse: true},
	CommandBigBump:  {Description: "Increase the length of the current timer (default 20)", Arguments: "[minutes]", Emoji: EmojiDoubleUp, Priority: 13, RemoveAfterUse: true},
	CommandLower:    {Description: "Decrease the length of the current timer (default 5)", Arguments: "[minutes]", Emoji: EmojiDown, Priority: 14, RemoveAfterUse: true},
	CommandBigLower: {Description: "Decrease the length of the current timer (default 20)", Arguments: "[minutes]", Emoji: EmojiDoubleDown, Priority: 15, RemoveAfterUse: true},
	CommandStop:     {Description: "Ends the session", Emoji: EmojiStop, Priority: 20},
	CommandSettings: {Description: "Get the current session settings"},

	CommandTemplateSave:  {Description: "Use this session's settings as the channel default for new sessions", AdminOnly: true},
	CommandTemplateClear: {Description: "Forget the channel's default settings", AdminOnly: true},
	CommandBan:           {Description: "Ban members from posting statuses", Arguments: "@member...", AdminOnly: true},
	CommandUnban:         {Description: "Unban members from posting statuses", Arguments: "@member...", AdminOnly: true},
}

var commandRank = func() map[Command]int {
	rank := make(map[Command]int, len(commandOrder))
	for i, command := range commandOrder {
		rank[command] = i
	}
	return rank
}()

// ParseCommand matches a command name case-insensitively; underscores and
// repeated spaces are accepted in multi-word names.
func ParseCommand(name string) (Command, CommandSpec, bool) {
	normalized := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(name), "_", " ")), " ")
	command := Command(normalized)
	spec, ok := commandTable[command]
	return command, spec, ok
}

func Spec(command Command) (CommandSpec, bool) {
	spec, ok := commandTable[command]
	return spec, ok
}

// Commands lists every command in help order.
func Commands() []Command {
	out := make([]Command, len(commandOrder))
	copy(out, commandOrder)
	return out
}

// AvailableActions lists the emoji commands that make sense in state.
func AvailableActions(state model.SessionState) []Command {
	if state == model.StateFinished {
		return nil
	}
	actions := []Command{CommandJoin, CommandLeave, CommandStop}
	switch state {
	case model.StateWork, model.StateBreak, model.StateLongBreak:
		actions = append(actions, CommandPause, CommandSkip, CommandReset,
			CommandBump, CommandBigBump, CommandLower, CommandBigLower)
	case model.StateNotStarted:
		actions = append(actions, CommandStart)
	case model.StatePaused:
		actions = append(actions, CommandResume)
	}
	return actions
}

// AvailableEmojis is the reaction set for a status message in state, ordered
// by priority.
func AvailableEmojis(state model.SessionState) ([]string, error) {
	actions := AvailableActions(state)
	sort.SliceStable(actions, func(i, j int) bool {
		pi, pj := commandTable[actions[i]].Priority, commandTable[actions[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return commandRank[actions[i]] < commandRank[actions[j]]
	})

	emojis := make([]string, 0, len(actions))
	seen := make(map[string]Command, len(actions))
	for _, action := range actions {
		emoji := commandTable[action].Emoji
		if emoji == "" {
			return nil, apperrors.Internal("command " + string(action) + " has no emoji")
		}
		if other, ok := seen[emoji]; ok {
			return nil, apperrors.Internal("ambiguous emoji " + emoji + " for " + string(other) + " and " + string(action))
		}
		seen[emoji] = action
		emojis = append(emojis, emoji)
	}
	return emojis, nil
}

// CommandForEmoji resolves a reaction. Emojis shared between commands (▶ is
// both start and resume) are resolved against the actions available in state.
func CommandForEmoji(emoji string, state model.SessionState) (Command, bool) {
	var candidates []Command
	for _, command := range commandOrder {
		if commandTable[command].Emoji == emoji {
			candidates = append(candidates, command)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}
	for _, action := range AvailableActions(state) {
		for _, candidate := range candidates {
			if action == candidate {
				return candidate, true
			}
		}
	}
	return "", false
}
