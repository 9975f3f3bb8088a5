package pomodoro

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"focusbot/internal/model"
)

const (
	embedTitlePrefix   = "Pomodoro Timer - "
	settingsSeparator  = "・"
	startedPlaceholder = "--:--"
)

// publish queues the status message update for a committed transition.
// Announcing posts a fresh ping and status message instead of editing the
// old one. Callers hold s.mu.
func (s *Session) publish(now time.Time, announce bool) {
	embed := s.buildEmbed(now)
	emojis := s.reactionSet()
	if announce {
		ping := s.pingText()
		deleteOld := s.settings.Enabled(model.SettingDelete)
		s.outbox.enqueue(func(ctx context.Context) {
			s.announce(ctx, ping, embed, emojis, deleteOld)
		})
	} else {
		s.outbox.enqueue(func(ctx context.Context) {
			s.editStatus(ctx, embed, emojis, true)
		})
	}
	if s.state == model.StateFinished {
		s.outbox.close()
	}
}

// refresh re-renders the status message in place. Callers hold s.mu.
func (s *Session) refresh(now time.Time) {
	embed := s.buildEmbed(now)
	s.outbox.enqueue(func(ctx context.Context) {
		s.editStatus(ctx, embed, nil, false)
	})
}

func (s *Session) reactionSet() []string {
	emojis, err := AvailableEmojis(s.state)
	if err != nil {
		log.Error().Err(err).Str("channel_id", s.channelID).Str("state", string(s.state)).Msg("Failed to build reaction set")
		return nil
	}
	return emojis
}

func (s *Session) announce(ctx context.Context, ping string, embed Embed, emojis []string, deleteOld bool) {
	s.handleMu.Lock()
	oldPing, oldMain := s.pingMessage, s.mainMessage
	s.handleMu.Unlock()

	pingHandle, err := s.surface.PostStatus(ctx, s.channelID, Message{Text: ping})
	if err != nil {
		s.logSurfaceError(err, "post ping")
	}
	mainHandle := s.postStatus(ctx, embed, emojis)

	s.handleMu.Lock()
	s.pingMessage = pingHandle
	s.handleMu.Unlock()

	if !deleteOld {
		return
	}
	stale := []MessageHandle{oldPing}
	if mainHandle != "" {
		stale = append(stale, oldMain)
	}
	for _, handle := range stale {
		if handle == "" || handle == pingHandle || handle == mainHandle {
			continue
		}
		if err := s.surface.DeleteMessage(ctx, handle); err != nil {
			s.logSurfaceError(err, "delete old message")
		}
	}
}

// postStatus posts a new status message and makes it the main message. The
// previous handle is kept when the post fails.
func (s *Session) postStatus(ctx context.Context, embed Embed, emojis []string) MessageHandle {
	handle, err := s.surface.PostStatus(ctx, s.channelID, Message{Embed: &embed})
	if err != nil {
		s.logSurfaceError(err, "post status")
		return ""
	}
	s.handleMu.Lock()
	s.mainMessage = handle
	s.handleMu.Unlock()

	s.addReactions(ctx, handle, emojis)
	return handle
}

func (s *Session) editStatus(ctx context.Context, embed Embed, emojis []string, syncReactions bool) {
	handle := s.MessageID()
	if handle == "" {
		return
	}
	if err := s.surface.EditStatus(ctx, handle, Message{Embed: &embed}); err != nil {
		s.logSurfaceError(err, "edit status")
		return
	}
	if !syncReactions {
		return
	}
	if err := s.surface.ClearReactions(ctx, handle); err != nil {
		s.logSurfaceError(err, "clear reactions")
	}
	s.addReactions(ctx, handle, emojis)
}

func (s *Session) addReactions(ctx context.Context, handle MessageHandle, emojis []string) {
	for _, emoji := range emojis {
		if err := s.surface.AddReaction(ctx, handle, emoji); err != nil {
			s.logSurfaceError(err, "add reaction")
			return
		}
	}
}

func (s *Session) logSurfaceError(err error, action string) {
	log.Warn().Err(err).Str("channel_id", s.channelID).Str("action", action).Msg("Messaging request failed")
}

func (s *Session) buildEmbed(now time.Time) Embed {
	pingTitle := "Ping party"
	if !s.settings.Enabled(model.SettingPings) {
		pingTitle += " (off)"
	}

	embed := Embed{
		Title:       embedTitlePrefix + s.state.Title(),
		Description: s.describeState(now),
		Fields: []EmbedField{
			{Name: pingTitle, Value: s.participants.NameList(), Inline: true},
			{Name: "People are working on", Value: s.participants.StatusList(), Inline: true},
			{Name: "", Value: "", Inline: true},
			{Name: "Completed Stats", Value: s.statsText(now), Inline: true},
			{Name: "Session Settings", Value: s.settingsText(true), Inline: true},
		},
		Footer: s.footerText(),
		Colour: s.state.Colour(),
	}
	if s.settings.Enabled(model.SettingImages) {
		embed.Image = s.state.DefaultImage()
	}
	return embed
}

func (s *Session) describeState(now time.Time) string {
	switch s.state {
	case model.StateNotStarted:
		return "Timer not started"
	case model.StateFinished:
		return "Session completed"
	case model.StatePaused:
		if !s.resumeState.IsActive() {
			return "Session is paused"
		}
		return "Session is paused, resume for " + s.resumeState.Phrase()
	}

	next := s.nextState()
	text := FormatMinutes(s.remainingMinutes(now)) + " until " + next.Phrase()
	cadence, ok := s.settings.WorkSessionsBeforeLongBreak()
	if !ok || next == model.StateLongBreak {
		return text
	}

	left := cadence - s.history.WorkSessionsSinceLastLongBreak()
	suffix := ""
	if s.state == model.StateWork {
		left--
		suffix = " (not including this one)"
	}
	if left < 0 {
		left = 0
	}
	noun := "work sessions"
	if left == 1 {
		noun = "work session"
	}
	return fmt.Sprintf("%s\n%d %s until long break%s", text, left, noun, suffix)
}

func (s *Session) statsText(now time.Time) string {
	started := startedPlaceholder
	if !s.sessionStartedAt.IsZero() {
		started = s.sessionStartedAt.Format(s.settings.DateTimeLayout())
	}
	stats := s.history.CompletedStats(s.minutesInCurrentState(now), s.state)
	return fmt.Sprintf("Started: %s\nCompleted work sessions: %d\nTotal study time: %s",
		started, stats.CompletedWorkSessions, FormatMinutes(stats.StudyMinutes))
}

// settingsText summarises durations; the long form also lists the toggles,
// striking through the ones that are off.
func (s *Session) settingsText(short bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work: %s, Break: %s",
		FormatMinutes(s.settings.StateDuration(model.StateWork)),
		FormatMinutes(s.settings.StateDuration(model.StateBreak)))

	if cadence, ok := s.settings.WorkSessionsBeforeLongBreak(); ok {
		fmt.Fprintf(&b, "\nWork sessions before long break: %d, Long break: %s",
			cadence, FormatMinutes(s.settings.StateDuration(model.StateLongBreak)))
	} else {
		b.WriteString("\nLong break not set")
	}
	b.WriteString("\nSession created by: " + s.author.Name)

	if short {
		return b.String()
	}
	labels := make([]string, 0, len(model.BooleanSettings))
	for _, setting := range model.BooleanSettings {
		if s.settings.Enabled(setting) {
			labels = append(labels, setting.Label())
		} else {
			labels = append(labels, "~~"+setting.Label()+"~~")
		}
	}
	b.WriteString("\n" + strings.Join(labels, settingsSeparator))
	return b.String()
}

func (s *Session) pingText() string {
	var b strings.Builder
	b.WriteString(":clap: *Bangs Pots* :clap:")
	if s.settings.Enabled(model.SettingPings) {
		if mentions := s.participants.MentionList(); mentions != "" {
			b.WriteString("\n" + mentions)
		}
	}
	if s.state == model.StatePaused && s.resumeState.IsActive() {
		fmt.Fprintf(&b, "\nIt's %s time! Resume when you're ready.", s.resumeState.Phrase())
	} else {
		fmt.Fprintf(&b, "\nIt's %s time!", s.state.Phrase())
	}
	return b.String()
}

func (s *Session) footerText() string {
	actions := AvailableActions(s.state)
	if len(actions) == 0 {
		return ""
	}
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}
	return "Commands: " + strings.Join(names, ", ")
}
