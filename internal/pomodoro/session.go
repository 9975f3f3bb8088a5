package pomodoro

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
)

type SessionConfig struct {
	ChannelID string
	Author    model.Member
	// Settings is owned by the session from here on. Nil means defaults.
	Settings   *Settings
	Surface    Surface
	OutboxSize int
}

// Session is one channel's focus session: a state machine moving between
// work, break and long break intervals. All methods are safe for concurrent
// use; at most one transition commits at a time.
type Session struct {
	mu sync.Mutex

	channelID    string
	author       model.Member
	settings     *Settings
	history      History
	participants *Participants

	state       model.SessionState
	resumeState model.SessionState // only meaningful while paused

	sessionStartedAt      time.Time
	currentStateStartedAt time.Time
	nextTransitionDue     time.Time

	surface Surface
	outbox  *outbox

	handleMu    sync.Mutex
	mainMessage MessageHandle
	pingMessage MessageHandle
}

// NewSession creates a NOT_STARTED session with the author in its ping party
// and posts the first status message.
func NewSession(cfg SessionConfig, now time.Time) *Session {
	settings := cfg.Settings
	if settings == nil {
		settings = NewSettings()
	}

	s := &Session{
		channelID:    cfg.ChannelID,
		author:       cfg.Author,
		settings:     settings,
		participants: NewParticipants(),
		state:        model.StateNotStarted,
		surface:      cfg.Surface,
		outbox:       newOutbox(cfg.ChannelID, cfg.OutboxSize),
	}
	s.participants.Add(cfg.Author, true, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	embed := s.buildEmbed(now)
	emojis := s.reactionSet()
	s.outbox.enqueue(func(ctx context.Context) {
		s.postStatus(ctx, embed, emojis)
	})
	return s
}

func (s *Session) ChannelID() string {
	return s.channelID
}

func (s *Session) Author() model.Member {
	return s.author
}

func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MessageID is the current status message, empty until the surface has
// confirmed the post.
func (s *Session) MessageID() MessageHandle {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.mainMessage
}

// Settings returns a copy of the session's settings.
func (s *Session) Settings() *Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

func (s *Session) WorkSessionsSinceLastLongBreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.WorkSessionsSinceLastLongBreak()
}

func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.StateNotStarted {
		return apperrors.InvalidArgument("Session is already started")
	}
	s.sessionStartedAt = now
	return s.transition(model.StateWork, "", now, false)
}

func (s *Session) Pause(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.StateNotStarted {
		return apperrors.InvalidArgument("Session not started")
	}
	if !s.state.IsActive() {
		return apperrors.InvalidArgument("Session is already suspended")
	}
	return s.transition(model.StatePaused, "", now, false)
}

func (s *Session) Resume(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.StatePaused {
		return apperrors.InvalidArgument("Session isn't paused so cannot resume")
	}
	if !s.resumeState.IsActive() {
		return apperrors.Internal("Uh oh, I don't remember what we were doing... Sorry")
	}
	return s.transition(s.resumeState, "", now, false)
}

func (s *Session) Stop(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.StateFinished {
		return apperrors.InvalidArgument("Session is already stopped")
	}
	return s.transition(model.StateFinished, "", now, false)
}

// Skip jumps straight to the next active state.
func (s *Session) Skip(now time.Time) error {
	return s.Update(now, true)
}

// Update moves the session on once its current interval is due, or
// immediately when forceNext is set. Otherwise it only refreshes the status
// message. Both member actions and the scheduler end up here.
func (s *Session) Update(now time.Time, forceNext bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(now, forceNext)
}

func (s *Session) update(now time.Time, forceNext bool) error {
	due := !s.nextTransitionDue.IsZero() && !now.Before(s.nextTransitionDue)
	if !forceNext && !due {
		s.refresh(now)
		return nil
	}
	if forceNext && !s.state.IsActive() {
		return apperrors.InvalidArgument("Session is currently suspended, try starting it first")
	}

	// A suspended session that runs out of time has timed out.
	next := model.StateFinished
	if s.state.IsActive() {
		next = s.nextState()
	}

	// Without AUTO, every natural boundary waits for a member to resume.
	if !forceNext && !s.settings.Enabled(model.SettingAuto) && next.IsActive() {
		return s.transition(model.StatePaused, next, now, true)
	}
	return s.transition(next, "", now, false)
}

// transition commits a move to next. resumeTo, when set, overrides the state
// a later resume returns to. Callers hold s.mu.
func (s *Session) transition(next, resumeTo model.SessionState, now time.Time, forceAnnounce bool) error {
	elapsed := 0
	if !s.currentStateStartedAt.IsZero() {
		var err error
		if elapsed, err = MinutesBetween(s.currentStateStartedAt, now); err != nil {
			return err
		}
		s.history.RecordCompleted(elapsed, s.state)
	}

	if next == model.StateFinished {
		s.nextTransitionDue = time.Time{}
	} else {
		s.nextTransitionDue = now.Add(minutes(s.history.NextStateDuration(next, s.settings)))
	}
	if s.state.IsActive() {
		s.resumeState = s.state
	}
	if resumeTo != "" {
		s.resumeState = resumeTo
	}
	previous := s.state
	s.state = next
	s.currentStateStartedAt = now

	log.Debug().
		Str("channel_id", s.channelID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Int("elapsed_minutes", elapsed).
		Time("next_transition_due", s.nextTransitionDue).
		Msg("Session transition")

	s.publish(now, next.IsActive() || forceAnnounce)
	return nil
}

// nextState picks the active state that follows the current one.
func (s *Session) nextState() model.SessionState {
	if s.state != model.StateWork {
		return model.StateWork
	}
	cadence, ok := s.settings.WorkSessionsBeforeLongBreak()
	if ok && s.history.WorkSessionsSinceLastLongBreak()+1 >= cadence {
		return model.StateLongBreak
	}
	return model.StateBreak
}

// AddTime pushes the end of the current interval back.
func (s *Session) AddTime(amount int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, err := s.checkAdjustable(amount, now)
	if err != nil {
		return err
	}
	if remaining+amount >= MaxDuration {
		return apperrors.InvalidArgument("Please enter a number of minutes less than " + strconv.Itoa(MaxDuration-remaining))
	}
	s.nextTransitionDue = s.nextTransitionDue.Add(minutes(amount))
	return s.update(now, false)
}

// RemoveTime brings the end of the current interval forward, always leaving
// at least a minute.
func (s *Session) RemoveTime(amount int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, err := s.checkAdjustable(amount, now)
	if err != nil {
		return err
	}
	if remaining < amount+1 {
		return apperrors.InvalidArgument("There's only " + FormatMinutes(remaining) +
			" left! Can lower it by a maximum of " + FormatMinutes(remaining-1))
	}
	s.nextTransitionDue = s.nextTransitionDue.Add(-minutes(amount))
	return s.update(now, false)
}

func (s *Session) checkAdjustable(amount int, now time.Time) (int, error) {
	if !s.state.IsActive() {
		return 0, apperrors.InvalidArgument("Session is currently suspended")
	}
	if amount <= 0 {
		return 0, apperrors.InvalidArgument("Please enter a number of minutes greater than 0")
	}
	if s.nextTransitionDue.IsZero() {
		return 0, apperrors.Internal("Uh oh, someone forgot to set the timer")
	}
	// An overdue interval has no time left, even before a sweep moves it on.
	if !now.Before(s.nextTransitionDue) {
		return 0, nil
	}
	return MinutesBetween(now, s.nextTransitionDue)
}

// ResetCurrentInterval restarts the current interval with its full
// configured length, ignoring time already spent.
func (s *Session) ResetCurrentInterval(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive() {
		return apperrors.InvalidArgument("Session is currently suspended")
	}
	s.nextTransitionDue = now.Add(minutes(s.settings.StateDuration(s.state)))
	s.refresh(now)
	return nil
}

// TimeLeft describes how long until the next state, e.g. "25 mins until break".
func (s *Session) TimeLeft(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive() {
		if s.state == model.StateNotStarted {
			return "", apperrors.InvalidArgument("Session not started")
		}
		return "", apperrors.InvalidArgument("Session is currently suspended")
	}
	if s.nextTransitionDue.IsZero() {
		return "", apperrors.Internal("Uh oh, someone forgot to set the timer")
	}
	return FormatMinutes(s.remainingMinutes(now)) + " until " + s.nextState().Phrase(), nil
}

// EditSettings applies argument text to a live session. Invalid text leaves
// the settings untouched.
func (s *Session) EditSettings(args string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edited := s.settings.Clone()
	if err := edited.SetFromArguments(args); err != nil {
		return err
	}
	s.settings = edited
	return s.update(now, false)
}

func (s *Session) Join(member model.Member, ping bool, status string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants.Add(member, ping, status)
	return s.update(now, false)
}

func (s *Session) Leave(memberID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants.Remove(memberID)
	return s.update(now, false)
}

func (s *Session) SettingsText(short bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsText(short)
}

// RemoveReaction takes a member's reaction off the status message.
func (s *Session) RemoveReaction(emoji, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox.enqueue(func(ctx context.Context) {
		handle := s.MessageID()
		if handle == "" {
			return
		}
		if err := s.surface.RemoveReaction(ctx, handle, emoji, memberID); err != nil {
			s.logSurfaceError(err, "remove reaction")
		}
	})
}

// remainingMinutes is 0 once the due instant has passed.
func (s *Session) remainingMinutes(now time.Time) int {
	if s.nextTransitionDue.IsZero() || !now.Before(s.nextTransitionDue) {
		return 0
	}
	remaining, err := MinutesBetween(now, s.nextTransitionDue)
	if err != nil {
		return 0
	}
	return remaining
}

type View struct {
	ChannelID                  string             `json:"channelId"`
	Author                     model.Member       `json:"author"`
	State                      model.SessionState `json:"state"`
	ResumeState                model.SessionState `json:"resumeState,omitempty"`
	Description                string             `json:"description"`
	RemainingMinutes           *int               `json:"remainingMinutes,omitempty"`
	NextTransitionDue          *time.Time         `json:"nextTransitionDue,omitempty"`
	CurrentStateStartedAt      *time.Time         `json:"currentStateStartedAt,omitempty"`
	SessionStartedAt           *time.Time         `json:"sessionStartedAt,omitempty"`
	Stats                      Stats              `json:"stats"`
	WorkSessionsSinceLongBreak int                `json:"workSessionsSinceLongBreak"`
	Participants               []Participant      `json:"participants"`
	Settings                   SettingsView       `json:"settings"`
	MessageID                  MessageHandle      `json:"messageId,omitempty"`
	ServerTime                 time.Time          `json:"serverTime"`
}

func (s *Session) View(now time.Time) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ChannelID:                  s.channelID,
		Author:                     s.author,
		State:                      s.state,
		Description:                s.describeState(now),
		Stats:                      s.history.CompletedStats(s.minutesInCurrentState(now), s.state),
		WorkSessionsSinceLongBreak: s.history.WorkSessionsSinceLastLongBreak(),
		Participants:               s.participants.List(),
		Settings:                   s.settings.View(),
		MessageID:                  s.MessageID(),
		ServerTime:                 now,
	}
	if s.state == model.StatePaused {
		view.ResumeState = s.resumeState
	}
	if s.state.IsActive() {
		remaining := s.remainingMinutes(now)
		view.RemainingMinutes = &remaining
	}
	view.NextTransitionDue = timePtr(s.nextTransitionDue)
	view.CurrentStateStartedAt = timePtr(s.currentStateStartedAt)
	view.SessionStartedAt = timePtr(s.sessionStartedAt)
	return view
}

func (s *Session) minutesInCurrentState(now time.Time) int {
	if s.currentStateStartedAt.IsZero() {
		return 0
	}
	elapsed, err := MinutesBetween(s.currentStateStartedAt, now)
	if err != nil {
		return 0
	}
	return elapsed
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
