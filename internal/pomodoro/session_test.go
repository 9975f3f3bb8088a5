package pomodoro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
)

func TestNewSessionPostsStatus(t *testing.T) {
	session, surface := newTestSession(t, "")
	session.flush(t)

	assert.Equal(t, model.StateNotStarted, session.State())
	require.Equal(t, 1, surface.postCount())

	post := surface.lastPost()
	require.NotNil(t, post.Embed)
	assert.Equal(t, "Pomodoro Timer - NOT STARTED", post.Embed.Title)
	assert.Equal(t, "Timer not started", post.Embed.Description)
	assert.Equal(t, "ada", post.Embed.Fields[0].Value)
	assert.Equal(t, model.ColourOrange, post.Embed.Colour)

	handle := session.MessageID()
	assert.Equal(t, MessageHandle("msg-1"), handle)
	assert.Equal(t, []string{EmojiPlay, EmojiJoin, EmojiLeave, EmojiStop}, surface.reactionsOn(handle))
}

func TestSessionStartAnnouncesWork(t *testing.T) {
	session, surface := newTestSession(t, "")
	session.flush(t)

	require.NoError(t, session.Start(at(0)))
	session.flush(t)

	assert.Equal(t, model.StateWork, session.State())
	left, err := session.TimeLeft(at(0))
	require.NoError(t, err)
	assert.Equal(t, "25 mins until break", left)

	// Ping, then the new status message; the first status message is deleted.
	require.Equal(t, 3, surface.postCount())
	assert.Contains(t, surface.posts[1].Text, "@ada")
	assert.Contains(t, surface.posts[1].Text, "It's work time!")
	assert.Equal(t, "Pomodoro Timer - WORKING", surface.lastPost().Embed.Title)
	assert.Equal(t, MessageHandle("msg-3"), session.MessageID())
	assert.Equal(t, []MessageHandle{"msg-1"}, surface.deletedHandles())

	err = session.Start(at(1))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArgument(err))
	assert.Equal(t, "Session is already started", err.Error())
}

func TestSessionKeepsOldMessagesWithoutDelete(t *testing.T) {
	session, surface := newTestSession(t, "delete:off")
	require.NoError(t, session.Start(at(0)))
	session.flush(t)

	assert.Empty(t, surface.deletedHandles())
}

func TestSessionNaturalProgression(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))

	// Not due yet.
	require.NoError(t, session.Update(at(24), false))
	assert.Equal(t, model.StateWork, session.State())

	require.NoError(t, session.Update(at(25), false))
	assert.Equal(t, model.StateBreak, session.State())
	left, err := session.TimeLeft(at(25))
	require.NoError(t, err)
	assert.Equal(t, "10 mins until work", left)

	require.NoError(t, session.Update(at(35), false))
	assert.Equal(t, model.StateWork, session.State())

	view := session.View(at(45))
	assert.Equal(t, 1, view.Stats.CompletedWorkSessions)
	assert.Equal(t, 35, view.Stats.StudyMinutes)
}

func TestSessionLongBreakCadence(t *testing.T) {
	session, _ := newTestSession(t, "25 10 15 2")
	require.NoError(t, session.Start(at(0)))

	left, err := session.TimeLeft(at(0))
	require.NoError(t, err)
	assert.Equal(t, "25 mins until break", left)

	require.NoError(t, session.Update(at(25), false))
	assert.Equal(t, model.StateBreak, session.State())
	require.NoError(t, session.Update(at(35), false))
	assert.Equal(t, model.StateWork, session.State())

	left, err = session.TimeLeft(at(35))
	require.NoError(t, err)
	assert.Equal(t, "25 mins until long break", left)

	require.NoError(t, session.Update(at(60), false))
	assert.Equal(t, model.StateLongBreak, session.State())
	left, err = session.TimeLeft(at(60))
	require.NoError(t, err)
	assert.Equal(t, "15 mins until work", left)

	require.NoError(t, session.Update(at(75), false))
	assert.Equal(t, model.StateWork, session.State())
	assert.Equal(t, 0, session.WorkSessionsSinceLastLongBreak())
}

func TestSessionDescriptionCountsDownToLongBreak(t *testing.T) {
	session, _ := newTestSession(t, "25 10 15 3")
	require.NoError(t, session.Start(at(0)))

	view := session.View(at(0))
	assert.Equal(t, "25 mins until break\n2 work sessions until long break (not including this one)", view.Description)

	require.NoError(t, session.Update(at(25), false))
	view = session.View(at(25))
	assert.Equal(t, "10 mins until work\n2 work sessions until long break", view.Description)
}

func TestSessionPauseResumeKeepsRemainingTime(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))

	require.NoError(t, session.Pause(at(10)))
	assert.Equal(t, model.StatePaused, session.State())

	err := session.Pause(at(11))
	require.Error(t, err)
	assert.Equal(t, "Session is already suspended", err.Error())

	_, err = session.TimeLeft(at(11))
	require.Error(t, err)
	assert.Equal(t, "Session is currently suspended", err.Error())

	require.NoError(t, session.Resume(at(20)))
	assert.Equal(t, model.StateWork, session.State())

	left, err := session.TimeLeft(at(20))
	require.NoError(t, err)
	assert.Equal(t, "15 mins until break", left)

	// WORK, PAUSED, WORK is still one work session.
	require.NoError(t, session.Update(at(35), false))
	assert.Equal(t, model.StateBreak, session.State())
	view := session.View(at(35))
	assert.Equal(t, 1, view.Stats.CompletedWorkSessions)
	assert.Equal(t, 25, view.Stats.StudyMinutes)
}

func TestSessionWrongStateErrors(t *testing.T) {
	session, _ := newTestSession(t, "")

	err := session.Pause(at(0))
	require.Error(t, err)
	assert.Equal(t, "Session not started", err.Error())

	err = session.Resume(at(0))
	require.Error(t, err)
	assert.Equal(t, "Session isn't paused so cannot resume", err.Error())

	err = session.Skip(at(0))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArgument(err))
	assert.Equal(t, "Session is currently suspended, try starting it first", err.Error())

	_, err = session.TimeLeft(at(0))
	require.Error(t, err)
	assert.Equal(t, "Session not started", err.Error())

	err = session.AddTime(5, at(0))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestSessionAutoOffWaitsForResume(t *testing.T) {
	session, surface := newTestSession(t, "auto:off")
	require.NoError(t, session.Start(at(0)))

	require.NoError(t, session.Update(at(25), false))
	assert.Equal(t, model.StatePaused, session.State())
	view := session.View(at(25))
	assert.Equal(t, model.StateBreak, view.ResumeState)
	assert.Equal(t, "Session is paused, resume for break", view.Description)

	session.flush(t)
	assert.Contains(t, surface.posts[len(surface.posts)-2].Text, "It's break time! Resume when you're ready.")

	require.NoError(t, session.Resume(at(30)))
	assert.Equal(t, model.StateBreak, session.State())
	left, err := session.TimeLeft(at(30))
	require.NoError(t, err)
	assert.Equal(t, "10 mins until work", left)
}

func TestSessionSkipIgnoresAuto(t *testing.T) {
	session, _ := newTestSession(t, "auto:off")
	require.NoError(t, session.Start(at(0)))

	require.NoError(t, session.Skip(at(3)))
	assert.Equal(t, model.StateBreak, session.State())
}

func TestSessionSuspendedTimeoutFinishes(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))
	require.NoError(t, session.Pause(at(5)))

	require.NoError(t, session.Update(at(64), false))
	assert.Equal(t, model.StatePaused, session.State())

	require.NoError(t, session.Update(at(65), false))
	assert.Equal(t, model.StateFinished, session.State())
	assert.Nil(t, session.View(at(65)).NextTransitionDue)

	// The outbox is closed once finished; flush waits for it to drain.
	session.flush(t)
}

func TestSessionNotStartedTimesOut(t *testing.T) {
	session, _ := newTestSession(t, "")

	// Never started, so nothing is due.
	require.NoError(t, session.Update(at(500), false))
	assert.Equal(t, model.StateNotStarted, session.State())
}

func TestSessionStop(t *testing.T) {
	session, surface := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))
	require.NoError(t, session.Stop(at(12)))
	session.flush(t)

	assert.Equal(t, model.StateFinished, session.State())
	// Finishing edits the status message in place.
	require.NotEmpty(t, surface.edits)
	assert.Equal(t, "Pomodoro Timer - FINISHED", surface.edits[len(surface.edits)-1].Embed.Title)
	assert.Empty(t, surface.reactionsOn(session.MessageID()))

	view := session.View(at(12))
	assert.Equal(t, 12, view.Stats.StudyMinutes)

	err := session.Stop(at(13))
	require.Error(t, err)
	assert.Equal(t, "Session is already stopped", err.Error())
}

func TestSessionAddAndRemoveTime(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))

	require.NoError(t, session.AddTime(5, at(0)))
	left, err := session.TimeLeft(at(0))
	require.NoError(t, err)
	assert.Equal(t, "30 mins until break", left)

	err = session.AddTime(0, at(0))
	require.Error(t, err)
	assert.Equal(t, "Please enter a number of minutes greater than 0", err.Error())

	err = session.AddTime(270, at(0))
	require.Error(t, err)
	assert.Equal(t, "Please enter a number of minutes less than 270", err.Error())

	err = session.RemoveTime(30, at(0))
	require.Error(t, err)
	assert.Equal(t, "There's only 30 mins left! Can lower it by a maximum of 29 mins", err.Error())

	require.NoError(t, session.RemoveTime(29, at(0)))
	left, err = session.TimeLeft(at(0))
	require.NoError(t, err)
	assert.Equal(t, "1 min until break", left)

	require.NoError(t, session.Update(at(1), false))
	assert.Equal(t, model.StateBreak, session.State())
}

func TestSessionAdjustOverdueInterval(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))

	// Due at 25, not yet swept at 28: nothing is left to lower.
	err := session.RemoveTime(2, at(28))
	require.Error(t, err)
	assert.Equal(t, "There's only 0 mins left! Can lower it by a maximum of 0 mins", err.Error())
	assert.Equal(t, model.StateWork, session.State())

	require.NoError(t, session.AddTime(5, at(28)))
	assert.Equal(t, model.StateWork, session.State())
	left, err := session.TimeLeft(at(28))
	require.NoError(t, err)
	assert.Equal(t, "2 mins until break", left)
}

func TestSessionResumeAfterShrinkingEdit(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))
	require.NoError(t, session.Pause(at(20)))
	require.NoError(t, session.EditSettings("10", at(20)))

	require.NoError(t, session.Resume(at(21)))
	view := session.View(at(21))
	assert.Equal(t, model.StateWork, view.State)
	require.NotNil(t, view.NextTransitionDue)
	assert.Equal(t, at(21), *view.NextTransitionDue)
	require.NotNil(t, view.RemainingMinutes)
	assert.Equal(t, 0, *view.RemainingMinutes)

	require.NoError(t, session.Update(at(21), false))
	assert.Equal(t, model.StateBreak, session.State())
}

func TestSessionResetCurrentInterval(t *testing.T) {
	session, _ := newTestSession(t, "")
	require.NoError(t, session.Start(at(0)))

	require.NoError(t, session.ResetCurrentInterval(at(20)))
	left, err := session.TimeLeft(at(20))
	require.NoError(t, err)
	assert.Equal(t, "25 mins until break", left)
}

func TestSessionEditSettings(t *testing.T) {
	session, _ := newTestSession(t, "")

	err := session.EditSettings("30 400", at(0))
	require.Error(t, err)
	assert.Equal(t, 25, session.Settings().StateDuration(model.StateWork))

	require.NoError(t, session.EditSettings("30 5 images:on", at(0)))
	settings := session.Settings()
	assert.Equal(t, 30, settings.StateDuration(model.StateWork))
	assert.Equal(t, 5, settings.StateDuration(model.StateBreak))
	assert.True(t, settings.Enabled(model.SettingImages))
}

func TestSessionParticipants(t *testing.T) {
	session, surface := newTestSession(t, "")
	grace := model.Member{ID: "m-grace", Name: "grace"}

	require.NoError(t, session.Join(grace, false, "reading papers", at(0)))
	session.flush(t)

	view := session.View(at(0))
	require.Len(t, view.Participants, 2)
	assert.Equal(t, "grace", view.Participants[1].Member.Name)

	embed := surface.edits[len(surface.edits)-1].Embed
	assert.Equal(t, "ada\ngrace 🤐", embed.Fields[0].Value)
	assert.Equal(t, "reading papers", embed.Fields[1].Value)

	require.NoError(t, session.Start(at(1)))
	session.flush(t)
	ping := surface.posts[len(surface.posts)-2].Text
	assert.Contains(t, ping, "@ada")
	assert.NotContains(t, ping, "@grace")

	require.NoError(t, session.Leave(grace.ID, at(2)))
	assert.Len(t, session.View(at(2)).Participants, 1)
}

func TestSessionSettingsText(t *testing.T) {
	session, _ := newTestSession(t, "50 10 30 3 images:on")

	assert.Equal(t,
		"Work: 50 mins, Break: 10 mins\nWork sessions before long break: 3, Long break: 30 mins\nSession created by: ada",
		session.SettingsText(true))
	assert.Equal(t,
		"Work: 50 mins, Break: 10 mins\nWork sessions before long break: 3, Long break: 30 mins\nSession created by: ada\n"+
			"(Pings)・(Auto) Continue・(Delete) old messages・(Images)・~~Show full (date)~~",
		session.SettingsText(false))
}

func TestSessionSurvivesFailingSurface(t *testing.T) {
	session, surface := newTestSession(t, "")
	session.flush(t)
	surface.mu.Lock()
	surface.failPosts = true
	surface.mu.Unlock()

	require.NoError(t, session.Start(at(0)))
	session.flush(t)

	assert.Equal(t, model.StateWork, session.State())
	assert.Equal(t, MessageHandle("msg-1"), session.MessageID())
	assert.Empty(t, surface.deletedHandles())
}

func TestSessionRemoveReaction(t *testing.T) {
	session, surface := newTestSession(t, "")
	session.flush(t)

	session.RemoveReaction(EmojiJoin, "m-grace")
	session.flush(t)

	require.Len(t, surface.removed, 1)
	assert.Equal(t, reactionCall{Handle: "msg-1", Emoji: EmojiJoin, MemberID: "m-grace"}, surface.removed[0])
}
