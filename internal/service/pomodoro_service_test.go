package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"focusbot/internal/messaging"
	"focusbot/internal/model"
	"focusbot/internal/pomodoro"
	"focusbot/internal/repository"
)

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) GetByName(ctx context.Context, name string) (*model.Member, error) {
	args := m.Called(ctx, name)
	member, _ := args.Get(0).(*model.Member)
	return member, args.Error(1)
}

type mockBans struct {
	mock.Mock
}

func (m *mockBans) Ban(ctx context.Context, ban *model.Ban) error {
	return m.Called(ctx, ban).Error(0)
}

func (m *mockBans) Unban(ctx context.Context, memberID string) error {
	return m.Called(ctx, memberID).Error(0)
}

func (m *mockBans) IsBanned(ctx context.Context, memberID string) (bool, error) {
	args := m.Called(ctx, memberID)
	return args.Bool(0), args.Error(1)
}

type memoryTemplates struct {
	mu        sync.Mutex
	templates map[string]model.SettingsTemplate
}

func (m *memoryTemplates) Save(_ context.Context, template *model.SettingsTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[template.ChannelID] = *template
	return nil
}

func (m *memoryTemplates) Get(_ context.Context, channelID string) (*model.SettingsTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	template, ok := m.templates[channelID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &template, nil
}

func (m *memoryTemplates) Delete(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[channelID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.templates, channelID)
	return nil
}

var (
	ada   = model.Member{ID: "m-ada", Name: "ada", Admin: true}
	grace = model.Member{ID: "m-grace", Name: "grace"}
	start = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
)

type serviceFixture struct {
	service   *PomodoroService
	scheduler *pomodoro.Scheduler
	feed      *messaging.Feed
	members   *mockMembers
	bans      *mockBans
	templates *memoryTemplates
	clock     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		scheduler: pomodoro.NewScheduler(time.Hour, time.Hour),
		feed:      messaging.NewFeed(0),
		members:   &mockMembers{},
		bans:      &mockBans{},
		templates: &memoryTemplates{templates: make(map[string]model.SettingsTemplate)},
		clock:     start,
	}
	t.Cleanup(func() { _ = f.scheduler.Shutdown(context.Background()) })

	f.service = NewPomodoroService(PomodoroServiceConfig{
		Scheduler: f.scheduler,
		Feed:      f.feed,
		Templates: f.templates,
		Members:   f.members,
		Bans:      f.bans,
		Now:       func() time.Time { return f.clock },
	})
	return f
}

func (f *serviceFixture) run(t *testing.T, member model.Member, command, args string) string {
	t.Helper()
	reply, apiErr := f.service.Execute(context.Background(), "chan-1", member, command, args)
	require.Nil(t, apiErr, "command %q", command)
	return reply
}

func (f *serviceFixture) statusMessage(t *testing.T) string {
	t.Helper()
	session, ok := f.scheduler.Get("chan-1")
	require.True(t, ok)

	var handle pomodoro.MessageHandle
	require.Eventually(t, func() bool {
		handle = session.MessageID()
		entry, ok := f.feed.Get(handle)
		return ok && len(entry.Reactions) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return string(handle)
}

func TestExecuteSessionLifecycle(t *testing.T) {
	f := newServiceFixture(t)

	reply := f.run(t, ada, "new", "")
	assert.Contains(t, reply, "Session created")
	assert.Contains(t, reply, "Work: 25 mins, Break: 10 mins")

	_, apiErr := f.service.Execute(context.Background(), "chan-1", grace, "new", "")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "There is already a session running in this channel", apiErr.Message)

	assert.Equal(t, "Session started", f.run(t, ada, "start", ""))
	assert.Equal(t, "25 mins until break", f.run(t, ada, "time", ""))
	assert.Equal(t, "30 mins until break", f.run(t, grace, "bump", ""))
	assert.Equal(t, "10 mins until break", f.run(t, grace, "BIG_LOWER", ""))
	assert.Equal(t, "13 mins until break", f.run(t, grace, "bump", "3"))

	_, apiErr = f.service.Execute(context.Background(), "chan-1", grace, "lower", "lots")
	require.NotNil(t, apiErr)
	assert.Equal(t, "Please enter a whole number of minutes", apiErr.Message)

	f.clock = start.Add(13 * time.Minute)
	f.scheduler.Sweep(f.clock)
	view, apiErr := f.service.Session("chan-1")
	require.Nil(t, apiErr)
	assert.Equal(t, model.StateBreak, view.State)
	assert.Equal(t, 1, view.Stats.CompletedWorkSessions)

	assert.Equal(t, "Session stopped", f.run(t, ada, "stop", ""))
	_, apiErr = f.service.Session("chan-1")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestExecuteRejectsUnknownAndMissingSession(t *testing.T) {
	f := newServiceFixture(t)

	_, apiErr := f.service.Execute(context.Background(), "chan-1", ada, "dance", "")
	require.NotNil(t, apiErr)
	assert.Equal(t, "unknown_command", apiErr.Code)

	_, apiErr = f.service.Execute(context.Background(), "chan-1", ada, "start", "")
	require.NotNil(t, apiErr)
	assert.Equal(t, "session_not_found", apiErr.Code)

	_, apiErr = f.service.Execute(context.Background(), "chan-1", ada, "new", "25 4")
	require.NotNil(t, apiErr)
	assert.Equal(t, "invalid_argument", apiErr.Code)
	assert.Equal(t, "Minimum duration: 5 mins", apiErr.Message)
	assert.Equal(t, 0, f.scheduler.Len())
}

func TestExecuteJoinRespectsBans(t *testing.T) {
	f := newServiceFixture(t)
	f.run(t, ada, "new", "")

	f.bans.On("IsBanned", mock.Anything, grace.ID).Return(true, nil).Once()
	reply := f.run(t, grace, "join", "noPing spamming links")
	assert.Equal(t, "Joined the session, but you are banned from posting a status", reply)

	view, apiErr := f.service.Session("chan-1")
	require.Nil(t, apiErr)
	require.Len(t, view.Participants, 2)
	assert.False(t, view.Participants[1].Ping)
	assert.Empty(t, view.Participants[1].Status)

	// No status, no ban lookup.
	assert.Equal(t, "Joined the session", f.run(t, grace, "join", ""))
	assert.Equal(t, "Left the session", f.run(t, grace, "leave", ""))
	f.bans.AssertExpectations(t)
}

func TestExecuteAdminCommands(t *testing.T) {
	f := newServiceFixture(t)
	f.run(t, ada, "new", "50 10")

	_, apiErr := f.service.Execute(context.Background(), "chan-1", grace, "template save", "")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	f.run(t, ada, "template save", "")
	f.run(t, ada, "stop", "")

	reply := f.run(t, grace, "new", "")
	assert.Contains(t, reply, "Work: 50 mins, Break: 10 mins")
	assert.Contains(t, reply, "Session created by: grace")

	assert.Equal(t, "Channel template cleared", f.run(t, ada, "template clear", ""))
	_, apiErr = f.service.Execute(context.Background(), "chan-1", ada, "template clear", "")
	require.NotNil(t, apiErr)
	assert.Equal(t, "No template saved for this channel", apiErr.Message)

	f.members.On("GetByName", mock.Anything, "grace").Return(&grace, nil)
	f.members.On("GetByName", mock.Anything, "nobody").Return(nil, repository.ErrNotFound)
	f.bans.On("Ban", mock.Anything, mock.MatchedBy(func(ban *model.Ban) bool {
		return ban.MemberID == grace.ID && ban.BannedBy == ada.ID
	})).Return(nil).Once()
	f.bans.On("Unban", mock.Anything, grace.ID).Return(nil).Once()

	assert.Equal(t, "Banned from posting statuses: grace", f.run(t, ada, "ban", "@grace @grace"))
	assert.Equal(t, "Unbanned: grace", f.run(t, ada, "unban", "@grace"))

	_, apiErr = f.service.Execute(context.Background(), "chan-1", ada, "ban", "@nobody")
	require.NotNil(t, apiErr)
	assert.Equal(t, "Unknown member: nobody", apiErr.Message)

	f.bans.AssertExpectations(t)
}

func TestReactRunsEmojiCommands(t *testing.T) {
	f := newServiceFixture(t)
	f.run(t, ada, "new", "")

	first := f.statusMessage(t)
	reply, apiErr := f.service.React(context.Background(), grace, first, pomodoro.EmojiPlay)
	require.Nil(t, apiErr)
	assert.Equal(t, "Session started", reply)

	// Starting posts a new status message and deletes the old one.
	session, ok := f.scheduler.Get("chan-1")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		old, ok := f.feed.Get(pomodoro.MessageHandle(first))
		return ok && old.Deleted && session.MessageID() != pomodoro.MessageHandle(first)
	}, 2*time.Second, 5*time.Millisecond)
	second := f.statusMessage(t)

	_, apiErr = f.service.React(context.Background(), grace, first, pomodoro.EmojiPause)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, apiErr = f.service.React(context.Background(), grace, second, pomodoro.EmojiPlay)
	require.NotNil(t, apiErr)
	assert.Equal(t, "invalid_reaction", apiErr.Code)

	reply, apiErr = f.service.React(context.Background(), grace, second, pomodoro.EmojiUp)
	require.Nil(t, apiErr)
	assert.Equal(t, "30 mins until break", reply)

	// Remove-after-use reactions are taken off again.
	require.Eventually(t, func() bool {
		entry, ok := f.feed.Get(pomodoro.MessageHandle(second))
		return ok && len(entry.MemberReactions[pomodoro.EmojiUp]) == 0
	}, 2*time.Second, 5*time.Millisecond)
}
