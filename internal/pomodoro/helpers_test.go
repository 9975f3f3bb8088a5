package pomodoro

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"focusbot/internal/model"
)

var baseTime = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func at(offsetMinutes int) time.Time {
	return baseTime.Add(time.Duration(offsetMinutes) * time.Minute)
}

func intPtr(v int) *int {
	return &v
}

type reactionCall struct {
	Handle   MessageHandle
	Emoji    string
	MemberID string
}

type fakeSurface struct {
	mu        sync.Mutex
	seq       int
	posts     []Message
	handles   []MessageHandle
	edits     []Message
	deleted   []MessageHandle
	cleared   []MessageHandle
	reactions map[MessageHandle][]string
	removed   []reactionCall
	failPosts bool
	// block, when set, holds every PostStatus until it is closed.
	block chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{reactions: make(map[MessageHandle][]string)}
}

func (f *fakeSurface) PostStatus(_ context.Context, _ string, msg Message) (MessageHandle, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPosts {
		return "", fmt.Errorf("surface unavailable")
	}
	f.seq++
	handle := MessageHandle(fmt.Sprintf("msg-%d", f.seq))
	f.posts = append(f.posts, msg)
	f.handles = append(f.handles, handle)
	return handle, nil
}

func (f *fakeSurface) EditStatus(_ context.Context, _ MessageHandle, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, msg)
	return nil
}

func (f *fakeSurface) DeleteMessage(_ context.Context, handle MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, handle)
	return nil
}

func (f *fakeSurface) ClearReactions(_ context.Context, handle MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, handle)
	delete(f.reactions, handle)
	return nil
}

func (f *fakeSurface) AddReaction(_ context.Context, handle MessageHandle, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[handle] = append(f.reactions[handle], emoji)
	return nil
}

func (f *fakeSurface) RemoveReaction(_ context.Context, handle MessageHandle, emoji, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, reactionCall{Handle: handle, Emoji: emoji, MemberID: memberID})
	return nil
}

func (f *fakeSurface) lastPost() Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[len(f.posts)-1]
}

func (f *fakeSurface) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeSurface) reactionsOn(handle MessageHandle) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reactions[handle]...)
}

func (f *fakeSurface) deletedHandles() []MessageHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MessageHandle(nil), f.deleted...)
}

// flush waits until every surface request queued so far has run. A full
// outbox is retried until it drains; a closed one is waited out.
func (s *Session) flush(t *testing.T) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	marker := make(chan struct{})
	for {
		s.mu.Lock()
		closed := s.outbox.closed
		queued := !closed && s.outbox.enqueue(func(context.Context) { close(marker) })
		done := s.outbox.done
		s.mu.Unlock()

		var wait <-chan struct{}
		switch {
		case closed:
			wait = done
		case queued:
			wait = marker
		}
		if wait != nil {
			select {
			case <-wait:
			case <-deadline:
				t.Fatal("timed out waiting for the outbox")
			}
			return
		}

		select {
		case <-deadline:
			t.Fatal("outbox stayed full")
		case <-time.After(time.Millisecond):
		}
	}
}

// intervals reads the session's history under its lock.
func (s *Session) intervals() []Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Intervals()
}

var author = model.Member{ID: "m-author", Name: "ada"}

func newTestSession(t *testing.T, args string) (*Session, *fakeSurface) {
	t.Helper()
	settings := NewSettings()
	if err := settings.SetFromArguments(args); err != nil {
		t.Fatalf("settings: %v", err)
	}
	surface := newFakeSurface()
	session := NewSession(SessionConfig{
		ChannelID: "chan-1",
		Author:    author,
		Settings:  settings,
		Surface:   surface,
	}, at(0))
	return session, surface
}
