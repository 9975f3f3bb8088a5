package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"focusbot/internal/pomodoro"
)

const DefaultChannelCapacity = 500

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrReactionNotOffered = errors.New("reaction not offered on this message")
)

// Entry is one message in a channel feed. Every change to an entry gives it
// a new Seq, so polling with the last seen Seq returns new, edited and
// deleted messages alike.
type Entry struct {
	Seq       int64                  `json:"seq"`
	ID        pomodoro.MessageHandle `json:"id"`
	ChannelID string                 `json:"channelId"`
	Text      string                 `json:"text,omitempty"`
	Embed     *pomodoro.Embed        `json:"embed,omitempty"`
	// Reactions offered on the message, in the order they were added.
	Reactions []string `json:"reactions,omitempty"`
	// MemberReactions maps an emoji to the members currently reacting with it.
	MemberReactions map[string][]string `json:"memberReactions,omitempty"`
	Deleted         bool                `json:"deleted,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

var _ pomodoro.Surface = (*Feed)(nil)

// Feed is an in-memory chat surface: each channel is an ordered message log
// that clients poll over HTTP.
type Feed struct {
	mu       sync.RWMutex
	seq      int64
	capacity int
	now      func() time.Time
	channels map[string][]*Entry
	byID     map[pomodoro.MessageHandle]*Entry
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Feed{
		capacity: capacity,
		now:      time.Now,
		channels: make(map[string][]*Entry),
		byID:     make(map[pomodoro.MessageHandle]*Entry),
	}
}

func (f *Feed) PostStatus(_ context.Context, channelID string, msg pomodoro.Message) (pomodoro.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now().UTC()
	entry := &Entry{
		ID:        pomodoro.MessageHandle(uuid.NewString()),
		ChannelID: channelID,
		Text:      msg.Text,
		Embed:     copyEmbed(msg.Embed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.touch(entry)
	f.byID[entry.ID] = entry

	entries := append(f.channels[channelID], entry)
	if overflow := len(entries) - f.capacity; overflow > 0 {
		for _, dropped := range entries[:overflow] {
			delete(f.byID, dropped.ID)
		}
		entries = append([]*Entry(nil), entries[overflow:]...)
	}
	f.channels[channelID] = entries
	return entry.ID, nil
}

func (f *Feed) EditStatus(_ context.Context, handle pomodoro.MessageHandle, msg pomodoro.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return err
	}
	entry.Text = msg.Text
	entry.Embed = copyEmbed(msg.Embed)
	f.touch(entry)
	return nil
}

func (f *Feed) DeleteMessage(_ context.Context, handle pomodoro.MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return err
	}
	entry.Deleted = true
	entry.Text = ""
	entry.Embed = nil
	entry.Reactions = nil
	entry.MemberReactions = nil
	f.touch(entry)
	return nil
}

func (f *Feed) ClearReactions(_ context.Context, handle pomodoro.MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return err
	}
	entry.Reactions = nil
	entry.MemberReactions = nil
	f.touch(entry)
	return nil
}

func (f *Feed) AddReaction(_ context.Context, handle pomodoro.MessageHandle, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return err
	}
	for _, offered := range entry.Reactions {
		if offered == emoji {
			return nil
		}
	}
	entry.Reactions = append(entry.Reactions, emoji)
	f.touch(entry)
	return nil
}

func (f *Feed) RemoveReaction(_ context.Context, handle pomodoro.MessageHandle, emoji, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return err
	}
	members := entry.MemberReactions[emoji]
	for i, id := range members {
		if id != memberID {
			continue
		}
		members = append(members[:i:i], members[i+1:]...)
		if len(members) == 0 {
			delete(entry.MemberReactions, emoji)
		} else {
			entry.MemberReactions[emoji] = members
		}
		f.touch(entry)
		return nil
	}
	return nil
}

// React records a member's reaction and returns the message's channel. Only
// offered reactions are accepted.
func (f *Feed) React(handle pomodoro.MessageHandle, emoji, memberID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.live(handle)
	if err != nil {
		return "", err
	}
	offered := false
	for _, reaction := range entry.Reactions {
		if reaction == emoji {
			offered = true
			break
		}
	}
	if !offered {
		return "", ErrReactionNotOffered
	}

	if entry.MemberReactions == nil {
		entry.MemberReactions = make(map[string][]string)
	}
	for _, id := range entry.MemberReactions[emoji] {
		if id == memberID {
			return entry.ChannelID, nil
		}
	}
	entry.MemberReactions[emoji] = append(entry.MemberReactions[emoji], memberID)
	f.touch(entry)
	return entry.ChannelID, nil
}

// List returns copies of the channel's entries changed after afterSeq,
// oldest change first.
func (f *Feed) List(channelID string, afterSeq int64) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Entry, 0)
	for _, entry := range f.channels[channelID] {
		if entry.Seq > afterSeq {
			out = append(out, copyEntry(entry))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (f *Feed) Get(handle pomodoro.MessageHandle) (Entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entry, ok := f.byID[handle]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(entry), true
}

func (f *Feed) live(handle pomodoro.MessageHandle) (*Entry, error) {
	entry, ok := f.byID[handle]
	if !ok || entry.Deleted {
		return nil, errors.Wrapf(ErrMessageNotFound, "message %s", handle)
	}
	return entry, nil
}

func (f *Feed) touch(entry *Entry) {
	f.seq++
	entry.Seq = f.seq
	entry.UpdatedAt = f.now().UTC()
}

func copyEmbed(embed *pomodoro.Embed) *pomodoro.Embed {
	if embed == nil {
		return nil
	}
	out := *embed
	out.Fields = append([]pomodoro.EmbedField(nil), embed.Fields...)
	return &out
}

func copyEntry(entry *Entry) Entry {
	out := *entry
	out.Embed = copyEmbed(entry.Embed)
	out.Reactions = append([]string(nil), entry.Reactions...)
	if entry.MemberReactions != nil {
		out.MemberReactions = make(map[string][]string, len(entry.MemberReactions))
		for emoji, members := range entry.MemberReactions {
			out.MemberReactions[emoji] = append([]string(nil), members...)
		}
	}
	return out
}
