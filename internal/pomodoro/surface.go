package pomodoro

import "context"

// MessageHandle identifies a message posted through a Surface.
type MessageHandle string

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      string       `json:"footer,omitempty"`
	Colour      string       `json:"colour,omitempty"`
	Image       string       `json:"image,omitempty"`
}

// Message carries either plain text or an embed.
type Message struct {
	Text  string `json:"text,omitempty"`
	Embed *Embed `json:"embed,omitempty"`
}

// Surface is the chat side a session talks to. Sessions never call it while
// holding their own lock and never wait on it from a state transition.
type Surface interface {
	PostStatus(ctx context.Context, channelID string, msg Message) (MessageHandle, error)
	EditStatus(ctx context.Context, handle MessageHandle, msg Message) error
	DeleteMessage(ctx context.Context, handle MessageHandle) error
	ClearReactions(ctx context.Context, handle MessageHandle) error
	AddReaction(ctx context.Context, handle MessageHandle, emoji string) error
	RemoveReaction(ctx context.Context, handle MessageHandle, emoji, memberID string) error
}
