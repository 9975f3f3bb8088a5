package pomodoro

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultOutboxSize = 64
	outboxOpTimeout   = 10 * time.Second
)

type outboxOp func(ctx context.Context)

// outbox runs a session's surface requests one at a time, in the order they
// were queued. Handles resolved by one request are visible to the next.
// enqueue and close must be called with the owning session's lock held.
type outbox struct {
	channelID string
	ops       chan outboxOp
	done      chan struct{}
	closed    bool
}

func newOutbox(channelID string, size int) *outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	o := &outbox{
		channelID: channelID,
		ops:       make(chan outboxOp, size),
		done:      make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *outbox) run() {
	defer close(o.done)
	for op := range o.ops {
		o.execute(op)
	}
}

func (o *outbox) execute(op outboxOp) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("channel_id", o.channelID).Interface("panic", r).Msg("Messaging request panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), outboxOpTimeout)
	defer cancel()
	op(ctx)
}

// enqueue never blocks. A full queue drops the request.
func (o *outbox) enqueue(op outboxOp) bool {
	if o.closed {
		return false
	}
	select {
	case o.ops <- op:
		return true
	default:
		log.Warn().Str("channel_id", o.channelID).Msg("Messaging outbox full, dropping request")
		return false
	}
}

func (o *outbox) close() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.ops)
}
