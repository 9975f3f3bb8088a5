package pomodoro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
)

const (
	DefaultSweepTick        = 10 * time.Second
	DefaultSweepGranularity = 20 * time.Second
)

// Scheduler owns the live sessions, one per channel, and advances the ones
// whose interval has run out. Its loop starts with the first registration
// and exits once no sessions are left.
type Scheduler struct {
	tick        time.Duration
	granularity time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(tick, granularity time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultSweepTick
	}
	if granularity < tick {
		granularity = tick
	}
	return &Scheduler{
		tick:        tick,
		granularity: granularity,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Register adds session under its channel and makes sure the loop runs.
func (s *Scheduler) Register(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channelID := session.ChannelID()
	if _, ok := s.sessions[channelID]; ok {
		return apperrors.InvalidArgument("There is already a session running in this channel")
	}
	s.sessions[channelID] = session
	if !s.running {
		s.running = true
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.loop(s.stop, s.done)
		log.Debug().Msg("Scheduler started")
	}
	return nil
}

func (s *Scheduler) Get(channelID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[channelID]
	return session, ok
}

// Remove unregisters session if it is still the one registered for its
// channel. The session itself is left as it is.
func (s *Scheduler) Remove(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[session.ChannelID()] != session {
		return false
	}
	delete(s.sessions, session.ChannelID())
	return true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Sweep runs one pass over every registered session, advancing due ones and
// dropping finished ones. A failing session is logged and kept.
func (s *Scheduler) Sweep(now time.Time) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		if session.State() != model.StateFinished {
			s.updateSession(session, now)
		}
		if session.State() != model.StateFinished {
			continue
		}
		s.mu.Lock()
		// The channel may hold a newer session by now.
		if s.sessions[session.ChannelID()] == session {
			delete(s.sessions, session.ChannelID())
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) updateSession(session *Session, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("channel_id", session.ChannelID()).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("Session update panicked")
		}
	}()
	if err := session.Update(now, false); err != nil {
		log.Error().
			Err(err).
			Str("channel_id", session.ChannelID()).
			Str("state", string(session.State())).
			Msg("Session update failed")
	}
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var lastSweep time.Time
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		now := s.now()
		if !lastSweep.IsZero() && now.Sub(lastSweep) < s.granularity {
			continue
		}
		lastSweep = now
		s.Sweep(now)

		if s.stopIfIdle() {
			log.Debug().Msg("Scheduler stopped, no sessions left")
			return
		}
	}
}

func (s *Scheduler) stopIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) > 0 {
		return false
	}
	s.running = false
	return true
}

// Shutdown stops the loop and waits for it to exit. Registered sessions are
// kept; a later Register restarts the loop.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	close(stop)
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
