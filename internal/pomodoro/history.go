package pomodoro

import "focusbot/internal/model"

// Interval is one completed stretch of time spent in a single state.
type Interval struct {
	Minutes int                `json:"minutes"`
	State   model.SessionState `json:"state"`
}

// History is the append-only log of a session's completed intervals, newest
// last.
type History struct {
	intervals []Interval
}

type Stats struct {
	CompletedWorkSessions int `json:"completedWorkSessions"`
	StudyMinutes          int `json:"studyMinutes"`
}

// RecordCompleted appends an interval. NOT_STARTED and FINISHED never count
// towards any total, so their minutes are stored as 0.
func (h *History) RecordCompleted(minutes int, state model.SessionState) {
	if state == model.StateNotStarted || state == model.StateFinished {
		minutes = 0
	}
	h.intervals = append(h.intervals, Interval{Minutes: minutes, State: state})
}

func (h *History) Intervals() []Interval {
	out := make([]Interval, len(h.intervals))
	copy(out, h.intervals)
	return out
}

func (h *History) WorkSessionsSinceLastLongBreak() int {
	return h.countWorkSessions(true)
}

// CompletedStats counts completed work sessions and total study time.
// minutesInCurrent is the live part of the current interval, which only
// counts when the session is working.
func (h *History) CompletedStats(minutesInCurrent int, current model.SessionState) Stats {
	studyMinutes := 0
	for _, interval := range h.intervals {
		if interval.State == model.StateWork {
			studyMinutes += interval.Minutes
		}
	}
	if current == model.StateWork {
		studyMinutes += minutesInCurrent
	}
	return Stats{
		CompletedWorkSessions: h.countWorkSessions(false),
		StudyMinutes:          studyMinutes,
	}
}

// NextStateDuration is how long next should last. When the log ends with
// (possibly paused) time already spent in next, that time is subtracted so a
// resumed interval only gets what it is still owed, and never less than 0.
func (h *History) NextStateDuration(next model.SessionState, settings *Settings) int {
	remaining := settings.StateDuration(next)
	if !next.IsActive() {
		return remaining
	}
	for i := len(h.intervals) - 1; i >= 0; i-- {
		interval := h.intervals[i]
		if interval.State == next {
			remaining -= interval.Minutes
			continue
		}
		if !interval.State.IsActive() {
			continue
		}
		break
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// countWorkSessions counts runs of WORK intervals: WORK, PAUSED, WORK is a
// single work session.
func (h *History) countWorkSessions(sinceLongBreak bool) int {
	var lastActive model.SessionState
	count := 0
	for i := len(h.intervals) - 1; i >= 0; i-- {
		interval := h.intervals[i]
		if sinceLongBreak && interval.State == model.StateLongBreak {
			break
		}
		if interval.State == model.StateWork && lastActive != model.StateWork {
			count++
		}
		if interval.State.IsActive() {
			lastActive = interval.State
		}
	}
	return count
}
