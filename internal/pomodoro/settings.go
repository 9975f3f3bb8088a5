package pomodoro

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
)

const (
	// MinDuration and MaxDuration bound every configurable duration, in minutes.
	MinDuration = 5
	MaxDuration = 300

	MinWorkSessionsBeforeLongBreak = 1
	MaxWorkSessionsBeforeLongBreak = 30

	DefaultWorkDuration    = 25
	DefaultBreakDuration   = 10
	DefaultTimeoutDuration = 60

	toggleSeparator = ":"
	toggleOn        = "on"
	toggleOff       = "off"
)

var defaultToggles = []model.BooleanSetting{model.SettingPings, model.SettingAuto, model.SettingDelete}

// Settings is the configuration of one session. The zero value is not
// usable; use NewSettings.
type Settings struct {
	workDuration      int
	breakDuration     int
	longBreakDuration *int
	// Also decides whether long breaks happen at all.
	workSessionsBeforeLongBreak *int
	toggles                     map[model.BooleanSetting]bool
	timeoutDuration             int
}

func NewSettings() *Settings {
	s := &Settings{
		workDuration:    DefaultWorkDuration,
		breakDuration:   DefaultBreakDuration,
		toggles:         make(map[model.BooleanSetting]bool, len(model.BooleanSettings)),
		timeoutDuration: DefaultTimeoutDuration,
	}
	for _, setting := range defaultToggles {
		s.toggles[setting] = true
	}
	return s
}

// CheckDuration rejects durations outside [MinDuration, MaxDuration]. A nil
// duration means "unset" and is always accepted.
func CheckDuration(duration *int) error {
	if duration == nil {
		return nil
	}
	if *duration > MaxDuration {
		return apperrors.InvalidArgument("Maximum duration: " + FormatMinutes(MaxDuration))
	}
	if *duration < MinDuration {
		return apperrors.InvalidArgument("Minimum duration: " + FormatMinutes(MinDuration))
	}
	return nil
}

// SetFromArguments applies "[work] [break] [long break] [cadence] [name:on|off ...]".
// Nothing is changed unless the whole text is valid.
func (s *Settings) SetFromArguments(text string) error {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	numbers := make([]int, 0, 4)
	toggles := make(map[model.BooleanSetting]bool)
	numbersEnded := false
	for _, token := range tokens {
		if !numbersEnded {
			if value, err := strconv.Atoi(token); err == nil {
				switch {
				case len(numbers) < 3:
					if err := CheckDuration(&value); err != nil {
						return err
					}
				case len(numbers) >= 4:
					return apperrors.InvalidArgument("Arguments incorrect - too many numerical arguments")
				}
				numbers = append(numbers, value)
				continue
			}
			numbersEnded = true
		}

		name, value, found := strings.Cut(token, toggleSeparator)
		if !found || (!strings.EqualFold(value, toggleOn) && !strings.EqualFold(value, toggleOff)) {
			return apperrors.InvalidArgument(fmt.Sprintf(
				"Non-numerical arguments must be in the format 'pings%s%s' or 'pings%s%s'",
				toggleSeparator, toggleOn, toggleSeparator, toggleOff,
			))
		}
		setting, ok := model.ParseBooleanSetting(name)
		if !ok {
			return apperrors.InvalidArgument("Unknown setting: " + name)
		}
		toggles[setting] = strings.EqualFold(value, toggleOn)
	}

	// Long break goes first: it is the only one whose validation can still fail.
	if len(numbers) > 2 {
		var cadence *int
		if len(numbers) > 3 {
			cadence = &numbers[3]
		}
		if err := s.SetLongBreak(cadence, &numbers[2]); err != nil {
			return err
		}
	}
	if len(numbers) > 1 {
		s.breakDuration = numbers[1]
	}
	if len(numbers) > 0 {
		s.workDuration = numbers[0]
	}
	for setting, on := range toggles {
		s.toggles[setting] = on
	}
	return nil
}

// SetLongBreak sets the long break duration together with the number of work
// sessions before it. Both nil turns long breaks off.
func (s *Settings) SetLongBreak(workSessionsBeforeLongBreak, duration *int) error {
	if workSessionsBeforeLongBreak == nil && duration == nil {
		s.workSessionsBeforeLongBreak = nil
		s.longBreakDuration = nil
		return nil
	}
	if workSessionsBeforeLongBreak == nil || duration == nil {
		return apperrors.InvalidArgument("Must provide long break duration AND work sessions until long break (or neither)")
	}
	if *workSessionsBeforeLongBreak < MinWorkSessionsBeforeLongBreak {
		return apperrors.InvalidArgument(fmt.Sprintf("Minimum %d work session before long break", MinWorkSessionsBeforeLongBreak))
	}
	if *workSessionsBeforeLongBreak > MaxWorkSessionsBeforeLongBreak {
		return apperrors.InvalidArgument(fmt.Sprintf("Maximum %d work sessions before long break", MaxWorkSessionsBeforeLongBreak))
	}
	if err := CheckDuration(duration); err != nil {
		return err
	}

	cadence, length := *workSessionsBeforeLongBreak, *duration
	s.workSessionsBeforeLongBreak = &cadence
	s.longBreakDuration = &length
	return nil
}

func (s *Settings) SetTimeoutDuration(minutes int) error {
	if err := CheckDuration(&minutes); err != nil {
		return err
	}
	s.timeoutDuration = minutes
	return nil
}

func (s *Settings) SetEnabled(setting model.BooleanSetting, on bool) {
	s.toggles[setting] = on
}

func (s *Settings) Enabled(setting model.BooleanSetting) bool {
	return s.toggles[setting]
}

// EnabledSettings lists the toggles that are on, in display order.
func (s *Settings) EnabledSettings() []model.BooleanSetting {
	enabled := make([]model.BooleanSetting, 0, len(model.BooleanSettings))
	for _, setting := range model.BooleanSettings {
		if s.toggles[setting] {
			enabled = append(enabled, setting)
		}
	}
	return enabled
}

// WorkSessionsBeforeLongBreak returns the long-break cadence, if long breaks
// are configured.
func (s *Settings) WorkSessionsBeforeLongBreak() (int, bool) {
	if s.workSessionsBeforeLongBreak == nil {
		return 0, false
	}
	return *s.workSessionsBeforeLongBreak, true
}

func (s *Settings) LongBreakDuration() (int, bool) {
	if s.longBreakDuration == nil {
		return 0, false
	}
	return *s.longBreakDuration, true
}

func (s *Settings) TimeoutDuration() int {
	return s.timeoutDuration
}

// StateDuration is how long an interval of state lasts. Suspended states use
// the timeout duration; an unset long break falls back to the break duration.
func (s *Settings) StateDuration(state model.SessionState) int {
	switch state {
	case model.StateWork:
		return s.workDuration
	case model.StateBreak:
		return s.breakDuration
	case model.StateLongBreak:
		if s.longBreakDuration == nil {
			return s.breakDuration
		}
		return *s.longBreakDuration
	default:
		return s.timeoutDuration
	}
}

// DateTimeLayout is the Go time layout used for the session start time.
func (s *Settings) DateTimeLayout() string {
	if s.Enabled(model.SettingDate) {
		return "02/01/2006 15:04 MST"
	}
	return "15:04 MST"
}

func (s *Settings) Clone() *Settings {
	clone := *s
	clone.toggles = make(map[model.BooleanSetting]bool, len(s.toggles))
	for setting, on := range s.toggles {
		clone.toggles[setting] = on
	}
	if s.longBreakDuration != nil {
		value := *s.longBreakDuration
		clone.longBreakDuration = &value
	}
	if s.workSessionsBeforeLongBreak != nil {
		value := *s.workSessionsBeforeLongBreak
		clone.workSessionsBeforeLongBreak = &value
	}
	return &clone
}

type settingsJSON struct {
	WorkDuration                *int     `json:"workDuration,omitempty"`
	BreakDuration               *int     `json:"breakDuration,omitempty"`
	LongBreakDuration           *int     `json:"longBreakDuration,omitempty"`
	WorkSessionsBeforeLongBreak *int     `json:"workSessionsBeforeLongBreak,omitempty"`
	BooleanSettings             []string `json:"booleanSettings,omitempty"`
	TimeoutDuration             *int     `json:"timeoutDuration,omitempty"`
}

// MarshalJSON only writes values that differ from the defaults, so stored
// templates pick up future default changes.
func (s *Settings) MarshalJSON() ([]byte, error) {
	out := settingsJSON{
		LongBreakDuration:           s.longBreakDuration,
		WorkSessionsBeforeLongBreak: s.workSessionsBeforeLongBreak,
	}
	if s.workDuration != DefaultWorkDuration {
		out.WorkDuration = &s.workDuration
	}
	if s.breakDuration != DefaultBreakDuration {
		out.BreakDuration = &s.breakDuration
	}
	if s.timeoutDuration != DefaultTimeoutDuration {
		out.TimeoutDuration = &s.timeoutDuration
	}
	if !s.hasDefaultToggles() {
		out.BooleanSettings = make([]string, 0, len(s.toggles))
		for _, setting := range s.EnabledSettings() {
			out.BooleanSettings = append(out.BooleanSettings, string(setting))
		}
		// An empty slice would be dropped by omitempty.
		if len(out.BooleanSettings) == 0 {
			out.BooleanSettings = []string{"none"}
		}
	}
	return json.Marshal(out)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var in settingsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	parsed := NewSettings()
	if in.WorkDuration != nil {
		if err := CheckDuration(in.WorkDuration); err != nil {
			return err
		}
		parsed.workDuration = *in.WorkDuration
	}
	if in.BreakDuration != nil {
		if err := CheckDuration(in.BreakDuration); err != nil {
			return err
		}
		parsed.breakDuration = *in.BreakDuration
	}
	if in.TimeoutDuration != nil {
		if err := parsed.SetTimeoutDuration(*in.TimeoutDuration); err != nil {
			return err
		}
	}
	if err := parsed.SetLongBreak(in.WorkSessionsBeforeLongBreak, in.LongBreakDuration); err != nil {
		return err
	}
	if in.BooleanSettings != nil {
		parsed.toggles = make(map[model.BooleanSetting]bool, len(model.BooleanSettings))
		for _, name := range in.BooleanSettings {
			if name == "none" {
				continue
			}
			setting, ok := model.ParseBooleanSetting(name)
			if !ok {
				return apperrors.InvalidArgument("Unknown setting: " + name)
			}
			parsed.toggles[setting] = true
		}
	}

	*s = *parsed
	return nil
}

func (s *Settings) hasDefaultToggles() bool {
	enabled := s.EnabledSettings()
	if len(enabled) != len(defaultToggles) {
		return false
	}
	want := make([]string, 0, len(defaultToggles))
	for _, setting := range defaultToggles {
		want = append(want, string(setting))
	}
	got := make([]string, 0, len(enabled))
	for _, setting := range enabled {
		got = append(got, string(setting))
	}
	sort.Strings(want)
	sort.Strings(got)
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// SettingsView is the read-only form of Settings returned by the API.
type SettingsView struct {
	WorkDuration                int                    `json:"workDuration"`
	BreakDuration               int                    `json:"breakDuration"`
	LongBreakDuration           *int                   `json:"longBreakDuration,omitempty"`
	WorkSessionsBeforeLongBreak *int                   `json:"workSessionsBeforeLongBreak,omitempty"`
	TimeoutDuration             int                    `json:"timeoutDuration"`
	Enabled                     []model.BooleanSetting `json:"enabled"`
}

func (s *Settings) View() SettingsView {
	clone := s.Clone()
	return SettingsView{
		WorkDuration:                clone.workDuration,
		BreakDuration:               clone.breakDuration,
		LongBreakDuration:           clone.longBreakDuration,
		WorkSessionsBeforeLongBreak: clone.workSessionsBeforeLongBreak,
		TimeoutDuration:             clone.timeoutDuration,
		Enabled:                     clone.EnabledSettings(),
	}
}
