package model

import (
	"time"

	"github.com/google/uuid"
)

// Window is one of three fixed daily UTC time ranges during which a
// scheduled batch may fire.
type Window string

const (
	WindowMorning   Window = "Morning"
	WindowAfternoon Window = "Afternoon"
	WindowEvening   Window = "Evening"
)

// Window clock ranges, UTC hours.
const (
	MorningStartHour   = 8
	MorningEndHour     = 12
	AfternoonStartHour = 12
	AfternoonEndHour   = 17
	EveningStartHour   = 17
	EveningEndHour     = 21
)

// Windows lists all windows in firing order.
func Windows() []Window {
	return []Window{WindowMorning, WindowAfternoon, WindowEvening}
}

// Valid reports whether w names a known window.
func (w Window) Valid() bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening:
		return true
	}
	return false
}

// StartHour returns the UTC hour at which the window opens.
func (w Window) StartHour() int {
	switch w {
	case WindowMorning:
		return MorningStartHour
	case WindowAfternoon:
		return AfternoonStartHour
	case WindowEvening:
		return EveningStartHour
	}
	return 0
}

// EndHour returns the UTC hour at which the window closes.
func (w Window) EndHour() int {
	switch w {
	case WindowMorning:
		return MorningEndHour
	case WindowAfternoon:
		return AfternoonEndHour
	case WindowEvening:
		return EveningEndHour
	}
	return 0
}

// StartOn returns the window's opening instant on the given UTC day.
func (w Window) StartOn(day time.Time) time.Time {
	day = day.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), w.StartHour(), 0, 0, 0, time.UTC)
}

// Frequency controls how many windows per day a schedule may fire in.
type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyMultiple Frequency = "multiple"
)

// Valid reports whether f names a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyOnce || f == FrequencyMultiple
}

// Schedule is a persisted intent to send a campaign's emails in a given
// window with quota state. Quota fields are the only state mutated by more
// than one concurrent path; they are consumed through an atomic conditional
// update in the repository, never read-modify-write in Go.
type Schedule struct {
	Base
	CampaignID               uuid.UUID `json:"campaign_id" db:"campaign_id"`
	UserID                   uuid.UUID `json:"user_id" db:"user_id"`
	CurrentMoodID            uuid.UUID `json:"current_mood_id" db:"current_mood_id"`
	Window                   Window    `json:"window" db:"window"`
	NextRunAt                time.Time `json:"next_run_at" db:"next_run_at"`
	RemainingSendsThisWindow int       `json:"remaining_sends_this_window" db:"remaining_sends_this_window"`
	DailySendsCount          int       `json:"daily_sends_count" db:"daily_sends_count"`
	SenderNote               *string   `json:"sender_note,omitempty" db:"sender_note"`
	Frequency                Frequency `json:"frequency" db:"frequency"`
	IsActive                 bool      `json:"is_active" db:"is_active"`
}
