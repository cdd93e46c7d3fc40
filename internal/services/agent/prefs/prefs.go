// Package prefs owns the user's scheduling preferences: a local-first document
// with debounced persistence and a best-effort remote mirror.
package prefs

import (
	"time"
)

// WakeUpMethod selects how a wake-up is confirmed.
type WakeUpMethod string

const (
	WakeUpMethodSteps    WakeUpMethod = "steps"
	WakeUpMethodLocation WakeUpMethod = "location"
)

// MotivationMethod selects the consequence for missing a wake-up.
type MotivationMethod string

const (
	MotivationPhone MotivationMethod = "phone"
	MotivationMoney MotivationMethod = "money"
	MotivationNoise MotivationMethod = "noise"
	MotivationNone  MotivationMethod = "none"
)

// TimeOfDay is a clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Location is a geofence target for location-based wake-ups.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
	Name         string  `json:"name"`
}

// Preferences is the user's scheduling document. It is persisted as one JSON
// document with nested optional fields; absent pointers mean "not set".
type Preferences struct {
	WakeUpTimes      map[time.Weekday]TimeOfDay `json:"wakeUpTimes"`
	EverydayTime     *TimeOfDay                 `json:"everydayTime,omitempty"`
	WeekdaysTime     *TimeOfDay                 `json:"weekdaysTime,omitempty"`
	WeekendsTime     *TimeOfDay                 `json:"weekendsTime,omitempty"`
	WakeUpMethod     WakeUpMethod               `json:"wakeUpMethod"`
	StepGoal         *int                       `json:"stepGoal,omitempty"`
	Location         *Location                  `json:"location,omitempty"`
	GracePeriod      *time.Duration             `json:"gracePeriod,omitempty"`
	MotivationMethod MotivationMethod           `json:"motivationMethod"`
}

// Default returns the preference document used before the user saves anything
// and after a corrupted document is discarded.
func Default() Preferences {
	return Preferences{
		WakeUpTimes:      make(map[time.Weekday]TimeOfDay),
		WakeUpMethod:     WakeUpMethodSteps,
		MotivationMethod: MotivationNone,
	}
}

// EffectiveWakeUpTime resolves the wake-up time for the given date.
//
// Precedence: specific-weekday override, then the everyday override, then the
// weekday/weekend class override. Returns nil when nothing applies.
func (p Preferences) EffectiveWakeUpTime(date time.Time) *TimeOfDay {
	weekday := date.Weekday()
	if t, ok := p.WakeUpTimes[weekday]; ok {
		out := t
		return &out
	}
	if p.EverydayTime != nil {
		out := *p.EverydayTime
		return &out
	}
	if weekday == time.Saturday || weekday == time.Sunday {
		if p.WeekendsTime != nil {
			out := *p.WeekendsTime
			return &out
		}
		return nil
	}
	if p.WeekdaysTime != nil {
		out := *p.WeekdaysTime
		return &out
	}
	return nil
}

// clone deep-copies the document so snapshots handed to persistence cannot be
// mutated by later setter calls.
func (p Preferences) clone() Preferences {
	out := p
	out.WakeUpTimes = make(map[time.Weekday]TimeOfDay, len(p.WakeUpTimes))
	for day, t := range p.WakeUpTimes {
		out.WakeUpTimes[day] = t
	}
	if p.EverydayTime != nil {
		t := *p.EverydayTime
		out.EverydayTime = &t
	}
	if p.WeekdaysTime != nil {
		t := *p.WeekdaysTime
		out.WeekdaysTime = &t
	}
	if p.WeekendsTime != nil {
		t := *p.WeekendsTime
		out.WeekendsTime = &t
	}
	if p.StepGoal != nil {
		goal := *p.StepGoal
		out.StepGoal = &goal
	}
	if p.Location != nil {
		loc := *p.Location
		out.Location = &loc
	}
	if p.GracePeriod != nil {
		grace := *p.GracePeriod
		out.GracePeriod = &grace
	}
	return out
}
