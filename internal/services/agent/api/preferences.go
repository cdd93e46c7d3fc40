package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/daybreak-app/daybreak/internal/services/agent/prefs"
)

func (h *Handler) preferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if _, ok := h.session.Current(); !ok {
		writeAlert(w, errNotSignedIn)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

// preferenceField routes one preference setter per path suffix, mirroring the
// actions a settings screen exposes.
func (h *Handler) preferenceField(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session.Current(); !ok {
		writeAlert(w, errNotSignedIn)
		return
	}

	field := strings.TrimPrefix(r.URL.Path, "/v1/preferences/")
	switch {
	case field == "effective-wake-up-time":
		h.effectiveWakeUpTime(w, r)
	case strings.HasPrefix(field, "wake-up-time/"):
		h.wakeUpTime(w, r, strings.TrimPrefix(field, "wake-up-time/"))
	case field == "everyday-time":
		h.classTime(w, r, h.prefs.SetEverydayTime)
	case field == "weekdays-time":
		h.classTime(w, r, h.prefs.SetWeekdaysTime)
	case field == "weekends-time":
		h.classTime(w, r, h.prefs.SetWeekendsTime)
	case field == "wake-up-method":
		h.wakeUpMethod(w, r)
	case field == "step-goal":
		h.stepGoal(w, r)
	case field == "location":
		h.location(w, r)
	case field == "grace-period":
		h.gracePeriod(w, r)
	case field == "motivation-method":
		h.motivationMethod(w, r)
	default:
		writeBadRequest(w, "unknown preference field")
	}
}

func (h *Handler) effectiveWakeUpTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "date must be RFC 3339")
			return
		}
		date = parsed
	}
	writeJSON(w, http.StatusOK, map[string]*prefs.TimeOfDay{
		"wakeUpTime": h.prefs.EffectiveWakeUpTime(date),
	})
}

func (h *Handler) wakeUpTime(w http.ResponseWriter, r *http.Request, dayName string) {
	day, ok := parseWeekday(dayName)
	if !ok {
		writeBadRequest(w, "unknown weekday")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var t prefs.TimeOfDay
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeBadRequest(w, "unable to parse body")
			return
		}
		h.prefs.SetWakeUpTime(day, t)
	case http.MethodDelete:
		h.prefs.ClearWakeUpTime(day)
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

// classTime handles the everyday/weekdays/weekends time fields, which share a
// set-or-clear shape.
func (h *Handler) classTime(w http.ResponseWriter, r *http.Request, set func(*prefs.TimeOfDay)) {
	switch r.Method {
	case http.MethodPut:
		var t prefs.TimeOfDay
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeBadRequest(w, "unable to parse body")
			return
		}
		set(&t)
	case http.MethodDelete:
		set(nil)
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func (h *Handler) wakeUpMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Method prefs.WakeUpMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	switch req.Method {
	case prefs.WakeUpMethodSteps, prefs.WakeUpMethodLocation:
	default:
		writeBadRequest(w, "unknown wake-up method")
		return
	}
	h.prefs.SetWakeUpMethod(req.Method)
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func (h *Handler) stepGoal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Goal int `json:"goal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "unable to parse body")
			return
		}
		if err := h.prefs.SetStepGoal(&req.Goal); err != nil {
			writeAlert(w, err)
			return
		}
	case http.MethodDelete:
		if err := h.prefs.SetStepGoal(nil); err != nil {
			writeAlert(w, err)
			return
		}
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var loc prefs.Location
		if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
			writeBadRequest(w, "unable to parse body")
			return
		}
		h.prefs.SetLocation(&loc)
	case http.MethodDelete:
		h.prefs.SetLocation(nil)
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func (h *Handler) gracePeriod(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Seconds int `json:"seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "unable to parse body")
			return
		}
		if req.Seconds < 0 {
			writeBadRequest(w, "grace period must not be negative")
			return
		}
		grace := time.Duration(req.Seconds) * time.Second
		h.prefs.SetGracePeriod(&grace)
	case http.MethodDelete:
		h.prefs.SetGracePeriod(nil)
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func (h *Handler) motivationMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Method prefs.MotivationMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	switch req.Method {
	case prefs.MotivationPhone, prefs.MotivationMoney, prefs.MotivationNoise, prefs.MotivationNone:
	default:
		writeBadRequest(w, "unknown motivation method")
		return
	}
	h.prefs.SetMotivationMethod(req.Method)
	writeJSON(w, http.StatusOK, h.prefs.Current())
}

func parseWeekday(name string) (time.Weekday, bool) {
	switch strings.ToLower(name) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return 0, false
}
