package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/daybreak-app/daybreak/internal/platform/timeouts"
	"github.com/daybreak-app/daybreak/internal/services/agent/storage"
)

// DefaultDebounce is the quiet period a burst of setter calls must observe
// before the document is written.
const DefaultDebounce = 2 * time.Second

// Mirror replicates the preference document to the remote sync backend.
// Mirror writes are best effort; local storage stays authoritative.
type Mirror interface {
	UpsertPreferences(ctx context.Context, ownerID string, document []byte) error
}

// Metrics receives preference persistence events.
type Metrics interface {
	RecordPreferenceFlush(outcome string)
	RecordDecodeFallback()
}

// Options tune a preference store.
type Options struct {
	Debounce time.Duration
	Mirror   Mirror
	Metrics  Metrics
	Now      func() time.Time
}

// Store holds one preference document for the current identity.
//
// Setters mutate in-memory state synchronously and schedule a debounced save;
// a flush reads whatever in-memory state exists at fire time, so the last
// writer within a burst wins.
type Store struct {
	persist  storage.PreferenceStore
	mirror   Mirror
	metrics  Metrics
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ownerID string
	current Preferences
	timer   *time.Timer
}

// NewStore creates a preference store over the given persistence layer.
func NewStore(persist storage.PreferenceStore, opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		persist:  persist,
		mirror:   opts.Mirror,
		metrics:  opts.Metrics,
		debounce: opts.Debounce,
		now:      opts.Now,
		current:  Default(),
	}
}

// Activate loads the stored document for the given identity and makes it the
// live document. A corrupted document falls back to defaults rather than
// failing activation; local preferences must never block sign-in.
func (s *Store) Activate(ctx context.Context, ownerID string) error {
	record, err := s.persist.GetPreferences(ctx, ownerID)

	loaded := Default()
	switch {
	case err == nil:
		if decodeErr := json.Unmarshal(record.Document, &loaded); decodeErr != nil {
			log.Printf("preferences for %s are corrupted, falling back to defaults: %v", ownerID, decodeErr)
			if s.metrics != nil {
				s.metrics.RecordDecodeFallback()
			}
			loaded = Default()
		}
		if loaded.WakeUpTimes == nil {
			loaded.WakeUpTimes = make(map[time.Weekday]TimeOfDay)
		}
	case errors.Is(err, storage.ErrNotFound):
		// First activation for this identity.
	default:
		return fmt.Errorf("load preferences: %w", err)
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.ownerID = ownerID
	s.current = loaded
	s.mu.Unlock()
	return nil
}

// Deactivate drops the in-memory document and pending flush without touching
// persisted state. Used on sign-out.
func (s *Store) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.ownerID = ""
	s.current = Default()
}

// Purge removes the persisted document for the active identity and resets the
// in-memory state. Used on account deletion.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	ownerID := s.ownerID
	s.stopTimerLocked()
	s.ownerID = ""
	s.current = Default()
	s.mu.Unlock()

	if ownerID == "" {
		return nil
	}
	if err := s.persist.DeletePreferences(ctx, ownerID); err != nil {
		return fmt.Errorf("purge preferences: %w", err)
	}
	return nil
}

// Current returns a snapshot of the live document.
func (s *Store) Current() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// EffectiveWakeUpTime resolves the wake-up time for the given date from the
// live document.
func (s *Store) EffectiveWakeUpTime(date time.Time) *TimeOfDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.EffectiveWakeUpTime(date)
}

// SetWakeUpTime sets the override for one weekday.
func (s *Store) SetWakeUpTime(day time.Weekday, t TimeOfDay) {
	s.mutate(func(p *Preferences) { p.WakeUpTimes[day] = t })
}

// ClearWakeUpTime removes the override for one weekday.
func (s *Store) ClearWakeUpTime(day time.Weekday) {
	s.mutate(func(p *Preferences) { delete(p.WakeUpTimes, day) })
}

// SetEverydayTime sets or clears the everyday override.
func (s *Store) SetEverydayTime(t *TimeOfDay) {
	s.mutate(func(p *Preferences) { p.EverydayTime = copyTime(t) })
}

// SetWeekdaysTime sets or clears the weekday-class override.
func (s *Store) SetWeekdaysTime(t *TimeOfDay) {
	s.mutate(func(p *Preferences) { p.WeekdaysTime = copyTime(t) })
}

// SetWeekendsTime sets or clears the weekend-class override.
func (s *Store) SetWeekendsTime(t *TimeOfDay) {
	s.mutate(func(p *Preferences) { p.WeekendsTime = copyTime(t) })
}

// SetWakeUpMethod selects the wake-up confirmation method.
func (s *Store) SetWakeUpMethod(method WakeUpMethod) {
	s.mutate(func(p *Preferences) { p.WakeUpMethod = method })
}

// SetStepGoal sets or clears the step goal. The goal must be positive.
func (s *Store) SetStepGoal(goal *int) error {
	if goal != nil && *goal <= 0 {
		return fmt.Errorf("step goal must be positive, got %d", *goal)
	}
	s.mutate(func(p *Preferences) {
		if goal == nil {
			p.StepGoal = nil
			return
		}
		value := *goal
		p.StepGoal = &value
	})
	return nil
}

// SetLocation sets or clears the wake-up geofence.
func (s *Store) SetLocation(location *Location) {
	s.mutate(func(p *Preferences) {
		if location == nil {
			p.Location = nil
			return
		}
		value := *location
		p.Location = &value
	})
}

// SetGracePeriod sets or clears the wake-up grace period.
func (s *Store) SetGracePeriod(grace *time.Duration) {
	s.mutate(func(p *Preferences) {
		if grace == nil {
			p.GracePeriod = nil
			return
		}
		value := *grace
		p.GracePeriod = &value
	})
}

// SetMotivationMethod selects the motivational consequence.
func (s *Store) SetMotivationMethod(method MotivationMethod) {
	s.mutate(func(p *Preferences) { p.MotivationMethod = method })
}

// mutate applies one setter and (re)schedules the debounced save, measured
// from this most recent mutation.
func (s *Store) mutate(apply func(*Preferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.current)
	if s.ownerID == "" {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, done := context.WithTimeout(context.Background(), timeouts.SyncRequest)
		defer done()
		if err := s.Flush(ctx); err != nil {
			log.Printf("flush preferences: %v", err)
		}
	})
}

// Flush writes the current document immediately, cancelling any pending
// debounced save.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	ownerID := s.ownerID
	snapshot := s.current.clone()
	s.mu.Unlock()

	if ownerID == "" {
		return nil
	}

	document, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	record := storage.PreferenceRecord{
		OwnerID:   ownerID,
		Document:  document,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.persist.PutPreferences(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPreferenceFlush("error")
		}
		return fmt.Errorf("persist preferences: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordPreferenceFlush("ok")
	}

	if s.mirror != nil {
		if err := s.mirror.UpsertPreferences(ctx, ownerID, document); err != nil {
			log.Printf("mirror preferences for %s: %v", ownerID, err)
		}
	}
	return nil
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func copyTime(t *TimeOfDay) *TimeOfDay {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
