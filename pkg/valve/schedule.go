package valve

import (
	"fmt"
	"time"

	"github.com/farmhub/farmhub-go/pkg/concurrent"
)

// Schedule opens a valve for Duration every Period, starting at Start.
type Schedule struct {
	Start    time.Time     `yaml:"start"`
	Period   time.Duration `yaml:"period"`
	Duration time.Duration `yaml:"duration"`
}

// Validate checks that the schedule describes a repeating window.
func (s Schedule) Validate() error {
	if s.Start.IsZero() {
		return fmt.Errorf("schedule has no start")
	}
	if s.Period <= 0 {
		return fmt.Errorf("schedule period must be positive, got %s", s.Period)
	}
	if s.Duration <= 0 || s.Duration > s.Period {
		return fmt.Errorf("schedule duration must be in (0, %s], got %s", s.Period, s.Duration)
	}
	return nil
}

// StateUpdate is a desired valve state and how long it stays valid.
type StateUpdate struct {
	State    State
	ValidFor time.Duration
}

// activeAt reports whether the schedule is in an open window at now, and how
// long until the window next opens or closes.
func (s Schedule) activeAt(now time.Time) (bool, time.Duration) {
	if now.Before(s.Start) {
		return false, s.Start.Sub(now)
	}
	if s.Period <= 0 {
		// Single window.
		if end := s.Start.Add(s.Duration); now.Before(end) {
			return true, end.Sub(now)
		}
		return false, concurrent.Forever
	}
	offset := now.Sub(s.Start) % s.Period
	if offset < s.Duration {
		return true, s.Duration - offset
	}
	return false, s.Period - offset
}

// GetStateUpdate computes the state demanded by schedules at now.
//
// Without schedules the valve rests in defaultState, with StateUnknown
// resolving to StateClosed. With schedules the valve is open while any of
// them is active and closed otherwise. ValidFor is the time until the
// earliest schedule edge.
func GetStateUpdate(schedules []Schedule, now time.Time, defaultState State) StateUpdate {
	if len(schedules) == 0 {
		if defaultState == StateUnknown {
			defaultState = StateClosed
		}
		return StateUpdate{State: defaultState, ValidFor: concurrent.Forever}
	}

	update := StateUpdate{State: StateClosed, ValidFor: concurrent.Forever}
	for _, schedule := range schedules {
		active, edge := schedule.activeAt(now)
		if active {
			update.State = StateOpen
		}
		if edge < update.ValidFor {
			update.ValidFor = edge
		}
	}
	return update
}
