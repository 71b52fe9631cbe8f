package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const clockLayout = "15:04"

// TimeWindow is one open interval within a day, as wall-clock "HH:MM" times.
// Windows spanning midnight are not supported.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayAvailability holds a doctor's open windows for one weekday. Weekdays
// without an entry are fully unavailable.
type DayAvailability struct {
	Day     string       `json:"day"`
	Windows []TimeWindow `json:"windows"`
}

type WeeklyAvailability []DayAvailability

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Validate checks that the availability template is well formed: known day
// names, no duplicate days, parseable start < end per window, and disjoint
// windows within a day. The booking-time containment check assumes this has
// passed, so it runs whenever availability is written.
func (w WeeklyAvailability) Validate() error {
	seen := make(map[string]bool, len(w))
	for _, day := range w {
		name := strings.ToLower(day.Day)
		if _, ok := weekdayNames[name]; !ok {
			return fmt.Errorf("unknown weekday %q", day.Day)
		}
		if seen[name] {
			return fmt.Errorf("duplicate availability entry for %s", name)
		}
		seen[name] = true

		if len(day.Windows) == 0 {
			return fmt.Errorf("availability entry for %s has no windows", name)
		}

		type span struct{ start, end int }
		spans := make([]span, 0, len(day.Windows))
		for _, win := range day.Windows {
			start, err := parseClock(win.Start)
			if err != nil {
				return err
			}
			end, err := parseClock(win.End)
			if err != nil {
				return err
			}
			if start >= end {
				return fmt.Errorf("window %s-%s on %s: start must be before end", win.Start, win.End, name)
			}
			spans = append(spans, span{start, end})
		}

		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return fmt.Errorf("overlapping windows on %s", name)
			}
		}
	}
	return nil
}

// dayFor returns the entry matching the weekday, if any.
func (w WeeklyAvailability) dayFor(wd time.Weekday) (DayAvailability, bool) {
	for _, day := range w {
		if weekdayNames[strings.ToLower(day.Day)] == wd && len(day.Windows) > 0 {
			return day, true
		}
	}
	return DayAvailability{}, false
}

// Covers decides whether the proposed slot lies entirely within a single
// open window on the slot's weekday. It distinguishes "no hours that day"
// from "outside open hours" because the corrective action differs for the
// user.
func (w WeeklyAvailability) Covers(slot TimeSlot) error {
	sameDay := slot.Start.Year() == slot.End.Year() && slot.Start.YearDay() == slot.End.YearDay()
	if !sameDay {
		return ErrSlotSpansDays
	}

	day, ok := w.dayFor(slot.Start.Weekday())
	if !ok {
		return fmt.Errorf("%w: %s", ErrDayUnavailable, strings.ToLower(slot.Start.Weekday().String()))
	}

	start := minuteOfDay(slot.Start)
	end := minuteOfDay(slot.End)
	for _, win := range day.Windows {
		winStart, err := parseClock(win.Start)
		if err != nil {
			return err
		}
		winEnd, err := parseClock(win.End)
		if err != nil {
			return err
		}
		if winStart <= start && end <= winEnd {
			return nil
		}
	}
	return fmt.Errorf("%w on %s", ErrOutsideHours, strings.ToLower(slot.Start.Weekday().String()))
}

// FreeSlots dices the open windows of the given date into candidate slots of
// the given duration and drops those overlapping an already-booked interval.
// Candidates start on duration boundaries from the window start.
func (w WeeklyAvailability) FreeSlots(date time.Time, duration time.Duration, booked []TimeSlot) []TimeSlot {
	day, ok := w.dayFor(date.Weekday())
	if !ok {
		return nil
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var free []TimeSlot
	for _, win := range day.Windows {
		winStart, err := parseClock(win.Start)
		if err != nil {
			continue
		}
		winEnd, err := parseClock(win.End)
		if err != nil {
			continue
		}

		step := int(duration / time.Minute)
		if step <= 0 {
			continue
		}
		for m := winStart; m+step <= winEnd; m += step {
			candidate := TimeSlot{
				Start: midnight.Add(time.Duration(m) * time.Minute),
				End:   midnight.Add(time.Duration(m+step) * time.Minute),
			}
			taken := false
			for _, b := range booked {
				if candidate.Overlaps(b) {
					taken = true
					break
				}
			}
			if !taken {
				free = append(free, candidate)
			}
		}
	}
	return free
}
