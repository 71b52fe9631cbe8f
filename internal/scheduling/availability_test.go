package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-09-07 is a Monday.
func mondaySlot(t *testing.T, startHHMM, endHHMM string) TimeSlot {
	t.Helper()
	start, err := time.Parse("2006-01-02 15:04", "2026-09-07 "+startHHMM)
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02 15:04", "2026-09-07 "+endHHMM)
	require.NoError(t, err)
	return TimeSlot{Start: start, End: end}
}

func mondayMorning() WeeklyAvailability {
	return WeeklyAvailability{
		{Day: "monday", Windows: []TimeWindow{{Start: "09:00", End: "12:00"}}},
	}
}

func TestWeeklyAvailabilityValidate(t *testing.T) {
	tests := []struct {
		name    string
		avail   WeeklyAvailability
		wantErr string
	}{
		{
			name:  "valid single window",
			avail: mondayMorning(),
		},
		{
			name: "valid split day",
			avail: WeeklyAvailability{
				{Day: "monday", Windows: []TimeWindow{
					{Start: "09:00", End: "12:00"},
					{Start: "13:00", End: "17:00"},
				}},
			},
		},
		{
			name: "touching windows are disjoint",
			avail: WeeklyAvailability{
				{Day: "tuesday", Windows: []TimeWindow{
					{Start: "09:00", End: "12:00"},
					{Start: "12:00", End: "14:00"},
				}},
			},
		},
		{
			name:    "unknown day",
			avail:   WeeklyAvailability{{Day: "moonday", Windows: []TimeWindow{{Start: "09:00", End: "10:00"}}}},
			wantErr: "unknown weekday",
		},
		{
			name: "duplicate day",
			avail: WeeklyAvailability{
				{Day: "monday", Windows: []TimeWindow{{Start: "09:00", End: "10:00"}}},
				{Day: "Monday", Windows: []TimeWindow{{Start: "11:00", End: "12:00"}}},
			},
			wantErr: "duplicate availability entry",
		},
		{
			name:    "empty windows",
			avail:   WeeklyAvailability{{Day: "friday", Windows: nil}},
			wantErr: "no windows",
		},
		{
			name:    "inverted window",
			avail:   WeeklyAvailability{{Day: "friday", Windows: []TimeWindow{{Start: "12:00", End: "09:00"}}}},
			wantErr: "start must be before end",
		},
		{
			name: "overlapping windows",
			avail: WeeklyAvailability{
				{Day: "friday", Windows: []TimeWindow{
					{Start: "09:00", End: "12:00"},
					{Start: "11:00", End: "14:00"},
				}},
			},
			wantErr: "overlapping windows",
		},
		{
			name:    "unparseable clock",
			avail:   WeeklyAvailability{{Day: "friday", Windows: []TimeWindow{{Start: "9am", End: "12:00"}}}},
			wantErr: "parse clock time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.avail.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCoversBoundaries(t *testing.T) {
	avail := mondayMorning()

	// Exact boundary match succeeds.
	require.NoError(t, avail.Covers(mondaySlot(t, "09:00", "12:00")))
	require.NoError(t, avail.Covers(mondaySlot(t, "10:00", "10:30")))

	// One minute outside either edge fails.
	assert.ErrorIs(t, avail.Covers(mondaySlot(t, "08:59", "09:30")), ErrOutsideHours)
	assert.ErrorIs(t, avail.Covers(mondaySlot(t, "11:30", "12:01")), ErrOutsideHours)
}

func TestCoversDayWithoutHours(t *testing.T) {
	avail := mondayMorning()

	// 2026-09-08 is a Tuesday.
	start, err := time.Parse("2006-01-02 15:04", "2026-09-08 10:00")
	require.NoError(t, err)
	slot := TimeSlot{Start: start, End: start.Add(30 * time.Minute)}

	err = avail.Covers(slot)
	require.ErrorIs(t, err, ErrDayUnavailable)
	assert.Contains(t, err.Error(), "tuesday")
}

func TestCoversDoesNotSpanGaps(t *testing.T) {
	avail := WeeklyAvailability{
		{Day: "monday", Windows: []TimeWindow{
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		}},
	}

	// Interval straddling the lunch gap is rejected even though both ends
	// fall inside open windows.
	assert.ErrorIs(t, avail.Covers(mondaySlot(t, "11:00", "14:00")), ErrOutsideHours)
}

func TestCoversRejectsMultiDaySlot(t *testing.T) {
	start, err := time.Parse("2006-01-02 15:04", "2026-09-07 23:00")
	require.NoError(t, err)
	slot := TimeSlot{Start: start, End: start.Add(2 * time.Hour)}

	assert.ErrorIs(t, mondayMorning().Covers(slot), ErrSlotSpansDays)
}

func TestFreeSlots(t *testing.T) {
	avail := mondayMorning()
	date, err := time.Parse("2006-01-02", "2026-09-07")
	require.NoError(t, err)

	booked := []TimeSlot{mondaySlot(t, "10:00", "10:30")}

	free := avail.FreeSlots(date, 30*time.Minute, booked)

	// 09:00-12:00 yields six half-hour slots, one taken.
	require.Len(t, free, 5)
	for _, s := range free {
		assert.False(t, s.Overlaps(booked[0]), "free slot %v overlaps booked", s)
		assert.NoError(t, avail.Covers(s))
	}
}

func TestFreeSlotsEmptyOnDayOff(t *testing.T) {
	date, err := time.Parse("2006-01-02", "2026-09-08") // Tuesday
	require.NoError(t, err)

	assert.Empty(t, mondayMorning().FreeSlots(date, 30*time.Minute, nil))
}

func TestTimeSlotOverlaps(t *testing.T) {
	a := mondaySlot(t, "10:00", "10:30")

	assert.True(t, a.Overlaps(mondaySlot(t, "10:15", "10:45")))
	assert.True(t, a.Overlaps(mondaySlot(t, "09:45", "10:15")))
	assert.True(t, a.Overlaps(mondaySlot(t, "09:00", "12:00")))

	// Half-open: back-to-back slots do not overlap.
	assert.False(t, a.Overlaps(mondaySlot(t, "10:30", "11:00")))
	assert.False(t, a.Overlaps(mondaySlot(t, "09:30", "10:00")))
}
