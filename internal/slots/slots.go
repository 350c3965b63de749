// Package slots derives a day's absolute publication instants from its
// civil-time labels and the reference time zone.
package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
)

// DayKeyFormat is the calendar-date layout used throughout the engine.
const DayKeyFormat = "2006-01-02"

// BuildSlots converts each civil-time label plus the calendar date into
// an absolute instant in the given zone. The zone's real offset rules
// apply per date, so days crossing a DST transition still produce
// correct instants. Labels must be "HH:MM" and strictly increasing.
func BuildSlots(dayKey string, civilLabels []string, loc *time.Location) ([]models.TimeSlot, error) {
	if loc == nil {
		return nil, models.NewConfigurationError("time zone is required", nil)
	}
	if len(civilLabels) == 0 {
		return nil, models.NewConfigurationError("at least one slot label is required", nil)
	}

	day, err := time.ParseInLocation(DayKeyFormat, dayKey, loc)
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("invalid day key %q", dayKey), err)
	}

	result := make([]models.TimeSlot, 0, len(civilLabels))
	for i, label := range civilLabels {
		hour, minute, err := parseCivilLabel(label)
		if err != nil {
			return nil, models.NewConfigurationError(fmt.Sprintf("invalid slot label %q", label), err)
		}

		instant := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if i > 0 && !instant.After(result[i-1].Instant) {
			return nil, models.NewConfigurationError(
				fmt.Sprintf("slot labels must be strictly increasing: %q does not follow %q", label, civilLabels[i-1]), nil)
		}

		result = append(result, models.TimeSlot{
			DayKey:     dayKey,
			SlotIndex:  i,
			CivilLabel: label,
			Instant:    instant,
		})
	}

	return result, nil
}

// DayWindow returns the half-open [start, end) interval covering the
// given calendar day in the reference zone. The window length follows
// the zone's rules, so DST days are 23 or 25 hours long.
func DayWindow(dayKey string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		return time.Time{}, time.Time{}, models.NewConfigurationError("time zone is required", nil)
	}
	day, err := time.ParseInLocation(DayKeyFormat, dayKey, loc)
	if err != nil {
		return time.Time{}, time.Time{}, models.NewConfigurationError(fmt.Sprintf("invalid day key %q", dayKey), err)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}

func parseCivilLabel(label string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minute: %w", err)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour, minute, nil
}
