package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a time of day expressed in minutes since midnight.
type ClockTime int

const minutesPerDay ClockTime = 24 * 60

// ParseClock parses "HH:MM" or "HH:MM:SS" into a ClockTime. Seconds are ignored.
func ParseClock(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid clock hour %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid clock minute %q", raw)
	}
	value := ClockTime(hours*60 + minutes)
	if value > minutesPerDay {
		return 0, fmt.Errorf("clock value %q exceeds 24:00", raw)
	}
	return value, nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(raw string) ClockTime {
	value, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return value
}

// String renders the clock as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON encodes the clock as an "HH:MM" string.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts either an "HH:MM" string or a number of minutes.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		value, parseErr := ParseClock(raw)
		if parseErr != nil {
			return parseErr
		}
		*c = value
		return nil
	}
	var minutes int
	if err := json.Unmarshal(data, &minutes); err != nil {
		return fmt.Errorf("clock must be HH:MM or minutes: %w", err)
	}
	*c = ClockTime(minutes)
	return nil
}

// TimeSlot is a bookable [Start, End) interval on a day of the week (1=Monday .. 7=Sunday).
type TimeSlot struct {
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Start     ClockTime `db:"start_minute" json:"start"`
	End       ClockTime `db:"end_minute" json:"end"`
}

// Valid reports whether the slot has a known day and a positive length.
func (t TimeSlot) Valid() bool {
	return t.DayOfWeek >= 1 && t.DayOfWeek <= 7 && t.Start >= 0 && t.End <= minutesPerDay && t.Start < t.End
}

// Overlaps reports whether both slots fall on the same day and their half-open intervals intersect.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	if t.DayOfWeek != other.DayOfWeek {
		return false
	}
	return t.Start < other.End && other.Start < t.End
}

// Contains reports whether other lies fully inside t on the same day.
func (t TimeSlot) Contains(other TimeSlot) bool {
	return t.DayOfWeek == other.DayOfWeek && t.Start <= other.Start && other.End <= t.End
}

// Minutes returns the slot length.
func (t TimeSlot) Minutes() int {
	return int(t.End - t.Start)
}

func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", DayName(t.DayOfWeek), t.Start, t.End)
}

var dayIndexMap = map[int]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

// DayName maps a day index to its upper-case English name.
func DayName(day int) string {
	if name, ok := dayIndexMap[day]; ok {
		return name
	}
	return fmt.Sprintf("DAY_%d", day)
}

// DayIndex maps a day name (case-insensitive) to its index, or 0 when unknown.
func DayIndex(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}
