package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var timeRe = regexp.MustCompile(`^\s*(\d{1,2})\s*:\s*(\d{1,2})\s*$`)

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses an "HH:MM" field. Single-digit parts are accepted.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	m := timeRe.FindStringSubmatch(raw)
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: hour %d out of range 0-23", raw, hour)
	}
	if minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: minute %d out of range 0-59", raw, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseDays parses a comma-separated weekday list such as "1,3,5".
// 0 is Sunday; 7 is folded onto 0. The result is sorted and deduplicated.
func ParseDays(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("invalid days %q: at least one weekday is required", raw)
	}

	seen := make(map[int]bool, 7)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		day, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid days %q: %q is not a number", raw, part)
		}
		if day == 7 {
			day = 0
		}
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("invalid days %q: weekday %d out of range 0-6", raw, day)
		}
		seen[day] = true
	}

	days := make([]int, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

// FormatDays renders weekdays in the stored "1,3,5" form.
func FormatDays(days []int) string {
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(day)
	}
	return strings.Join(parts, ",")
}
