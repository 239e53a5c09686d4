package db

import (
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var errUnknownWeekday = errors.New("unknown weekday")

// Weekdays is a set of days of week. Bit N stands for time.Weekday(N).
type Weekdays uint8

// weekOrder lists days in the order they're displayed to users.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w.add(d)
	}
	return w
}

func (w Weekdays) Has(day time.Weekday) bool {
	return w&(1<<uint(day)) != 0
}

func (w *Weekdays) add(day time.Weekday) {
	*w |= 1 << uint(day)
}

// Toggle inserts the day if it's absent or removes it if present. Returns true
// if the day has been added.
func (w *Weekdays) Toggle(day time.Weekday) bool {
	if w.Has(day) {
		*w &^= 1 << uint(day)
		return false
	}
	w.add(day)
	return true
}

func (w Weekdays) Len() int {
	return bits.OnesCount8(uint8(w))
}

// Days returns the days in the set, Monday first.
func (w Weekdays) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range weekOrder {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) String() string {
	if w == 0 {
		return "-"
	}

	names := make([]string, 0, 7)
	for _, d := range w.Days() {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ", ")
}

// ints converts the set into the integer array stored in the database.
func (w Weekdays) ints() []int32 {
	days := w.Days()
	res := make([]int32, len(days))
	for i, d := range days {
		res[i] = int32(d)
	}
	return res
}

func weekdaysFromInts(days []int32) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, errors.Wrapf(errUnknownWeekday, "day %d", d)
		}
		w.add(time.Weekday(d))
	}
	return w, nil
}

// ParseWeekday accepts a day number (0 is Sunday, 6 is Saturday) or an
// English day name, full or abbreviated to three letters.
func ParseWeekday(txt string) (time.Weekday, error) {
	txt = strings.ToLower(strings.TrimSpace(txt))

	if n, err := strconv.Atoi(txt); err == nil {
		if n < 0 || n > 6 {
			return 0, errors.Wrapf(errUnknownWeekday, "%q", txt)
		}
		return time.Weekday(n), nil
	}

	if len(txt) >= 3 {
		for _, d := range weekOrder {
			name := strings.ToLower(d.String())
			if txt == name || txt == name[:3] {
				return d, nil
			}
		}
	}

	return 0, errors.Wrapf(errUnknownWeekday, "%q", txt)
}
