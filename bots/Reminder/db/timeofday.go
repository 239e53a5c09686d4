package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var errUnknownTimeFormat = errors.New("unknown time format")

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeLayouts = []string{
	"15:04",
	"15.04",
	"3:04PM",
	"3:04 PM",
	"3PM",
	"3 PM",
}

// ParseTimeOfDay parses 24-hour ("09:30", "9.30") and 12-hour ("9:30 PM",
// "9pm") times.
func ParseTimeOfDay(txt string) (TimeOfDay, error) {
	txt = strings.ToUpper(strings.TrimSpace(txt))
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, txt)
		if err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}

	return TimeOfDay{}, errors.Wrapf(errUnknownTimeFormat, "%q", txt)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func timeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}
