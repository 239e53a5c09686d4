package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
	}{
		{"09:30", TimeOfDay{9, 30}},
		{"9:30", TimeOfDay{9, 30}},
		{"23:59", TimeOfDay{23, 59}},
		{"00:00", TimeOfDay{0, 0}},
		{"7.05", TimeOfDay{7, 5}},
		{"9:30 pm", TimeOfDay{21, 30}},
		{"12:15AM", TimeOfDay{0, 15}},
		{"9pm", TimeOfDay{21, 0}},
		{" 8 AM ", TimeOfDay{8, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeOfDayRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "banana", "25:00", "12:60", "9:5", "13pm"} {
		_, err := ParseTimeOfDay(in)
		assert.ErrorIs(t, err, errUnknownTimeFormat, in)
	}
}

func TestTimeOfDayStringParsesBack(t *testing.T) {
	for _, tod := range []TimeOfDay{{0, 0}, {7, 5}, {23, 59}} {
		got, err := ParseTimeOfDay(tod.String())
		require.NoError(t, err)
		assert.Equal(t, tod, got)
		assert.Equal(t, tod, timeOfDayFromMinutes(tod.Minutes()))
	}
}
