package timezone

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
)

var (
	zones   = make(map[string]*time.Location)
	zonesMu sync.RWMutex

	errEmptyZoneName = errors.New("empty time zone name")
)

// Load returns the location for the IANA time zone identifier, e.g.
// "Europe/Berlin". Loaded locations are cached.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errEmptyZoneName
	}

	zonesMu.RLock()
	loc, ok := zones[name]
	zonesMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed loading time zone %q", name)
	}

	zonesMu.Lock()
	zones[name] = loc
	zonesMu.Unlock()
	return loc, nil
}

// LoadOrUTC is like Load but falls back to UTC for unknown zones.
func LoadOrUTC(name string) *time.Location {
	loc, err := Load(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
