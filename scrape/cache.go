/*
cache.go - On-disk day cache for raw grid HTML

PURPOSE:
  Raw grid pages are cached one file per booking day (grid_DD-MM-YYYY.html)
  so repeated runs within the freshness window re-parse instead of
  re-fetching the portal. Freshness depends on how far ahead the day is:
  today's page changes constantly, next week's barely at all.

FRESHNESS WINDOWS (day offset from today -> minutes):
  0 (today)     15
  1 (tomorrow)  60
  2..7          360
  beyond        1440

  The smallest threshold >= offset wins. These windows also back the
  store-level cache-first decision in the runner.
*/
package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// FreshnessWindow returns how long a cached day remains fresh given its
// offset from today.
func FreshnessWindow(dayOffset int) time.Duration {
	switch {
	case dayOffset <= 0:
		return 15 * time.Minute
	case dayOffset == 1:
		return 60 * time.Minute
	case dayOffset <= 7:
		return 360 * time.Minute
	default:
		return 1440 * time.Minute
	}
}

// DayCache stores one raw HTML file per booking day.
type DayCache struct {
	dir   string
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewDayCache creates the cache directory if needed.
func NewDayCache(dir string, clock clockwork.Clock, log zerolog.Logger) (*DayCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DayCache{dir: dir, clock: clock, log: log.With().Str("component", "daycache").Logger()}, nil
}

// Path returns the cache file path for a booking day.
func (c *DayCache) Path(day time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("grid_%s.html", day.Format("02-01-2006")))
}

// Read returns the cached HTML for the day if the file exists and is
// within the freshness window for the day's offset from today.
func (c *DayCache) Read(day time.Time) (string, bool) {
	path := c.Path(day)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}

	now := c.clock.Now()
	offset := dayOffset(now, day)
	if now.Sub(info.ModTime()) >= FreshnessWindow(offset) {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("cache file unreadable")
		return "", false
	}
	return string(data), true
}

// Write stores the day's HTML, replacing any previous file.
func (c *DayCache) Write(day time.Time, html string) error {
	path := c.Path(day)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	c.log.Debug().Str("path", path).Msg("cached grid html")
	return nil
}

var cacheFilePattern = regexp.MustCompile(`^grid_(\d{2}-\d{2}-\d{4})\.html$`)

// Cleanup removes cache files for days that have already passed. Returns
// the removed paths.
func (c *DayCache) Cleanup() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}

	today := midnight(c.clock.Now())
	var removed []string
	for _, e := range entries {
		m := cacheFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		fileDay, err := time.ParseInLocation("02-01-2006", m[1], today.Location())
		if err != nil {
			continue
		}
		if fileDay.Before(today) {
			path := filepath.Join(c.dir, e.Name())
			if err := os.Remove(path); err == nil {
				removed = append(removed, path)
				c.log.Info().Str("file", e.Name()).Msg("deleted stale cache file")
			}
		}
	}
	return removed
}

// dayOffset counts calendar days from now's date to day's date. Computed
// on UTC-rebuilt dates so a 23- or 25-hour day around a clock change
// cannot truncate the division.
func dayOffset(now, day time.Time) int {
	ny, nm, nd := now.Date()
	dy, dm, dd := day.Date()
	a := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
