package alerts

import (
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// QuietHours is a daily window, in a fixed location, during which nothing is
// sent. The window may span midnight.
type QuietHours struct {
	enabled bool
	start   int
	end     int
	loc     *time.Location
}

// ParseQuietHours reads the HH:MM bounds of cfg. A nil loc means local time.
func ParseQuietHours(cfg config.QuietHours, loc *time.Location) (QuietHours, error) {
	if loc == nil {
		loc = time.Local
	}

	q := QuietHours{enabled: cfg.Enabled, loc: loc}
	if !cfg.Enabled {
		return q, nil
	}

	start, err := time.Parse("15:04", cfg.Start)
	if err != nil {
		return q, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid quiet hours start %q", cfg.Start)
	}

	end, err := time.Parse("15:04", cfg.End)
	if err != nil {
		return q, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid quiet hours end %q", cfg.End)
	}

	q.start = start.Hour()*60 + start.Minute()
	q.end = end.Hour()*60 + end.Minute()

	return q, nil
}

// Contains reports whether t falls inside the window. Equal bounds mean an
// empty window.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.enabled || q.start == q.end {
		return false
	}

	local := t.In(q.loc)
	m := local.Hour()*60 + local.Minute()

	if q.start < q.end {
		return m >= q.start && m < q.end
	}

	return m >= q.start || m < q.end
}
