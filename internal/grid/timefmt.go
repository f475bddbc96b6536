package grid

import (
	"fmt"
	"time"
)

// DefaultLayout matches the date-time display the spreadsheet expects.
const DefaultLayout = "2006-01-02 15:04:05"

// TimeFormatter renders timestamps for display.
type TimeFormatter interface {
	FormatTime(t time.Time) string
}

// LayoutFormatter formats times with a Go layout in a fixed location.
type LayoutFormatter struct {
	Layout   string
	Location *time.Location
}

// NewLayoutFormatter loads zone (an IANA name such as "Europe/Berlin") and
// returns a formatter for layout.
func NewLayoutFormatter(layout, zone string) (*LayoutFormatter, error) {
	if layout == "" {
		layout = DefaultLayout
	}
	loc := time.UTC
	if zone != "" {
		var err error
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("load time zone: %w", err)
		}
	}
	return &LayoutFormatter{Layout: layout, Location: loc}, nil
}

// FormatTime renders t in the formatter's zone and layout.
func (f *LayoutFormatter) FormatTime(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(f.Layout)
}
