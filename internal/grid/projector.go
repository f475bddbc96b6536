package grid

import (
	"sort"
	"time"

	"mbsheets/internal/model"
)

// TimestampFields are the metadata columns whose RFC 3339 strings are
// formatted as times. Other string cells pass through unchanged.
var TimestampFields = map[string]bool{
	"triggered_at": true,
	"triggeredAt":  true,
}

// Projector turns result rows into a rectangular grid.
type Projector struct {
	times TimeFormatter
}

// NewProjector returns a projector that hands timestamps to times. A nil
// formatter uses DefaultLayout in UTC.
func NewProjector(times TimeFormatter) *Projector {
	if times == nil {
		times = &LayoutFormatter{Layout: DefaultLayout, Location: time.UTC}
	}
	return &Projector{times: times}
}

// Project lays rows out under a header of projection aliases. Without
// projections the header is the sorted set of keys found in rows. No rows
// yields an empty grid with no header.
func (p *Projector) Project(projections []model.Projection, rows []model.ResultRow) model.Grid {
	if len(rows) == 0 {
		return model.Grid{}
	}

	columns := make([]string, 0, len(projections))
	for _, proj := range projections {
		columns = append(columns, proj.Alias)
	}
	if len(columns) == 0 {
		columns = keyUnion(rows)
	}

	out := make(model.Grid, 0, len(rows)+1)
	header := make([]interface{}, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	out = append(out, header)

	for _, row := range rows {
		line := make([]interface{}, len(columns))
		for i, name := range columns {
			line[i] = p.cell(name, row[name])
		}
		out = append(out, line)
	}
	return out
}

func (p *Projector) cell(column string, value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return p.times.FormatTime(v)
	case *time.Time:
		if v == nil {
			return ""
		}
		return p.times.FormatTime(*v)
	case string:
		if !TimestampFields[column] {
			return v
		}
		if ts, ok := parseTimestamp(v); ok {
			return p.times.FormatTime(ts)
		}
		return v
	default:
		return v
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	// cheap shape check before parsing: "2006-01-02T"
	if len(s) < 20 || s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func keyUnion(rows []model.ResultRow) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
