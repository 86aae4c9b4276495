package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/fetcher"
	"github.com/sells-group/campus-locator/internal/model"
)

// ErrNoSources is returned when the data directory holds no usable source file.
var ErrNoSources = eris.New("source: no data files found")

// ReadStats reports what happened to one source during a load.
type ReadStats struct {
	Source        model.Source `json:"source"`
	File          string       `json:"file,omitempty"`
	Skipped       string       `json:"skipped,omitempty"`
	Rows          int          `json:"rows"`
	Kept          int          `json:"kept"`
	BadTimestamps int          `json:"bad_timestamps"`
	MissingFields int          `json:"missing_fields"`
}

// Reader loads event files described by a descriptor table.
type Reader struct {
	descriptors []Descriptor
}

// NewReader returns a Reader over the given descriptors, or the default
// table when none are passed.
func NewReader(descriptors ...Descriptor) *Reader {
	if len(descriptors) == 0 {
		descriptors = DefaultDescriptors()
	}
	return &Reader{descriptors: descriptors}
}

// Load reads every present source file in dir. Files missing required
// columns are skipped; rows with unparsable timestamps or empty required
// fields are dropped and counted.
func (r *Reader) Load(ctx context.Context, dir string) ([]model.Event, []ReadStats, error) {
	var events []model.Event
	var stats []ReadStats
	used := 0

	for _, d := range r.descriptors {
		st := ReadStats{Source: d.Source}

		path, ok := FindFile(dir, d.FileNames)
		if !ok {
			st.Skipped = "not found"
			stats = append(stats, st)
			continue
		}
		st.File = filepath.Base(path)

		tbl, err := fetcher.ReadTable(ctx, path)
		if err != nil {
			return nil, stats, eris.Wrapf(err, "source: read %s", d.Source)
		}
		for _, rn := range d.Renames {
			tbl.Rename(rn.From, rn.To)
		}
		if !tbl.Has(d.RequiredColumns()...) {
			st.Skipped = "missing columns"
			zap.L().Warn("source: skipping file without required columns",
				zap.String("source", string(d.Source)),
				zap.String("file", st.File),
				zap.Strings("required", d.RequiredColumns()),
				zap.Strings("header", tbl.Header),
			)
			stats = append(stats, st)
			continue
		}

		used++
		st.Rows = tbl.Len()
		for i := range tbl.Rows {
			ev, reason := extract(tbl, i, d)
			switch reason {
			case "":
				events = append(events, ev)
				st.Kept++
			case "timestamp":
				st.BadTimestamps++
			default:
				st.MissingFields++
			}
		}

		zap.L().Info("source: loaded file",
			zap.String("source", string(d.Source)),
			zap.String("file", st.File),
			zap.Int("rows", st.Rows),
			zap.Int("kept", st.Kept),
			zap.Int("bad_timestamps", st.BadTimestamps),
		)
		stats = append(stats, st)
	}

	if used == 0 {
		return nil, stats, eris.Wrapf(ErrNoSources, "source: dir %s", dir)
	}
	return events, stats, nil
}

// extract builds one event from row i. The returned reason is empty when the
// row is usable.
func extract(tbl *fetcher.Table, i int, d Descriptor) (model.Event, string) {
	id := tbl.Value(i, d.IDColumn)
	if id == "" {
		return model.Event{}, "id"
	}

	loc := d.SynthLocation
	if loc == "" {
		loc = tbl.Value(i, ColLocation)
		if loc == "" {
			return model.Event{}, "location"
		}
	}

	ts, ok := ParseTimestamp(tbl.Value(i, ColTimestamp))
	if !ok {
		return model.Event{}, "timestamp"
	}

	return model.Event{
		TempID:     id,
		Timestamp:  ts,
		LocationID: loc,
		Source:     d.Source,
	}, ""
}

// ParseTimestamp parses the common date/time layouts found in campus exports.
// Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
	if err != nil || ts.IsZero() {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// FindFile returns the first existing candidate in dir. Each name is tried
// as given and then with an .xlsx extension.
func FindFile(dir string, names []string) (string, bool) {
	for _, name := range names {
		candidates := []string{name}
		if ext := filepath.Ext(name); ext != ".xlsx" {
			candidates = append(candidates, strings.TrimSuffix(name, ext)+".xlsx")
		}
		for _, c := range candidates {
			path := filepath.Join(dir, c)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}
