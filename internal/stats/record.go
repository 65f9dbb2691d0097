package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one activity as delivered by the activity source, loosely typed
type Record map[string]any

// Keys of a Record that the calculators read
const (
	keyID             = "id"
	keyName           = "name"
	keySportType      = "sport_type"
	keyStartDate      = "start_date"
	keyStartDateLocal = "start_date_local"
	keyDistance       = "distance"
	keyElapsedTime    = "elapsed_time"
	keyElevationGain  = "total_elevation_gain"
)

// droppedKeys are redundant with sport_type or embed objects nobody reads
var droppedKeys = []string{"type", "resource_state", "athlete"}

// Activity is a normalized record with parsed timestamps
type Activity struct {
	ID                 int64          `json:"id"`
	Name               string         `json:"name"`
	SportType          string         `json:"sport_type"`
	StartDate          time.Time      `json:"start_date"`
	StartDateLocal     time.Time      `json:"start_date_local"`
	Distance           float64        `json:"distance"`             // meters
	ElapsedTime        int64          `json:"elapsed_time"`         // seconds
	TotalElevationGain float64        `json:"total_elevation_gain"` // meters
	Extra              map[string]any `json:"extra,omitempty"`
}

// Table is the normalized, cutoff-filtered activity set for one user.
// It is never mutated after Normalize returns.
type Table struct {
	rows []Activity
}

// Len returns the number of activities in the table
func (t Table) Len() int {
	return len(t.rows)
}

// Empty reports whether the table holds no activities
func (t Table) Empty() bool {
	return len(t.rows) == 0
}

// Rows returns a copy of the activities in input order
func (t Table) Rows() []Activity {
	out := make([]Activity, len(t.rows))
	copy(out, t.rows)
	return out
}

// NewTable builds a table from already-normalized activities
func NewTable(rows []Activity) Table {
	return Table{rows: append([]Activity(nil), rows...)}
}

// Normalize converts raw records into a Table, dropping activities whose
// start_date_local is not strictly after cutoff. A record with unparseable
// dates fails the whole batch with a *DataProcessingError.
func Normalize(records []Record, cutoff time.Time) (Table, error) {
	if len(records) == 0 {
		return Table{}, nil
	}

	rows := make([]Activity, 0, len(records))
	for i, rec := range records {
		if rec == nil {
			return Table{}, &DataProcessingError{Index: i, Err: errors.New("nil record")}
		}

		a, err := normalizeRecord(i, rec)
		if err != nil {
			return Table{}, err
		}

		if !a.StartDateLocal.After(cutoff) {
			continue
		}
		rows = append(rows, a)
	}

	return Table{rows: rows}, nil
}

func normalizeRecord(index int, rec Record) (Activity, error) {
	var a Activity
	var err error

	if a.StartDate, err = parseTimestamp(rec[keyStartDate]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyStartDate, Err: err}
	}
	if a.StartDateLocal, err = parseTimestamp(rec[keyStartDateLocal]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyStartDateLocal, Err: err}
	}

	if a.ID, err = toInt64(rec[keyID]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyID, Err: err}
	}
	if a.Name, err = toString(rec[keyName]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyName, Err: err}
	}
	if a.SportType, err = toString(rec[keySportType]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keySportType, Err: err}
	}
	if a.Distance, err = toFloat64(rec[keyDistance]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyDistance, Err: err}
	}
	if a.ElapsedTime, err = toInt64(rec[keyElapsedTime]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyElapsedTime, Err: err}
	}
	if a.TotalElevationGain, err = toFloat64(rec[keyElevationGain]); err != nil {
		return a, &DataProcessingError{Index: index, Field: keyElevationGain, Err: err}
	}

	for k, v := range rec {
		if isKnownKey(k) || isDroppedKey(k) {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}

	return a, nil
}

func isKnownKey(k string) bool {
	switch k {
	case keyID, keyName, keySportType, keyStartDate, keyStartDateLocal,
		keyDistance, keyElapsedTime, keyElevationGain:
		return true
	}
	return false
}

func isDroppedKey(k string) bool {
	for _, d := range droppedKeys {
		if k == d {
			return true
		}
	}
	return false
}

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp reads a date field. Zone-less strings are taken as UTC.
// Values are returned in UTC so that start_date_local keeps its wall clock.
func parseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, errors.New("missing timestamp")
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errors.New("zero timestamp")
		}
		return val.UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, errors.New("empty timestamp")
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// toInt64 truncates fractional values, matching how durations are reported
func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case float32:
		return int64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		// some exports carry ids as strings
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", val)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}
