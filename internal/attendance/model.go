package attendance

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for an unknown student id.
	ErrNotFound = errors.New("student not found")
	// ErrAlreadyMarked is returned when attendance was recorded before.
	ErrAlreadyMarked = errors.New("attendance already marked")
	// ErrStorage wraps every failure of the underlying database.
	ErrStorage = errors.New("storage error")
)

// TimestampLayout is the persisted and wire format of attendance timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Student is the only persisted entity. Timestamp is nil until attendance is marked.
type Student struct {
	ID         string
	Name       string
	Email      string
	Attendance bool
	Timestamp  *time.Time
}

// Status is the spreadsheet label for the attendance flag.
func (s Student) Status() string {
	if s.Attendance {
		return "Present"
	}
	return "Absent"
}

// TimestampString returns the formatted timestamp or "" when not marked.
func (s Student) TimestampString() string {
	if s.Timestamp == nil {
		return ""
	}
	return FormatTimestamp(*s.Timestamp)
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
