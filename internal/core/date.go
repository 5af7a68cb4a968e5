package core

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an expense date. Inputs without a zone are taken as UTC.
// The result is always in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// StoredTime returns t in UTC at the millisecond resolution every storage
// engine keeps. Records and filter bounds are compared at this resolution.
func StoredTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
