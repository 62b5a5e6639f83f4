// Package dateutil provides the calendar-instant helpers the sample
// catalog domain needs: conversion between a time.Time and a signed
// Unix-seconds count, and between ISO 8601 date-only strings and
// instants interpreted as midnight UTC.
package dateutil

import (
	"fmt"
	"time"
)

const isoDateLayout = "2006-01-02"

// ParseError is returned when a date string does not match the expected
// ISO 8601 date-only layout.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dateutil: cannot parse %q as an ISO 8601 date: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ToUnixSeconds converts a calendar instant to a signed count of seconds
// since the Unix epoch (UTC).
func ToUnixSeconds(t time.Time) int64 {
	return t.Unix()
}

// FromUnixSeconds converts a signed Unix-seconds count back to a calendar
// instant, in UTC.
func FromUnixSeconds(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// ParseISODate parses a "YYYY-MM-DD" string as midnight UTC on that date.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return time.Time{}, &ParseError{Value: s, Err: err}
	}
	return t.UTC(), nil
}

// FormatISODate renders a calendar instant as its UTC "YYYY-MM-DD" date.
func FormatISODate(t time.Time) string {
	return t.UTC().Format(isoDateLayout)
}
