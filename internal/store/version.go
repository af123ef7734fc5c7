package store

import (
	"fmt"
	"strconv"
	"time"
)

// VersionMode selects the optional version suffix appended to stored
// paths at creation time.
type VersionMode int

const (
	// VersionNone stores exactly one path per (type, identifier).
	VersionNone VersionMode = iota
	// VersionInt appends a monotonically increasing integer per
	// (type, identifier).
	VersionInt
	// VersionDate appends a calendar stamp chosen at creation time.
	VersionDate
)

const dateVersionFormat = "20060102-150405"

// ParseVersionMode maps a configuration token to a VersionMode.
func ParseVersionMode(s string) (VersionMode, error) {
	switch s {
	case "", "none":
		return VersionNone, nil
	case "int":
		return VersionInt, nil
	case "date":
		return VersionDate, nil
	}
	return VersionNone, fmt.Errorf("invalid versioning mode %q (want \"int\" or \"date\")", s)
}

// validVersion reports whether token is a well-formed version for the mode.
func (m VersionMode) validVersion(token string) bool {
	switch m {
	case VersionInt:
		_, err := strconv.Atoi(token)
		return err == nil
	case VersionDate:
		_, err := time.Parse(dateVersionFormat, token)
		return err == nil
	}
	return false
}

// less orders two valid version tokens.
func (m VersionMode) less(a, b string) bool {
	if m == VersionInt {
		ia, _ := strconv.Atoi(a)
		ib, _ := strconv.Atoi(b)
		return ia < ib
	}
	// Fixed-width stamps order lexicographically.
	return a < b
}

// next allocates the version following latest; latest is empty when no
// version exists yet.
func (m VersionMode) next(latest string, now func() time.Time) string {
	switch m {
	case VersionInt:
		prev := 0
		if latest != "" {
			prev, _ = strconv.Atoi(latest)
		}
		return strconv.Itoa(prev + 1)
	case VersionDate:
		return now().Format(dateVersionFormat)
	}
	return ""
}
