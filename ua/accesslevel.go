package ua

import (
	"fmt"
	"strings"
)

// AccessLevel is the bitmask of operations permitted on a variable's value.
type AccessLevel uint8

// Access level bits.
const (
	AccessLevelNone         AccessLevel = 0
	AccessLevelCurrentRead  AccessLevel = 1 << 0
	AccessLevelCurrentWrite AccessLevel = 1 << 1
	AccessLevelHistoryRead  AccessLevel = 1 << 2
	AccessLevelHistoryWrite AccessLevel = 1 << 3

	AccessLevelCurrentReadOrWrite = AccessLevelCurrentRead |
		AccessLevelCurrentWrite
)

// CanRead returns true if the current value may be read.
func (a AccessLevel) CanRead() bool {
	return a&AccessLevelCurrentRead != 0
}

// CanWrite returns true if the current value may be written.
func (a AccessLevel) CanWrite() bool {
	return a&AccessLevelCurrentWrite != 0
}

var accessLevelNames = []struct {
	bit  AccessLevel
	name string
}{
	{AccessLevelCurrentRead, "CurrentRead"},
	{AccessLevelCurrentWrite, "CurrentWrite"},
	{AccessLevelHistoryRead, "HistoryRead"},
	{AccessLevelHistoryWrite, "HistoryWrite"},
}

func (a AccessLevel) String() string {
	if a == AccessLevelNone {
		return "None"
	}

	names := make([]string, 0, len(accessLevelNames))
	for _, n := range accessLevelNames {
		if a&n.bit != 0 {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}

// ParseAccessLevel converts the textual forms used in configuration files.
// Besides the bit names joined by "|", the shorthands "none", "read",
// "write", "readwrite" and "readonly" are accepted.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AccessLevelNone, nil
	case "read", "readonly":
		return AccessLevelCurrentRead, nil
	case "write", "writeonly":
		return AccessLevelCurrentWrite, nil
	case "readwrite", "read-write", "readorwrite":
		return AccessLevelCurrentReadOrWrite, nil
	}

	var level AccessLevel
	for _, part := range strings.Split(s, "|") {
		found := false
		for _, n := range accessLevelNames {
			if strings.EqualFold(strings.TrimSpace(part), n.name) {
				level |= n.bit
				found = true
			}
		}

		if !found {
			return AccessLevelNone, fmt.Errorf("unknown access level %q", part)
		}
	}

	return level, nil
}
