package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts the three known statuses, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusRejected:
		return st, true
	}
	return "", false
}

// Active reports whether a registration in this status counts against capacity.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// CanTransitionTo is the admin status table: only pending moves, and only
// to accepted or rejected. Reopening is a separate operation.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusAccepted || next == StatusRejected)
}

// CanReopen reports whether a terminal status may be sent back to pending.
func (s Status) CanReopen() bool {
	return s == StatusAccepted || s == StatusRejected
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsBlank reports whether s has no visible characters.
func IsBlank(s string) bool {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			return false
		}
		s = s[size:]
	}
	return true
}
