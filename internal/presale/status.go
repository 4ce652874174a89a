package presale

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle status of a sale.
type Status int32

const (
	// StatusPending is the initial status; the sale awaits admin approval.
	StatusPending Status = iota

	// StatusApproved means registration may open.
	StatusApproved

	// StatusLive means purchases are accepted inside the sale window.
	StatusLive

	// StatusCompleted is terminal; claims and listing are allowed.
	StatusCompleted

	// StatusCancelled is terminal.
	StatusCancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusLive:
		return "live"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, ok := ParseStatus(str)
	if !ok {
		return fmt.Errorf("unknown sale status %q", str)
	}
	*s = parsed
	return nil
}

// ParseStatus converts a string to Status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "live":
		return StatusLive, true
	case "completed":
		return StatusCompleted, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	default:
		return StatusPending, false
	}
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CountsAsActive reports whether the sale is included in the active counter.
func (s Status) CountsAsActive() bool {
	return s == StatusApproved || s == StatusLive
}

// AcceptsRegistration reports whether participants may register.
func (s Status) AcceptsRegistration() bool {
	return s == StatusApproved || s == StatusLive
}
