package resource

import "fmt"

// Status is the phase a resource is in.
type Status int

const (
	Idle      Status = iota // No active request
	Loading                 // Request issued, no response yet
	Reloading               // Reload issued after an error, no response yet
	Resolved                // At least one response aggregated
	Error                   // The last request failed
)

var statusNames = [...]string{
	Idle:      "idle",
	Loading:   "loading",
	Reloading: "reloading",
	Resolved:  "resolved",
	Error:     "error",
}

// String returns the lower-case status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// Pending reports whether the status is Loading or Reloading.
func (s Status) Pending() bool {
	return s == Loading || s == Reloading
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("resource: invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("resource: unknown status %q", text)
}
