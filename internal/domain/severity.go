package domain

import "fmt"

// Severity is the ordered alert level of an anomaly.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalJSON encodes the severity as its string name so alert log
// records stay readable.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the string names produced by MarshalJSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"INFO"`:
		*s = SeverityInfo
	case `"WARNING"`:
		*s = SeverityWarning
	case `"CRITICAL"`:
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %s", data)
	}
	return nil
}

// Phase is the current stage of the retraining cadence. It advances
// monotonically with cumulative observation count and never regresses.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseWeekly
	PhaseMonthly
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseWeekly:
		return "weekly"
	case PhaseMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
