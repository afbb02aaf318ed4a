// Package alert implements cooldown-suppressed, severity-escalating alert
// routing for the fleet. One Manager owns all per-key history; health
// sweeps and scheduled jobs feed it concurrently.
package alert

import "fmt"

// Severity orders alerts from informational to critical. The ordering is
// load-bearing: escalation walks upward one level at a time and stops at
// critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Next returns the escalation target and whether one exists. Critical is
// a hard terminal: it never escalates, even if rules are misconfigured
// with an escalate_after for it.
func (s Severity) Next() (Severity, bool) {
	switch s {
	case SeverityInfo:
		return SeverityWarning, true
	case SeverityWarning:
		return SeverityError, true
	case SeverityError:
		return SeverityCritical, true
	default:
		return s, false
	}
}

// ParseSeverity maps a config string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// Severities lists all levels in escalation order.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
}
