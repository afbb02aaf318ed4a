package alert

import "time"

// Rule configures routing for one severity level. Loaded once at startup
// and read-only thereafter.
type Rule struct {
	// Channels are the delivery targets by registered name. Empty means
	// the default channel.
	Channels []string

	// Cooldown is the minimum time between recorded alerts for the same
	// (service, severity) key.
	Cooldown time.Duration

	// EscalateAfter is the number of recorded alerts within the trailing
	// hour that triggers escalation to the next severity. Zero disables
	// escalation for this level.
	EscalateAfter int
}

// Rules maps each severity to its rule.
type Rules map[Severity]Rule

// DefaultRules returns the routing table used when the operator does not
// configure one: short cooldowns for noisy low severities, aggressive
// escalation for repeated errors.
func DefaultRules() Rules {
	return Rules{
		SeverityInfo:     {Cooldown: 30 * time.Minute},
		SeverityWarning:  {Cooldown: 15 * time.Minute},
		SeverityError:    {Cooldown: 15 * time.Minute, EscalateAfter: 3},
		SeverityCritical: {Cooldown: 5 * time.Minute},
	}
}

// rule resolves the rule for sev, falling back to a zero-cooldown rule so
// an unconfigured severity still delivers.
func (r Rules) rule(sev Severity) Rule {
	if rule, ok := r[sev]; ok {
		return rule
	}
	return Rule{}
}
