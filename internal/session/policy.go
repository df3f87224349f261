package session

import "strings"

// Policy controls when the run's browser session is destroyed.
type Policy string

const (
	// PolicyAlways leaves destruction to the scenarios themselves and checks
	// the session before every scenario.
	PolicyAlways Policy = "always"
	// PolicyClear reuses one session across scenarios, clearing cookies and
	// storage in between, and destroys it once after the last scenario.
	PolicyClear Policy = "clear"
)

// ParsePolicy maps a configured value to a Policy. Anything other than
// "always" behaves like PolicyClear.
func ParsePolicy(v string) Policy {
	if strings.EqualFold(strings.TrimSpace(v), string(PolicyAlways)) {
		return PolicyAlways
	}
	if v = strings.TrimSpace(v); v == "" {
		return PolicyClear
	}
	return Policy(strings.ToLower(v))
}

// DestroysAtEnd reports whether the runner tears the session down after the
// last scenario and after every failed one.
func (p Policy) DestroysAtEnd() bool {
	return p != PolicyAlways
}
