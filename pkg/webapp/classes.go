package webapp

import "strings"

// ClassRules decide which runner-provided components are visible to the
// application.
//
// Rules are checked in order and the first match wins. A rule ending in "."
// matches every component with that prefix, any other rule matches exactly.
// A leading "-" marks the matched components as exposed; a rule without it
// hides them. Components matching no rule are exposed.
type ClassRules []string

// DefaultServerClasses exposes the health, metrics and websocket components
// and hides everything else under "webrun.".
var DefaultServerClasses = ClassRules{
	"-webrun.health",
	"-webrun.metrics",
	"-webrun.websocket",
	"webrun.",
}

// ParseClassRules splits a comma-separated rule list.
func ParseClassRules(s string) ClassRules {
	var rules ClassRules
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rules = append(rules, r)
		}
	}
	return rules
}

// Hidden reports whether component is hidden by the rules.
func (r ClassRules) Hidden(component string) bool {
	for _, rule := range r {
		exposed := strings.HasPrefix(rule, "-")
		pattern := strings.TrimPrefix(rule, "-")
		if matchClass(pattern, component) {
			return !exposed
		}
	}
	return false
}

func matchClass(pattern, component string) bool {
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, ".") {
		return strings.HasPrefix(component, pattern)
	}
	return pattern == component
}
