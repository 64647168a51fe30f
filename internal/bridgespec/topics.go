package bridgespec

import (
	"fmt"
	"strings"
)

// topicSeparator splits topic levels per the MQTT specification.
const topicSeparator = "/"

// ValidateFilter checks a topic filter against MQTT filter syntax.
//
// Rules enforced:
//   - The filter must not be empty and must not contain NUL.
//   - `+` matches exactly one level and must occupy its level alone.
//   - `#` matches the remainder of the topic and must be the final level,
//     occupying it alone.
//
// Returns:
//   - error: Description of the violation, or nil if the filter is valid
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("topic filter cannot be empty")
	}
	if strings.ContainsRune(filter, '\x00') {
		return fmt.Errorf("topic filter cannot contain NUL")
	}

	levels := strings.Split(filter, topicSeparator)
	for i, level := range levels {
		if strings.Contains(level, "#") {
			if level != "#" {
				return fmt.Errorf("'#' must occupy its level alone in %q", filter)
			}
			if i != len(levels)-1 {
				return fmt.Errorf("'#' must be the final level in %q", filter)
			}
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("'+' must occupy its level alone in %q", filter)
		}
	}

	return nil
}

// Match reports whether a concrete topic name matches a filter.
//
// This mirrors broker-side matching: `+` consumes exactly one level,
// `#` consumes the remainder (including the parent level, so "a/#"
// matches "a"). The relay itself republishes to the concrete topic the
// broker resolved; Match exists for overlap checks and tests.
func Match(filter, topic string) bool {
	filterLevels := strings.Split(filter, topicSeparator)
	topicLevels := strings.Split(topic, topicSeparator)

	for i, fl := range filterLevels {
		if fl == "#" {
			return true
		}
		if i >= len(topicLevels) {
			// "a/+/c" cannot match "a/b"; "a/b/#" matching "a/b" was
			// handled above.
			return i == len(filterLevels)-1 && fl == "#"
		}
		if fl != "+" && fl != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
