// Package annotation extracts progress directives embedded in free-form
// message text. A directive has the shape
//
//	[progress|<task-name>|<value>|<optional note>]
//
// with a case-insensitive tag, a 1-3 digit value, and a note that may
// not contain ']'. Messages legitimately contain non-directive bracket
// text, so malformed candidates are skipped rather than raised as
// errors.
package annotation

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Directive is a parsed (task, progress, note?) triple extracted from
// message text. Progress is already clamped to [0,100].
type Directive struct {
	TaskName string
	Progress int
	Note     *string
}

// directivePattern matches one embedded progress block. The task name
// excludes '|' and ']'; the value is 1-3 digits; the note excludes ']'.
var directivePattern = regexp.MustCompile(
	`(?i)\[progress\|([^|\]]+)\|(\d{1,3})(?:\|([^\]]+))?\]`,
)

// Extract scans message text for progress directives, returning the
// surviving matches in the order they appear. Matches with a blank task
// name or an unparseable value are dropped; duplicates for the same
// task are all returned so the caller can apply them in order.
func Extract(message string) []Directive {
	var directives []Directive

	for _, match := range directivePattern.FindAllStringSubmatch(message, -1) {
		taskName := strings.TrimSpace(match[1])
		if taskName == "" {
			continue
		}

		value, err := strconv.Atoi(match[2])
		if err != nil {
			slog.Debug("unable to parse progress value in directive",
				"raw_value", match[2],
				"task_name", taskName)
			continue
		}

		directive := Directive{
			TaskName: taskName,
			Progress: clamp(value),
		}

		if note := strings.TrimSpace(match[3]); note != "" {
			directive.Note = &note
		}

		directives = append(directives, directive)
	}

	return directives
}

func clamp(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
