package console

import (
	"regexp"
	"strings"
)

// OutputFilter selects console lines for display
type OutputFilter struct {
	FilterType    string // "none", "errors", "search", "regex"
	Pattern       string
	CaseSensitive bool
	regex         *regexp.Regexp
}

// NewOutputFilter creates a new output filter
func NewOutputFilter(filterType, pattern string, caseSensitive bool) (*OutputFilter, error) {
	filter := &OutputFilter{
		FilterType:    filterType,
		Pattern:       pattern,
		CaseSensitive: caseSensitive,
	}

	if filterType == "regex" && pattern != "" {
		flags := ""
		if !caseSensitive {
			flags = "(?i)"
		}
		compiled, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, err
		}
		filter.regex = compiled
	}

	return filter, nil
}

// Match reports whether a line passes the filter.
func (f *OutputFilter) Match(line string) bool {
	switch f.FilterType {
	case "errors":
		return isErrorLine(line)

	case "search":
		if f.Pattern == "" {
			return true
		}
		if f.CaseSensitive {
			return strings.Contains(line, f.Pattern)
		}
		return strings.Contains(strings.ToLower(line), strings.ToLower(f.Pattern))

	case "regex":
		if f.regex == nil {
			return true
		}
		return f.regex.MatchString(line)

	default:
		return true
	}
}

// Apply returns the subset of lines passing the filter.
func (f *OutputFilter) Apply(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if f.Match(line.Text) {
			out = append(out, line)
		}
	}
	return out
}

func isErrorLine(line string) bool {
	lowerLine := strings.ToLower(line)
	keywords := []string{"error", "exception", "fatal", "warning", "warn", "failed", "failure", "severe"}
	for _, keyword := range keywords {
		if strings.Contains(lowerLine, keyword) {
			return true
		}
	}
	return false
}
