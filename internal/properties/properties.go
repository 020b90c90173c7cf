// Package properties reads and rewrites line-oriented key=value server
// configuration files while preserving comments, ordering, and keys it does
// not know about.
package properties

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Parse extracts the key/value pairs from file content. Comment lines
// (prefixed with '#' or '!') and lines without '=' are skipped. Keys and
// values are returned trimmed.
func Parse(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
			continue
		}
		idx := strings.Index(trimmed, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])
		if key == "" {
			continue
		}
		props[key] = value
	}
	return props
}

// Rewrite applies updates to file content. Lines whose key is in updates are
// replaced in place, keeping their original position; every other line is
// preserved verbatim. Updated keys absent from the content are appended at
// the end in sorted order. Applying the same updates twice yields identical
// output after the first application.
func Rewrite(content string, updates map[string]string) string {
	lines := strings.Split(content, "\n")

	// Drop a single trailing empty element so appends don't create blank
	// gaps; the trailing newline is restored on output.
	hadTrailingNewline := false
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
		hadTrailingNewline = true
	}

	seen := make(map[string]bool, len(updates))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
			continue
		}
		idx := strings.Index(trimmed, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		value, ok := updates[key]
		if !ok {
			continue
		}
		lines[i] = fmt.Sprintf("%s=%s", key, value)
		seen[key] = true
	}

	missing := make([]string, 0, len(updates))
	for key := range updates {
		if !seen[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		lines = append(lines, fmt.Sprintf("%s=%s", key, updates[key]))
	}

	out := strings.Join(lines, "\n")
	if hadTrailingNewline || len(missing) > 0 {
		out += "\n"
	}
	return out
}

// ReadFile parses the properties file at path. A missing file yields an
// empty map, not an error.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read properties file: %w", err)
	}
	return Parse(string(data)), nil
}

// UpdateFile rewrites the properties file at path with updates, creating it
// when absent.
func UpdateFile(path string, updates map[string]string) error {
	var content string
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read properties file: %w", err)
	}

	rewritten := Rewrite(content, updates)
	if err := os.WriteFile(path, []byte(rewritten), 0644); err != nil {
		return fmt.Errorf("failed to write properties file: %w", err)
	}
	return nil
}
