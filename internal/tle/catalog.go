package tle

import "strings"

// SplitCatalog splits a provider catalog response into raw element
// sets. The feed may be plain two-line sets or 3LE (a "0 " name line
// before each pair). Splitting is deliberately lenient: a dangling or
// out-of-order line still yields a set, which Parse then rejects, so
// every malformed entry is counted instead of silently dropped.
func SplitCatalog(text string) []ElementSet {
	var (
		sets    []ElementSet
		name    string
		pending string // line 1 waiting for its line 2
	)

	flush := func(line2 string) {
		sets = append(sets, ElementSet{Name: name, Line1: pending, Line2: line2})
		name, pending = "", ""
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \r")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "1 "):
			if pending != "" {
				// Two line-1s in a row: emit the orphan as a broken set.
				flush("")
			}
			pending = line
		case strings.HasPrefix(line, "2 "):
			flush(line)
		default:
			name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
		}
	}
	if pending != "" {
		flush("")
	}
	return sets
}
