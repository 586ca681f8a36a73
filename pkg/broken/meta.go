package broken

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoMeta is returned when a file has no multi-line meta block to mark.
var ErrNoMeta = errors.New("no meta block found")

var brokenLine = regexp.MustCompile(`broken\s+=`)

// brokenConditionTokens mark an existing broken line as more than a platform
// condition; such lines are left for a human.
var brokenConditionTokens = []string{
	"Static", "targetPlatform", "is32bit", "kernel", "with", "version", "meta", "python", "Support",
}

// InsertMark rewrites a nix file so that its meta block ends with
// `broken = expr;`, preceded by `# comment` when comment is set. An existing
// one-line platform-only broken mark is replaced.
func InsertMark(src []byte, expr, comment string) ([]byte, error) {
	if expr == "" {
		return nil, errors.New("empty broken expression")
	}
	if strings.ContainsAny(comment, "#/\n") {
		return nil, fmt.Errorf("comment %q must not contain '#', '/' or newlines", comment)
	}

	lines := strings.Split(strings.TrimRight(string(src), "\n"), "\n")
	lines, err := dropBrokenLine(lines)
	if err != nil {
		return nil, err
	}

	start, end, indent, err := metaBlock(lines)
	if err != nil {
		return nil, err
	}
	if indent < 0 {
		indent = leadingSpaces(lines[start]) + 2
	}

	pad := strings.Repeat(" ", indent)
	insert := make([]string, 0, 2)
	if comment != "" {
		insert = append(insert, pad+"# "+comment)
	}
	insert = append(insert, pad+"broken = "+expr+";")

	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:end]...)
	out = append(out, insert...)
	out = append(out, lines[end:]...)
	return []byte(strings.Join(out, "\n") + "\n"), nil
}

func dropBrokenLine(lines []string) ([]string, error) {
	idx := -1
	for i, l := range lines {
		if !brokenLine.MatchString(l) {
			continue
		}
		if idx >= 0 {
			return nil, errors.New("file contains multiple broken lines")
		}
		idx = i
	}
	if idx < 0 {
		return lines, nil
	}

	line := lines[idx]
	if !strings.Contains(line, ";") {
		return nil, errors.New("broken line does not end on the same line")
	}
	for _, tok := range brokenConditionTokens {
		if strings.Contains(line, tok) {
			return nil, fmt.Errorf("broken line depends on %q, not only on the platform", tok)
		}
	}
	prevIsComment := idx > 0 && strings.Contains(lines[idx-1], "#")
	nextIsMetaEnd := idx+1 < len(lines) && strings.Contains(lines[idx+1], "};")
	if prevIsComment && !nextIsMetaEnd {
		return nil, errors.New("broken line is explained by a comment above it; move both by hand")
	}

	out := make([]string, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...), nil
}

// metaBlock finds the first `meta = ... {` block. end is the index of its
// closing line; indent is that of the last non-empty line inside, or -1.
func metaBlock(lines []string) (start, end, indent int, err error) {
	start, end, indent = -1, -1, -1
	for i, l := range lines {
		if strings.Contains(l, "meta =") {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, 0, 0, ErrNoMeta
	}

	depth := 0
	for i := start; i < len(lines); i++ {
		l := lines[i]
		depth += strings.Count(l, "{") - strings.Count(l, "}")
		if i == start {
			if depth <= 0 {
				return 0, 0, 0, fmt.Errorf("%w: meta block on line %d is not multi-line", ErrNoMeta, start+1)
			}
			continue
		}
		if depth <= 0 {
			end = i
			break
		}
		if strings.TrimSpace(l) != "" {
			indent = leadingSpaces(l)
		}
	}
	if end < 0 {
		return 0, 0, 0, fmt.Errorf("%w: meta block is never closed", ErrNoMeta)
	}
	return start, end, indent, nil
}

func leadingSpaces(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}
