package hlsproxy

import "strings"

// LineKind classifies one manifest line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineTag
	LineURI
)

// Line is a trimmed manifest line and its kind.
type Line struct {
	Kind LineKind
	Text string
}

// Tokenize splits a manifest into lines. CRLF endings are accepted and a final
// newline does not produce a trailing blank line.
func Tokenize(content string) []Line {
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n")
	if raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}

	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r)
		switch {
		case text == "":
			lines = append(lines, Line{Kind: LineBlank})
		case strings.HasPrefix(text, "#"):
			lines = append(lines, Line{Kind: LineTag, Text: text})
		default:
			lines = append(lines, Line{Kind: LineURI, Text: text})
		}
	}
	return lines
}
