package command

import (
	"strings"
	"unicode"
)

// Request is one command line split at its first whitespace run. Word is
// matched case-sensitively against handler words; Args is passed down.
type Request struct {
	Word string
	Args string
	Line string
}

// ParseRequest trims line and splits off the first token.
func ParseRequest(line string) Request {
	trimmed := strings.TrimSpace(line)
	idx := strings.IndexFunc(trimmed, unicode.IsSpace)
	if idx < 0 {
		return Request{Word: trimmed, Line: line}
	}
	return Request{
		Word: trimmed[:idx],
		Args: strings.TrimSpace(trimmed[idx:]),
		Line: line,
	}
}

// Sub parses the remainder as a nested request, keeping the original line.
func (r Request) Sub() Request {
	sub := ParseRequest(r.Args)
	sub.Line = r.Line
	return sub
}

// Fields splits Args on whitespace.
func (r Request) Fields() []string { return strings.Fields(r.Args) }
