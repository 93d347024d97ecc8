package sql

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyStatement indicates there was nothing to execute.
	ErrEmptyStatement = errors.New("empty SQL statement")

	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// NormalizeOption adjusts how Normalize reads quoted text.
type NormalizeOption func(*scanner)

// WithBackslashEscapes makes a backslash inside a quoted string escape the
// next character, as MySQL does unless NO_BACKSLASH_ESCAPES is set.
func WithBackslashEscapes() NormalizeOption {
	return func(s *scanner) { s.backslashEscapes = true }
}

// Normalize prepares a single statement for execution. Everything from the
// first top-level semicolon on is dropped as long as only semicolons,
// whitespace and comments follow it; anything else there is a second
// statement. Semicolons inside quotes and comments do not count.
func Normalize(statement string, opts ...NormalizeOption) (string, error) {
	var sc scanner
	for _, opt := range opts {
		opt(&sc)
	}
	return sc.single(statement)
}

type scanner struct {
	backslashEscapes bool
}

func (sc scanner) single(s string) (string, error) {
	end := -1
	significant := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' && strings.HasPrefix(s[i:], "--"):
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(s)
			}
			continue
		case c == '/' && strings.HasPrefix(s[i:], "/*"):
			if closing := strings.Index(s[i+2:], "*/"); closing >= 0 {
				i += closing + 3
			} else {
				i = len(s)
			}
			continue
		case c == ';':
			if end < 0 {
				end = i
			}
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			continue
		}

		if end >= 0 {
			return "", ErrMultipleStatements
		}
		significant = true
		if c == '\'' || c == '"' || c == '`' {
			i = sc.closingQuote(s, i)
		}
	}

	if !significant {
		return "", ErrEmptyStatement
	}
	if end < 0 {
		end = len(s)
	}
	return strings.TrimSpace(s[:end]), nil
}

// closingQuote returns the index of the quote closing the span opened at
// start, or len(s) when it is unterminated. A doubled quote stays inside.
func (sc scanner) closingQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch {
		case s[i] == '\\' && sc.backslashEscapes && q != '`':
			i++
		case s[i] == q:
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i
		}
	}
	return len(s)
}
