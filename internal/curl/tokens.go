package curl

import (
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

// quoteState tracks shell quoting while scanning a command line.
type quoteState struct {
	single bool
	double bool
	ansi   bool
	escape bool
	skipLF bool
}

func (q *quoteState) open() bool {
	return q.single || q.double || q.ansi
}

// step consumes rs[*i]. It reports the rune to emit, whether to emit it, and
// whether the rune was consumed by quoting.
func (q *quoteState) step(rs []rune, i *int) (rune, bool, bool, error) {
	r := rs[*i]

	if q.skipLF {
		q.skipLF = false
		if r == '\n' {
			return 0, false, true, nil
		}
	}

	if q.escape {
		q.escape = false
		switch {
		case q.ansi:
			val, err := ansiEscape(rs, i)
			return val, true, true, err
		case r == '\n':
			return 0, false, true, nil
		case r == '\r':
			q.skipLF = true
			return 0, false, true, nil
		}
		return r, true, true, nil
	}

	if q.ansi {
		switch r {
		case '\\':
			q.escape = true
			return 0, false, true, nil
		case '\'':
			q.ansi = false
			return 0, false, true, nil
		}
		return r, true, true, nil
	}

	switch r {
	case '\\':
		if q.single {
			return r, true, true, nil
		}
		q.escape = true
		return 0, false, true, nil
	case '\'':
		if q.double {
			return r, true, true, nil
		}
		q.single = !q.single
		return 0, false, true, nil
	case '"':
		if q.single {
			return r, true, true, nil
		}
		q.double = !q.double
		return 0, false, true, nil
	case '$':
		if !q.single && !q.double && *i+1 < len(rs) && rs[*i+1] == '\'' {
			q.ansi = true
			*i++
			return 0, false, true, nil
		}
	}
	return 0, false, false, nil
}

// splitTokens splits a shell command line. Single quotes are literal, double
// quotes honour backslashes, $'...' decodes C escapes and a trailing
// backslash continues the line.
func splitTokens(input string) ([]string, error) {
	var (
		q   quoteState
		buf strings.Builder
		out []string
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	rs := []rune(input)
	for i := 0; i < len(rs); i++ {
		r, emit, handled, err := q.step(rs, &i)
		if err != nil {
			return nil, err
		}
		if handled {
			if emit {
				buf.WriteRune(r)
			}
			continue
		}
		if isSpace(rs[i]) && !q.single && !q.double {
			flush()
			continue
		}
		buf.WriteRune(rs[i])
	}

	if q.escape {
		return nil, errdef.New(errdef.CodeParse, "unterminated escape sequence")
	}
	if q.open() {
		return nil, errdef.New(errdef.CodeParse, "unterminated quoted string")
	}
	flush()
	return out, nil
}

func ansiEscape(rs []rune, i *int) (rune, error) {
	switch r := rs[*i]; r {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'x':
		return readHex(rs, i, 2)
	case 'u':
		return readHex(rs, i, 4)
	default:
		return r, nil
	}
}

func readHex(rs []rune, i *int, n int) (rune, error) {
	if *i+n >= len(rs) {
		return 0, errdef.New(errdef.CodeParse, "invalid hex escape")
	}
	val := rune(0)
	for _, r := range rs[*i+1 : *i+1+n] {
		var d rune
		switch {
		case r >= '0' && r <= '9':
			d = r - '0'
		case r >= 'a' && r <= 'f':
			d = r - 'a' + 10
		case r >= 'A' && r <= 'F':
			d = r - 'A' + 10
		default:
			return 0, errdef.New(errdef.CodeParse, "invalid hex escape")
		}
		val = val*16 + d
	}
	*i += n
	return val, nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
