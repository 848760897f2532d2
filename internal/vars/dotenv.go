package vars

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

type quoteMode int

const (
	quoteModeNone quoteMode = iota
	quoteModeSingle
	quoteModeDouble
)

type assignment struct {
	key   string
	value string
}

func IsDotEnvPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".json"), strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return false
	case base == ".env", strings.HasPrefix(base, ".env."), strings.HasSuffix(base, ".env"):
		return true
	}
	return false
}

// parseDotEnv returns assignments in file order. Keys assigned twice appear twice,
// and the environment built from them lets the later one win.
func parseDotEnv(r io.Reader, path string) ([]assignment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []assignment
	seen := make(map[string]string)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}

		key, rawValue, err := splitAssignment(trimmed, lineNumber)
		if err != nil {
			return nil, err
		}
		value, mode, err := parseDotEnvValue(rawValue, lineNumber)
		if err != nil {
			return nil, err
		}
		if mode != quoteModeSingle {
			// dotenv ${NAME} refers only to keys defined above or the process env
			value, err = expandDotEnvValue(value, seen, lineNumber)
			if err != nil {
				return nil, err
			}
		}
		seen[key] = value
		out = append(out, assignment{key: key, value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read env file %s", path)
	}
	return out, nil
}

func splitAssignment(line string, lineNumber int) (string, string, error) {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "export ") || strings.HasPrefix(lower, "export\t") {
		line = strings.TrimSpace(line[len("export"):])
	}
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", errdef.New(errdef.CodeParse, "dotenv line %d: expected KEY=value", lineNumber)
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", errdef.New(errdef.CodeParse, "dotenv line %d: missing key", lineNumber)
	}
	return key, line[idx+1:], nil
}

func parseDotEnvValue(raw string, lineNumber int) (string, quoteMode, error) {
	v := strings.TrimLeft(raw, " \t")
	if v == "" {
		return "", quoteModeNone, nil
	}
	switch v[0] {
	case '"':
		out, err := parseQuoted(v, quoteModeDouble, lineNumber)
		return out, quoteModeDouble, err
	case '\'':
		out, err := parseQuoted(v, quoteModeSingle, lineNumber)
		return out, quoteModeSingle, err
	}
	return stripInlineComment(v), quoteModeNone, nil
}

func parseQuoted(input string, mode quoteMode, lineNumber int) (string, error) {
	quote := input[0]
	var b strings.Builder
	for i := 1; i < len(input); i++ {
		ch := input[i]
		if ch == '\\' {
			if i+1 >= len(input) {
				return "", errdef.New(errdef.CodeParse, "dotenv line %d: unfinished escape", lineNumber)
			}
			i++
			if mode == quoteModeDouble {
				b.WriteByte(unescape(input[i]))
			} else {
				b.WriteByte(input[i])
			}
			continue
		}
		if ch == quote {
			rest := strings.TrimSpace(input[i+1:])
			if rest != "" && rest[0] != '#' && rest[0] != ';' {
				return "", errdef.New(
					errdef.CodeParse,
					"dotenv line %d: unexpected content after quoted value",
					lineNumber,
				)
			}
			return b.String(), nil
		}
		b.WriteByte(ch)
	}
	return "", errdef.New(errdef.CodeParse, "dotenv line %d: unterminated quoted value", lineNumber)
}

func stripInlineComment(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] != '#' && value[i] != ';' {
			continue
		}
		if i == 0 || value[i-1] == ' ' || value[i-1] == '\t' {
			return strings.TrimSpace(value[:i])
		}
	}
	return strings.TrimSpace(value)
}

func expandDotEnvValue(value string, defined map[string]string, lineNumber int) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch == '\\' && i+1 < len(value) && value[i+1] == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		if ch != '$' || i+1 >= len(value) {
			b.WriteByte(ch)
			continue
		}
		var name string
		switch {
		case value[i+1] == '{':
			end := strings.IndexByte(value[i+2:], '}')
			if end < 0 {
				return "", errdef.New(errdef.CodeParse, "dotenv line %d: missing closing brace for ${", lineNumber)
			}
			name = strings.TrimSpace(value[i+2 : i+2+end])
			if name == "" {
				return "", errdef.New(errdef.CodeParse, "dotenv line %d: empty variable name", lineNumber)
			}
			i += end + 2
		case isNameChar(value[i+1]):
			j := i + 1
			for j < len(value) && isNameChar(value[j]) {
				j++
			}
			name = value[i+1 : j]
			i = j - 1
		default:
			b.WriteByte(ch)
			continue
		}
		ref, ok := defined[name]
		if !ok {
			ref, ok = os.LookupEnv(name)
		}
		if !ok {
			return "", errdef.New(errdef.CodeParse, "dotenv line %d: variable %q is not defined", lineNumber, name)
		}
		b.WriteString(ref)
	}
	return b.String(), nil
}

func isNameChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '0':
		return 0
	default:
		return ch
	}
}

// dotEnvName derives an environment name from the file name: .env.staging and
// staging.env are both "staging"; a bare .env is "default".
func dotEnvName(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	switch {
	case strings.HasPrefix(lower, ".env.") && len(base) > len(".env."):
		return base[len(".env."):]
	case strings.HasSuffix(lower, ".env") && len(base) > len(".env"):
		return base[:len(base)-len(".env")]
	}
	return "default"
}
