package dataset

import (
	"strings"
	"unicode"

	"github.com/riveredge/platform/internal/apperror"
)

// ValidateSelectOnly rejects any statement whose first keyword is not
// SELECT. Datasets are read-only; DDL and DML never reach the driver.
func ValidateSelectOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return apperror.Validation("sql is empty")
	}
	first := trimmed
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i > 0 {
		first = trimmed[:i]
	}
	if !strings.EqualFold(first, "SELECT") {
		return apperror.Validation("only SELECT is allowed")
	}
	if strings.Contains(strings.TrimRight(trimmed, "; \t\n"), ";") {
		return apperror.Validation("multiple statements are not allowed")
	}
	return nil
}

// ConvertNamedParams rewrites :name placeholders to positional '?' markers
// and returns the argument list in placeholder order. Quoted strings and
// postgres '::' casts are left untouched. A placeholder with no matching
// parameter is a validation error.
func ConvertNamedParams(sql string, params map[string]interface{}) (string, []interface{}, error) {
	var out strings.Builder
	var args []interface{}

	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if ch == '\'' {
			inString = !inString
			out.WriteByte(ch)
			continue
		}
		if inString || ch != ':' {
			out.WriteByte(ch)
			continue
		}

		// '::' is a cast, not a placeholder
		if i+1 < len(sql) && sql[i+1] == ':' {
			out.WriteString("::")
			i++
			continue
		}
		if i > 0 && sql[i-1] == ':' {
			out.WriteByte(ch)
			continue
		}

		j := i + 1
		for j < len(sql) && (isIdentChar(sql[j])) {
			j++
		}
		if j == i+1 {
			out.WriteByte(ch)
			continue
		}

		name := sql[i+1 : j]
		value, ok := params[name]
		if !ok {
			return "", nil, apperror.Validation("missing parameter: " + name)
		}
		out.WriteByte('?')
		args = append(args, value)
		i = j - 1
	}

	return out.String(), args, nil
}

func isIdentChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// HasLimit reports whether the statement already carries a LIMIT keyword
// outside string literals.
func HasLimit(sql string) bool {
	var bare strings.Builder
	inString := false
	for _, r := range sql {
		if r == '\'' {
			inString = !inString
			bare.WriteByte(' ')
			continue
		}
		if inString {
			continue
		}
		bare.WriteRune(r)
	}
	fields := strings.FieldsFunc(bare.String(), func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ')' || r == ','
	})
	for _, f := range fields {
		if strings.EqualFold(f, "LIMIT") {
			return true
		}
	}
	return false
}

// ApplyLimit appends LIMIT/OFFSET placeholders when the statement has no
// LIMIT of its own, returning the extended argument list.
func ApplyLimit(sql string, args []interface{}, limit, offset int) (string, []interface{}) {
	if HasLimit(sql) {
		return sql, args
	}
	return sql + " LIMIT ? OFFSET ?", append(args, limit, offset)
}

// ClampLimit enforces the hard row ceiling and defaults.
func ClampLimit(limit, ceiling int) int {
	if limit <= 0 {
		return ceiling
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
