package db

import (
	"regexp"

	"github.com/nestdb/nestdb/sql"
)

var paramRe = regexp.MustCompile(`[:@]([A-Za-z_][A-Za-z0-9_]*)`)

// InjectParams substitutes named :param and @param placeholders with their
// escaped literal values. Unknown placeholders are left untouched so the
// engine can report them.
func InjectParams(statement string, params map[string]any) string {
	if len(params) == 0 {
		return statement
	}
	return paramRe.ReplaceAllStringFunc(statement, func(m string) string {
		name := m[1:]
		value, ok := params[name]
		if !ok {
			return m
		}
		return sql.EscapeValue(value)
	})
}
