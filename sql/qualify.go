package sql

import (
	"regexp"
	"strings"
)

// reservedTableWords are engine keywords and table-valued data sources that
// follow FROM/JOIN without naming a real table. References matching this list
// are never qualified.
var reservedTableWords = map[string]bool{
	"SELECT":  true,
	"VALUES":  true,
	"RANGE":   true,
	"EXPLODE": true,
	"JSON":    true,
	"CSV":     true,
	"TAB":     true,
	"TSV":     true,
	"XLSX":    true,
}

// qualifyRule rewrites the table reference captured by re. Groups are always
// (prefix)(name)(tail): prefix is re-emitted verbatim, name is the bare table
// reference, tail is the character(s) following it. A rule is skipped when the
// tail marks a dot-qualified name or a function call, or when the name is
// reserved.
type qualifyRule struct {
	re *regexp.Regexp
}

// namePattern matches one table reference: bare, or quoted with backticks,
// brackets or double quotes. Quoted forms keep keyword-led prefixes such as
// IF NOT EXISTS from being misread as the table name.
const namePattern = "(`[A-Za-z0-9_]+`" + `|\[[A-Za-z0-9_]+\]|"[A-Za-z0-9_]+"|[A-Za-z_][A-Za-z0-9_]*)`

var qualifyRules = []qualifyRule{
	{regexp.MustCompile(`(?i)\b(CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?)` + namePattern + `([.(]?)`)},
	{regexp.MustCompile(`(?i)\b(INSERT\s+INTO\s+)` + namePattern + `([.(]?)`)},
	{regexp.MustCompile(`(?i)\b(UPDATE\s+)` + namePattern + `(\s+SET\b)`)},
	{regexp.MustCompile(`(?i)\b(DELETE\s+FROM\s+)` + namePattern + `([.(]?)`)},
	{regexp.MustCompile(`(?i)\b((?:DROP|TRUNCATE|ALTER)\s+TABLE\s+(?:IF\s+EXISTS\s+)?)` + namePattern + `([.(]?)`)},
	{regexp.MustCompile(`(?i)\b(FROM\s+)` + namePattern + `([.(]?)`)},
	{regexp.MustCompile(`(?i)\b(JOIN\s+)` + namePattern + `([.(]?)`)},
}

var (
	bracketRepairRe = regexp.MustCompile(`\]([A-Za-z0-9])`)
	digitRepairRe   = regexp.MustCompile(`(\d)([A-Za-z]{3,})`)
)

// Qualify rewrites every bare table reference in a statement into explicit
// [database].[table] form so it can never resolve against the wrong virtual
// database. References that are already dot-qualified, are table-valued
// function calls, or match the reserved-word list pass through unchanged, as
// does the whole statement when database is empty (callers pass empty for the
// engine's own system database).
// IsReservedWord reports whether word is an engine keyword or table-valued
// data source that never names a user table.
func IsReservedWord(word string) bool {
	return reservedTableWords[strings.ToUpper(word)]
}

func Qualify(statement, database string) string {
	if database == "" {
		return statement
	}

	result := statement
	for _, rule := range qualifyRules {
		result = rule.re.ReplaceAllStringFunc(result, func(match string) string {
			groups := rule.re.FindStringSubmatch(match)
			prefix, name, tail := groups[1], groups[2], groups[3]
			if strings.HasPrefix(tail, ".") || strings.HasPrefix(tail, "(") {
				return match
			}
			bare := strings.Trim(name, "`[]\"")
			if reservedTableWords[strings.ToUpper(bare)] {
				return match
			}
			return prefix + "[" + database + "].[" + bare + "]" + tail
		})
	}

	return repairSpacing(result)
}

// repairSpacing separates tokens the rewrites may have fused: a qualifying
// bracket followed directly by an alphanumeric token, and a digit followed by
// a 3+ letter token.
func repairSpacing(sql string) string {
	sql = bracketRepairRe.ReplaceAllString(sql, "] $1")
	return digitRepairRe.ReplaceAllString(sql, "$1 $2")
}
