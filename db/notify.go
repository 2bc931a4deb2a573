package db

import (
	"regexp"
	"strings"
)

// writeStmtRes capture the table a write statement targets. A missing match
// on a structural statement still counts as a modification.
var writeStmtRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+` + tableRefPattern),
	regexp.MustCompile(`(?i)\bUPDATE\s+` + tableRefPattern),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+` + tableRefPattern),
	regexp.MustCompile(`(?i)\bCREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + tableRefPattern),
	regexp.MustCompile(`(?i)\bDROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?` + tableRefPattern),
	regexp.MustCompile(`(?i)\bALTER\s+TABLE\s+` + tableRefPattern),
	regexp.MustCompile(`(?i)\bTRUNCATE\s+(?:TABLE\s+)?` + tableRefPattern),
}

// structuralRe flags write statements that change the namespace without a
// usable table reference.
var structuralRe = regexp.MustCompile(`(?i)^\s*(CREATE|DROP)\s+DATABASE\b`)

// tableRefPattern matches a possibly qualified, possibly bracket- or
// backtick-quoted table reference and captures the bare table name last.
const tableRefPattern = `(?:\[[A-Za-z0-9_]+\]\.|[A-Za-z0-9_]+\.)?[\[\x60]?([A-Za-z0-9_]+)[\]\x60]?`

// writeTargets reports the tables a statement writes to and whether it is a
// write at all. When the engine can parse statements itself its answer
// wins; otherwise a lexical scan decides.
func (x *Executor) writeTargets(statement string) ([]string, bool) {
	if p, ok := x.eng.(interface {
		WriteTargets(statement string) ([]string, error)
	}); ok {
		if tables, err := p.WriteTargets(statement); err == nil {
			return tables, len(tables) > 0 || structuralRe.MatchString(statement)
		}
	}
	return scanWriteTargets(statement)
}

func scanWriteTargets(statement string) ([]string, bool) {
	if structuralRe.MatchString(statement) {
		return nil, true
	}

	var tables []string
	for _, re := range writeStmtRes {
		for _, m := range re.FindAllStringSubmatch(statement, -1) {
			if name := strings.TrimSpace(m[len(m)-1]); name != "" {
				tables = append(tables, name)
			}
		}
	}
	return tables, len(tables) > 0
}
