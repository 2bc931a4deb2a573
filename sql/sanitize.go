package sql

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(?m)(--|#).*?(\r?\n|$)`)
	bareNewlineRe  = regexp.MustCompile(`(\S)(\r?\n)`)
	liveKeywordRe  = regexp.MustCompile(`(?i)\bLIVE\s+`)
)

// cleanupPatterns strip dialect fragments the engine does not understand.
// Every replacement is a single space so adjacent words never merge.
var cleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(DEFAULT\s+)?(CHARACTER SET|CHARSET)\s*=?\s*\w+`),
	regexp.MustCompile(`(?i)(DEFAULT\s+)?COLLATE\s*=?\s*\w+`),
	regexp.MustCompile(`(?i)ENGINE\s*=?\s*\w+`),
	regexp.MustCompile(`(?i)ROW_FORMAT\s*=?\s*\w+`),
	regexp.MustCompile(`(?i)AUTO_INCREMENT\s*=\s*\d+`),
	regexp.MustCompile(`(?i)LOCK\s+TABLES\s+[^;]+;`),
	regexp.MustCompile(`(?i)UNLOCK\s+TABLES\s*;?`),
	regexp.MustCompile(`(?i)USE\s+dbo\s*;?`),
	regexp.MustCompile(`(?i)CREATE\s+DATABASE\s+(IF\s+NOT\s+EXISTS\s+)?dbo[^;]*;?`),
}

// Clean strips comments and known unsupported dialect fragments from a SQL
// batch. Newlines are kept as separators so word boundaries survive.
func Clean(sql string) string {
	cleaned := blockCommentRe.ReplaceAllString(sql, " ")
	cleaned = lineCommentRe.ReplaceAllString(cleaned, " $2")
	cleaned = bareNewlineRe.ReplaceAllString(cleaned, "$1 $2")
	for _, re := range cleanupPatterns {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	return strings.TrimSpace(cleaned)
}

// StripLiveKeyword removes the live-query marker keyword, preserving word
// separation.
func StripLiveKeyword(sql string) string {
	return liveKeywordRe.ReplaceAllString(sql, " ")
}

// EscapeValue renders a Go value as a SQL literal with manual escaping.
// Used for exported dumps and parameter injection, never for identifiers.
func EscapeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		return "'" + v.Format(time.RFC3339) + "'"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
		}
		return "'" + strings.ReplaceAll(string(data), "'", "''") + "'"
	}
}
