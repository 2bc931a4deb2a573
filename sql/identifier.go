package sql

import "regexp"

const maxIdentifierLength = 64

var (
	identifierRe  = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)
	invalidRuneRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// ValidateIdentifier reports whether name is a legal table or database name.
func ValidateIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// SanitizeIdentifier rewrites untrusted input (e.g. a file name becoming a
// table name) into a legal identifier. Names already supplied as SQL
// identifiers must be validated, not sanitized.
func SanitizeIdentifier(name string) string {
	sanitized := invalidRuneRe.ReplaceAllString(name, "_")
	if len(sanitized) > maxIdentifierLength {
		sanitized = sanitized[:maxIdentifierLength]
	}
	return sanitized
}
