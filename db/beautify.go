package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nestdb/nestdb/sql"
)

var gotTokenRe = regexp.MustCompile(`got '([A-Za-z_]+)'`)

// Beautify rewrites the engine's raw failure text into something a person
// can act on. The original error stays wrapped underneath, so errors.Is
// checks keep working; unknown failures pass through verbatim.
func Beautify(err error, statement string) error {
	if err == nil {
		return nil
	}

	// pipeline sentinels are already presentable
	for _, sentinel := range []error{ErrSecurityBlocked, ErrSafeModeBlocked, ErrLiveModeViolation, ErrTimeout, ErrAborted} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	msg := err.Error()

	if m := gotTokenRe.FindStringSubmatch(msg); m != nil {
		token := strings.ToUpper(m[1])
		if sql.IsReservedWord(token) {
			return fmt.Errorf("%q is a reserved word; quote it or rename the identifier: %w", token, err)
		}
	}

	if strings.Contains(msg, "parse error") || strings.Contains(msg, "syntax error") {
		return fmt.Errorf("statement %q could not be parsed: %w", firstClause(statement), err)
	}

	if strings.Contains(msg, "runtime error") {
		return fmt.Errorf("the engine failed internally on %q; try simplifying the statement: %w", firstClause(statement), err)
	}

	return err
}
