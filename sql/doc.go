// Package sql provides the lexical layer NestDB applies to user SQL before it
// reaches the engine: cleanup of unsupported dialect fragments, statement
// splitting, identifier validation, literal escaping and the table qualifier
// that rewrites bare table references into explicit [database].[table] form.
//
// None of this is a SQL parser. The qualifier is a best-effort ordered set of
// pattern rewrites proven correct only for the statement shapes it names; it
// skips (never guesses) when a reference is already qualified, is a
// table-valued function call, or matches the reserved-word list. The engine
// parses the final text, so being conservative here is safe.
//
//	sql.Qualify("SELECT * FROM users", "my_db")
//	// "SELECT * FROM [my_db].[users]"
//
//	sql.Qualify("SELECT * FROM RANGE(1,10)", "my_db")
//	// unchanged: RANGE is a table-valued function
package sql
