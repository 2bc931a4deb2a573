package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nestdb/nestdb/bus"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/engine"
	"github.com/nestdb/nestdb/sql"
)

// DefaultSelectLimit caps a bare single SELECT that carries no LIMIT of
// its own, so an unconstrained query cannot flood the caller.
const DefaultSelectLimit = 1000

var (
	securityRe      = regexp.MustCompile(`(?i)\b(DROP\s+DATABASE|SHUTDOWN|ALTER\s+SYSTEM)\b`)
	safeModeRe      = regexp.MustCompile(`(?i)\b(DROP\s+TABLE|ALTER\s+TABLE|TRUNCATE)\b`)
	useStmtRe       = regexp.MustCompile(`(?i)^USE\s+` + "[`\\[]?" + `([A-Za-z0-9_]+)` + "[`\\]]?" + `\s*;?$`)
	formStmtRe      = regexp.MustCompile(`(?i)^FORM\s+\S+`)
	readPrefixRe    = regexp.MustCompile(`(?i)^(SELECT|SHOW|WITH|USE)\b`)
	writeVerbRe     = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|ATTACH|DETACH)\b`)
	bareSelectRe    = regexp.MustCompile(`(?i)^SELECT\b`)
	limitClauseRe   = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	fragileInsertRe = regexp.MustCompile(`(?i)INSERT\s+INTO\s+\S+\s*\([^)]*\)\s*SELECT\b`)
)

// Executor runs query batches against a single engine. The engine is owned
// exclusively by the executor; all access is serialized through its mutex.
type Executor struct {
	mu  sync.Mutex
	eng engine.Engine
	bus *bus.Bus
}

// NewExecutor wires an executor to its engine and change bus.
func NewExecutor(eng engine.Engine, b *bus.Bus) *Executor {
	return &Executor{eng: eng, bus: b}
}

// Bus returns the change bus the executor publishes to.
func (x *Executor) Bus() *bus.Bus { return x.bus }

// SystemDatabase names the engine's built-in database.
func (x *Executor) SystemDatabase() string { return x.eng.SystemDatabase() }

// Execute runs a query batch through the full pipeline: clean, gate,
// split, and per statement qualify, execute and normalize. Statements run
// strictly in order; a USE statement switches the context every later
// statement in the batch sees. One change event covers the whole batch.
func (x *Executor) Execute(ctx context.Context, query string, opts core.ExecOptions) Result {
	start := time.Now()
	active := opts.EffectiveDatabase()
	res := Result{ActiveDatabase: active}

	finish := func() Result {
		res.ExecutionTimeSec = time.Since(start).Seconds()
		return res
	}
	fail := func(err error, statement string) Result {
		res.Success = false
		res.Err = err
		res.Data = append(res.Data, ResultSet{
			Kind:      ErrorResult,
			Statement: statement,
			Message:   err.Error(),
		})
		return finish()
	}

	cleaned := sql.Clean(query)
	if opts.Live {
		cleaned = strings.TrimSpace(sql.StripLiveKeyword(cleaned))
	}
	if len(opts.Params) > 0 {
		cleaned = InjectParams(cleaned, opts.Params)
	}
	if cleaned == "" {
		res.Success = true
		return finish()
	}

	// A form block is a command, not SQL; it never reaches the engine.
	if formStmtRe.MatchString(cleaned) && !strings.Contains(cleaned, ";") {
		form, err := x.BuildForm(ctx, cleaned, active)
		if err != nil {
			return fail(err, cleaned)
		}
		res.Success = true
		res.Data = append(res.Data, ResultSet{Kind: FormResult, Statement: cleaned, Form: form})
		return finish()
	}

	statements := sql.SplitStatements(cleaned)

	if opts.Live {
		for _, stmt := range statements {
			if err := checkReadOnly(stmt); err != nil {
				return fail(err, stmt)
			}
		}
	}

	// writes are attributed to the database active when each statement ran,
	// not the database the batch ended in
	writesByDB := map[string][]string{}
	var writeOrder []string

	for _, stmt := range statements {
		if securityRe.MatchString(stmt) {
			return fail(fmt.Errorf("%w: %s", ErrSecurityBlocked, firstClause(stmt)), stmt)
		}
		if opts.SafeMode && safeModeRe.MatchString(stmt) {
			return fail(fmt.Errorf("%w: %s", ErrSafeModeBlocked, firstClause(stmt)), stmt)
		}

		if m := useStmtRe.FindStringSubmatch(stmt); m != nil {
			name := m[1]
			ok, err := x.HasDatabase(ctx, name)
			if err != nil {
				return fail(err, stmt)
			}
			if !ok {
				return fail(fmt.Errorf("unknown database %q", name), stmt)
			}
			active = name
			res.ActiveDatabase = name
			res.Data = append(res.Data, ResultSet{
				Kind:      MessageResult,
				Statement: stmt,
				Message:   fmt.Sprintf("Switched to database %q", name),
			})
			continue
		}

		if formStmtRe.MatchString(stmt) {
			form, err := x.BuildForm(ctx, stmt, active)
			if err != nil {
				return fail(err, stmt)
			}
			res.Data = append(res.Data, ResultSet{Kind: FormResult, Statement: stmt, Form: form})
			continue
		}

		if fragileInsertRe.MatchString(stmt) {
			res.Warning = "INSERT with an explicit column list feeding from SELECT binds columns by position; verify the column order matches"
		}

		qualifierDB := active
		if qualifierDB == x.eng.SystemDatabase() {
			qualifierDB = ""
		}
		qualified := sql.Qualify(stmt, qualifierDB)

		if len(statements) == 1 && bareSelectRe.MatchString(qualified) && !limitClauseRe.MatchString(qualified) {
			qualified = fmt.Sprintf("%s LIMIT %d", qualified, DefaultSelectLimit)
		}

		rows, err := x.execTimed(ctx, qualified, opts)
		if err != nil {
			return fail(Beautify(err, stmt), stmt)
		}
		res.Data = append(res.Data, tabulate(stmt, rows))

		if targets, wrote := x.writeTargets(qualified); wrote {
			if _, seen := writesByDB[active]; !seen {
				writeOrder = append(writeOrder, active)
			}
			writesByDB[active] = append(writesByDB[active], targets...)
		}
	}

	res.Success = true
	res.ActiveDatabase = active

	if x.bus != nil {
		for _, database := range writeOrder {
			x.bus.Publish(core.ChangeEvent{
				Database:  database,
				Tables:    dedupe(writesByDB[database]),
				Timestamp: time.Now(),
				OriginID:  opts.OriginID,
			})
		}
	}

	return finish()
}

// execTimed races a statement against its deadline. The engine goroutine
// keeps the executor lock until the engine returns, so a timed-out
// statement still serializes against the next one.
func (x *Executor) execTimed(ctx context.Context, statement string, opts core.ExecOptions, params ...any) ([]core.Row, error) {
	timeout := opts.EffectiveTimeout()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rows []core.Row
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		x.mu.Lock()
		defer x.mu.Unlock()
		rows, err := x.eng.Exec(execCtx, statement, params...)
		done <- outcome{rows, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			switch execCtx.Err() {
			case context.DeadlineExceeded:
				return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			case context.Canceled:
				return nil, fmt.Errorf("%w: %v", ErrAborted, out.err)
			}
		}
		return out.rows, out.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// ExecEngine runs a single pre-qualified statement under the executor's
// lock, bypassing the pipeline. The persistence layer uses this for its
// own statement traffic.
func (x *Executor) ExecEngine(ctx context.Context, statement string, params ...any) ([]core.Row, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.Exec(ctx, statement, params...)
}

// DatabaseNames lists the engine's databases under the executor's lock.
func (x *Executor) DatabaseNames(ctx context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.DatabaseNames(ctx)
}

// HasDatabase reports database existence under the executor's lock.
func (x *Executor) HasDatabase(ctx context.Context, name string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.HasDatabase(ctx, name)
}

// Tables lists a database's tables under the executor's lock.
func (x *Executor) Tables(ctx context.Context, database string) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.Tables(ctx, database)
}

// TableMeta reads table metadata under the executor's lock.
func (x *Executor) TableMeta(ctx context.Context, database, table string) (core.TableMeta, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.TableMeta(ctx, database, table)
}

// TableRows reads table rows under the executor's lock.
func (x *Executor) TableRows(ctx context.Context, database, table string, limit int) ([]core.Row, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eng.TableRows(ctx, database, table, limit)
}

// checkReadOnly enforces the live-query gate: read prefixes only, and no
// write verb anywhere in the statement.
func checkReadOnly(statement string) error {
	if !readPrefixRe.MatchString(statement) {
		return fmt.Errorf("%w: %q", ErrLiveModeViolation, firstClause(statement))
	}
	if m := writeVerbRe.FindString(statement); m != "" {
		return fmt.Errorf("%w: contains %s", ErrLiveModeViolation, strings.ToUpper(m))
	}
	return nil
}

// firstClause trims a statement down to something short enough for an
// error message.
func firstClause(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
