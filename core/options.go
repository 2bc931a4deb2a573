package core

import "time"

// DefaultQueryTimeout bounds a single engine call.
const DefaultQueryTimeout = 30 * time.Second

// ExecOptions configures one Execute call. It is a per-call value, never
// global state: the active database is threaded through each call because
// batches from different callers may interleave against the same engine.
type ExecOptions struct {
	// SafeMode additionally blocks structurally destructive statements
	// (DROP/TRUNCATE/ALTER TABLE).
	SafeMode bool

	// Timeout bounds each engine call. Zero means DefaultQueryTimeout.
	Timeout time.Duration

	// ActiveDatabase is the caller's current virtual database. Empty means
	// DefaultDatabase.
	ActiveDatabase string

	// OriginID tags the batch's ChangeEvent so a live subscriber can ignore
	// events it caused itself.
	OriginID string

	// Params holds named values substituted for :name and @name
	// placeholders before the batch is split.
	Params map[string]any

	// Live restricts the batch to read-only statements.
	Live bool
}

// EffectiveTimeout returns the configured timeout or the default.
func (o ExecOptions) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultQueryTimeout
	}
	return o.Timeout
}

// EffectiveDatabase returns the configured active database or the default.
func (o ExecOptions) EffectiveDatabase() string {
	if o.ActiveDatabase == "" {
		return DefaultDatabase
	}
	return o.ActiveDatabase
}
