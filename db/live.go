package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/sql"
)

// DefaultLiveDebounce is how long a live query waits after a change event
// before re-executing, so bursts of writes collapse into one refresh.
const DefaultLiveDebounce = 500 * time.Millisecond

var liveSeq atomic.Int64

var readTableRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+` + tableRefPattern)

// LiveQuery keeps a read-only batch subscribed to the change bus and
// re-executes it whenever a relevant table changes. Events carrying the
// query's own origin id are ignored, so a live block never re-triggers
// itself.
type LiveQuery struct {
	x        *Executor
	query    string
	database string
	originID string
	onResult func(Result)

	mu       sync.Mutex
	tables   map[string]bool
	debounce time.Duration
	timer    *time.Timer
	token    int
	closed   bool
}

// NewLiveQuery validates the batch as read-only, extracts the tables it
// observes and subscribes it to the executor's bus. onResult receives
// every execution outcome, including re-runs.
func (x *Executor) NewLiveQuery(query, database string, onResult func(Result)) (*LiveQuery, error) {
	cleaned := strings.TrimSpace(sql.StripLiveKeyword(sql.Clean(query)))
	for _, stmt := range sql.SplitStatements(cleaned) {
		if err := checkReadOnly(stmt); err != nil {
			return nil, err
		}
	}

	lq := &LiveQuery{
		x:        x,
		query:    query,
		database: database,
		originID: fmt.Sprintf("live-%d", liveSeq.Add(1)),
		onResult: onResult,
		tables:   observedTables(cleaned),
		debounce: DefaultLiveDebounce,
	}
	lq.token = x.bus.Subscribe(lq.handle)
	return lq, nil
}

// observedTables scans FROM and JOIN clauses for table references,
// skipping reserved data sources.
func observedTables(query string) map[string]bool {
	tables := map[string]bool{}
	for _, m := range readTableRe.FindAllStringSubmatch(query, -1) {
		name := m[len(m)-1]
		if name == "" || sql.IsReservedWord(name) {
			continue
		}
		tables[strings.ToLower(name)] = true
	}
	return tables
}

// OriginID identifies this query's own writes on the bus.
func (lq *LiveQuery) OriginID() string { return lq.originID }

// SetDebounce overrides the re-execution delay.
func (lq *LiveQuery) SetDebounce(d time.Duration) {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	lq.debounce = d
}

// Run executes the live batch immediately and reports the result.
func (lq *LiveQuery) Run(ctx context.Context) Result {
	res := lq.x.Execute(ctx, lq.query, core.ExecOptions{
		Live:           true,
		ActiveDatabase: lq.database,
		OriginID:       lq.originID,
	})
	if lq.onResult != nil {
		lq.onResult(res)
	}
	return res
}

func (lq *LiveQuery) handle(ev core.ChangeEvent) {
	if ev.OriginID != "" && ev.OriginID == lq.originID {
		return
	}
	if ev.Database != lq.database {
		return
	}
	// an event without tables means the structure changed under us, so
	// always refresh for those
	if !ev.Structural() && !lq.observesAny(ev.Tables) {
		return
	}
	lq.schedule()
}

func (lq *LiveQuery) observesAny(tables []string) bool {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	for _, t := range tables {
		if lq.tables[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func (lq *LiveQuery) schedule() {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	if lq.closed {
		return
	}
	if lq.timer != nil {
		lq.timer.Stop()
	}
	lq.timer = time.AfterFunc(lq.debounce, func() {
		lq.mu.Lock()
		closed := lq.closed
		lq.mu.Unlock()
		if !closed {
			lq.Run(context.Background())
		}
	})
}

// Close unsubscribes the query and stops any pending refresh.
func (lq *LiveQuery) Close() {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	if lq.closed {
		return
	}
	lq.closed = true
	if lq.timer != nil {
		lq.timer.Stop()
	}
	lq.x.bus.Unsubscribe(lq.token)
}
