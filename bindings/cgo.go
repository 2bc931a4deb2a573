package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/nestdb/nestdb"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/engine/duckdb"
	"github.com/nestdb/nestdb/ps"
)

// Handle represents an open database instance with its own session context.
type Handle struct {
	instance *nestdb.Instance
	database string
}

var (
	handlesMu  sync.Mutex
	handles    = make(map[int]*Handle)
	nextHandle = 1
)

// Response mirrors the server protocol for consistency.
type Response struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Results  []ResultPayload `json:"results,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	Database string          `json:"database,omitempty"`
	TimeMs   float64         `json:"time_ms,omitempty"`
}

// ResultPayload carries one normalized statement result.
type ResultPayload struct {
	Kind    string     `json:"kind"`
	Columns []string   `json:"columns,omitempty"`
	Rows    []core.Row `json:"rows,omitempty"`
	Value   any        `json:"value,omitempty"`
	Message string     `json:"message,omitempty"`
}

func register(instance *nestdb.Instance) C.int {
	handlesMu.Lock()
	defer handlesMu.Unlock()

	handle := nextHandle
	nextHandle++
	handles[handle] = &Handle{
		instance: instance,
		database: instance.Manager.ActiveDatabase(),
	}
	return C.int(handle)
}

//export nestdb_open_memory
func nestdb_open_memory() C.int {
	eng, err := duckdb.Open("")
	if err != nil {
		return -1
	}
	instance, err := nestdb.Open(context.Background(), eng, ps.NewMemoryStore(), ps.Options{})
	if err != nil {
		eng.Close()
		return -1
	}
	return register(instance)
}

//export nestdb_open_file
func nestdb_open_file(path *C.char) C.int {
	eng, err := duckdb.Open("")
	if err != nil {
		return -1
	}
	store := ps.NewFileStore(C.GoString(path))
	instance, err := nestdb.Open(context.Background(), eng, store, ps.Options{})
	if err != nil {
		eng.Close()
		return -1
	}
	return register(instance)
}

//export nestdb_close
func nestdb_close(handle C.int) {
	handlesMu.Lock()
	h, ok := handles[int(handle)]
	delete(handles, int(handle))
	handlesMu.Unlock()

	if ok {
		h.instance.Close()
	}
}

//export nestdb_execute
func nestdb_execute(handle C.int, query *C.char) *C.char {
	handlesMu.Lock()
	h, ok := handles[int(handle)]
	handlesMu.Unlock()
	if !ok {
		return makeErrorResponse("invalid handle")
	}

	// Each handle owns its instance, so the manager can adopt USE directly.
	res := h.instance.Execute(context.Background(), C.GoString(query), core.ExecOptions{})
	if res.Success {
		h.database = res.ActiveDatabase
	}

	resp := Response{
		Success:  res.Success,
		Results:  toPayload(res),
		Warning:  res.Warning,
		Database: h.database,
		TimeMs:   res.ExecutionTimeSec * 1000,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

//export nestdb_free
func nestdb_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func toPayload(res db.Result) []ResultPayload {
	out := make([]ResultPayload, 0, len(res.Data))
	for _, set := range res.Data {
		out = append(out, ResultPayload{
			Kind:    string(set.Kind),
			Columns: set.Columns,
			Rows:    set.Rows,
			Value:   set.Value,
			Message: set.Message,
		})
	}
	return out
}

func makeErrorResponse(msg string) *C.char {
	resp := Response{Success: false, Error: msg}
	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

func main() {}
