package db

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nestdb/nestdb/core"
)

func TestTabulate(t *testing.T) {
	rs := tabulate("SELECT 1", []core.Row{{"n": 1}})
	if rs.Kind != ScalarResult || rs.Value != 1 {
		t.Errorf("scalar = %+v", rs)
	}

	rs = tabulate("INSERT", nil)
	if rs.Kind != MessageResult || rs.Message != "OK" {
		t.Errorf("message = %+v", rs)
	}

	rs = tabulate("SELECT *", []core.Row{{"b": 2, "a": 1}, {"a": 3}})
	if rs.Kind != TableResult {
		t.Fatalf("kind = %v", rs.Kind)
	}
	if len(rs.Columns) != 2 || rs.Columns[0] != "a" || rs.Columns[1] != "b" {
		t.Errorf("columns = %v", rs.Columns)
	}
}

func TestResultSetDisplayTable(t *testing.T) {
	var buf bytes.Buffer
	rs := tabulate("q", []core.Row{{"id": 1, "name": "x"}, {"id": 2, "name": nil}})
	rs.Display(&buf)

	out := buf.String()
	for _, want := range []string{"| id ", "| name", "NULL", "2 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs float64
		want string
	}{
		{0.0001, "<1ms"},
		{0.005, "5ms"},
		{0.5, "500ms"},
		{2.5, "2.5s"},
		{75, "1m15s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.secs); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.secs, got, c.want)
		}
	}
}

func TestBeautifyReservedWord(t *testing.T) {
	err := Beautify(errors.New("parse error: expected identifier, got 'SELECT'"), "CREATE TABLE select (id INT)")
	if !strings.Contains(err.Error(), "reserved word") {
		t.Errorf("got %v", err)
	}
}

func TestBeautifyPassthrough(t *testing.T) {
	orig := errors.New("disk on fire")
	if got := Beautify(orig, "SELECT 1"); got != orig {
		t.Errorf("unknown error rewritten: %v", got)
	}
}

func TestScanWriteTargets(t *testing.T) {
	tables, wrote := scanWriteTargets("INSERT INTO [shop].[items] (id) VALUES (1)")
	if !wrote || len(tables) != 1 || tables[0] != "items" {
		t.Errorf("tables=%v wrote=%v", tables, wrote)
	}

	tables, wrote = scanWriteTargets("SELECT * FROM items")
	if wrote || tables != nil {
		t.Errorf("select flagged as write: %v", tables)
	}

	_, wrote = scanWriteTargets("CREATE DATABASE fresh")
	if !wrote {
		t.Error("structural statement not flagged")
	}

	tables, wrote = scanWriteTargets("UPDATE users SET name = 'x'")
	if !wrote || len(tables) != 1 || tables[0] != "users" {
		t.Errorf("update targets = %v", tables)
	}
}
