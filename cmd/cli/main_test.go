package main

import (
	"context"
	"strings"
	"testing"

	"github.com/nestdb/nestdb"
	"github.com/nestdb/nestdb/engine/enginetest"
	"github.com/nestdb/nestdb/ps"
)

func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	inst, err := nestdb.Open(context.Background(), enginetest.New(true), ps.NewMemoryStore(), ps.Options{})
	if err != nil {
		t.Fatalf("open instance: %v", err)
	}
	t.Cleanup(func() { inst.Close() })
	return &CLI{instance: inst}
}

func TestAddToHistoryDeduplicatesAndCaps(t *testing.T) {
	cli := &CLI{}

	cli.addToHistory("SELECT 1;")
	cli.addToHistory("SELECT 1;")
	if len(cli.history) != 1 {
		t.Errorf("consecutive duplicate stored: %v", cli.history)
	}

	cli.addToHistory("SELECT 2;")
	cli.addToHistory("SELECT 1;")
	if len(cli.history) != 3 {
		t.Errorf("non-consecutive duplicate dropped: %v", cli.history)
	}

	cli.history = nil
	for i := 0; i < 1500; i++ {
		cli.addToHistory(strings.Repeat("x", i%7) + ";")
	}
	if len(cli.history) > 1000 {
		t.Errorf("history grew to %d entries", len(cli.history))
	}
}

func TestPromptShowsContext(t *testing.T) {
	cli := newTestCLI(t)

	p := cli.getPrompt(false)
	if !strings.Contains(p, "(dbo)") {
		t.Errorf("prompt = %q, want active database shown", p)
	}

	cli.safeMode = true
	if p := cli.getPrompt(false); !strings.Contains(p, "[safe]") {
		t.Errorf("prompt = %q, want safe marker", p)
	}

	if p := cli.getPrompt(true); !strings.Contains(p, "...") {
		t.Errorf("multi-line prompt = %q", p)
	}
}

func TestUseCommandSwitchesContext(t *testing.T) {
	cli := newTestCLI(t)
	ctx := context.Background()

	if err := cli.instance.Manager.CreateDatabase(ctx, "shop"); err != nil {
		t.Fatal(err)
	}

	if !cli.handleCommand(".use shop") {
		t.Fatal("command not handled")
	}
	if got := cli.instance.Manager.ActiveDatabase(); got != "shop" {
		t.Errorf("active = %q, want shop", got)
	}

	// unknown database leaves the context alone
	cli.handleCommand(".use ghost")
	if got := cli.instance.Manager.ActiveDatabase(); got != "shop" {
		t.Errorf("active = %q after failed switch", got)
	}
}

func TestSafeModeCommandToggles(t *testing.T) {
	cli := newTestCLI(t)

	cli.handleCommand(".safemode on")
	if !cli.safeMode {
		t.Error("safe mode not enabled")
	}
	cli.handleCommand(".safemode off")
	if cli.safeMode {
		t.Error("safe mode not disabled")
	}
	cli.handleCommand(".safemode")
	if !cli.safeMode {
		t.Error("bare command should toggle")
	}
}
