package bus

import (
	"testing"
	"time"

	"github.com/nestdb/nestdb/core"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()

	var order []int
	b.Subscribe(func(core.ChangeEvent) { order = append(order, 1) })
	b.Subscribe(func(core.ChangeEvent) { order = append(order, 2) })
	b.Subscribe(func(core.ChangeEvent) { order = append(order, 3) })

	b.Publish(core.ChangeEvent{Database: "dbo"})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order %v, want [1 2 3]", order)
	}
}

func TestPublishLowercasesTables(t *testing.T) {
	b := New()

	var got core.ChangeEvent
	b.Subscribe(func(ev core.ChangeEvent) { got = ev })

	b.Publish(core.ChangeEvent{
		Database:  "shop",
		Tables:    []string{"Items", "ORDERS"},
		Timestamp: time.Now(),
	})

	if len(got.Tables) != 2 || got.Tables[0] != "items" || got.Tables[1] != "orders" {
		t.Errorf("tables %v, want lower-cased", got.Tables)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	calls := 0
	token := b.Subscribe(func(core.ChangeEvent) { calls++ })
	keep := 0
	b.Subscribe(func(core.ChangeEvent) { keep++ })

	b.Publish(core.ChangeEvent{Database: "dbo"})
	b.Unsubscribe(token)
	b.Publish(core.ChangeEvent{Database: "dbo"})

	if calls != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", calls)
	}
	if keep != 2 {
		t.Errorf("remaining handler called %d times, want 2", keep)
	}
	if b.Len() != 1 {
		t.Errorf("Len()=%d, want 1", b.Len())
	}
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	b := New()
	b.Subscribe(func(core.ChangeEvent) {})
	b.Unsubscribe(999)
	if b.Len() != 1 {
		t.Errorf("Len()=%d, want 1", b.Len())
	}
}

func TestStructuralEvent(t *testing.T) {
	ev := core.ChangeEvent{Database: "dbo"}
	if !ev.Structural() {
		t.Error("event with no tables should be structural")
	}
	ev.Tables = []string{"users"}
	if ev.Structural() {
		t.Error("event with tables should not be structural")
	}
}
