package memory

import (
	"context"
	"testing"

	"fintrack/internal/sheets"
)

func TestMirrorAppendAndLookup(t *testing.T) {
	ctx := context.Background()
	m := New()

	ref, err := m.AppendRow(ctx, sheets.LedgerRow{TransactionID: "t1", Amount: "1.23"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if ok, _ := m.HasTransaction(ctx, "t1"); !ok {
		t.Fatal("expected t1 to be mirrored")
	}
	if ok, _ := m.HasTransaction(ctx, "t2"); ok {
		t.Fatal("t2 was never appended")
	}

	rows := m.Rows()
	rows[0].Amount = "mutated"
	if m.Rows()[0].Amount != "1.23" {
		t.Fatal("Rows must return a copy")
	}
}

func TestMirrorRejectsRowWithoutID(t *testing.T) {
	if _, err := New().AppendRow(context.Background(), sheets.LedgerRow{}); err == nil {
		t.Fatal("expected error for missing transaction id")
	}
}
