package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ports "fintrack/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"}, nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "test-id", CredentialsJSON: "invalid-json"}, nil)
	if err == nil {
		t.Fatal("expected error with invalid JSON")
	}
	if !strings.Contains(err.Error(), "service account credentials") {
		t.Errorf("expected credentials error, got: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		inline  string
		file    string
		want    string
		wantErr bool
	}{
		{name: "inline wins", inline: `{"from":"inline"}`, file: path, want: `{"from":"inline"}`},
		{name: "file", file: path, want: `{"from":"file"}`},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope.json"), wantErr: true},
		{name: "nothing set", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(tt.inline, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("loadCredentials() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_UninitializedService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendRow(context.Background(), ports.LedgerRow{TransactionID: "t1"}); err == nil {
		t.Fatal("expected error without a service")
	}
	if _, err := c.HasTransaction(context.Background(), "t1"); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestColumnIDs(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"t1"},
		{},
		{"  "},
		{"t2"},
		{"t1"},
	}
	ids := columnIDs(values)
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	for _, id := range []string{"t1", "t2"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
}

func TestRowNumberAndA1(t *testing.T) {
	tests := map[string]int{
		"'Ledger'!A5:I5":        5,
		"'My Ledger'!A120:I120": 120,
		"A7":                    7,
		"'Ledger'!A:I":          0,
		"":                      0,
	}
	for rng, want := range tests {
		if got := rowNumber(rng); got != want {
			t.Errorf("rowNumber(%q) = %d, want %d", rng, got, want)
		}
	}

	if got := a1("Bob's Ledger", "A:A"); got != "'Bob''s Ledger'!A:A" {
		t.Errorf("a1() = %s", got)
	}
}
