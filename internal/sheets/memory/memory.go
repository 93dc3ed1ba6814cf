package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/sheets"
)

// Mirror keeps ledger rows in process. It is the development stand-in for the Google mirror.
type Mirror struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
	ids  map[string]int
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{ids: make(map[string]int)}
}

// AppendRow stores the row and returns a synthetic row reference.
func (m *Mirror) AppendRow(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.TransactionID == "" {
		return "", errors.New("ledger row without transaction id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	m.ids[row.TransactionID] = len(m.rows)
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) HasTransaction(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[transactionID]
	return ok, nil
}

// Rows returns a copy of everything appended so far.
func (m *Mirror) Rows() []sheets.LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sheets.LedgerRow(nil), m.rows...)
}
