// Package ledger normalizes transactions into flat category lines.
//
// A transaction without splits behaves exactly like a transaction with a single split
// equal to its own category and amount, so nothing downstream ever asks whether a
// transaction was split.
package ledger

import (
	"iter"

	"fintrack/internal/core"
)

// Line is one category allocation of a transaction.
type Line struct {
	Kind        core.Kind
	CategoryID  string
	AmountCents int64
}

// FlattenSplits yields the category lines of tx. Transfers yield nothing; split
// transactions yield one line per split in insertion order; everything else yields a
// single line with the transaction's own category and amount.
func FlattenSplits(tx core.Transaction) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		if tx.Kind == core.KindTransfer {
			return
		}
		if len(tx.Splits) == 0 {
			yield(Line{Kind: tx.Kind, CategoryID: tx.CategoryID, AmountCents: tx.AmountCents})
			return
		}
		for _, s := range tx.Splits {
			if !yield(Line{Kind: tx.Kind, CategoryID: s.CategoryID, AmountCents: s.AmountCents}) {
				return
			}
		}
	}
}

// Lines yields every line of every transaction together with its parent.
func Lines(txs []core.Transaction) iter.Seq2[core.Transaction, Line] {
	return func(yield func(core.Transaction, Line) bool) {
		for _, tx := range txs {
			for line := range FlattenSplits(tx) {
				if !yield(tx, line) {
					return
				}
			}
		}
	}
}

// SignedCents returns the amount with income positive and expense negative. Transfers are 0.
func SignedCents(kind core.Kind, cents int64) int64 {
	switch kind {
	case core.KindIncome:
		return cents
	case core.KindExpense:
		return -cents
	default:
		return 0
	}
}
