package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func requestID(r *http.Request) string {
	return trace.RequestID(r)
}

// userID returns the sanitized {userID} path parameter.
func userID(r *http.Request) (string, error) {
	id := sanitizeInput(chi.URLParam(r, "userID"))
	if id == "" {
		return "", fmt.Errorf("%w: missing user id", services.ErrInvalidInput)
	}
	return id, nil
}

// decodeJSON reads one JSON object into v. Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", services.ErrInvalidInput)
		}
		return fmt.Errorf("%w: decode body: %w", services.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", services.ErrInvalidInput)
	}
	return nil
}

// parseDashboardQuery reads from, to, currency and month. Missing values are left for
// DashboardService.Normalize; malformed ones are rejected.
func parseDashboardQuery(q url.Values) (services.DashboardQuery, error) {
	var out services.DashboardQuery
	var err error
	if out.From, err = optionalDate(q, "from"); err != nil {
		return out, err
	}
	if out.To, err = optionalDate(q, "to"); err != nil {
		return out, err
	}
	out.Currency = sanitizeInput(q.Get("currency"))
	if m := sanitizeInput(q.Get("month")); m != "" {
		if _, err := time.Parse("2006-01", m); err != nil {
			return out, fmt.Errorf("%w: %w: %q", services.ErrInvalidInput, core.ErrInvalidMonth, m)
		}
		out.Month = m
	}
	return out, nil
}

func optionalDate(q url.Values, key string) (core.Date, error) {
	v := sanitizeInput(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s: %w", services.ErrInvalidInput, key, err)
	}
	return d, nil
}

// materializeDate reads the optional ?today= override. Missing means now; a date after now
// is rejected.
func materializeDate(q url.Values, now core.Date) (core.Date, error) {
	today, err := optionalDate(q, "today")
	if err != nil {
		return core.Date{}, err
	}
	if today.IsEmpty() {
		return now, nil
	}
	if today.After(now) {
		return core.Date{}, fmt.Errorf("%w: today %s is after the current date %s",
			services.ErrInvalidInput, today.Key(), now.Key())
	}
	return today, nil
}

// sanitizeInput drops control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// transactionRequest is the ingestion shape for a new transaction. Amounts are accepted as
// a decimal string or as integer cents; kind is read from transaction_kind, falling back to
// the legacy type field.
type transactionRequest struct {
	Date            string         `json:"date"`
	Amount          string         `json:"amount"`
	AmountCents     int64          `json:"amount_cents"`
	TransactionKind string         `json:"transaction_kind"`
	Type            string         `json:"type"`
	Currency        string         `json:"currency"`
	CategoryID      string         `json:"category_id"`
	AccountID       string         `json:"account_id"`
	FromAccountID   string         `json:"from_account_id"`
	ToAccountID     string         `json:"to_account_id"`
	Merchant        string         `json:"merchant"`
	Notes           string         `json:"notes"`
	Tags            []string       `json:"tags"`
	Splits          []splitRequest `json:"splits"`
}

type splitRequest struct {
	CategoryID  string `json:"category_id"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func requestCents(decimal string, cents int64) (int64, error) {
	if cents != 0 {
		if cents < 0 {
			return 0, core.ErrInvalidAmount
		}
		return cents, nil
	}
	return core.ParseDecimalToCents(decimal)
}

// toTransaction converts the request. conflict reports a transaction_kind/type disagreement.
func (req transactionRequest) toTransaction(userID string) (tx core.Transaction, conflict bool, err error) {
	if _, e1 := core.ParseKind(req.TransactionKind); e1 != nil {
		if _, e2 := core.ParseKind(req.Type); e2 != nil {
			return tx, false, fmt.Errorf("%w: %w", services.ErrInvalidInput, e1)
		}
	}
	kind, conflict := core.ResolveKind(req.TransactionKind, req.Type)

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return tx, conflict, fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	amount, err := requestCents(req.Amount, req.AmountCents)
	if err != nil {
		return tx, conflict, fmt.Errorf("%w: amount: %w", services.ErrInvalidInput, err)
	}

	tx = core.Transaction{
		UserID:        userID,
		Date:          date,
		AmountCents:   amount,
		Kind:          kind,
		Currency:      req.Currency,
		CategoryID:    sanitizeInput(req.CategoryID),
		AccountID:     sanitizeInput(req.AccountID),
		FromAccountID: sanitizeInput(req.FromAccountID),
		ToAccountID:   sanitizeInput(req.ToAccountID),
		Merchant:      sanitizeInput(req.Merchant),
		Notes:         sanitizeInput(req.Notes),
		Tags:          req.Tags,
	}
	for i, s := range req.Splits {
		cents, err := requestCents(s.Amount, s.AmountCents)
		if err != nil {
			return core.Transaction{}, conflict, fmt.Errorf("%w: split %d: %w", services.ErrInvalidInput, i, err)
		}
		tx.Splits = append(tx.Splits, core.Split{
			CategoryID:  sanitizeInput(s.CategoryID),
			AmountCents: cents,
			Note:        sanitizeInput(s.Note),
		})
	}
	return tx, conflict, nil
}
