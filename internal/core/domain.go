package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

const (
	Daily     Cadence = "daily"
	Weekly    Cadence = "weekly"
	Biweekly  Cadence = "biweekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Yearly    Cadence = "yearly"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"
)

const (
	ClassAsset     AccountClass = "asset"
	ClassLiability AccountClass = "liability"
)

type (
	// Kind is the three-way direction of a transaction.
	Kind string

	// Cadence is the recurrence interval of a recurring rule.
	Cadence string

	AccountType  string
	AccountClass string

	// Transaction is a single ledger event. AmountCents is never negative; the sign
	// comes from Kind. Transfers use FromAccountID/ToAccountID, everything else AccountID.
	Transaction struct {
		ID            string   `json:"id"`
		UserID        string   `json:"user_id"`
		Date          Date     `json:"date"`
		AmountCents   int64    `json:"amount_cents"`
		Kind          Kind     `json:"kind"`
		Currency      string   `json:"currency"`
		CategoryID    string   `json:"category_id,omitempty"`
		AccountID     string   `json:"account_id,omitempty"`
		FromAccountID string   `json:"from_account_id,omitempty"`
		ToAccountID   string   `json:"to_account_id,omitempty"`
		Merchant      string   `json:"merchant,omitempty"`
		Notes         string   `json:"notes,omitempty"`
		Tags          []string `json:"tags,omitempty"`
		RecurringID   string   `json:"recurring_id,omitempty"`
		Splits        []Split  `json:"splits,omitempty"`
	}

	// Split allocates part of a transaction to a category.
	Split struct {
		ID            string `json:"id"`
		TransactionID string `json:"transaction_id"`
		CategoryID    string `json:"category_id,omitempty"`
		AmountCents   int64  `json:"amount_cents"`
		Note          string `json:"note,omitempty"`
	}

	Account struct {
		ID       string       `json:"id"`
		UserID   string       `json:"user_id"`
		Name     string       `json:"name"`
		Type     AccountType  `json:"type"`
		Class    AccountClass `json:"account_class,omitempty"`
		Currency string       `json:"currency"`
	}

	Category struct {
		ID        string `json:"id"`
		UserID    string `json:"user_id"`
		Name      string `json:"name"`
		Direction Kind   `json:"direction"`
	}

	// Budget caps a category's expense total for one month (yyyy-MM).
	Budget struct {
		ID         string `json:"id"`
		UserID     string `json:"user_id"`
		CategoryID string `json:"category_id"`
		Month      string `json:"month"`
		LimitCents int64  `json:"limit_cents"`
		Currency   string `json:"currency"`
	}

	Goal struct {
		ID           string `json:"id"`
		UserID       string `json:"user_id"`
		Name         string `json:"name"`
		TargetCents  int64  `json:"target_cents"`
		CurrentCents int64  `json:"current_cents"`
		Currency     string `json:"currency"`
		DueDate      Date   `json:"due_date"`
	}

	// RecurringRule is a template for generated transactions. NextRun is the earliest
	// occurrence that has not been materialized yet; LastRun and EndDate may be empty.
	RecurringRule struct {
		ID          string   `json:"id"`
		UserID      string   `json:"user_id"`
		Name        string   `json:"name"`
		AmountCents int64    `json:"amount_cents"`
		Kind        Kind     `json:"type"`
		CategoryID  string   `json:"category_id,omitempty"`
		AccountID   string   `json:"account_id"`
		Currency    string   `json:"currency"`
		Cadence     Cadence  `json:"cadence"`
		StartDate   Date     `json:"start_date"`
		NextRun     Date     `json:"next_run"`
		LastRun     Date     `json:"last_run"`
		EndDate     Date     `json:"end_date"`
		Active      bool     `json:"active"`
		Notes       string   `json:"notes,omitempty"`
		Tags        []string `json:"tags,omitempty"`
	}

	// RuleAdvance is the state transition persisted after a rule has been materialized.
	RuleAdvance struct {
		RuleID  string `json:"rule_id"`
		UserID  string `json:"user_id"`
		NextRun Date   `json:"next_run"`
		LastRun Date   `json:"last_run"`
		Active  bool   `json:"active"`
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidCadence      = errors.New("invalid cadence")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrMissingUser         = errors.New("missing user id")
	ErrMissingAccount      = errors.New("missing account")
	ErrSameAccountTransfer = errors.New("transfer accounts must differ")
	ErrTransferCategory    = errors.New("transfer cannot carry a category")
	ErrSplitsExceedAmount  = errors.New("split amounts exceed transaction amount")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidMonth        = errors.New("invalid month")
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindIncome, KindExpense, KindTransfer:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// ResolveKind collapses the legacy type column and the newer transaction_kind column into one
// kind. transaction_kind wins when it is valid. conflict is true when both are valid and
// disagree, so callers can log the row.
func ResolveKind(transactionKind, legacyType string) (kind Kind, conflict bool) {
	explicit, explicitErr := ParseKind(transactionKind)
	legacy, legacyErr := ParseKind(legacyType)
	switch {
	case explicitErr == nil:
		return explicit, legacyErr == nil && legacy != explicit
	case legacyErr == nil:
		return legacy, false
	default:
		return KindExpense, false
	}
}

// ParseCadence validates a cadence string.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCadence, s)
	}
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateCurrency(code string) error {
	if len(code) != 3 || code != NormalizeCurrency(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// EffectiveClass returns the explicit class, or the default for the account type.
func (a Account) EffectiveClass() AccountClass {
	switch a.Class {
	case ClassAsset, ClassLiability:
		return a.Class
	}
	if a.Type == AccountCredit {
		return ClassLiability
	}
	return ClassAsset
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	switch a.Type {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash, AccountInvestment, AccountOther:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	return validateCurrency(a.Currency)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Direction != KindIncome && c.Direction != KindExpense {
		return fmt.Errorf("%w: category direction %q", ErrInvalidKind, c.Direction)
	}
	return nil
}

// Validate checks entry-time invariants. The engines never call it: they tolerate
// whatever the store hands them.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	if t.Date.IsEmpty() {
		return ErrInvalidDate
	}
	if err := (Money{Cents: t.AmountCents}).Validate(); err != nil {
		return err
	}
	if err := validateCurrency(t.Currency); err != nil {
		return err
	}
	switch t.Kind {
	case KindTransfer:
		if t.FromAccountID == "" || t.ToAccountID == "" {
			return ErrMissingAccount
		}
		if t.FromAccountID == t.ToAccountID {
			return ErrSameAccountTransfer
		}
		if t.CategoryID != "" || len(t.Splits) > 0 {
			return ErrTransferCategory
		}
	case KindIncome, KindExpense:
		if t.AccountID == "" {
			return ErrMissingAccount
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	var splitTotal int64
	for _, s := range t.Splits {
		if s.AmountCents <= 0 {
			return ErrInvalidAmount
		}
		splitTotal += s.AmountCents
	}
	if splitTotal > t.AmountCents {
		return ErrSplitsExceedAmount
	}
	return nil
}

// DedupeKey is the composite key importers use to recognise a row they have already seen.
func (t Transaction) DedupeKey() string {
	account := t.AccountID
	if t.Kind == KindTransfer {
		account = t.FromAccountID + ">" + t.ToAccountID
	}
	return strings.Join([]string{
		t.Date.Key(),
		strconv.FormatInt(t.AmountCents, 10),
		string(t.Kind),
		account,
		t.CategoryID,
		strings.ToLower(strings.TrimSpace(t.Merchant)),
	}, "|")
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrMissingUser
	}
	if _, err := ParseDate(b.Month + "-01"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, b.Month)
	}
	if err := (Money{Cents: b.LimitCents}).Validate(); err != nil {
		return err
	}
	return validateCurrency(b.Currency)
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetCents <= 0 || g.CurrentCents < 0 {
		return ErrInvalidAmount
	}
	return validateCurrency(g.Currency)
}

// Progress returns CurrentCents/TargetCents clamped to [0, 1].
func (g Goal) Progress() float64 {
	if g.TargetCents <= 0 || g.CurrentCents <= 0 {
		return 0
	}
	if g.CurrentCents >= g.TargetCents {
		return 1
	}
	return float64(g.CurrentCents) / float64(g.TargetCents)
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := (Money{Cents: r.AmountCents}).Validate(); err != nil {
		return err
	}
	if r.Kind != KindIncome && r.Kind != KindExpense {
		return fmt.Errorf("%w: recurring rules cannot be %q", ErrInvalidKind, r.Kind)
	}
	if _, err := ParseCadence(string(r.Cadence)); err != nil {
		return err
	}
	if r.AccountID == "" {
		return ErrMissingAccount
	}
	if r.StartDate.IsEmpty() {
		return fmt.Errorf("invalid start date: %w", ErrInvalidDate)
	}
	if !r.EndDate.IsEmpty() && r.EndDate.Before(r.StartDate) {
		return errors.New("end date must not be before start date")
	}
	return validateCurrency(r.Currency)
}
