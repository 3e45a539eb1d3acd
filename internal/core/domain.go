package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	Kind      string
	Frequency string

	// ID identifies a record. It decodes from JSON strings and numbers, since
	// older data stored transaction ids as millisecond timestamps.
	ID string

	// RecurringTemplate is a rule that materializes one Transaction per
	// elapsed period. NextDate is the next occurrence still to be emitted.
	RecurringTemplate struct {
		ID          ID        `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Type        Kind      `json:"type"`
		AccountID   ID        `json:"accountId"`
		Frequency   Frequency `json:"frequency"`
		NextDate    Date      `json:"nextDate"`
		// AnchorDay is the day of month the schedule was created on. Monthly and
		// yearly steps clamp to it when the target month is shorter.
		AnchorDay int `json:"anchorDay,omitempty"`
	}

	Transaction struct {
		ID          ID        `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Type        Kind      `json:"type"`
		AccountID   ID        `json:"accountId"`
		Date        time.Time `json:"date"`
		LinkedID    ID        `json:"linkedId,omitempty"` // other leg of a transfer
	}

	Account struct {
		ID             ID     `json:"id"`
		Name           string `json:"name"`
		Budget         Money  `json:"budget"`
		InitialBalance Money  `json:"initialBalance"`
	}

	// Ledger is the whole persisted state owned by a single writer.
	Ledger struct {
		Transactions []Transaction
		Accounts     []Account
		Templates    []RecurringTemplate
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDate      = errors.New("invalid date")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrEmptyAccount     = errors.New("empty account id")
	ErrEmptyName        = errors.New("empty name")
)

const maxDescriptionLen = 200

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Monthly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if !IsCategory(t.Type, t.Category) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownCategory, t.Category, t.Type)
	}
	if strings.TrimSpace(string(t.AccountID)) == "" {
		return ErrEmptyAccount
	}
	if len(t.Description) > maxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if err := rt.Type.Validate(); err != nil {
		return err
	}
	if !IsCategory(rt.Type, rt.Category) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownCategory, rt.Category, rt.Type)
	}
	if strings.TrimSpace(string(rt.AccountID)) == "" {
		return ErrEmptyAccount
	}
	if err := rt.Frequency.Validate(); err != nil {
		return err
	}
	if !rt.NextDate.Valid() {
		return fmt.Errorf("%w: next date %q", ErrInvalidDate, rt.NextDate.String())
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.Budget.IsNegative() {
		return fmt.Errorf("%w: negative budget", ErrInvalidAmount)
	}
	return nil
}

// Account returns the account with the given id.
func (l Ledger) Account(id ID) (Account, bool) {
	for _, a := range l.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Clone returns a copy whose slices can be modified without touching l.
func (l Ledger) Clone() Ledger {
	return Ledger{
		Transactions: append([]Transaction(nil), l.Transactions...),
		Accounts:     append([]Account(nil), l.Accounts...),
		Templates:    append([]RecurringTemplate(nil), l.Templates...),
	}
}
