package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "t1",
		Amount:      MustMoney("12.50"),
		Description: "spesa",
		Category:    "cibo",
		Type:        Expense,
		AccountID:   "acc_01",
		Date:        time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = MustMoney("-1") }, ErrInvalidAmount},
		{"bad kind", func(tx *Transaction) { tx.Type = "refund" }, ErrInvalidKind},
		{"income category on expense", func(tx *Transaction) { tx.Category = "stipendio" }, ErrUnknownCategory},
		{"empty account", func(tx *Transaction) { tx.AccountID = " " }, ErrEmptyAccount},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	good := RecurringTemplate{
		ID:        "r1",
		Amount:    MustMoney("20"),
		Category:  "casa",
		Type:      Expense,
		AccountID: "acc_01",
		Frequency: Monthly,
		NextDate:  NewDate(2024, 1, 10),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Frequency = "biweekly"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("expected ErrInvalidFrequency, got %v", err)
	}

	bad = good
	if err := bad.NextDate.UnmarshalText([]byte("2024-13-01")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestAccountValidate(t *testing.T) {
	if err := (Account{ID: "a", Name: "Conto"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Account{ID: "a"}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if err := (Account{ID: "a", Name: "x", Budget: MustMoney("-5")}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := Ledger{Templates: []RecurringTemplate{{ID: "r1", NextDate: NewDate(2024, 1, 1)}}}
	c := l.Clone()
	c.Templates[0].NextDate = NewDate(2025, 1, 1)
	c.Transactions = append(c.Transactions, validTransaction())

	if l.Templates[0].NextDate != NewDate(2024, 1, 1) {
		t.Errorf("clone mutated original template: %v", l.Templates[0].NextDate)
	}
	if len(l.Transactions) != 0 {
		t.Errorf("clone mutated original transactions")
	}
}

func TestCategories(t *testing.T) {
	if !IsCategory(Income, TransferInCategory) || !IsCategory(Expense, TransferOutCategory) {
		t.Fatal("transfer categories must be part of the taxonomy")
	}
	if IsCategory(Expense, "stipendio") {
		t.Error("stipendio is an income category")
	}
	if got := CategoryLabel(Expense, "trasporti"); got != "Auto" {
		t.Errorf("CategoryLabel() = %q, want Auto", got)
	}
	if got := len(Categories(Expense)); got != 7 {
		t.Errorf("expected 7 expense categories, got %d", got)
	}
}

func TestIDDecodesNumbersAndStrings(t *testing.T) {
	var tx Transaction
	in := `{"id":1705312800123,"amount":5,"category":"cibo","type":"expense","accountId":"acc_01","date":"2024-01-15T11:00:00.000Z","linkedId":1705312800124}`
	if err := json.Unmarshal([]byte(in), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.ID != "1705312800123" || tx.LinkedID != "1705312800124" || tx.AccountID != "acc_01" {
		t.Errorf("unexpected ids %+v", tx)
	}

	var bad Transaction
	if err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &bad); err == nil {
		t.Error("expected error for object id")
	}
}
