package core

import (
	"testing"
	"time"
)

func TestOverview(t *testing.T) {
	acc := Account{ID: "acc_01", Name: "Conto", Budget: MustMoney("100"), InitialBalance: MustMoney("50")}
	at := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

	txs := []Transaction{
		{Amount: MustMoney("80"), Category: "cibo", Type: Expense, AccountID: "acc_01", Date: at(2024, 3, 1)},
		{Amount: MustMoney("30.5"), Category: "casa", Type: Expense, AccountID: "acc_01", Date: at(2024, 3, 15)},
		{Amount: MustMoney("1000"), Category: "stipendio", Type: Income, AccountID: "acc_01", Date: at(2024, 3, 27)},
		{Amount: MustMoney("999"), Category: "cibo", Type: Expense, AccountID: "acc_01", Date: at(2024, 4, 1)},
		{Amount: MustMoney("999"), Category: "cibo", Type: Expense, AccountID: "acc_02", Date: at(2024, 3, 1)},
	}

	o := Overview(acc, txs, 2024, 3, time.UTC)

	if !o.Income.Equal(MustMoney("1000")) {
		t.Errorf("income = %s", o.Income)
	}
	if !o.Expense.Equal(MustMoney("110.5")) {
		t.Errorf("expense = %s", o.Expense)
	}
	if !o.Balance.Equal(MustMoney("939.5")) {
		t.Errorf("balance = %s", o.Balance)
	}
	if !o.OverBudget {
		t.Error("expected over budget")
	}
	if o.BudgetUsed() != 100 {
		t.Errorf("budget used = %v, want capped 100", o.BudgetUsed())
	}
	if len(o.ByCategory) != 3 || o.ByCategory[0].Category != "stipendio" || o.ByCategory[1].Category != "cibo" {
		t.Errorf("unexpected categories %+v", o.ByCategory)
	}
}

func TestOverviewWithoutBudget(t *testing.T) {
	o := Overview(Account{ID: "a"}, nil, 2024, 1, nil)
	if o.OverBudget || o.BudgetUsed() != 0 {
		t.Errorf("no budget set, got %+v", o)
	}
	if !o.Balance.IsZero() {
		t.Errorf("balance = %s", o.Balance)
	}
}
