package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category string
	Type     Kind
	Amount   Money
}

// MonthOverview is a compact summary of one account for a specific year+month.
type MonthOverview struct {
	AccountID  ID
	Year       int
	Month      int // 1-12
	Income     Money
	Expense    Money
	Balance    Money // initial balance + income - expense
	Budget     Money
	OverBudget bool
	ByCategory []CategoryAmount
}

// BudgetUsed returns the spent share of the budget in percent, capped at 100.
// It is zero when no budget is set.
func (o MonthOverview) BudgetUsed() float64 {
	if !o.Budget.IsPositive() {
		return 0
	}
	pct, _ := o.Expense.Div(o.Budget.Decimal).Mul(decimalHundred).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

// Overview aggregates the transactions of account acc dated in year/month
// (evaluated in loc). Categories are sorted by descending amount.
func Overview(acc Account, txs []Transaction, year, month int, loc *time.Location) MonthOverview {
	if loc == nil {
		loc = time.UTC
	}
	o := MonthOverview{AccountID: acc.ID, Year: year, Month: month, Budget: acc.Budget}
	byCat := map[Kind]map[string]Money{Expense: {}, Income: {}}

	for _, t := range txs {
		if t.AccountID != acc.ID {
			continue
		}
		d := t.Date.In(loc)
		if d.Year() != year || int(d.Month()) != month {
			continue
		}
		switch t.Type {
		case Income:
			o.Income = o.Income.Add(t.Amount)
		case Expense:
			o.Expense = o.Expense.Add(t.Amount)
		default:
			continue
		}
		byCat[t.Type][t.Category] = byCat[t.Type][t.Category].Add(t.Amount)
	}

	for k, cats := range byCat {
		for id, amt := range cats {
			o.ByCategory = append(o.ByCategory, CategoryAmount{Category: id, Type: k, Amount: amt})
		}
	}
	sort.Slice(o.ByCategory, func(i, j int) bool {
		a, b := o.ByCategory[i], o.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount.Decimal); c != 0 {
			return c > 0
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Category < b.Category
	})

	o.Balance = acc.InitialBalance.Add(o.Income).Sub(o.Expense)
	o.OverBudget = o.Budget.IsPositive() && o.Expense.GreaterThan(o.Budget.Decimal)
	return o
}
