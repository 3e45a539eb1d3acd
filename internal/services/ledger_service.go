package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/recurrence"
	"conti/internal/storage"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTemplateNotFound    = errors.New("recurring template not found")
	ErrSameAccount         = errors.New("source and destination account are the same")
	ErrLastAccount         = errors.New("cannot delete the last account")
	ErrInvalidStrategy     = errors.New("invalid account deletion strategy")
)

// DeleteStrategy says what happens to the records of a deleted account.
type DeleteStrategy string

const (
	// DeleteRecords removes the account's transactions and templates.
	DeleteRecords DeleteStrategy = "delete"
	// MoveRecords reassigns them to another account.
	MoveRecords DeleteStrategy = "move"
)

// NewTransaction is a user-entered transaction. When Every is set a recurring
// template starting one period after Date is created as well.
type NewTransaction struct {
	Amount      core.Money
	Description string
	Category    string
	Type        core.Kind
	AccountID   core.ID
	Date        core.Date
	Every       core.Frequency
}

// TransactionEdit replaces the editable fields of a stored transaction. The
// type cannot change.
type TransactionEdit struct {
	Amount      core.Money
	Description string
	Category    string
	AccountID   core.ID
	Date        core.Date
}

type TransferRequest struct {
	From   core.ID
	To     core.ID
	Amount core.Money
	Date   core.Date
}

// LedgerService is the write path for user-driven ledger changes.
type LedgerService struct {
	repo *storage.Repository
	ids  recurrence.IDGenerator
	loc  *time.Location
}

func NewLedgerService(repo *storage.Repository, ids recurrence.IDGenerator, loc *time.Location) *LedgerService {
	if ids == nil {
		ids = recurrence.UUIDGenerator{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{repo: repo, ids: ids, loc: loc}
}

// AddTransaction stores a transaction and, if requested, its recurring template.
func (s *LedgerService) AddTransaction(ctx context.Context, nt NewTransaction) (core.Transaction, *core.RecurringTemplate, error) {
	if !nt.Date.Valid() {
		return core.Transaction{}, nil, fmt.Errorf("%w: %q", core.ErrInvalidDate, nt.Date.String())
	}
	tx := core.Transaction{
		ID:          core.ID(s.ids.NewID()),
		Amount:      nt.Amount,
		Description: strings.TrimSpace(nt.Description),
		Category:    nt.Category,
		Type:        nt.Type,
		AccountID:   nt.AccountID,
		Date:        nt.Date.Midday(s.loc),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, nil, fmt.Errorf("validate transaction: %w", err)
	}

	var tmpl *core.RecurringTemplate
	if nt.Every != "" {
		next, err := recurrence.FirstOccurrenceAfter(nt.Date, nt.Every)
		if err != nil {
			return core.Transaction{}, nil, fmt.Errorf("schedule recurring template: %w", err)
		}
		tmpl = &core.RecurringTemplate{
			ID:          core.ID("rec_" + s.ids.NewID()),
			Amount:      tx.Amount,
			Description: tx.Description,
			Category:    tx.Category,
			Type:        tx.Type,
			AccountID:   tx.AccountID,
			Frequency:   nt.Every,
			NextDate:    next,
			AnchorDay:   nt.Date.Day,
		}
	}

	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		if _, ok := l.Account(tx.AccountID); !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, tx.AccountID)
		}
		l.Transactions = append(l.Transactions, tx)
		if tmpl != nil {
			l.Templates = append(l.Templates, *tmpl)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, nil, err
	}

	fields := applog.NewFields().WithTransaction(tx).WithOperation(applog.OpCreate)
	if tmpl != nil {
		fields = fields.WithTemplate(*tmpl)
	}
	slog.InfoContext(ctx, "Transaction added", fields.ToSlice()...)
	return tx, tmpl, nil
}

// EditTransaction updates a stored transaction in place.
func (s *LedgerService) EditTransaction(ctx context.Context, id core.ID, edit TransactionEdit) (core.Transaction, error) {
	if !edit.Date.Valid() {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, edit.Date.String())
	}
	var updated core.Transaction
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		i := slices.IndexFunc(l.Transactions, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		if _, ok := l.Account(edit.AccountID); !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, edit.AccountID)
		}
		tx := l.Transactions[i]
		tx.Amount = edit.Amount
		tx.Description = strings.TrimSpace(edit.Description)
		tx.Category = edit.Category
		tx.AccountID = edit.AccountID
		tx.Date = edit.Date.Midday(s.loc)
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("validate transaction: %w", err)
		}
		l.Transactions[i] = tx
		updated = tx
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction updated", "transaction_id", id)
	return updated, nil
}

// DeleteTransaction removes a transaction. Deleting one leg of a transfer
// removes the other leg too.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id core.ID) (int, error) {
	removed := 0
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		i := slices.IndexFunc(l.Transactions, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		linked := l.Transactions[i].LinkedID
		before := len(l.Transactions)
		l.Transactions = slices.DeleteFunc(l.Transactions, func(t core.Transaction) bool {
			return t.ID == id || (linked != "" && t.ID == linked)
		})
		removed = before - len(l.Transactions)
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "removed", removed)
	return removed, nil
}

// Transfer moves money between two accounts as a linked expense and income pair.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) ([2]core.Transaction, error) {
	var legs [2]core.Transaction
	if err := req.Amount.Validate(); err != nil {
		return legs, err
	}
	if req.From == req.To {
		return legs, ErrSameAccount
	}
	if !req.Date.Valid() {
		return legs, fmt.Errorf("%w: %q", core.ErrInvalidDate, req.Date.String())
	}

	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		from, ok := l.Account(req.From)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, req.From)
		}
		to, ok := l.Account(req.To)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, req.To)
		}

		outID, inID := core.ID(s.ids.NewID()), core.ID(s.ids.NewID())
		date := req.Date.Midday(s.loc)
		legs[0] = core.Transaction{
			ID:          outID,
			Amount:      req.Amount,
			Description: "Giroconto verso " + to.Name,
			Category:    core.TransferOutCategory,
			Type:        core.Expense,
			AccountID:   from.ID,
			Date:        date,
			LinkedID:    inID,
		}
		legs[1] = core.Transaction{
			ID:          inID,
			Amount:      req.Amount,
			Description: "Giroconto da " + from.Name,
			Category:    core.TransferInCategory,
			Type:        core.Income,
			AccountID:   to.ID,
			Date:        date,
			LinkedID:    outID,
		}
		l.Transactions = append(l.Transactions, legs[0], legs[1])
		return nil
	})
	if err != nil {
		return [2]core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transfer recorded",
		append(applog.NewFields().WithOperation(applog.OpTransfer).ToSlice(),
			"from_account", req.From,
			"to_account", req.To,
			"amount", req.Amount.String())...)
	return legs, nil
}

// Transactions returns the transactions of an account in a month, newest first.
func (s *LedgerService) Transactions(ctx context.Context, accountID core.ID, year, month int) ([]core.Transaction, error) {
	l, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, t := range l.Transactions {
		d := t.Date.In(s.loc)
		if t.AccountID == accountID && d.Year() == year && int(d.Month()) == month {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *LedgerService) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	l, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return l.Templates, nil
}

// DeleteTemplate stops a recurring template. Transactions it already created
// are kept.
func (s *LedgerService) DeleteTemplate(ctx context.Context, id core.ID) error {
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		before := len(l.Templates)
		l.Templates = slices.DeleteFunc(l.Templates, func(t core.RecurringTemplate) bool { return t.ID == id })
		if len(l.Templates) == before {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring template deleted", "template_id", id)
	return nil
}

func (s *LedgerService) Accounts(ctx context.Context) ([]core.Account, error) {
	l, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return l.Accounts, nil
}

// CreateAccount adds an account. Zero budget means no budget.
func (s *LedgerService) CreateAccount(ctx context.Context, name string, budget, initialBalance core.Money) (core.Account, error) {
	acc := core.Account{
		ID:             core.ID("acc_" + s.ids.NewID()),
		Name:           strings.TrimSpace(name),
		Budget:         budget,
		InitialBalance: initialBalance,
	}
	if err := acc.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("validate account: %w", err)
	}
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		l.Accounts = append(l.Accounts, acc)
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "account_id", acc.ID, "name", acc.Name)
	return acc, nil
}

func (s *LedgerService) RenameAccount(ctx context.Context, id core.ID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	return s.updateAccount(ctx, id, func(a *core.Account) error {
		a.Name = name
		return nil
	})
}

func (s *LedgerService) SetBudget(ctx context.Context, id core.ID, budget core.Money) error {
	if budget.IsNegative() {
		return fmt.Errorf("%w: negative budget", core.ErrInvalidAmount)
	}
	return s.updateAccount(ctx, id, func(a *core.Account) error {
		a.Budget = budget
		return nil
	})
}

// SetInitialBalance sets the opening balance. It may be negative.
func (s *LedgerService) SetInitialBalance(ctx context.Context, id core.ID, balance core.Money) error {
	return s.updateAccount(ctx, id, func(a *core.Account) error {
		a.InitialBalance = balance
		return nil
	})
}

func (s *LedgerService) updateAccount(ctx context.Context, id core.ID, fn func(*core.Account) error) error {
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		i := slices.IndexFunc(l.Accounts, func(a core.Account) bool { return a.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return fn(&l.Accounts[i])
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account updated", "account_id", id)
	return nil
}

// DeleteAccount removes an account. Its transactions and recurring templates
// are either deleted or moved to target, depending on strategy.
func (s *LedgerService) DeleteAccount(ctx context.Context, id core.ID, strategy DeleteStrategy, target core.ID) error {
	switch strategy {
	case DeleteRecords:
	case MoveRecords:
		if target == id {
			return ErrSameAccount
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	var affected int
	err := s.repo.Update(ctx, func(l *core.Ledger) error {
		if _, ok := l.Account(id); !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if len(l.Accounts) <= 1 {
			return ErrLastAccount
		}

		if strategy == MoveRecords {
			if _, ok := l.Account(target); !ok {
				return fmt.Errorf("%w: %s", ErrAccountNotFound, target)
			}
			for i := range l.Transactions {
				if l.Transactions[i].AccountID == id {
					l.Transactions[i].AccountID = target
					affected++
				}
			}
			for i := range l.Templates {
				if l.Templates[i].AccountID == id {
					l.Templates[i].AccountID = target
				}
			}
		} else {
			before := len(l.Transactions)
			l.Transactions = slices.DeleteFunc(l.Transactions, func(t core.Transaction) bool { return t.AccountID == id })
			affected = before - len(l.Transactions)
			l.Templates = slices.DeleteFunc(l.Templates, func(t core.RecurringTemplate) bool { return t.AccountID == id })
		}

		l.Accounts = slices.DeleteFunc(l.Accounts, func(a core.Account) bool { return a.ID == id })
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted",
		"account_id", id,
		"strategy", strategy,
		"transactions", affected)
	return nil
}

// MonthOverview summarizes one account for a calendar month.
func (s *LedgerService) MonthOverview(ctx context.Context, accountID core.ID, year, month int) (core.MonthOverview, error) {
	l, err := s.repo.Load(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	acc, ok := l.Account(accountID)
	if !ok {
		return core.MonthOverview{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return core.Overview(acc, l.Transactions, year, month, s.loc), nil
}
