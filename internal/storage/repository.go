package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"conti/internal/core"
)

// ErrNoChange is returned by an Update callback to skip saving.
var ErrNoChange = errors.New("no change")

// DefaultAccount is used when no accounts were ever saved.
var DefaultAccount = core.Account{ID: "acc_01", Name: "Conto Corrente"}

// Repository loads and saves the whole ledger on top of a KV store. Every
// write runs inside one KV transaction, so concurrent writers, in this process
// or another one sharing the store, never overwrite each other's changes.
type Repository struct {
	kv KV
	mu sync.Mutex
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) Close() error {
	if r.kv != nil {
		return r.kv.Close()
	}
	return nil
}

// Load returns the persisted ledger. Collections never written come back
// empty, except accounts which default to DefaultAccount.
func (r *Repository) Load(ctx context.Context) (core.Ledger, error) {
	return load(ctx, r.kv)
}

func load(ctx context.Context, txn Txn) (core.Ledger, error) {
	var l core.Ledger
	if err := get(ctx, txn, KeyTransactions, &l.Transactions); err != nil {
		return core.Ledger{}, err
	}
	if err := get(ctx, txn, KeyRecurring, &l.Templates); err != nil {
		return core.Ledger{}, err
	}
	if err := get(ctx, txn, KeyAccounts, &l.Accounts); err != nil {
		return core.Ledger{}, err
	}
	if l.Transactions == nil {
		l.Transactions = []core.Transaction{}
	}
	if l.Templates == nil {
		l.Templates = []core.RecurringTemplate{}
	}
	if len(l.Accounts) == 0 {
		l.Accounts = []core.Account{DefaultAccount}
	}
	return l, nil
}

func get(ctx context.Context, txn Txn, key string, dst any) error {
	data, found, err := txn.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !found || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save writes all three collections atomically, replacing whatever is stored.
func (r *Repository) Save(ctx context.Context, l core.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Atomic(ctx, func(txn Txn) error {
		return save(ctx, txn, l)
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Ledger saved",
		"transactions", len(l.Transactions),
		"templates", len(l.Templates),
		"accounts", len(l.Accounts))
	return nil
}

func save(ctx context.Context, txn Txn, l core.Ledger) error {
	entries := make(map[string][]byte, 3)
	for key, v := range map[string]any{
		KeyTransactions: nonNil(l.Transactions),
		KeyRecurring:    nonNil(l.Templates),
		KeyAccounts:     nonNil(l.Accounts),
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = data
	}
	if err := txn.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Update loads the ledger, lets fn modify it and saves the result inside a
// single KV transaction. If fn returns ErrNoChange nothing is saved and Update
// returns nil; any other error aborts without saving.
func (r *Repository) Update(ctx context.Context, fn func(*core.Ledger) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var saved core.Ledger
	err := r.kv.Atomic(ctx, func(txn Txn) error {
		l, err := load(ctx, txn)
		if err != nil {
			return err
		}
		if err := fn(&l); err != nil {
			return err
		}
		saved = l
		return save(ctx, txn, l)
	})
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Ledger saved",
		"transactions", len(saved.Transactions),
		"templates", len(saved.Templates),
		"accounts", len(saved.Accounts))
	return nil
}

// backup is the single-document export format. Backups written by the
// browser version carry only transactions and accounts.
type backup struct {
	Transactions []core.Transaction        `json:"transactions"`
	Accounts     *[]core.Account           `json:"accounts,omitempty"`
	Recurring    *[]core.RecurringTemplate `json:"recurring,omitempty"`
}

// Export writes the whole ledger as one JSON document.
func (r *Repository) Export(ctx context.Context, w io.Writer) error {
	l, err := r.Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup{
		Transactions: l.Transactions,
		Accounts:     &l.Accounts,
		Recurring:    &l.Templates,
	}); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Import replaces the stored transactions with the backup's. Accounts and
// recurring templates are replaced only when the backup has them.
func (r *Repository) Import(ctx context.Context, rd io.Reader) error {
	var b backup
	if err := json.NewDecoder(rd).Decode(&b); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	return r.Update(ctx, func(l *core.Ledger) error {
		l.Transactions = nonNil(b.Transactions)
		if b.Accounts != nil {
			l.Accounts = *b.Accounts
			if len(l.Accounts) == 0 {
				l.Accounts = []core.Account{DefaultAccount}
			}
		}
		if b.Recurring != nil {
			l.Templates = nonNil(*b.Recurring)
		}
		return nil
	})
}
