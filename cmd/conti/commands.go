package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"conti/internal/amqp"
	"conti/internal/clock"
	"conti/internal/core"
	"conti/internal/services"
	"conti/internal/storage"
)

var errUsage = errors.New("usage: conti <add|edit|delete|transfer|list|summary|recurring|accounts|categories|apply|watch|export|import> [flags]")

// Watcher streams recurring applied notices published by the worker.
type Watcher interface {
	ConsumeRecurringApplied(ctx context.Context, handler func(*amqp.RecurringAppliedMessage) error) error
}

type app struct {
	repo      *storage.Repository
	ledger    *services.LedgerService
	processor *services.RecurringProcessor
	clock     clock.Clock
	out       io.Writer
	in        io.Reader
	watcher   Watcher
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "transfer":
		return a.transfer(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "summary":
		return a.summary(ctx, rest)
	case "recurring":
		return a.recurring(ctx, rest)
	case "accounts":
		return a.accounts(ctx, rest)
	case "categories":
		return a.categories()
	case "apply":
		return a.apply(ctx)
	case "watch":
		return a.watch(ctx)
	case "export":
		return a.export(ctx, rest)
	case "import":
		return a.importBackup(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseDay parses a YYYY-MM-DD flag, defaulting to today.
func (a *app) parseDay(s string) (core.Date, error) {
	if s == "" {
		return a.clock.Today(), nil
	}
	return core.ParseDate(s)
}

// parseMonth parses a YYYY-MM flag, defaulting to the current month.
func (a *app) parseMonth(s string) (int, int, error) {
	if s == "" {
		today := a.clock.Today()
		return today.Year, int(today.Month), nil
	}
	d, err := core.ParseDate(s + "-01")
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return d.Year, int(d.Month), nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	kind := fs.String("type", string(core.Expense), "expense or income")
	amount := fs.String("amount", "", "amount, e.g. 12,50")
	category := fs.String("category", "", "category id")
	desc := fs.String("desc", "", "description")
	account := fs.String("account", storage.DefaultAccount.ID.String(), "account id")
	date := fs.String("date", "", "date YYYY-MM-DD (default today)")
	every := fs.String("every", "", "repeat weekly, monthly or yearly")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	day, err := a.parseDay(*date)
	if err != nil {
		return err
	}
	tx, tmpl, err := a.ledger.AddTransaction(ctx, services.NewTransaction{
		Amount:      amt,
		Description: *desc,
		Category:    *category,
		Type:        core.Kind(*kind),
		AccountID:   core.ID(*account),
		Date:        day,
		Every:       core.Frequency(*every),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s\n", tx.ID)
	if tmpl != nil {
		fmt.Fprintf(a.out, "recurring %s next on %s\n", tmpl.ID, tmpl.NextDate)
	}
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit")
	id := fs.String("id", "", "transaction id")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", "", "category id")
	desc := fs.String("desc", "", "description")
	account := fs.String("account", storage.DefaultAccount.ID.String(), "account id")
	date := fs.String("date", "", "date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	day, err := a.parseDay(*date)
	if err != nil {
		return err
	}
	tx, err := a.ledger.EditTransaction(ctx, core.ID(*id), services.TransactionEdit{
		Amount:      amt,
		Description: *desc,
		Category:    *category,
		AccountID:   core.ID(*account),
		Date:        day,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s\n", tx.ID)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	id := fs.String("id", "", "transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := a.ledger.DeleteTransaction(ctx, core.ID(*id))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d transaction(s)\n", n)
	return nil
}

func (a *app) transfer(ctx context.Context, args []string) error {
	fs := newFlagSet("transfer")
	from := fs.String("from", "", "source account id")
	to := fs.String("to", "", "destination account id")
	amount := fs.String("amount", "", "amount")
	date := fs.String("date", "", "date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	day, err := a.parseDay(*date)
	if err != nil {
		return err
	}
	legs, err := a.ledger.Transfer(ctx, services.TransferRequest{
		From:   core.ID(*from),
		To:     core.ID(*to),
		Amount: amt,
		Date:   day,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "transfer %s -> %s\n", legs[0].ID, legs[1].ID)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	account := fs.String("account", storage.DefaultAccount.ID.String(), "account id")
	month := fs.String("month", "", "month YYYY-MM (default current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	year, m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}
	txs, err := a.ledger.Transactions(ctx, core.ID(*account), year, m)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tID\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Date.Format("2006-01-02"), t.ID, t.Type, core.CategoryLabel(t.Type, t.Category),
			t.Amount.StringFixed(2), t.Description)
	}
	return w.Flush()
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary")
	account := fs.String("account", storage.DefaultAccount.ID.String(), "account id")
	month := fs.String("month", "", "month YYYY-MM (default current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	year, m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}
	o, err := a.ledger.MonthOverview(ctx, core.ID(*account), year, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%04d-%02d %s\n", o.Year, o.Month, o.AccountID)
	fmt.Fprintf(a.out, "income:  %s\n", o.Income.StringFixed(2))
	fmt.Fprintf(a.out, "expense: %s\n", o.Expense.StringFixed(2))
	fmt.Fprintf(a.out, "balance: %s\n", o.Balance.StringFixed(2))
	if o.Budget.IsPositive() {
		status := ""
		if o.OverBudget {
			status = " over budget"
		}
		fmt.Fprintf(a.out, "budget:  %s (%.0f%%)%s\n", o.Budget.StringFixed(2), o.BudgetUsed(), status)
	}
	for _, c := range o.ByCategory {
		fmt.Fprintf(a.out, "  %-12s %s\n", core.CategoryLabel(c.Type, c.Category), c.Amount.StringFixed(2))
	}
	return nil
}

func (a *app) recurring(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		templates, err := a.ledger.ListTemplates(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFREQUENCY\tNEXT\tTYPE\tAMOUNT\tDESCRIPTION")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Frequency, t.NextDate, t.Type, t.Amount.StringFixed(2), t.Description)
		}
		return w.Flush()
	}
	if args[0] != "delete" {
		return fmt.Errorf("usage: conti recurring [list|delete -id ID]")
	}

	fs := newFlagSet("recurring delete")
	id := fs.String("id", "", "template id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := a.ledger.DeleteTemplate(ctx, core.ID(*id)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted recurring %s\n", *id)
	return nil
}

func (a *app) accounts(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	fs := newFlagSet("accounts " + sub)
	id := fs.String("id", "", "account id")
	name := fs.String("name", "", "account name")
	budget := fs.String("budget", "0", "monthly budget")
	balance := fs.String("balance", "0", "initial balance")
	amount := fs.String("amount", "", "amount")
	strategy := fs.String("strategy", string(services.DeleteRecords), "delete or move")
	target := fs.String("target", "", "account receiving moved records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch sub {
	case "list":
		accounts, err := a.ledger.Accounts(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBUDGET\tINITIAL")
		for _, acc := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", acc.ID, acc.Name, acc.Budget.StringFixed(2), acc.InitialBalance.StringFixed(2))
		}
		return w.Flush()
	case "add":
		b, err := core.ParseBalance(*budget)
		if err != nil {
			return err
		}
		ib, err := core.ParseBalance(*balance)
		if err != nil {
			return err
		}
		acc, err := a.ledger.CreateAccount(ctx, *name, b, ib)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "created %s\n", acc.ID)
		return nil
	case "rename":
		return a.ledger.RenameAccount(ctx, core.ID(*id), *name)
	case "budget":
		b, err := core.ParseBalance(*amount)
		if err != nil {
			return err
		}
		return a.ledger.SetBudget(ctx, core.ID(*id), b)
	case "balance":
		ib, err := core.ParseBalance(*amount)
		if err != nil {
			return err
		}
		return a.ledger.SetInitialBalance(ctx, core.ID(*id), ib)
	case "delete":
		return a.ledger.DeleteAccount(ctx, core.ID(*id), services.DeleteStrategy(*strategy), core.ID(*target))
	default:
		return fmt.Errorf("usage: conti accounts [list|add|rename|budget|balance|delete] [flags]")
	}
}

func (a *app) categories() error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tID\tLABEL")
	for _, k := range []core.Kind{core.Expense, core.Income} {
		for _, c := range core.Categories(k) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", k, c.ID, c.Label)
		}
	}
	return w.Flush()
}

func (a *app) apply(ctx context.Context) error {
	today := a.clock.Today()
	res, err := a.processor.ProcessDue(ctx, today)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: created %d transaction(s)\n", today, len(res.New))
	for _, d := range res.Skipped {
		fmt.Fprintf(a.out, "skipped %s: %v\n", d.TemplateID, d.Err)
	}
	return nil
}

func (a *app) watch(ctx context.Context) error {
	if a.watcher == nil {
		return errors.New("watch needs AMQP_URL to be set")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := a.watcher.ConsumeRecurringApplied(ctx, func(msg *amqp.RecurringAppliedMessage) error {
		_, err := fmt.Fprintf(a.out, "%s %s: created %d transaction(s) [%s]\n",
			msg.Timestamp.Format("2006-01-02 15:04"), msg.Today, msg.Created, strings.Join(msg.TemplateIDs, " "))
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	path := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return a.repo.Export(ctx, a.out)
	}
	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if err := a.repo.Export(ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) importBackup(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	path := fs.String("i", "", "backup file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var r io.Reader = a.in
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			return fmt.Errorf("open backup file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := a.repo.Import(ctx, r); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "backup imported")
	return nil
}
