package services

import (
	"context"
	"fmt"
	"log/slog"

	"conti/internal/amqp"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/recurrence"
	"conti/internal/storage"
)

// Notifier is told about recurring passes that created transactions.
type Notifier interface {
	PublishRecurringApplied(ctx context.Context, msg *amqp.RecurringAppliedMessage) error
}

// RecurringProcessor materializes due recurring templates into the stored ledger.
type RecurringProcessor struct {
	repo     *storage.Repository
	engine   *recurrence.Engine
	notifier Notifier
}

// NewRecurringProcessor creates a processor. notifier may be nil.
func NewRecurringProcessor(repo *storage.Repository, engine *recurrence.Engine, notifier Notifier) *RecurringProcessor {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	return &RecurringProcessor{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
	}
}

// ProcessDue advances every template up to today and persists the ledger if
// any transaction was created. Running it again for the same day creates
// nothing.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (recurrence.Result, error) {
	if p.repo == nil {
		return recurrence.Result{}, fmt.Errorf("processor not properly initialized")
	}

	var (
		res     recurrence.Result
		applied []string
	)
	err := p.repo.Update(ctx, func(l *core.Ledger) error {
		res = p.engine.AdvanceContext(ctx, *l, today)
		if !res.Changed {
			return storage.ErrNoChange
		}
		applied = advancedTemplates(l.Templates, res.Ledger.Templates)
		*l = res.Ledger
		return nil
	})
	if err != nil {
		return recurrence.Result{}, fmt.Errorf("process recurring templates: %w", err)
	}

	for _, tx := range res.New {
		fields := applog.NewFields().WithTransaction(tx).WithOperation(applog.OpApply)
		slog.InfoContext(ctx, "Created transaction from recurring template",
			append(fields.ToSlice(), "date", tx.Date.Format("2006-01-02"))...)
	}

	if res.Changed {
		p.notify(ctx, today, len(res.New), applied)
	}
	return res, nil
}

func (p *RecurringProcessor) notify(ctx context.Context, today core.Date, created int, templateIDs []string) {
	if p.notifier == nil {
		slog.DebugContext(ctx, "No notifier configured, skipping recurring applied message")
		return
	}
	msg := amqp.NewRecurringAppliedMessage(today.String(), created, templateIDs)
	if err := p.notifier.PublishRecurringApplied(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish recurring applied message",
			"today", today.String(),
			"error", err)
	}
}

// advancedTemplates returns the ids of templates whose next date moved.
func advancedTemplates(before, after []core.RecurringTemplate) []string {
	var ids []string
	for i := range after {
		if i < len(before) && before[i].NextDate != after[i].NextDate {
			ids = append(ids, after[i].ID.String())
		}
	}
	return ids
}
