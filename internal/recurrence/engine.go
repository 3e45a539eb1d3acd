package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/core"
)

// Diagnostic reports a template the engine refused to advance.
type Diagnostic struct {
	TemplateID core.ID
	Err        error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("template %s: %v", d.TemplateID, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Result is the outcome of one Advance pass.
type Result struct {
	// New holds the materialized transactions in template order, and
	// chronologically within a template.
	New []core.Transaction
	// Ledger is the input ledger with templates advanced and New appended
	// to its transactions.
	Ledger core.Ledger
	// Changed is true iff New is not empty.
	Changed bool
	// Skipped lists templates left untouched because they could not be advanced.
	Skipped []Diagnostic
}

// Engine brings recurring templates up to date.
type Engine struct {
	ids    IDGenerator
	loc    *time.Location
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator used for materialized transaction ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLocation sets the zone used for the midday timestamp of materialized
// transactions.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithLogger sets the logger used for rejected templates.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with UUID ids, UTC timestamps and the default logger.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ids: UUIDGenerator{},
		loc: time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	return e
}

// Advance emits one transaction for every occurrence of every template whose
// next date is on or before today, and moves each template's next date past
// today. The input ledger is not modified.
//
// A template with an unknown frequency or a malformed next date is reported in
// Result.Skipped and returned unchanged.
func (e *Engine) Advance(ledger core.Ledger, today core.Date) Result {
	out := ledger.Clone()
	res := Result{}

	for i := range out.Templates {
		tmpl, emitted, err := e.advanceTemplate(out.Templates[i], today)
		if err != nil {
			d := Diagnostic{TemplateID: out.Templates[i].ID, Err: err}
			res.Skipped = append(res.Skipped, d)
			e.logger.Error("Skipping recurring template",
				"template_id", d.TemplateID,
				"frequency", out.Templates[i].Frequency,
				"next_date", out.Templates[i].NextDate.String(),
				"error", err)
			continue
		}
		out.Templates[i] = tmpl
		res.New = append(res.New, emitted...)
	}

	out.Transactions = append(out.Transactions, res.New...)
	res.Ledger = out
	res.Changed = len(res.New) > 0
	return res
}

// AdvanceContext is Advance with context-aware logging of the pass summary.
func (e *Engine) AdvanceContext(ctx context.Context, ledger core.Ledger, today core.Date) Result {
	res := e.Advance(ledger, today)
	e.logger.InfoContext(ctx, "Recurring templates advanced",
		"today", today.String(),
		"templates", len(ledger.Templates),
		"created", len(res.New),
		"skipped", len(res.Skipped))
	return res
}

func (e *Engine) advanceTemplate(t core.RecurringTemplate, today core.Date) (core.RecurringTemplate, []core.Transaction, error) {
	if !t.NextDate.Valid() {
		return t, nil, fmt.Errorf("%w: next date %q", core.ErrInvalidDate, t.NextDate.String())
	}
	stepper, err := GetStepper(t.Frequency)
	if err != nil {
		return t, nil, err
	}
	if t.NextDate.After(today) {
		return t, nil, nil
	}
	if t.AnchorDay < 1 || t.AnchorDay > 31 {
		t.AnchorDay = t.NextDate.Day
	}

	var emitted []core.Transaction
	for !t.NextDate.After(today) {
		emitted = append(emitted, core.Transaction{
			ID:          core.ID(e.ids.NewID()),
			Amount:      t.Amount,
			Description: t.Description,
			Category:    t.Category,
			Type:        t.Type,
			AccountID:   t.AccountID,
			Date:        t.NextDate.Midday(e.loc),
		})

		next := stepper.Next(t.NextDate, t.AnchorDay)
		if !next.After(t.NextDate) {
			return t, nil, fmt.Errorf("schedule did not advance past %s", t.NextDate.String())
		}
		t.NextDate = next
	}
	return t, emitted, nil
}
