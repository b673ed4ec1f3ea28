// Package worker reacts to ledger change events: each event triggers a fresh
// computation of the derived views so they stay warm and every book movement
// leaves a summary in the logs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/amqp"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/services"
)

// ReceivablesComputer derives the open receivables list as of today.
type ReceivablesComputer interface {
	Compute(ctx context.Context, today time.Time) ([]core.Receivable, error)
}

// Projector builds the monthly revenue/expense projection.
type Projector interface {
	Project(ctx context.Context, anchor string, months int) (services.Projection, error)
}

// DerivationWorker recomputes receivables and the projection whenever the
// ledger changes.
type DerivationWorker struct {
	receivables ReceivablesComputer
	projection  Projector
	months      int
	timeout     time.Duration
}

func NewDerivationWorker(receivables ReceivablesComputer, projection Projector, months int) *DerivationWorker {
	if months <= 0 {
		months = services.DefaultProjectionWindow
	}
	return &DerivationWorker{
		receivables: receivables,
		projection:  projection,
		months:      months,
		timeout:     30 * time.Second,
	}
}

// HandleLedgerChanged processes a single ledger change event.
func (w *DerivationWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	hctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	now := time.Now()
	recs, err := w.receivables.Compute(hctx, now)
	if err != nil {
		return fmt.Errorf("recompute receivables: %w", err)
	}

	var overdue, partial int
	for _, r := range recs {
		switch r.Class {
		case core.ReceivableOverdue:
			overdue++
		case core.ReceivablePartial:
			partial++
		}
	}

	proj, err := w.projection.Project(hctx, core.MonthKey(now), w.months)
	if err != nil {
		return fmt.Errorf("recompute projection: %w", err)
	}

	slog.InfoContext(hctx, "Derived views recomputed",
		"scope", msg.Scope,
		"id", msg.ID,
		"receivables", len(recs),
		"overdue", overdue,
		"partial", partial,
		"projection_months", len(proj.Buckets),
		"projection_dropped", proj.Dropped)
	return nil
}
