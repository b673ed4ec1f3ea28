// Package services provides the read-side derivations over ledger data
// (receivables aggregation, period projection) and the write orchestration
// that keeps external caches notified.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

// ReceivablesStore is the read contract the aggregation requires from the
// store. Each method issues one filtered select; implementations must return
// an error rather than a partial row set.
type ReceivablesStore interface {
	// ListUnpaidInstallments returns unpaid installment rows joined to their
	// owning entry, ordered by due date ascending.
	ListUnpaidInstallments(ctx context.Context) ([]core.ScheduledReceivable, error)
	// CountPaidInstallmentsByEntry counts paid installment rows per entry id.
	CountPaidInstallmentsByEntry(ctx context.Context, entryIDs []int64) (map[int64]int, error)
	// ListUnsettledEntries returns pending entries ordered by effective due
	// date ascending.
	ListUnsettledEntries(ctx context.Context) ([]core.LedgerEntry, error)
	// EntryIDsWithInstallments returns the subset of entryIDs that have at
	// least one installment row, any status.
	EntryIDsWithInstallments(ctx context.Context, entryIDs []int64) (map[int64]struct{}, error)
}

// ReceivablesService derives the deduplicated, classified list of open
// obligations. It is stateless and safe for concurrent use.
type ReceivablesService struct {
	store ReceivablesStore
}

func NewReceivablesService(store ReceivablesStore) *ReceivablesService {
	return &ReceivablesService{store: store}
}

// Compute returns every unsettled obligation exactly once: entries with an
// installment schedule are represented by their unpaid installment rows,
// entries without one by a single standalone row. Any read failure aborts the
// whole computation; no partial result is returned.
//
// The merged list is globally sorted by due date ascending (stable, rows
// without a parseable due date last).
func (s *ReceivablesService) Compute(ctx context.Context, today time.Time) ([]core.Receivable, error) {
	scheduled, err := s.store.ListUnpaidInstallments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unpaid installments: %w", err)
	}

	paidCount := map[int64]int{}
	if ids := distinctEntryIDs(scheduled); len(ids) > 0 {
		paidCount, err = s.store.CountPaidInstallmentsByEntry(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("count paid installments: %w", err)
		}
	}

	receivables := make([]core.Receivable, 0, len(scheduled))
	for _, row := range scheduled {
		paid := paidCount[row.EntryID]

		class := core.ReceivableCurrent
		switch {
		case core.Overdue(row.DueDate, today):
			class = core.ReceivableOverdue
		case paid > 0 && row.Total > 1:
			// A sibling installment has settled but this one has not.
			class = core.ReceivablePartial
		}

		paidAmount := decimal.Zero
		if paid > 0 {
			paidAmount = row.Amount.Mul(decimal.NewFromInt(int64(paid)))
		}

		receivables = append(receivables, core.Receivable{
			EntryID:           row.EntryID,
			ClientName:        row.ClientName,
			ClientPhone:       row.ClientPhone,
			ItemLabel:         row.ItemLabel,
			InstallmentNumber: row.Number,
			InstallmentsTotal: row.Total,
			TotalAmount:       row.EntryAmount,
			PaidAmount:        paidAmount,
			DueDate:           row.DueDate,
			Class:             class,
		})
	}

	standalone, err := s.store.ListUnsettledEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unsettled entries: %w", err)
	}

	withSchedule := map[int64]struct{}{}
	if len(standalone) > 0 {
		ids := make([]int64, 0, len(standalone))
		for _, e := range standalone {
			ids = append(ids, e.ID)
		}
		withSchedule, err = s.store.EntryIDsWithInstallments(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve scheduled entries: %w", err)
		}
	}

	for _, e := range standalone {
		if _, ok := withSchedule[e.ID]; ok {
			// Already represented by its installment rows above.
			continue
		}

		due := e.EffectiveDueDate()
		class := core.ReceivableCurrent
		if core.Overdue(due, today) {
			class = core.ReceivableOverdue
		}

		receivables = append(receivables, core.Receivable{
			EntryID:           e.ID,
			ClientName:        e.ClientName,
			ClientPhone:       e.ClientPhone,
			ItemLabel:         e.ItemLabel,
			InstallmentNumber: 1,
			InstallmentsTotal: 1,
			TotalAmount:       e.Amount,
			PaidAmount:        decimal.Zero,
			DueDate:           due,
			Class:             class,
		})
	}

	sortReceivablesByDueDate(receivables)
	return receivables, nil
}

func distinctEntryIDs(rows []core.ScheduledReceivable) []int64 {
	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.EntryID]; ok {
			continue
		}
		seen[r.EntryID] = struct{}{}
		ids = append(ids, r.EntryID)
	}
	return ids
}

func sortReceivablesByDueDate(rs []core.Receivable) {
	sort.SliceStable(rs, func(i, j int) bool {
		di, oki := core.ParseDay(rs[i].DueDate)
		dj, okj := core.ParseDay(rs[j].DueDate)
		if oki != okj {
			return oki // parseable dates sort before unparseable ones
		}
		if !oki {
			return false
		}
		return di.Before(dj)
	})
}
