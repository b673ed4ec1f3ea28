package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

// DefaultProjectionWindow is the number of month buckets projected when the
// caller does not ask for a specific window size.
const DefaultProjectionWindow = 6

// ProjectionStore is the read contract the projector requires from the store.
// The three range fetches target disjoint data and may run in parallel.
type ProjectionStore interface {
	// ListInstallmentsInRange returns installment rows that are either paid
	// with a paid-at date in range or pending with a due date in range.
	ListInstallmentsInRange(ctx context.Context, start, end time.Time) ([]core.Installment, error)
	// ListEntriesInRange returns entries whose event date is in range.
	ListEntriesInRange(ctx context.Context, start, end time.Time) ([]core.LedgerEntry, error)
	// ListExpensesInRange returns expenses whose date is in range.
	ListExpensesInRange(ctx context.Context, start, end time.Time) ([]core.Expense, error)
	// EntryIDsWithInstallments returns the subset of entryIDs that have at
	// least one installment row, any status.
	EntryIDsWithInstallments(ctx context.Context, entryIDs []int64) (map[int64]struct{}, error)
}

// Projection is a forward-looking revenue/expense time series, one bucket per
// calendar month in anchor order. Dropped counts rows that were in range but
// could not be bucketed (inconsistent data); each drop is also logged.
type Projection struct {
	Buckets []core.PeriodBucket
	Dropped int
}

// ProjectionService assigns ledger rows to calendar-month buckets using
// status-dependent reference dates. Stateless, safe for concurrent use.
type ProjectionService struct {
	store ProjectionStore
}

func NewProjectionService(store ProjectionStore) *ProjectionService {
	return &ProjectionService{store: store}
}

// Project builds months consecutive buckets starting at the anchor period
// ("YYYY-MM") and adds every qualifying row's amount to exactly one bucket.
//
// Reference dates per row type:
//
//	installment, paid:    paid-at (row dropped with a warning when absent)
//	installment, pending: due date
//	entry, paid:          payment date, falling back to the event date
//	entry, pending:       due date, falling back to the event date
//	expense:              date, always
//
// Entries that have an installment schedule are excluded from bucketing here,
// their amounts are already carried by the installment rows.
func (s *ProjectionService) Project(ctx context.Context, anchor string, months int) (Projection, error) {
	if months <= 0 {
		months = DefaultProjectionWindow
	}
	start, err := core.ParseMonth(anchor)
	if err != nil {
		return Projection{}, fmt.Errorf("parse anchor period %q: %w", anchor, err)
	}

	buckets := make([]core.PeriodBucket, months)
	index := make(map[string]int, months)
	for i := range buckets {
		m := start.AddDate(0, i, 0)
		key := core.MonthKey(m)
		buckets[i] = core.PeriodBucket{
			Label:   m.Format("Jan 2006"),
			Key:     key,
			Revenue: decimal.Zero,
			Expense: decimal.Zero,
		}
		index[key] = i
	}
	rangeStart := core.MonthStart(start)
	rangeEnd := core.MonthEnd(start.AddDate(0, months-1, 0))

	var (
		installments []core.Installment
		entries      []core.LedgerEntry
		expenses     []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if installments, err = s.store.ListInstallmentsInRange(gctx, rangeStart, rangeEnd); err != nil {
			return fmt.Errorf("list installments in range: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if entries, err = s.store.ListEntriesInRange(gctx, rangeStart, rangeEnd); err != nil {
			return fmt.Errorf("list entries in range: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if expenses, err = s.store.ListExpensesInRange(gctx, rangeStart, rangeEnd); err != nil {
			return fmt.Errorf("list expenses in range: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Projection{}, err
	}

	withSchedule := map[int64]struct{}{}
	if len(entries) > 0 {
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		withSchedule, err = s.store.EntryIDsWithInstallments(ctx, ids)
		if err != nil {
			return Projection{}, fmt.Errorf("resolve scheduled entries: %w", err)
		}
	}

	p := Projection{Buckets: buckets}
	drop := func(kind string, id int64, reason string) {
		p.Dropped++
		slog.WarnContext(ctx, "Projection row dropped", "kind", kind, "id", id, "reason", reason)
	}
	bucketFor := func(ref string) (int, bool) {
		d, ok := core.ParseDay(ref)
		if !ok {
			return 0, false
		}
		i, ok := index[core.MonthKey(d)]
		return i, ok
	}

	for _, in := range installments {
		ref := in.DueDate
		if in.Status == core.StatusPaid {
			// A paid installment must carry its settlement date.
			if _, ok := core.ParseDay(in.PaidAt); !ok {
				drop("installment", in.ID, "paid without paid-at date")
				continue
			}
			ref = in.PaidAt
		}
		i, ok := bucketFor(ref)
		if !ok {
			drop("installment", in.ID, "reference date outside window")
			continue
		}
		p.Buckets[i].Revenue = p.Buckets[i].Revenue.Add(in.Amount)
	}

	for _, e := range entries {
		if _, ok := withSchedule[e.ID]; ok {
			continue
		}
		ref := e.Date
		if e.Status == core.StatusPaid {
			if _, ok := core.ParseDay(e.PaymentDate); ok {
				ref = e.PaymentDate
			}
		} else if _, ok := core.ParseDay(e.DueDate); ok {
			ref = e.DueDate
		}
		i, ok := bucketFor(ref)
		if !ok {
			drop("entry", e.ID, "reference date outside window")
			continue
		}
		p.Buckets[i].Revenue = p.Buckets[i].Revenue.Add(e.Amount)
	}

	for _, x := range expenses {
		i, ok := bucketFor(x.Date)
		if !ok {
			drop("expense", x.ID, "date outside window")
			continue
		}
		p.Buckets[i].Expense = p.Buckets[i].Expense.Add(x.Value)
	}

	return p, nil
}
