package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

// Invalidation scopes published after a successful write. External reactive
// caches refetch the matching queries when they see one.
const (
	ScopeEntries  = "entries"
	ScopeExpenses = "expenses"
)

// LedgerStore is the write contract for the surrounding application's
// mutations (entry creation, mark-as-paid, expense creation).
type LedgerStore interface {
	// CreateEntry persists the entry and, when installments > 1, its
	// installment rows partitioning the amount. Returns the new entry id.
	CreateEntry(ctx context.Context, e core.LedgerEntry, installments int) (int64, error)
	// MarkEntryPaid settles the entry and any remaining installments on paidOn.
	MarkEntryPaid(ctx context.Context, id int64, paidOn string) error
	// MarkInstallmentPaid settles one installment; when it is the last unpaid
	// one the owning entry settles too. Returns the owning entry id.
	MarkInstallmentPaid(ctx context.Context, id int64, paidOn string) (int64, error)
	CreateExpense(ctx context.Context, x core.Expense) (int64, error)
	// SoftDeleteEntry hides the entry and its installments from every read.
	SoftDeleteEntry(ctx context.Context, id int64) error
}

// InvalidationPublisher notifies external caches that ledger data changed.
type InvalidationPublisher interface {
	PublishLedgerChanged(ctx context.Context, scope string, id int64) error
}

// LedgerService orchestrates writes: validate, persist, then publish an
// invalidation event. Publishing is best effort; a write never fails because
// the broker is down.
type LedgerService struct {
	store LedgerStore
	pub   InvalidationPublisher
}

func NewLedgerService(store LedgerStore, pub InvalidationPublisher) *LedgerService {
	return &LedgerService{store: store, pub: pub}
}

// CreateEntry validates and persists a new income entry, optionally split
// into installments.
func (s *LedgerService) CreateEntry(ctx context.Context, e core.LedgerEntry, installments int) (int64, error) {
	if installments < 1 {
		installments = 1
	}
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("validate entry: %w", err)
	}
	id, err := s.store.CreateEntry(ctx, e, installments)
	if err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}
	s.publish(ctx, ScopeEntries, id)
	return id, nil
}

// MarkEntryPaid settles an entry (and its remaining installments) as of today.
func (s *LedgerService) MarkEntryPaid(ctx context.Context, id int64, today time.Time) error {
	if err := s.store.MarkEntryPaid(ctx, id, core.Day(today).Format(core.DayFormat)); err != nil {
		return fmt.Errorf("mark entry paid: %w", err)
	}
	s.publish(ctx, ScopeEntries, id)
	return nil
}

// MarkInstallmentPaid settles one installment as of today.
func (s *LedgerService) MarkInstallmentPaid(ctx context.Context, id int64, today time.Time) (int64, error) {
	entryID, err := s.store.MarkInstallmentPaid(ctx, id, core.Day(today).Format(core.DayFormat))
	if err != nil {
		return 0, fmt.Errorf("mark installment paid: %w", err)
	}
	s.publish(ctx, ScopeEntries, entryID)
	return entryID, nil
}

// CreateExpense validates and persists a new expense.
func (s *LedgerService) CreateExpense(ctx context.Context, x core.Expense) (int64, error) {
	if err := x.Validate(); err != nil {
		return 0, fmt.Errorf("validate expense: %w", err)
	}
	id, err := s.store.CreateExpense(ctx, x)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, ScopeExpenses, id)
	return id, nil
}

// DeleteEntry soft-deletes an entry so it no longer feeds any derivation.
func (s *LedgerService) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.publish(ctx, ScopeEntries, id)
	return nil
}

func (s *LedgerService) publish(ctx context.Context, scope string, id int64) {
	if s.pub == nil {
		slog.DebugContext(ctx, "No invalidation publisher configured, skipping", "scope", scope, "id", id)
		return
	}
	if err := s.pub.PublishLedgerChanged(ctx, scope, id); err != nil {
		// The write already succeeded; external caches will catch up on TTL.
		slog.ErrorContext(ctx, "Failed to publish invalidation event",
			"scope", scope, "id", id, "error", err)
	}
}
