package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

func TestProjectionService_BucketLayout(t *testing.T) {
	p, err := NewProjectionService(&fakeStore{}).Project(context.Background(), "2026-11", 4)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	wantKeys := []string{"2026-11", "2026-12", "2027-01", "2027-02"}
	wantLabels := []string{"Nov 2026", "Dec 2026", "Jan 2027", "Feb 2027"}
	if len(p.Buckets) != len(wantKeys) {
		t.Fatalf("Project() returned %d buckets, want %d", len(p.Buckets), len(wantKeys))
	}
	for i, b := range p.Buckets {
		if b.Key != wantKeys[i] {
			t.Errorf("bucket %d key = %q, want %q", i, b.Key, wantKeys[i])
		}
		if b.Label != wantLabels[i] {
			t.Errorf("bucket %d label = %q, want %q", i, b.Label, wantLabels[i])
		}
		if !b.Revenue.IsZero() || !b.Expense.IsZero() {
			t.Errorf("bucket %d not zero-initialized: revenue=%s expense=%s", i, b.Revenue, b.Expense)
		}
	}
}

func TestProjectionService_DefaultWindow(t *testing.T) {
	p, err := NewProjectionService(&fakeStore{}).Project(context.Background(), "2026-03", 0)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(p.Buckets) != DefaultProjectionWindow {
		t.Errorf("Project() returned %d buckets, want default %d", len(p.Buckets), DefaultProjectionWindow)
	}
}

func TestProjectionService_BadAnchor(t *testing.T) {
	if _, err := NewProjectionService(&fakeStore{}).Project(context.Background(), "march", 6); err == nil {
		t.Error("Project() should reject a malformed anchor period")
	}
}

func TestProjectionService_PaidInstallmentBucketsByPaidAt(t *testing.T) {
	// Paid in the anchor+2 month even though due in the anchor month: the
	// amount must land in the settlement month's bucket.
	store := &fakeStore{
		rangeInstallments: []core.Installment{
			{ID: 1, EntryID: 10, Number: 1, Total: 3, DueDate: "2026-03-05",
				Status: core.StatusPaid, Amount: dec("100"), PaidAt: "2026-05-20"},
		},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !p.Buckets[2].Revenue.Equal(dec("100")) {
		t.Errorf("bucket %s revenue = %s, want 100", p.Buckets[2].Key, p.Buckets[2].Revenue)
	}
	if !p.Buckets[0].Revenue.IsZero() {
		t.Errorf("bucket %s revenue = %s, want 0 (not the due month)", p.Buckets[0].Key, p.Buckets[0].Revenue)
	}
}

func TestProjectionService_PendingInstallmentBucketsByDueDate(t *testing.T) {
	store := &fakeStore{
		rangeInstallments: []core.Installment{
			{ID: 1, EntryID: 10, Number: 2, Total: 3, DueDate: "2026-04-05",
				Status: core.StatusPending, Amount: dec("100")},
		},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !p.Buckets[1].Revenue.Equal(dec("100")) {
		t.Errorf("bucket %s revenue = %s, want 100", p.Buckets[1].Key, p.Buckets[1].Revenue)
	}
}

func TestProjectionService_PaidInstallmentWithoutPaidAtIsDropped(t *testing.T) {
	store := &fakeStore{
		rangeInstallments: []core.Installment{
			{ID: 1, EntryID: 10, Number: 1, Total: 2, DueDate: "2026-03-05",
				Status: core.StatusPaid, Amount: dec("100")}, // no paid-at
		},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v (inconsistent row must not fail the query)", err)
	}
	if p.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", p.Dropped)
	}
	for _, b := range p.Buckets {
		if !b.Revenue.IsZero() {
			t.Errorf("bucket %s revenue = %s, want 0", b.Key, b.Revenue)
		}
	}
}

func TestProjectionService_EntryReferenceDates(t *testing.T) {
	tests := []struct {
		name       string
		entry      core.LedgerEntry
		wantBucket string
	}{
		{
			name: "paid entry uses payment date",
			entry: core.LedgerEntry{ID: 1, Amount: dec("50"), Status: core.StatusPaid,
				Date: "2026-03-02", PaymentDate: "2026-04-15"},
			wantBucket: "2026-04",
		},
		{
			name: "paid entry without payment date falls back to event date",
			entry: core.LedgerEntry{ID: 2, Amount: dec("50"), Status: core.StatusPaid,
				Date: "2026-03-02"},
			wantBucket: "2026-03",
		},
		{
			name: "pending entry uses due date",
			entry: core.LedgerEntry{ID: 3, Amount: dec("50"), Status: core.StatusPending,
				Date: "2026-03-02", DueDate: "2026-06-01"},
			wantBucket: "2026-06",
		},
		{
			name: "pending entry without due date falls back to event date",
			entry: core.LedgerEntry{ID: 4, Amount: dec("50"), Status: core.StatusPending,
				Date: "2026-03-02"},
			wantBucket: "2026-03",
		},
		{
			name: "pending entry with malformed due date falls back to event date",
			entry: core.LedgerEntry{ID: 5, Amount: dec("50"), Status: core.StatusPending,
				Date: "2026-03-02", DueDate: "soon"},
			wantBucket: "2026-03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{rangeEntries: []core.LedgerEntry{tt.entry}}
			p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			for _, b := range p.Buckets {
				want := decimal.Zero
				if b.Key == tt.wantBucket {
					want = dec("50")
				}
				if !b.Revenue.Equal(want) {
					t.Errorf("bucket %s revenue = %s, want %s", b.Key, b.Revenue, want)
				}
			}
		})
	}
}

func TestProjectionService_ScheduledEntriesExcludedFromRevenue(t *testing.T) {
	// Entry 10 has installments; its own row must not add to revenue on top
	// of the installment amounts.
	store := &fakeStore{
		rangeInstallments: []core.Installment{
			{ID: 1, EntryID: 10, Number: 1, Total: 2, DueDate: "2026-03-10",
				Status: core.StatusPending, Amount: dec("150")},
			{ID: 2, EntryID: 10, Number: 2, Total: 2, DueDate: "2026-04-10",
				Status: core.StatusPending, Amount: dec("150")},
		},
		rangeEntries: []core.LedgerEntry{
			{ID: 10, Amount: dec("300"), Status: core.StatusPending, Date: "2026-03-01", DueDate: "2026-03-10"},
			{ID: 20, Amount: dec("80"), Status: core.StatusPending, Date: "2026-03-01", DueDate: "2026-03-20"},
		},
		scheduledIDs: map[int64]struct{}{10: {}},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	// Conservation: total revenue equals the sum of qualifying amounts with
	// zero double counting for entry 10.
	total := decimal.Zero
	for _, b := range p.Buckets {
		total = total.Add(b.Revenue)
	}
	if want := dec("380"); !total.Equal(want) {
		t.Errorf("total revenue = %s, want %s (150+150 installments + 80 standalone)", total, want)
	}
	if !p.Buckets[0].Revenue.Equal(dec("230")) {
		t.Errorf("bucket %s revenue = %s, want 230", p.Buckets[0].Key, p.Buckets[0].Revenue)
	}
	if !p.Buckets[1].Revenue.Equal(dec("150")) {
		t.Errorf("bucket %s revenue = %s, want 150", p.Buckets[1].Key, p.Buckets[1].Revenue)
	}
}

func TestProjectionService_ExpensesBucketByDate(t *testing.T) {
	store := &fakeStore{
		rangeExpenses: []core.Expense{
			{ID: 1, Value: dec("40"), Date: "2026-03-12", Category: "fixed"},
			{ID: 2, Value: dec("25.50"), Date: "2026-03-28", Category: "variable"},
			{ID: 3, Value: dec("10"), Date: "2026-05-01", Category: "variable"},
		},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !p.Buckets[0].Expense.Equal(dec("65.50")) {
		t.Errorf("bucket %s expense = %s, want 65.50", p.Buckets[0].Key, p.Buckets[0].Expense)
	}
	if !p.Buckets[2].Expense.Equal(dec("10")) {
		t.Errorf("bucket %s expense = %s, want 10", p.Buckets[2].Key, p.Buckets[2].Expense)
	}
	if !p.Buckets[0].Revenue.IsZero() {
		t.Errorf("expenses must never contribute to revenue")
	}
}

func TestProjectionService_ReferenceOutsideWindowIsExcluded(t *testing.T) {
	// Due date resolves to a month after the window: excluded with a recorded
	// drop, never mis-bucketed.
	store := &fakeStore{
		rangeEntries: []core.LedgerEntry{
			{ID: 1, Amount: dec("50"), Status: core.StatusPending, Date: "2026-03-02", DueDate: "2027-01-10"},
		},
	}
	p, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if p.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", p.Dropped)
	}
	for _, b := range p.Buckets {
		if !b.Revenue.IsZero() {
			t.Errorf("bucket %s revenue = %s, want 0", b.Key, b.Revenue)
		}
	}
}

func TestProjectionService_ReadFailureAbortsWhole(t *testing.T) {
	for _, method := range []string{
		"ListInstallmentsInRange",
		"ListEntriesInRange",
		"ListExpensesInRange",
		"EntryIDsWithInstallments",
	} {
		t.Run(method, func(t *testing.T) {
			store := &fakeStore{
				rangeEntries: []core.LedgerEntry{
					{ID: 1, Amount: dec("50"), Status: core.StatusPending, Date: "2026-03-02"},
				},
				failOn: method,
			}
			_, err := NewProjectionService(store).Project(context.Background(), "2026-03", 6)
			if !errors.Is(err, errStore) {
				t.Fatalf("Project() error = %v, want wrapped store error", err)
			}
		})
	}
}
