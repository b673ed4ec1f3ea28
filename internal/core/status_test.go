package core

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC) // time of day must not matter

	tests := []struct {
		name        string
		status      PaymentStatus
		dueDate     string
		paymentDate string
		wantVisual  VisualStatus
		wantToday   bool
		wantLabel   string
		wantSev     Severity
	}{
		{
			name:        "paid with payment date",
			status:      StatusPaid,
			paymentDate: "2026-03-01",
			wantVisual:  VisualPaid,
			wantLabel:   "Paid on 01/03/2026",
			wantSev:     SeveritySuccess,
		},
		{
			name:       "paid without payment date falls back to generic label",
			status:     StatusPaid,
			wantVisual: VisualPaid,
			wantLabel:  "Paid",
			wantSev:    SeveritySuccess,
		},
		{
			name:        "paid with malformed payment date falls back to generic label",
			status:      StatusPaid,
			paymentDate: "not-a-date",
			wantVisual:  VisualPaid,
			wantLabel:   "Paid",
			wantSev:     SeveritySuccess,
		},
		{
			name:       "pending without due date is never overdue",
			status:     StatusPending,
			wantVisual: VisualUpcoming,
			wantLabel:  "Pending",
			wantSev:    SeverityWarning,
		},
		{
			name:       "pending with malformed due date is never overdue",
			status:     StatusPending,
			dueDate:    "31/12/2026",
			wantVisual: VisualUpcoming,
			wantLabel:  "Pending",
			wantSev:    SeverityWarning,
		},
		{
			name:       "due in the future",
			status:     StatusPending,
			dueDate:    "2026-03-15",
			wantVisual: VisualUpcoming,
			wantLabel:  "Due in 5 days",
			wantSev:    SeverityWarning,
		},
		{
			name:       "due tomorrow uses singular",
			status:     StatusPending,
			dueDate:    "2026-03-11",
			wantVisual: VisualUpcoming,
			wantLabel:  "Due in 1 day",
			wantSev:    SeverityWarning,
		},
		{
			name:       "due today",
			status:     StatusPending,
			dueDate:    "2026-03-10",
			wantVisual: VisualUpcoming,
			wantToday:  true,
			wantLabel:  "Due today",
			wantSev:    SeverityWarning,
		},
		{
			name:       "overdue by three days",
			status:     StatusPending,
			dueDate:    "2026-03-07",
			wantVisual: VisualOverdue,
			wantLabel:  "Overdue by 3 days",
			wantSev:    SeverityDestructive,
		},
		{
			name:       "overdue by one day uses singular",
			status:     StatusPending,
			dueDate:    "2026-03-09",
			wantVisual: VisualOverdue,
			wantLabel:  "Overdue by 1 day",
			wantSev:    SeverityDestructive,
		},
		{
			name:       "due date with time component is stripped before comparison",
			status:     StatusPending,
			dueDate:    "2026-03-10T23:59:59Z",
			wantVisual: VisualUpcoming,
			wantToday:  true,
			wantLabel:  "Due today",
			wantSev:    SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.dueDate, tt.paymentDate, today)
			if got.Visual != tt.wantVisual {
				t.Errorf("Classify() visual = %v, want %v", got.Visual, tt.wantVisual)
			}
			if got.DueToday != tt.wantToday {
				t.Errorf("Classify() dueToday = %v, want %v", got.DueToday, tt.wantToday)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Classify() label = %q, want %q", got.Label, tt.wantLabel)
			}
			if got.Severity != tt.wantSev {
				t.Errorf("Classify() severity = %v, want %v", got.Severity, tt.wantSev)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	a := Classify(StatusPending, "2026-03-07", "", today)
	b := Classify(StatusPending, "2026-03-07", "", today)
	if a != b {
		t.Errorf("Classify() not deterministic: %+v vs %+v", a, b)
	}
}

func TestOverdue_ConsistentWithClassify(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	dueDates := []string{"", "garbage", "2026-03-09", "2026-03-10", "2026-03-11", "2025-12-31"}
	for _, due := range dueDates {
		c := Classify(StatusPending, due, "", today)
		want := c.Visual == VisualOverdue
		if got := Overdue(due, today); got != want {
			t.Errorf("Overdue(%q) = %v, but Classify derived %v", due, got, c.Visual)
		}
	}
}

func TestFilterByVisualStatus(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		{ID: 1, Status: StatusPaid, PaymentDate: "2026-03-01"},
		{ID: 2, Status: StatusPending, DueDate: "2026-03-20"},
		{ID: 3, Status: StatusPending, DueDate: "2026-03-10"},
		{ID: 4, Status: StatusPending, DueDate: "2026-03-01"},
		{ID: 5, Status: StatusPending}, // no due date
	}

	ids := func(es []LedgerEntry) []int64 {
		var out []int64
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter VisualStatus
		want   []int64
	}{
		{"all returns input unchanged", VisualAll, []int64{1, 2, 3, 4, 5}},
		{"empty filter returns input unchanged", VisualStatus(""), []int64{1, 2, 3, 4, 5}},
		{"paid", VisualPaid, []int64{1}},
		{"upcoming includes due today and undated", VisualUpcoming, []int64{2, 3, 5}},
		{"due today variant", VisualDueToday, []int64{3}},
		{"overdue", VisualOverdue, []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FilterByVisualStatus(entries, tt.filter, today))
			if len(got) != len(tt.want) {
				t.Fatalf("filter %q returned ids %v, want %v", tt.filter, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("filter %q returned ids %v, want %v", tt.filter, got, tt.want)
				}
			}
		})
	}
}
