package core

import (
	"fmt"
	"time"
)

// VisualStatus is the human-facing payment state derived at read time from the
// persisted status and the relevant dates. It is never stored.
type VisualStatus string

const (
	VisualPaid     VisualStatus = "paid"
	VisualUpcoming VisualStatus = "upcoming"
	VisualDueToday VisualStatus = "dueToday"
	VisualOverdue  VisualStatus = "overdue"

	// VisualAll is the filter wildcard; Classify never returns it.
	VisualAll VisualStatus = "all"
)

// Severity drives how a status is rendered by callers.
type Severity string

const (
	SeveritySuccess     Severity = "success"
	SeverityWarning     Severity = "warning"
	SeverityDestructive Severity = "destructive"
)

// Classification is the derived visual status of one record. DueToday marks
// the "due today" variant of the upcoming state.
type Classification struct {
	Visual   VisualStatus
	DueToday bool
	Label    string
	Severity Severity
}

// PaidDateFormat is how settlement dates appear in labels.
const PaidDateFormat = "02/01/2006"

// Classify derives the visual payment status of one record from its persisted
// status, due date and payment date. Dates are compared at day granularity
// against the explicit today parameter.
//
// A pending row whose due date is absent or malformed is never assumed
// overdue; it classifies as upcoming with the generic label.
func Classify(status PaymentStatus, dueDate, paymentDate string, today time.Time) Classification {
	if status == StatusPaid {
		label := "Paid"
		if paid, ok := ParseDay(paymentDate); ok {
			label = "Paid on " + paid.Format(PaidDateFormat)
		}
		return Classification{Visual: VisualPaid, Label: label, Severity: SeveritySuccess}
	}

	due, ok := ParseDay(dueDate)
	if !ok {
		return Classification{Visual: VisualUpcoming, Label: "Pending", Severity: SeverityWarning}
	}

	switch diff := DaysBetween(today, due); {
	case diff > 0:
		return Classification{
			Visual:   VisualUpcoming,
			Label:    "Due in " + pluralDays(diff),
			Severity: SeverityWarning,
		}
	case diff == 0:
		return Classification{
			Visual:   VisualUpcoming,
			DueToday: true,
			Label:    "Due today",
			Severity: SeverityWarning,
		}
	default:
		return Classification{
			Visual:   VisualOverdue,
			Label:    "Overdue by " + pluralDays(-diff),
			Severity: SeverityDestructive,
		}
	}
}

// Overdue reports whether a row with the given due date is past it. This is
// the single day-granularity overdue test shared by the classifier and the
// receivables aggregation, so the two can never drift apart. Missing or
// malformed due dates are never overdue.
func Overdue(dueDate string, today time.Time) bool {
	due, ok := ParseDay(dueDate)
	if !ok {
		return false
	}
	return BeforeDay(due, today)
}

// FilterByVisualStatus keeps the entries whose derived visual status matches
// filter, re-deriving each entry's status against today. VisualAll (or an
// empty filter) returns the input unchanged.
//
// Known precision gap: the filter re-derives the status without a payment
// date, so it cannot tell "paid today" apart from "paid earlier"; every paid
// entry matches the plain paid bucket. Callers depend on this.
func FilterByVisualStatus(entries []LedgerEntry, filter VisualStatus, today time.Time) []LedgerEntry {
	if filter == "" || filter == VisualAll {
		return entries
	}
	var out []LedgerEntry
	for _, e := range entries {
		c := Classify(e.Status, e.DueDate, "", today)
		if filter == VisualDueToday {
			if c.DueToday {
				out = append(out, e)
			}
			continue
		}
		if c.Visual == filter {
			out = append(out, e)
		}
	}
	return out
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
