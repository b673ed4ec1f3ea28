package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the persisted settlement state of a ledger row.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPending PaymentStatus = "pending"
)

// ReceivableClass classifies money still owed to the user.
type ReceivableClass string

const (
	ReceivableCurrent ReceivableClass = "current"
	ReceivableOverdue ReceivableClass = "overdue"
	ReceivablePartial ReceivableClass = "partial"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidStatus         = errors.New("invalid payment status")
	ErrInvalidInstallments   = errors.New("invalid installment position")
	ErrMissingPaymentDate    = errors.New("paid row without payment date")
	ErrUnexpectedPaymentDate = errors.New("pending row with payment date")
	ErrEmptyCategory         = errors.New("empty expense category")
)

type (
	// LedgerEntry is one recorded income movement. Entries may be settled as a
	// single transaction or split into installment rows that partition Amount.
	// Optional dates are ISO day strings; empty means absent.
	LedgerEntry struct {
		ID          int64
		Amount      decimal.Decimal
		Status      PaymentStatus
		Date        string // event date
		DueDate     string // optional
		PaymentDate string // set only when Status is paid
		ClientName  string
		ClientPhone string
		ItemLabel   string
		Description string
	}

	// Installment is one due/paid slice of a multi-installment entry. All rows
	// of an entry share Total and partition the entry's amount.
	Installment struct {
		ID      int64
		EntryID int64
		Number  int // 1-based
		Total   int
		DueDate string
		Status  PaymentStatus
		Amount  decimal.Decimal
		PaidAt  string // set only when Status is paid
	}

	// ScheduledReceivable is an unpaid installment joined to its owning entry,
	// the shape the store hands to the receivables aggregation.
	ScheduledReceivable struct {
		Installment
		EntryAmount decimal.Decimal
		ClientName  string
		ClientPhone string
		ItemLabel   string
	}

	// Expense is one recorded outgoing movement. Expenses are never
	// installment-tracked.
	Expense struct {
		ID          int64
		Value       decimal.Decimal
		Date        string
		Category    string
		Description string
	}

	// Receivable is the flattened, classified view of one open obligation.
	Receivable struct {
		EntryID           int64
		ClientName        string
		ClientPhone       string
		ItemLabel         string
		InstallmentNumber int
		InstallmentsTotal int
		TotalAmount       decimal.Decimal
		PaidAmount        decimal.Decimal
		DueDate           string
		Class             ReceivableClass
	}

	// PeriodBucket is one calendar month of the projection window.
	PeriodBucket struct {
		Label   string
		Key     string // "YYYY-MM"
		Revenue decimal.Decimal
		Expense decimal.Decimal
	}
)

func validStatus(s PaymentStatus) bool {
	return s == StatusPaid || s == StatusPending
}

func (e LedgerEntry) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, ok := ParseDay(e.Date); !ok {
		return ErrInvalidDate
	}
	if !validStatus(e.Status) {
		return ErrInvalidStatus
	}
	// PaymentDate is present iff the entry is paid.
	if e.Status == StatusPaid && e.PaymentDate == "" {
		return ErrMissingPaymentDate
	}
	if e.Status == StatusPending && e.PaymentDate != "" {
		return ErrUnexpectedPaymentDate
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (i Installment) Validate() error {
	if i.Number < 1 || i.Total < 1 || i.Number > i.Total {
		return ErrInvalidInstallments
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, ok := ParseDay(i.DueDate); !ok {
		return ErrInvalidDate
	}
	if !validStatus(i.Status) {
		return ErrInvalidStatus
	}
	if i.Status == StatusPaid && i.PaidAt == "" {
		return ErrMissingPaymentDate
	}
	if i.Status == StatusPending && i.PaidAt != "" {
		return ErrUnexpectedPaymentDate
	}
	return nil
}

func (x Expense) Validate() error {
	if !x.Value.IsPositive() {
		return ErrInvalidAmount
	}
	if _, ok := ParseDay(x.Date); !ok {
		return ErrInvalidDate
	}
	if strings.TrimSpace(x.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// EffectiveDueDate is the date an unsettled entry is judged against: the due
// date when present, otherwise the event date.
func (e LedgerEntry) EffectiveDueDate() string {
	if e.DueDate != "" {
		return e.DueDate
	}
	return e.Date
}
