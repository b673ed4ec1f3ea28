package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLedgerEntry_Validate(t *testing.T) {
	valid := LedgerEntry{
		Amount: decimal.RequireFromString("150.00"),
		Status: StatusPending,
		Date:   "2026-03-10",
	}

	tests := []struct {
		name    string
		mutate  func(*LedgerEntry)
		wantErr error
	}{
		{"valid pending entry", func(e *LedgerEntry) {}, nil},
		{"valid paid entry", func(e *LedgerEntry) {
			e.Status = StatusPaid
			e.PaymentDate = "2026-03-09"
		}, nil},
		{"zero amount", func(e *LedgerEntry) { e.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(e *LedgerEntry) { e.Amount = decimal.RequireFromString("-1") }, ErrInvalidAmount},
		{"missing event date", func(e *LedgerEntry) { e.Date = "" }, ErrInvalidDate},
		{"unknown status", func(e *LedgerEntry) { e.Status = "settled" }, ErrInvalidStatus},
		{"paid without payment date", func(e *LedgerEntry) { e.Status = StatusPaid }, ErrMissingPaymentDate},
		{"pending with payment date", func(e *LedgerEntry) { e.PaymentDate = "2026-03-09" }, ErrUnexpectedPaymentDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstallment_Validate(t *testing.T) {
	valid := Installment{
		EntryID: 1,
		Number:  2,
		Total:   3,
		DueDate: "2026-04-10",
		Status:  StatusPending,
		Amount:  decimal.RequireFromString("50"),
	}

	tests := []struct {
		name    string
		mutate  func(*Installment)
		wantErr error
	}{
		{"valid pending installment", func(i *Installment) {}, nil},
		{"valid paid installment", func(i *Installment) {
			i.Status = StatusPaid
			i.PaidAt = "2026-04-08"
		}, nil},
		{"zero-based number", func(i *Installment) { i.Number = 0 }, ErrInvalidInstallments},
		{"number beyond total", func(i *Installment) { i.Number = 4 }, ErrInvalidInstallments},
		{"missing due date", func(i *Installment) { i.DueDate = "" }, ErrInvalidDate},
		{"paid without paid-at", func(i *Installment) { i.Status = StatusPaid }, ErrMissingPaymentDate},
		{"pending with paid-at", func(i *Installment) { i.PaidAt = "2026-04-08" }, ErrUnexpectedPaymentDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := valid
			tt.mutate(&i)
			err := i.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpense_Validate(t *testing.T) {
	valid := Expense{
		Value:    decimal.RequireFromString("80.25"),
		Date:     "2026-03-10",
		Category: "fixed",
	}

	tests := []struct {
		name    string
		mutate  func(*Expense)
		wantErr error
	}{
		{"valid expense", func(x *Expense) {}, nil},
		{"zero value", func(x *Expense) { x.Value = decimal.Zero }, ErrInvalidAmount},
		{"malformed date", func(x *Expense) { x.Date = "10/03/2026" }, ErrInvalidDate},
		{"blank category", func(x *Expense) { x.Category = "  " }, ErrEmptyCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := valid
			tt.mutate(&x)
			err := x.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLedgerEntry_EffectiveDueDate(t *testing.T) {
	e := LedgerEntry{Date: "2026-03-01", DueDate: "2026-03-20"}
	if got := e.EffectiveDueDate(); got != "2026-03-20" {
		t.Errorf("EffectiveDueDate() = %q, want due date", got)
	}
	e.DueDate = ""
	if got := e.EffectiveDueDate(); got != "2026-03-01" {
		t.Errorf("EffectiveDueDate() = %q, want event date fallback", got)
	}
}
