package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
	applog "github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/log"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/storage"
)

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
	}).Write(w)
}

// handleReady performs a readiness check with dependency verification.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Ready == nil {
		checks["database"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.deps.Ready.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["caches"] = map[string]int{
		"receivables": s.receivablesCache.Size(),
		"projection":  s.projectionCache.Size(),
		"entries":     s.entriesCache.Size(),
	}
	checks["security"] = s.metrics.snapshot()

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

type receivableView struct {
	EntryID           int64                `json:"entryId"`
	ClientName        string               `json:"clientName,omitempty"`
	ClientPhone       string               `json:"clientPhone,omitempty"`
	ItemLabel         string               `json:"itemLabel,omitempty"`
	InstallmentNumber int                  `json:"installmentNumber"`
	InstallmentsTotal int                  `json:"installmentsTotal"`
	TotalAmount       decimalString        `json:"totalAmount"`
	PaidAmount        decimalString        `json:"paidAmount"`
	DueDate           string               `json:"dueDate,omitempty"`
	Class             core.ReceivableClass `json:"class"`
	Label             string               `json:"label"`
}

// handleListReceivables returns every open obligation, classified as of today.
func (s *Server) handleListReceivables(w http.ResponseWriter, r *http.Request) {
	today := time.Now()
	key := "recv:" + core.Day(today).Format(core.DayFormat)

	items, found := s.receivablesCache.Get(key)
	if !found {
		var err error
		items, err = s.deps.Receivables.Compute(r.Context(), today)
		if err != nil {
			slog.ErrorContext(r.Context(), "Receivables computation failed", "error", err)
			InternalServerError("could not compute receivables").Write(w)
			return
		}
		s.receivablesCache.Set(key, items)
	}

	views := make([]receivableView, 0, len(items))
	for _, rec := range items {
		c := core.Classify(core.StatusPending, rec.DueDate, "", today)
		views = append(views, receivableView{
			EntryID:           rec.EntryID,
			ClientName:        rec.ClientName,
			ClientPhone:       rec.ClientPhone,
			ItemLabel:         rec.ItemLabel,
			InstallmentNumber: rec.InstallmentNumber,
			InstallmentsTotal: rec.InstallmentsTotal,
			TotalAmount:       decimalString(rec.TotalAmount.StringFixed(2)),
			PaidAmount:        decimalString(rec.PaidAmount.StringFixed(2)),
			DueDate:           rec.DueDate,
			Class:             rec.Class,
			Label:             c.Label,
		})
	}

	NewJSONResponse().Body(map[string]any{
		"count":       len(views),
		"receivables": views,
	}).Write(w)
}

type bucketView struct {
	Label   string        `json:"label"`
	Key     string        `json:"key"`
	Revenue decimalString `json:"revenue"`
	Expense decimalString `json:"expense"`
}

// handleProjection returns the N-month revenue/expense projection anchored at
// ?anchor=YYYY-MM (default: current month).
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	anchor, months := parseProjectionParams(r, s.defaultMonths)
	if months < 1 || months > 36 {
		BadRequestError("months must be between 1 and 36").Write(w)
		return
	}

	key := "proj:" + anchor + ":" + strconv.Itoa(months)
	proj, found := s.projectionCache.Get(key)
	if !found {
		var err error
		proj, err = s.deps.Projection.Project(r.Context(), anchor, months)
		if err != nil {
			if errors.Is(err, core.ErrInvalidDate) {
				BadRequestError("anchor must be YYYY-MM").Write(w)
				return
			}
			slog.ErrorContext(r.Context(), "Projection failed", "error", err, "anchor", anchor, "months", months)
			InternalServerError("could not build projection").Write(w)
			return
		}
		s.projectionCache.Set(key, proj)
	}

	buckets := make([]bucketView, 0, len(proj.Buckets))
	for _, b := range proj.Buckets {
		buckets = append(buckets, bucketView{
			Label:   b.Label,
			Key:     b.Key,
			Revenue: decimalString(b.Revenue.StringFixed(2)),
			Expense: decimalString(b.Expense.StringFixed(2)),
		})
	}

	NewJSONResponse().Body(map[string]any{
		"anchor":  anchor,
		"months":  months,
		"dropped": proj.Dropped,
		"buckets": buckets,
	}).Write(w)
}

type entryView struct {
	ID           int64              `json:"id"`
	Amount       decimalString      `json:"amount"`
	Status       core.PaymentStatus `json:"status"`
	Date         string             `json:"date"`
	DueDate      string             `json:"dueDate,omitempty"`
	PaymentDate  string             `json:"paymentDate,omitempty"`
	ClientName   string             `json:"clientName,omitempty"`
	ClientPhone  string             `json:"clientPhone,omitempty"`
	ItemLabel    string             `json:"itemLabel,omitempty"`
	Description  string             `json:"description,omitempty"`
	VisualStatus core.VisualStatus  `json:"visualStatus"`
	DueToday     bool               `json:"dueToday"`
	Label        string             `json:"label"`
	Severity     core.Severity      `json:"severity"`
}

var validFilters = map[core.VisualStatus]bool{
	"":                  true,
	core.VisualAll:      true,
	core.VisualPaid:     true,
	core.VisualUpcoming: true,
	core.VisualDueToday: true,
	core.VisualOverdue:  true,
}

// handleListEntries returns the entry list, optionally filtered by derived
// visual status (?status=paid|upcoming|dueToday|overdue|all).
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	filter := core.VisualStatus(r.URL.Query().Get("status"))
	if !validFilters[filter] {
		BadRequestError("unknown status filter").Write(w)
		return
	}

	entries, found := s.entriesCache.Get("all")
	if !found {
		var err error
		entries, err = s.deps.Entries.ListEntries(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Entry listing failed", "error", err)
			InternalServerError("could not list entries").Write(w)
			return
		}
		s.entriesCache.Set("all", entries)
	}

	today := time.Now()
	filtered := core.FilterByVisualStatus(entries, filter, today)

	views := make([]entryView, 0, len(filtered))
	for _, e := range filtered {
		c := core.Classify(e.Status, e.DueDate, e.PaymentDate, today)
		views = append(views, entryView{
			ID:           e.ID,
			Amount:       decimalString(e.Amount.StringFixed(2)),
			Status:       e.Status,
			Date:         e.Date,
			DueDate:      e.DueDate,
			PaymentDate:  e.PaymentDate,
			ClientName:   e.ClientName,
			ClientPhone:  e.ClientPhone,
			ItemLabel:    e.ItemLabel,
			Description:  e.Description,
			VisualStatus: c.Visual,
			DueToday:     c.DueToday,
			Label:        c.Label,
			Severity:     c.Severity,
		})
	}

	NewJSONResponse().Body(map[string]any{
		"count":   len(views),
		"entries": views,
	}).Write(w)
}

// handleGetEntry returns one entry with its derived status.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		BadRequestError("invalid entry id").Write(w)
		return
	}

	e, err := s.deps.Entries.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("entry not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Entry lookup failed", "error", err, "entry_id", id)
		InternalServerError("could not load entry").Write(w)
		return
	}

	today := time.Now()
	c := core.Classify(e.Status, e.DueDate, e.PaymentDate, today)
	NewJSONResponse().Body(entryView{
		ID:           e.ID,
		Amount:       decimalString(e.Amount.StringFixed(2)),
		Status:       e.Status,
		Date:         e.Date,
		DueDate:      e.DueDate,
		PaymentDate:  e.PaymentDate,
		ClientName:   e.ClientName,
		ClientPhone:  e.ClientPhone,
		ItemLabel:    e.ItemLabel,
		Description:  e.Description,
		VisualStatus: c.Visual,
		DueToday:     c.DueToday,
		Label:        c.Label,
		Severity:     c.Severity,
	}).Write(w)
}

// handleCreateEntry records a new income entry, optionally split into
// installments.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	amount, err := core.ParseAmount(parser.Get("amount"))
	if err != nil {
		UnprocessableEntityError("invalid amount").Write(w)
		return
	}

	date := parser.Get("date")
	if date == "" {
		date = core.Day(time.Now()).Format(core.DayFormat)
	}

	status := core.StatusPending
	paymentDate := ""
	if parser.Get("status") == string(core.StatusPaid) {
		status = core.StatusPaid
		paymentDate = parser.Get("paymentDate")
		if paymentDate == "" {
			paymentDate = core.Day(time.Now()).Format(core.DayFormat)
		}
	}

	installments := parser.GetInt("installments", 1)
	if installments < 1 || installments > 120 {
		UnprocessableEntityError("installments must be between 1 and 120").Write(w)
		return
	}

	entry := core.LedgerEntry{
		Amount:      amount,
		Status:      status,
		Date:        date,
		DueDate:     parser.Get("dueDate"),
		PaymentDate: paymentDate,
		ClientName:  parser.Get("clientName"),
		ClientPhone: parser.Get("clientPhone"),
		ItemLabel:   parser.Get("itemLabel"),
		Description: parser.Get("description"),
	}

	id, err := s.deps.Ledger.CreateEntry(r.Context(), entry, installments)
	if err != nil {
		if isValidationError(err) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Entry creation failed", "error", err)
		InternalServerError("could not create entry").Write(w)
		return
	}

	s.InvalidateCaches()
	applog.NewStructuredLogger(s.baseLog).LogEntryCreated(r.Context(), id, amount.StringFixed(2), entry.EffectiveDueDate())
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{"id": id}).Write(w)
}

// handlePayEntry settles an entry (and any open installments) as of today.
func (s *Server) handlePayEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		BadRequestError("invalid entry id").Write(w)
		return
	}

	if err := s.deps.Ledger.MarkEntryPaid(r.Context(), id, time.Now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("entry not found or already paid").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Entry settlement failed", "error", err, "entry_id", id)
		InternalServerError("could not settle entry").Write(w)
		return
	}

	s.InvalidateCaches()
	NewJSONResponse().Body(map[string]any{"id": id, "status": core.StatusPaid}).Write(w)
}

// handleDeleteEntry soft-deletes an entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		BadRequestError("invalid entry id").Write(w)
		return
	}

	if err := s.deps.Ledger.DeleteEntry(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("entry not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Entry deletion failed", "error", err, "entry_id", id)
		InternalServerError("could not delete entry").Write(w)
		return
	}

	s.InvalidateCaches()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handlePayInstallment settles one installment; the owning entry settles too
// when it was the last open one.
func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		BadRequestError("invalid installment id").Write(w)
		return
	}

	entryID, err := s.deps.Ledger.MarkInstallmentPaid(r.Context(), id, time.Now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("installment not found or already paid").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Installment settlement failed", "error", err, "installment_id", id)
		InternalServerError("could not settle installment").Write(w)
		return
	}

	s.InvalidateCaches()
	NewJSONResponse().Body(map[string]any{"installmentId": id, "entryId": entryID}).Write(w)
}

// handleCreateExpense records a new expense.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	value, err := core.ParseAmount(parser.Get("value"))
	if err != nil {
		UnprocessableEntityError("invalid value").Write(w)
		return
	}

	date := parser.Get("date")
	if date == "" {
		date = core.Day(time.Now()).Format(core.DayFormat)
	}

	expense := core.Expense{
		Value:       value,
		Date:        date,
		Category:    parser.Get("category"),
		Description: parser.Get("description"),
	}

	id, err := s.deps.Ledger.CreateExpense(r.Context(), expense)
	if err != nil {
		if isValidationError(err) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Expense creation failed", "error", err)
		InternalServerError("could not create expense").Write(w)
		return
	}

	s.InvalidateCaches()
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{"id": id}).Write(w)
}

// decimalString keeps monetary values as JSON strings with two decimals.
type decimalString string

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidStatus) ||
		errors.Is(err, core.ErrInvalidInstallments) ||
		errors.Is(err, core.ErrMissingPaymentDate) ||
		errors.Is(err, core.ErrUnexpectedPaymentDate) ||
		errors.Is(err, core.ErrEmptyCategory)
}
