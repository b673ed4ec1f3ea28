// Package storage implements the ledger store on SQLite: the filtered reads
// the derivation services require and the write paths the application uses.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

// ErrNotFound reports a write aimed at a row that does not exist or is
// already in the requested state.
var ErrNotFound = errors.New("row not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListUnpaidInstallments implements services.ReceivablesStore.
func (r *SQLiteRepository) ListUnpaidInstallments(ctx context.Context) ([]core.ScheduledReceivable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.entry_id, i.number, i.total, i.due_date, i.status, i.amount,
		       COALESCE(i.paid_at, ''),
		       e.amount, COALESCE(e.client_name, ''), COALESCE(e.client_phone, ''),
		       COALESCE(e.item_label, '')
		FROM installments i
		JOIN ledger_entries e ON e.id = i.entry_id
		WHERE i.status != 'paid' AND e.deleted_at IS NULL
		ORDER BY i.due_date ASC, i.number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unpaid installments: %w", err)
	}
	defer rows.Close()

	var out []core.ScheduledReceivable
	for rows.Next() {
		var s core.ScheduledReceivable
		if err := rows.Scan(
			&s.ID, &s.EntryID, &s.Number, &s.Total, &s.DueDate, &s.Status, &s.Amount,
			&s.PaidAt, &s.EntryAmount, &s.ClientName, &s.ClientPhone, &s.ItemLabel,
		); err != nil {
			return nil, fmt.Errorf("scan unpaid installment: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unpaid installments: %w", err)
	}
	return out, nil
}

// CountPaidInstallmentsByEntry implements services.ReceivablesStore.
func (r *SQLiteRepository) CountPaidInstallmentsByEntry(ctx context.Context, entryIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT entry_id, COUNT(*)
		FROM installments
		WHERE status = 'paid' AND entry_id IN (` + placeholders(len(entryIDs)) + `)
		GROUP BY entry_id`
	rows, err := r.db.QueryContext(ctx, query, int64Args(entryIDs)...)
	if err != nil {
		return nil, fmt.Errorf("count paid installments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan paid count: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paid counts: %w", err)
	}
	return out, nil
}

const entryColumns = `id, amount, status, event_date,
	COALESCE(due_date, ''), COALESCE(payment_date, ''),
	COALESCE(client_name, ''), COALESCE(client_phone, ''),
	COALESCE(item_label, ''), COALESCE(description, '')`

func scanEntry(rows *sql.Rows) (core.LedgerEntry, error) {
	var e core.LedgerEntry
	err := rows.Scan(
		&e.ID, &e.Amount, &e.Status, &e.Date, &e.DueDate, &e.PaymentDate,
		&e.ClientName, &e.ClientPhone, &e.ItemLabel, &e.Description,
	)
	return e, err
}

// ListUnsettledEntries implements services.ReceivablesStore. Ordering falls
// back to the event date for entries without a due date.
func (r *SQLiteRepository) ListUnsettledEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE status != 'paid' AND deleted_at IS NULL
		ORDER BY COALESCE(due_date, event_date) ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unsettled entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListEntries returns all live entries, most recent event first.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE deleted_at IS NULL
		ORDER BY event_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// GetEntry returns one live entry by id.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	if len(entries) == 0 {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return entries[0], nil
}

// EntryIDsWithInstallments implements both service store contracts.
func (r *SQLiteRepository) EntryIDsWithInstallments(ctx context.Context, entryIDs []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT DISTINCT entry_id
		FROM installments
		WHERE entry_id IN (` + placeholders(len(entryIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, query, int64Args(entryIDs)...)
	if err != nil {
		return nil, fmt.Errorf("resolve scheduled entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scheduled entry id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled entry ids: %w", err)
	}
	return out, nil
}

// ListInstallmentsInRange implements services.ProjectionStore: installments
// paid within the range, or still pending and due within it.
func (r *SQLiteRepository) ListInstallmentsInRange(ctx context.Context, start, end time.Time) ([]core.Installment, error) {
	from, to := dayArg(start), dayArg(end)
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.entry_id, i.number, i.total, i.due_date, i.status, i.amount,
		       COALESCE(i.paid_at, '')
		FROM installments i
		JOIN ledger_entries e ON e.id = i.entry_id
		WHERE e.deleted_at IS NULL
		  AND ((i.status = 'paid' AND date(i.paid_at) BETWEEN ? AND ?)
		    OR (i.status != 'paid' AND i.due_date BETWEEN ? AND ?))
		ORDER BY i.due_date ASC`, from, to, from, to)
	if err != nil {
		return nil, fmt.Errorf("list installments in range: %w", err)
	}
	defer rows.Close()

	var out []core.Installment
	for rows.Next() {
		var in core.Installment
		if err := rows.Scan(
			&in.ID, &in.EntryID, &in.Number, &in.Total, &in.DueDate, &in.Status,
			&in.Amount, &in.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installments in range: %w", err)
	}
	return out, nil
}

// ListEntriesInRange implements services.ProjectionStore.
func (r *SQLiteRepository) ListEntriesInRange(ctx context.Context, start, end time.Time) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE deleted_at IS NULL AND event_date BETWEEN ? AND ?
		ORDER BY event_date ASC, id ASC`, dayArg(start), dayArg(end))
	if err != nil {
		return nil, fmt.Errorf("list entries in range: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListExpensesInRange implements services.ProjectionStore.
func (r *SQLiteRepository) ListExpensesInRange(ctx context.Context, start, end time.Time) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, value, event_date, category, COALESCE(description, '')
		FROM expenses
		WHERE event_date BETWEEN ? AND ?
		ORDER BY event_date ASC, id ASC`, dayArg(start), dayArg(end))
	if err != nil {
		return nil, fmt.Errorf("list expenses in range: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var x core.Expense
		if err := rows.Scan(&x.ID, &x.Value, &x.Date, &x.Category, &x.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses in range: %w", err)
	}
	return out, nil
}

// CreateEntry implements services.LedgerStore. When installments > 1 the
// amount is split into rows that partition it exactly, due monthly starting
// at the entry's effective due date. The rows inherit the entry's status: a
// paid entry gets paid rows settled on its payment date, so a settled entry
// can never surface open receivables.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.LedgerEntry, installments int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(amount, status, event_date, due_date, payment_date,
			 client_name, client_phone, item_label, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Amount.String(), string(e.Status), e.Date,
		nullable(e.DueDate), nullable(e.PaymentDate),
		nullable(e.ClientName), nullable(e.ClientPhone),
		nullable(e.ItemLabel), nullable(e.Description))
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("entry id: %w", err)
	}

	if installments > 1 {
		firstDue, ok := core.ParseDay(e.EffectiveDueDate())
		if !ok {
			return 0, fmt.Errorf("split entry %d: %w", id, core.ErrInvalidDate)
		}
		var paidAt any
		if e.Status == core.StatusPaid {
			paidAt = e.PaymentDate
		}
		shares := core.SplitAmount(e.Amount, installments)
		for k, share := range shares {
			due := firstDue.AddDate(0, k, 0).Format(core.DayFormat)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO installments (entry_id, number, total, due_date, status, amount, paid_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, k+1, installments, due, string(e.Status), share.String(), paidAt); err != nil {
				return 0, fmt.Errorf("insert installment %d/%d: %w", k+1, installments, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", id,
		"amount", e.Amount.String(),
		"installments", installments)
	return id, nil
}

// MarkEntryPaid implements services.LedgerStore: settles the entry and any
// installments still open.
func (r *SQLiteRepository) MarkEntryPaid(ctx context.Context, id int64, paidOn string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = 'paid', payment_date = ?
		WHERE id = ? AND status != 'paid' AND deleted_at IS NULL`, paidOn, id)
	if err != nil {
		return fmt.Errorf("mark entry paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE installments
		SET status = 'paid', paid_at = ?
		WHERE entry_id = ? AND status != 'paid'`, paidOn, id); err != nil {
		return fmt.Errorf("settle remaining installments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark paid: %w", err)
	}

	slog.InfoContext(ctx, "Entry marked as paid", "id", id, "paid_on", paidOn)
	return nil
}

// MarkInstallmentPaid implements services.LedgerStore: settles one
// installment, and the owning entry when it was the last open one.
func (r *SQLiteRepository) MarkInstallmentPaid(ctx context.Context, id int64, paidOn string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var entryID int64
	err = tx.QueryRowContext(ctx, `SELECT entry_id FROM installments WHERE id = ?`, id).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load installment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE installments
		SET status = 'paid', paid_at = ?
		WHERE id = ? AND status != 'paid'`, paidOn, id)
	if err != nil {
		return 0, fmt.Errorf("mark installment paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}

	var open int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM installments
		WHERE entry_id = ? AND status != 'paid'`, entryID).Scan(&open); err != nil {
		return 0, fmt.Errorf("count open installments: %w", err)
	}
	if open == 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger_entries
			SET status = 'paid', payment_date = ?
			WHERE id = ? AND status != 'paid'`, paidOn, entryID); err != nil {
			return 0, fmt.Errorf("settle owning entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mark paid: %w", err)
	}

	slog.InfoContext(ctx, "Installment marked as paid",
		"id", id, "entry_id", entryID, "entry_settled", open == 0)
	return entryID, nil
}

// CreateExpense implements services.LedgerStore.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, x core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (value, event_date, category, description)
		VALUES (?, ?, ?, ?)`,
		x.Value.String(), x.Date, x.Category, nullable(x.Description))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved", "id", id, "value", x.Value.String(), "category", x.Category)
	return id, nil
}

// SoftDeleteEntry hides an entry (and thereby its installments) from every
// read without destroying the row.
func (r *SQLiteRepository) SoftDeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET deleted_at = datetime('now')
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Entry soft deleted", "id", id)
	return nil
}

func collectEntries(rows *sql.Rows) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func dayArg(t time.Time) string {
	return t.Format(core.DayFormat)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
