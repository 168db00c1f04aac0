// Package storage implements the relational persistence boundary: the
// account registry, the append-only posting log, the DPS transfer records
// and the activity log, all backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"

	_ "modernc.org/sqlite"
)

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

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// UpsertAccount writes or replaces one registry row. The registry is
// owned by an external collaborator; this is its ingestion path.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, currency, initial_balance, active,
			dps_enabled, dps_amount_type, dps_fixed_amount, dps_savings_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			initial_balance = excluded.initial_balance,
			active = excluded.active,
			dps_enabled = excluded.dps_enabled,
			dps_amount_type = excluded.dps_amount_type,
			dps_fixed_amount = excluded.dps_fixed_amount,
			dps_savings_account_id = excluded.dps_savings_account_id`,
		a.ID, a.Name, a.Currency, a.InitialBalance.String(), a.Active,
		a.DPSEnabled, nullString(string(a.DPSAmountType)),
		nullString(a.DPSFixedAmount.String()), nullString(a.DPSSavingsAccountID))
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, currency, initial_balance, active,
			dps_enabled, dps_amount_type, dps_fixed_amount, dps_savings_account_id
		FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a           core.Account
			initial     string
			amountType  sql.NullString
			fixedAmount sql.NullString
			savingsID   sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency, &initial, &a.Active,
			&a.DPSEnabled, &amountType, &fixedAmount, &savingsID); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.InitialBalance, err = decimal.NewFromString(initial); err != nil {
			return nil, fmt.Errorf("parse initial balance for %s: %w", a.ID, err)
		}
		a.DPSAmountType = core.DPSAmountType(amountType.String)
		if fixedAmount.Valid && fixedAmount.String != "" {
			if a.DPSFixedAmount, err = decimal.NewFromString(fixedAmount.String); err != nil {
				return nil, fmt.Errorf("parse dps fixed amount for %s: %w", a.ID, err)
			}
		}
		a.DPSSavingsAccountID = savingsID.String
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AppendPosting appends one row to the log and returns its id. Rows are
// never updated afterwards.
func (r *SQLiteRepository) AppendPosting(ctx context.Context, p core.Posting) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := insertPosting(ctx, r.db, p); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Posting appended",
		"id", p.ID,
		"account_id", p.AccountID,
		"type", string(p.Type),
		"amount", p.Amount.String())

	return p.ID, nil
}

func (r *SQLiteRepository) ListPostings(ctx context.Context, accountID string, since time.Time) ([]core.Posting, error) {
	query := `
		SELECT id, account_id, amount, date, type, tags, note, post_balance, transfer_time, created_at
		FROM postings`
	var (
		conds []string
		args  []any
	)
	if accountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, accountID)
	}
	if !since.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, since)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY date ASC, created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var postings []core.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func (r *SQLiteRepository) ListDPSTransfers(ctx context.Context) ([]core.DPSTransfer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, from_account_id, to_account_id, amount, created_at
		FROM dps_transfers ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query dps transfers: %w", err)
	}
	defer rows.Close()

	var recs []core.DPSTransfer
	for rows.Next() {
		var (
			rec    core.DPSTransfer
			amount string
		)
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.FromAccountID, &rec.ToAccountID, &amount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dps transfer: %w", err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse dps amount for %s: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ExecuteDPSTransfer applies one automatic-savings execution: the debit
// leg, the credit leg and the DPSTransfer record land in a single
// transaction or not at all. A failure after a partial write must never
// leave a dangling leg behind.
func (r *SQLiteRepository) ExecuteDPSTransfer(ctx context.Context, exec core.DPSExecution) (core.DPSTransfer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	fromBalance := exec.FromBalance
	toBalance := exec.ToBalance

	debit := core.Posting{
		ID:           uuid.NewString(),
		AccountID:    exec.FromAccountID,
		Amount:       exec.Amount,
		Date:         exec.Date,
		Type:         core.Debit,
		Tags:         []string{core.TagDPS, exec.GroupID},
		Note:         exec.FromNote,
		CreatedAt:    now,
		PostBalance:  &fromBalance,
		TransferTime: exec.Date,
	}
	credit := core.Posting{
		ID:           uuid.NewString(),
		AccountID:    exec.ToAccountID,
		Amount:       exec.Amount,
		Date:         exec.Date,
		Type:         core.Credit,
		Tags:         []string{core.TagDPS, exec.GroupID},
		Note:         exec.ToNote,
		CreatedAt:    now,
		PostBalance:  &toBalance,
		TransferTime: exec.Date,
	}
	if err := insertPosting(ctx, tx, debit); err != nil {
		return core.DPSTransfer{}, err
	}
	if err := insertPosting(ctx, tx, credit); err != nil {
		return core.DPSTransfer{}, err
	}

	rec := core.DPSTransfer{
		ID:            exec.GroupID,
		Date:          exec.Date,
		FromAccountID: exec.FromAccountID,
		ToAccountID:   exec.ToAccountID,
		Amount:        exec.Amount,
		CreatedAt:     now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dps_transfers (id, date, from_account_id, to_account_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Date, rec.FromAccountID, rec.ToAccountID, rec.Amount.String(), rec.CreatedAt); err != nil {
		return core.DPSTransfer{}, fmt.Errorf("insert dps transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.DPSTransfer{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "DPS transfer persisted",
		"id", rec.ID,
		"from_account", rec.FromAccountID,
		"to_account", rec.ToAccountID,
		"amount", rec.Amount.String())

	return rec, nil
}

// ActivityEntry is one row of the operational audit trail.
type ActivityEntry struct {
	ID           int64
	ActivityType string
	EntityType   string
	EntityID     string
	Description  string
	CreatedAt    time.Time
}

func (r *SQLiteRepository) RecordActivity(ctx context.Context, e ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (activity_type, entity_type, entity_id, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ActivityType, e.EntityType, e.EntityID, e.Description, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListActivities(ctx context.Context, limit int) ([]ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, activity_type, entity_type, entity_id, description, created_at
		FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.ActivityType, &e.EntityType, &e.EntityID, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPosting(ctx context.Context, db execer, p core.Posting) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	var postBalance any
	if p.PostBalance != nil {
		postBalance = p.PostBalance.String()
	}
	var transferTime any
	if !p.TransferTime.IsZero() {
		transferTime = p.TransferTime
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO postings (id, account_id, amount, date, type, tags, note, post_balance, transfer_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, p.Amount.String(), p.Date, string(p.Type),
		string(tags), p.Note, postBalance, transferTime, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert posting: %w", err)
	}
	return nil
}

func scanPosting(rows *sql.Rows) (core.Posting, error) {
	var (
		p            core.Posting
		amount       string
		typ          string
		tags         string
		postBalance  sql.NullString
		transferTime sql.NullTime
	)
	err := rows.Scan(&p.ID, &p.AccountID, &amount, &p.Date, &typ, &tags, &p.Note,
		&postBalance, &transferTime, &p.CreatedAt)
	if err != nil {
		return core.Posting{}, fmt.Errorf("scan posting: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Posting{}, fmt.Errorf("parse amount for %s: %w", p.ID, err)
	}
	p.Type = core.PostingType(typ)
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return core.Posting{}, fmt.Errorf("unmarshal tags for %s: %w", p.ID, err)
	}
	if postBalance.Valid && postBalance.String != "" {
		pb, err := decimal.NewFromString(postBalance.String)
		if err != nil {
			return core.Posting{}, fmt.Errorf("parse post balance for %s: %w", p.ID, err)
		}
		p.PostBalance = &pb
	}
	if transferTime.Valid {
		p.TransferTime = transferTime.Time
	}
	return p, nil
}

func nullString(s string) any {
	if s == "" || s == "0" {
		return nil
	}
	return s
}
