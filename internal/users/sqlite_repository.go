package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed-width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Repository on an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Migrate creates the allowed_users table when missing.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteMigrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Lookup(ctx context.Context, telegramID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT telegram_id, phone, username, role, added_by, added_at
		FROM allowed_users WHERE telegram_id = ?`, telegramID)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *SQLiteRepository) Upsert(ctx context.Context, record Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `INSERT INTO allowed_users (telegram_id, phone, username, role, added_by, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			phone = excluded.phone,
			username = excluded.username,
			role = excluded.role,
			added_by = excluded.added_by,
			added_at = excluded.added_at
		RETURNING telegram_id, phone, username, role, added_by, added_at`,
		record.TelegramID, record.Phone, record.Username, record.Role, record.AddedBy,
		record.AddedAt.UTC().Format(sqliteTimeLayout))
	return scanSQLiteRecord(row)
}

func (r *SQLiteRepository) Delete(ctx context.Context, telegramID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM allowed_users WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT telegram_id, phone, username, role, added_by, added_at
		FROM allowed_users ORDER BY added_at DESC, telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (Record, error) {
	var (
		rec     Record
		addedAt string
	)
	if err := row.Scan(&rec.TelegramID, &rec.Phone, &rec.Username, &rec.Role, &rec.AddedBy, &addedAt); err != nil {
		return Record{}, err
	}
	t, err := time.Parse(sqliteTimeLayout, addedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse added_at %q: %w", addedAt, err)
	}
	rec.AddedAt = t
	return rec, nil
}
