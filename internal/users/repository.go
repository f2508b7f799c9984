package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists allow-list records.
type Repository interface {
	Lookup(ctx context.Context, telegramID string) (Record, error)
	Upsert(ctx context.Context, record Record) (Record, error)
	Delete(ctx context.Context, telegramID string) error
	// List returns every record, most recently granted first.
	List(ctx context.Context) ([]Record, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed allow-list repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the allowed_users table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for _, stmt := range postgresMigrations {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// Lookup fetches a record by Telegram id.
func (r *PostgresRepository) Lookup(ctx context.Context, telegramID string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT telegram_id, phone, username, role, added_by, added_at
        FROM allowed_users WHERE telegram_id = $1`, telegramID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Upsert inserts the record or replaces the existing one with the same id.
func (r *PostgresRepository) Upsert(ctx context.Context, record Record) (Record, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO allowed_users (telegram_id, phone, username, role, added_by, added_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (telegram_id) DO UPDATE SET
            phone = EXCLUDED.phone,
            username = EXCLUDED.username,
            role = EXCLUDED.role,
            added_by = EXCLUDED.added_by,
            added_at = EXCLUDED.added_at
        RETURNING telegram_id, phone, username, role, added_by, added_at`,
		record.TelegramID, record.Phone, record.Username, record.Role, record.AddedBy, record.AddedAt.UTC())
	return scanRecord(row)
}

// Delete removes a record.
func (r *PostgresRepository) Delete(ctx context.Context, telegramID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM allowed_users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all records ordered by grant time, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT telegram_id, phone, username, role, added_by, added_at
        FROM allowed_users ORDER BY added_at DESC, telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		addedAt time.Time
	)
	if err := row.Scan(&rec.TelegramID, &rec.Phone, &rec.Username, &rec.Role, &rec.AddedBy, &addedAt); err != nil {
		return Record{}, err
	}
	rec.AddedAt = addedAt.UTC()
	return rec, nil
}
