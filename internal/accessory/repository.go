package accessory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines accessory persistence.
// This abstraction allows unit testing the registry without a database.
type Repository interface {
	// List returns every accessory ordered by Nuki ID, kind and subtype.
	List(ctx context.Context) ([]Accessory, error)

	// ListByDevice returns the accessories of one Nuki ID.
	ListByDevice(ctx context.Context, nukiID int) ([]Accessory, error)

	// Upsert inserts an accessory or updates its name.
	Upsert(ctx context.Context, a *Accessory) error

	// Delete removes one accessory.
	// Returns ErrAccessoryNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// DeleteByDevice removes every accessory of one Nuki ID and returns
	// how many were removed.
	DeleteByDevice(ctx context.Context, nukiID int) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository. The accessories
// table must exist (see the migrations package).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, nuki_id, kind, subtype, name, created_at, updated_at FROM accessories`

// List returns every accessory.
func (r *SQLiteRepository) List(ctx context.Context) ([]Accessory, error) {
	return r.query(ctx, selectColumns+` ORDER BY nuki_id, kind, subtype`)
}

// ListByDevice returns the accessories of one Nuki ID.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, nukiID int) ([]Accessory, error) {
	return r.query(ctx, selectColumns+` WHERE nuki_id = ? ORDER BY kind, subtype`, nukiID)
}

// Upsert inserts an accessory or updates its name. CreatedAt and UpdatedAt
// are set on a.
func (r *SQLiteRepository) Upsert(ctx context.Context, a *Accessory) error {
	now := time.Now().UTC().Truncate(time.Second)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accessories (id, nuki_id, kind, subtype, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		a.ID, a.NukiID, string(a.Kind), a.Subtype, a.Name,
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting accessory %s: %w", a.ID, err)
	}
	return nil
}

// Delete removes one accessory.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accessories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting accessory %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccessoryNotFound
	}
	return nil
}

// DeleteByDevice removes every accessory of one Nuki ID.
func (r *SQLiteRepository) DeleteByDevice(ctx context.Context, nukiID int) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accessories WHERE nuki_id = ?`, nukiID)
	if err != nil {
		return 0, fmt.Errorf("deleting accessories of %d: %w", nukiID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Accessory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accessories: %w", err)
	}
	defer rows.Close()

	var out []Accessory
	for rows.Next() {
		a, err := scanAccessory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accessories: %w", err)
	}
	return out, nil
}

func scanAccessory(rows *sql.Rows) (Accessory, error) {
	var (
		a                    Accessory
		kind                 string
		createdAt, updatedAt string
	)
	if err := rows.Scan(&a.ID, &a.NukiID, &kind, &a.Subtype, &a.Name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Accessory{}, ErrAccessoryNotFound
		}
		return Accessory{}, fmt.Errorf("scanning accessory: %w", err)
	}
	a.Kind = Kind(kind)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return a, nil
}
