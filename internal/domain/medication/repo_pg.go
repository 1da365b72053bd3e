package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// FindOrCreate leans on the unique index over lower(name): the no-op
// update makes RETURNING yield the surviving row whether this call
// inserted it or an earlier one did.
func (r *repoPG) FindOrCreate(ctx context.Context, name string) (*Medication, error) {
	var m Medication
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, name)
		VALUES ($1, $2)
		ON CONFLICT (lower(name)) DO UPDATE SET name = medications.name
		RETURNING id, name, created_at`,
		uuid.New(), name).Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "find or create medication", err)
	}
	return &m, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	var m Medication
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, created_at FROM medications WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "medication not found")
		}
		return nil, apperr.Wrap(apperr.Storage, "get medication", err)
	}
	return &m, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medications`).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count medications", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, created_at FROM medications ORDER BY name ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list medications", err)
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt); err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan medication", err)
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}
