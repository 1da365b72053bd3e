package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// FindOrCreate returns the existing entry whose name matches
	// case-insensitively, or inserts a new one. Safe under concurrent
	// calls with the same name.
	FindOrCreate(ctx context.Context, name string) (*Medication, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	List(ctx context.Context, limit, offset int) ([]*Medication, int, error)
}
