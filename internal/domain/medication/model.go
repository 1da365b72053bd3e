package medication

import (
	"time"

	"github.com/google/uuid"
)

// Medication is a catalog entry. Names are deduplicated
// case-insensitively: "Amoxicillin" and "amoxicillin" are one row.
type Medication struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
