package records

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	AddPrescription(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	// History returns the patient's records most recent first, each with
	// its prescribed medication names aggregated.
	History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error)
}
