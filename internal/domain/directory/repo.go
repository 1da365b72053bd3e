package directory

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	// CountBlockingDependents counts non-cancelled appointments and
	// medical records that reference the doctor.
	CountBlockingDependents(ctx context.Context, id uuid.UUID) (int, error)
}

type SecretaryRepository interface {
	Create(ctx context.Context, s *Secretary) error
	GetByID(ctx context.Context, id uuid.UUID) (*Secretary, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Secretary, error)
	List(ctx context.Context, limit, offset int) ([]*Secretary, int, error)
	AssignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error
	UnassignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error
	Assists(ctx context.Context, secretaryID, doctorID uuid.UUID) (bool, error)
	DoctorIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	// BelongsTo reports whether the doctor is the patient's treating
	// doctor (patients.doctor_id).
	BelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	// CountBlockingDependents counts non-cancelled appointments and
	// medical records that reference the patient.
	CountBlockingDependents(ctx context.Context, id uuid.UUID) (int, error)
}
