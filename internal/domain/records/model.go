package records

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord maps to the medical_records table. Records are immutable
// once written; DoctorName is joined in on reads.
type MedicalRecord struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	ChiefComplaint string          `db:"chief_complaint" json:"chief_complaint"`
	Diagnosis      *string         `db:"diagnosis" json:"diagnosis,omitempty"`
	TherapyNotes   *string         `db:"therapy_notes" json:"therapy_notes,omitempty"`
	DoctorName     string          `db:"doctor_name" json:"doctor_name,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	Prescriptions  []*Prescription `json:"prescriptions,omitempty"`
}

// Prescription links a record to a catalog medication. Dosage and
// frequency are set only when the prescription introduced a new
// medication; links to existing entries carry no override.
type Prescription struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RecordID       uuid.UUID `db:"record_id" json:"record_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name,omitempty"`
	Dosage         *string   `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
}

// HistoryEntry is one row of a patient's consultation history: the
// record plus the aggregated names of everything prescribed in it.
type HistoryEntry struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	ChiefComplaint string    `json:"chief_complaint"`
	Diagnosis      *string   `json:"diagnosis,omitempty"`
	TherapyNotes   *string   `json:"therapy_notes,omitempty"`
	Medications    []string  `json:"medications"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMedicationInput names a medication not yet in the catalog. Dosage
// is mandatory whenever a new medication is supplied.
type NewMedicationInput struct {
	Name      string  `json:"name"`
	Dosage    *string `json:"dosage"`
	Frequency *string `json:"frequency,omitempty"`
}

// CreateRequest is the record creation body. DoctorID is only honored
// for admins; doctors always write as themselves.
type CreateRequest struct {
	PatientID             uuid.UUID           `json:"patient_id"`
	DoctorID              uuid.UUID           `json:"doctor_id,omitempty"`
	ChiefComplaint        string              `json:"chief_complaint"`
	Diagnosis             *string             `json:"diagnosis,omitempty"`
	TherapyNotes          *string             `json:"therapy_notes,omitempty"`
	ExistingMedicationIDs []uuid.UUID         `json:"existing_medication_ids,omitempty"`
	NewMedication         *NewMedicationInput `json:"new_medication,omitempty"`
}
