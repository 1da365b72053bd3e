package records

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// MedicationCatalog is the slice of the medication service this package
// needs.
type MedicationCatalog interface {
	FindOrCreate(ctx context.Context, name string) (*medication.Medication, error)
	Get(ctx context.Context, id uuid.UUID) (*medication.Medication, error)
}

// Directory resolves identities and care relationships; satisfied by
// the directory service.
type Directory interface {
	ResolveDoctorID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ResolveSecretaryID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ResolvePatientID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	PatientBelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	SecretaryCanAccessPatient(ctx context.Context, secretaryID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	repo   Repository
	meds   MedicationCatalog
	dir    Directory
	runner db.Runner
}

func NewService(repo Repository, meds MedicationCatalog, dir Directory, runner db.Runner) *Service {
	return &Service{repo: repo, meds: meds, dir: dir, runner: runner}
}

// CreateRecord writes a consultation record and its prescriptions in
// one transaction: the record row, one prescription per existing
// catalog id, and one prescription for an optionally supplied new
// medication (resolved through the catalog). Validation runs before
// anything touches storage, so a rejected request leaves no partial
// record and no stray catalog entry behind.
func (s *Service) CreateRecord(ctx context.Context, ident auth.Identity, req *CreateRequest) (*MedicalRecord, error) {
	req.ChiefComplaint = strings.TrimSpace(req.ChiefComplaint)
	if req.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "patient_id is required")
	}
	if req.ChiefComplaint == "" {
		return nil, apperr.New(apperr.Validation, "chief_complaint is required")
	}
	if nm := req.NewMedication; nm != nil {
		nm.Name = strings.TrimSpace(nm.Name)
		if nm.Name == "" {
			return nil, apperr.New(apperr.Validation, "new medication name is required")
		}
		if nm.Dosage == nil || strings.TrimSpace(*nm.Dosage) == "" {
			return nil, apperr.New(apperr.Validation, "dosage is mandatory for a new medication")
		}
	}

	var doctorID uuid.UUID
	switch ident.Role {
	case auth.RoleDoctor:
		ownID, err := s.dir.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		doctorID = ownID
	case auth.RoleAdmin:
		if req.DoctorID == uuid.Nil {
			return nil, apperr.New(apperr.Validation, "doctor_id is required")
		}
		doctorID = req.DoctorID
	default:
		return nil, apperr.New(apperr.Forbidden, "only doctors write medical records")
	}

	if ident.Role == auth.RoleDoctor {
		treated, err := s.dir.PatientBelongsTo(ctx, req.PatientID, doctorID)
		if err != nil {
			return nil, err
		}
		if !treated {
			return nil, apperr.New(apperr.NotFound, "patient is not treated by this doctor")
		}
	}

	rec := &MedicalRecord{
		PatientID:      req.PatientID,
		DoctorID:       doctorID,
		ChiefComplaint: req.ChiefComplaint,
		Diagnosis:      req.Diagnosis,
		TherapyNotes:   req.TherapyNotes,
	}

	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rec); err != nil {
			return err
		}
		for _, medID := range req.ExistingMedicationIDs {
			med, err := s.meds.Get(ctx, medID)
			if err != nil {
				return err
			}
			p := &Prescription{
				RecordID:       rec.ID,
				MedicationID:   med.ID,
				MedicationName: med.Name,
			}
			if err := s.repo.AddPrescription(ctx, p); err != nil {
				return err
			}
			rec.Prescriptions = append(rec.Prescriptions, p)
		}
		if nm := req.NewMedication; nm != nil {
			med, err := s.meds.FindOrCreate(ctx, nm.Name)
			if err != nil {
				return err
			}
			p := &Prescription{
				RecordID:       rec.ID,
				MedicationID:   med.ID,
				MedicationName: med.Name,
				Dosage:         nm.Dosage,
				Frequency:      nm.Frequency,
			}
			if err := s.repo.AddPrescription(ctx, p); err != nil {
				return err
			}
			rec.Prescriptions = append(rec.Prescriptions, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, ident auth.Identity, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canViewPatient(ctx, ident, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

// PatientHistory lists the patient's records most recent first, each
// with the names of everything prescribed.
func (s *Service) PatientHistory(ctx context.Context, ident auth.Identity, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error) {
	if err := s.canViewPatient(ctx, ident, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.History(ctx, patientID, limit, offset)
}

// canViewPatient enforces the care relationship: doctors see their
// roster, secretaries their doctors' rosters, patients themselves.
func (s *Service) canViewPatient(ctx context.Context, ident auth.Identity, patientID uuid.UUID) error {
	switch ident.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		doctorID, err := s.dir.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		ok, err := s.dir.PatientBelongsTo(ctx, patientID, doctorID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.Forbidden, "patient is not on your roster")
		}
		return nil
	case auth.RoleSecretary:
		secretaryID, err := s.dir.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		ok, err := s.dir.SecretaryCanAccessPatient(ctx, secretaryID, patientID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.Forbidden, "patient is not on your doctors' roster")
		}
		return nil
	case auth.RolePatient:
		ownID, err := s.dir.ResolvePatientID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		if ownID != patientID {
			return apperr.New(apperr.Forbidden, "patients may only view their own history")
		}
		return nil
	}
	return apperr.New(apperr.Forbidden, "insufficient role")
}
