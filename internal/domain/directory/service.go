package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Service struct {
	doctors     DoctorRepository
	secretaries SecretaryRepository
	patients    PatientRepository
}

func NewService(doctors DoctorRepository, secretaries SecretaryRepository, patients PatientRepository) *Service {
	return &Service{doctors: doctors, secretaries: secretaries, patients: patients}
}

// CreateProfile inserts the role-specific row for a freshly registered
// user. Admins carry no profile beyond the account itself.
func (s *Service) CreateProfile(ctx context.Context, userID uuid.UUID, role, fullName string) error {
	switch role {
	case auth.RoleDoctor:
		return s.doctors.Create(ctx, &Doctor{UserID: userID, FullName: fullName})
	case auth.RoleSecretary:
		return s.secretaries.Create(ctx, &Secretary{UserID: userID, FullName: fullName})
	case auth.RolePatient:
		uid := userID
		return s.patients.Create(ctx, &Patient{UserID: &uid, FullName: fullName})
	case auth.RoleAdmin:
		return nil
	}
	return apperr.Newf(apperr.Validation, "invalid role: %s", role)
}

// -- Doctors --

func (s *Service) ResolveDoctorID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	d, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// UpdateDoctorProfile changes the display name and specialty. A nil
// specialty clears it.
func (s *Service) UpdateDoctorProfile(ctx context.Context, id uuid.UUID, fullName string, specialty *string) (*Doctor, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, apperr.New(apperr.Validation, "full_name is required")
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.FullName = fullName
	d.Specialty = specialty
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDoctor removes a doctor that has no live appointments or
// records. Cancelled appointments do not block removal.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.doctors.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.doctors.CountBlockingDependents(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.Conflict, "doctor has active appointments or medical records")
	}
	return s.doctors.Delete(ctx, id)
}

// -- Secretaries --

func (s *Service) ResolveSecretaryID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	sec, err := s.secretaries.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return sec.ID, nil
}

func (s *Service) ListSecretaries(ctx context.Context, limit, offset int) ([]*Secretary, int, error) {
	return s.secretaries.List(ctx, limit, offset)
}

func (s *Service) AssignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error {
	if _, err := s.secretaries.GetByID(ctx, secretaryID); err != nil {
		return err
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return err
	}
	return s.secretaries.AssignDoctor(ctx, secretaryID, doctorID)
}

func (s *Service) UnassignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error {
	return s.secretaries.UnassignDoctor(ctx, secretaryID, doctorID)
}

func (s *Service) SecretaryAssists(ctx context.Context, secretaryID, doctorID uuid.UUID) (bool, error) {
	return s.secretaries.Assists(ctx, secretaryID, doctorID)
}

func (s *Service) SecretaryDoctorIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error) {
	return s.secretaries.DoctorIDs(ctx, secretaryID)
}

// -- Patients --

func (s *Service) ResolvePatientID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// CreatePatient registers a patient and pins down the owning doctor:
// a doctor always registers patients onto their own roster, a
// secretary onto a doctor they assist, an admin onto any doctor (or
// none).
func (s *Service) CreatePatient(ctx context.Context, ident auth.Identity, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return apperr.New(apperr.Validation, "full_name is required")
	}
	switch ident.Role {
	case auth.RoleDoctor:
		doctorID, err := s.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		p.DoctorID = &doctorID
	case auth.RoleSecretary:
		if p.DoctorID == nil {
			return apperr.New(apperr.Validation, "doctor_id is required")
		}
		secretaryID, err := s.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		assists, err := s.secretaries.Assists(ctx, secretaryID, *p.DoctorID)
		if err != nil {
			return err
		}
		if !assists {
			return apperr.New(apperr.Forbidden, "not assigned to this doctor")
		}
	case auth.RoleAdmin:
		if p.DoctorID != nil {
			if _, err := s.doctors.GetByID(ctx, *p.DoctorID); err != nil {
				return err
			}
		}
	default:
		return apperr.New(apperr.Forbidden, "insufficient role")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient rewrites the patient's demographics. Only admins may
// move a patient to another doctor; everyone else keeps the current
// owner no matter what the payload says.
func (s *Service) UpdatePatient(ctx context.Context, ident auth.Identity, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return apperr.New(apperr.Validation, "full_name is required")
	}
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if ident.Role != auth.RoleAdmin {
		p.DoctorID = existing.DoctorID
	} else if p.DoctorID != nil {
		if _, err := s.doctors.GetByID(ctx, *p.DoctorID); err != nil {
			return err
		}
	}
	p.UserID = existing.UserID
	return s.patients.Update(ctx, p)
}

// DeletePatient refuses while the patient still has live appointments
// or any medical records, so history is never orphaned.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.patients.CountBlockingDependents(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.Conflict, "patient has active appointments or medical records")
	}
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) ListPatientsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.patients.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) PatientBelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	return s.patients.BelongsTo(ctx, patientID, doctorID)
}

// SecretaryCanAccessPatient reports whether the patient is on the
// roster of any doctor the secretary assists.
func (s *Service) SecretaryCanAccessPatient(ctx context.Context, secretaryID, patientID uuid.UUID) (bool, error) {
	doctorIDs, err := s.secretaries.DoctorIDs(ctx, secretaryID)
	if err != nil {
		return false, err
	}
	for _, doctorID := range doctorIDs {
		ok, err := s.patients.BelongsTo(ctx, patientID, doctorID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
