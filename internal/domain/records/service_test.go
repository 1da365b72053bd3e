package records

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type mockRepo struct {
	records       map[uuid.UUID]*MedicalRecord
	prescriptions map[uuid.UUID][]*Prescription
	failAddAfter  int // fail AddPrescription once this many succeeded; -1 disables
	added         int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		records:       make(map[uuid.UUID]*MedicalRecord),
		prescriptions: make(map[uuid.UUID][]*Prescription),
		failAddAfter:  -1,
	}
}

func (m *mockRepo) Create(ctx context.Context, r *MedicalRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRepo) AddPrescription(ctx context.Context, p *Prescription) error {
	if m.failAddAfter >= 0 && m.added >= m.failAddAfter {
		return apperr.New(apperr.Storage, "insert failed")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.prescriptions[p.RecordID] = append(m.prescriptions[p.RecordID], &cp)
	m.added++
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "medical record not found")
	}
	cp := *r
	cp.Prescriptions = m.prescriptions[id]
	return &cp, nil
}

func (m *mockRepo) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error) {
	var items []*HistoryEntry
	for _, r := range m.records {
		if r.PatientID != patientID {
			continue
		}
		e := &HistoryEntry{
			ID: r.ID, DoctorID: r.DoctorID, ChiefComplaint: r.ChiefComplaint,
			Diagnosis: r.Diagnosis, TherapyNotes: r.TherapyNotes,
			Medications: []string{}, CreatedAt: r.CreatedAt,
		}
		for _, p := range m.prescriptions[r.ID] {
			e.Medications = append(e.Medications, p.MedicationName)
		}
		items = append(items, e)
	}
	return items, len(items), nil
}

type mockCatalog struct {
	byID   map[uuid.UUID]*medication.Medication
	byName map[string]*medication.Medication
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		byID:   make(map[uuid.UUID]*medication.Medication),
		byName: make(map[string]*medication.Medication),
	}
}

func (m *mockCatalog) add(name string) *medication.Medication {
	med := &medication.Medication{ID: uuid.New(), Name: name}
	m.byID[med.ID] = med
	m.byName[strings.ToLower(name)] = med
	return med
}

func (m *mockCatalog) Get(ctx context.Context, id uuid.UUID) (*medication.Medication, error) {
	med, ok := m.byID[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "medication not found")
	}
	return med, nil
}

func (m *mockCatalog) FindOrCreate(ctx context.Context, name string) (*medication.Medication, error) {
	if med, ok := m.byName[strings.ToLower(name)]; ok {
		return med, nil
	}
	return m.add(name), nil
}

type mockDirectory struct {
	doctors     map[uuid.UUID]uuid.UUID // userID -> doctorID
	secretaries map[uuid.UUID]uuid.UUID
	patients    map[uuid.UUID]uuid.UUID
	roster      map[uuid.UUID]map[uuid.UUID]bool // doctorID -> patientID set
	secAccess   map[uuid.UUID]map[uuid.UUID]bool // secretaryID -> patientID set
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		doctors:     make(map[uuid.UUID]uuid.UUID),
		secretaries: make(map[uuid.UUID]uuid.UUID),
		patients:    make(map[uuid.UUID]uuid.UUID),
		roster:      make(map[uuid.UUID]map[uuid.UUID]bool),
		secAccess:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockDirectory) ResolveDoctorID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.doctors[userID]
	if !ok {
		return uuid.Nil, apperr.New(apperr.NotFound, "doctor profile not found")
	}
	return id, nil
}

func (m *mockDirectory) ResolveSecretaryID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.secretaries[userID]
	if !ok {
		return uuid.Nil, apperr.New(apperr.NotFound, "secretary profile not found")
	}
	return id, nil
}

func (m *mockDirectory) ResolvePatientID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.patients[userID]
	if !ok {
		return uuid.Nil, apperr.New(apperr.NotFound, "patient profile not found")
	}
	return id, nil
}

func (m *mockDirectory) PatientBelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	return m.roster[doctorID][patientID], nil
}

func (m *mockDirectory) SecretaryCanAccessPatient(ctx context.Context, secretaryID, patientID uuid.UUID) (bool, error) {
	return m.secAccess[secretaryID][patientID], nil
}

// passthroughRunner runs the function inline. rollbackRunner additionally
// restores the repo's maps when the function fails, imitating a real
// transaction rollback.
type passthroughRunner struct{}

func (passthroughRunner) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type rollbackRunner struct{ repo *mockRepo }

func (r rollbackRunner) WithTx(ctx context.Context, fn func(context.Context) error) error {
	savedRecords := make(map[uuid.UUID]*MedicalRecord, len(r.repo.records))
	for k, v := range r.repo.records {
		savedRecords[k] = v
	}
	savedPrescriptions := make(map[uuid.UUID][]*Prescription, len(r.repo.prescriptions))
	for k, v := range r.repo.prescriptions {
		savedPrescriptions[k] = append([]*Prescription(nil), v...)
	}
	if err := fn(ctx); err != nil {
		r.repo.records = savedRecords
		r.repo.prescriptions = savedPrescriptions
		return err
	}
	return nil
}

type fixture struct {
	repo    *mockRepo
	catalog *mockCatalog
	dir     *mockDirectory
	svc     *Service

	doctor    auth.Identity
	doctorID  uuid.UUID
	patient   auth.Identity
	patientID uuid.UUID
	admin     auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMockRepo(),
		catalog: newMockCatalog(),
		dir:     newMockDirectory(),
		admin:   auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin},
	}
	f.svc = NewService(f.repo, f.catalog, f.dir, passthroughRunner{})

	f.doctor = auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor}
	f.doctorID = uuid.New()
	f.dir.doctors[f.doctor.UserID] = f.doctorID

	f.patient = auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
	f.patientID = uuid.New()
	f.dir.patients[f.patient.UserID] = f.patientID

	f.dir.roster[f.doctorID] = map[uuid.UUID]bool{f.patientID: true}
	return f
}

func strPtr(s string) *string { return &s }

func TestCreateRecord_WithPrescriptions(t *testing.T) {
	f := newFixture(t)
	amox := f.catalog.add("Amoxicillin")

	rec, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:             f.patientID,
		ChiefComplaint:        "ear pain",
		Diagnosis:             strPtr("acute otitis media"),
		ExistingMedicationIDs: []uuid.UUID{amox.ID},
		NewMedication: &NewMedicationInput{
			Name:      "Ibuprofen",
			Dosage:    strPtr("400mg"),
			Frequency: strPtr("as needed"),
		},
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.DoctorID != f.doctorID {
		t.Errorf("doctor id = %s, want %s", rec.DoctorID, f.doctorID)
	}
	if len(rec.Prescriptions) != 2 {
		t.Fatalf("got %d prescriptions, want 2", len(rec.Prescriptions))
	}
	// The existing-id link carries no dosage override.
	if rec.Prescriptions[0].MedicationName != "Amoxicillin" || rec.Prescriptions[0].Dosage != nil {
		t.Errorf("existing link = %q dosage %v, want Amoxicillin with nil dosage",
			rec.Prescriptions[0].MedicationName, rec.Prescriptions[0].Dosage)
	}
	if rec.Prescriptions[1].Dosage == nil || *rec.Prescriptions[1].Dosage != "400mg" {
		t.Errorf("new medication dosage = %v, want 400mg", rec.Prescriptions[1].Dosage)
	}
	// The free-text name must have landed in the catalog.
	if _, ok := f.catalog.byName["ibuprofen"]; !ok {
		t.Error("ibuprofen not in catalog")
	}
}

func TestCreateRecord_DosageMandatoryForNewMedication(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:      f.patientID,
		ChiefComplaint: "headache",
		NewMedication:  &NewMedicationInput{Name: "Tylenol", Dosage: nil},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(f.repo.records) != 0 {
		t.Error("record written despite validation failure")
	}
	// Rejected before storage: the new name must not be in the catalog.
	if _, ok := f.catalog.byName["tylenol"]; ok {
		t.Error("rejected request still created a catalog entry")
	}
}

func TestCreateRecord_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  *CreateRequest
	}{
		{"missing patient", &CreateRequest{ChiefComplaint: "flu"}},
		{"missing chief complaint", &CreateRequest{PatientID: f.patientID}},
		{"blank chief complaint", &CreateRequest{PatientID: f.patientID, ChiefComplaint: "   "}},
		{"new medication without name", &CreateRequest{
			PatientID: f.patientID, ChiefComplaint: "flu",
			NewMedication: &NewMedicationInput{Dosage: strPtr("1g")},
		}},
		{"new medication with blank dosage", &CreateRequest{
			PatientID: f.patientID, ChiefComplaint: "flu",
			NewMedication: &NewMedicationInput{Name: "Paracetamol", Dosage: strPtr("  ")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRecord(context.Background(), f.doctor, tt.req)
			if !apperr.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
	if len(f.repo.records) != 0 {
		t.Errorf("%d records written despite validation failures", len(f.repo.records))
	}
}

func TestCreateRecord_RollsBackOnPrescriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.catalog, f.dir, rollbackRunner{repo: f.repo})
	amox := f.catalog.add("Amoxicillin")
	f.repo.failAddAfter = 1 // second prescription insert fails

	_, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:             f.patientID,
		ChiefComplaint:        "ear pain",
		ExistingMedicationIDs: []uuid.UUID{amox.ID},
		NewMedication:         &NewMedicationInput{Name: "Ibuprofen", Dosage: strPtr("400mg")},
	})
	if err == nil {
		t.Fatal("expected error from failed prescription insert")
	}
	if len(f.repo.records) != 0 {
		t.Errorf("record survived a failed transaction")
	}
	for id, ps := range f.repo.prescriptions {
		if len(ps) != 0 {
			t.Errorf("prescriptions for %s survived a failed transaction", id)
		}
	}
}

func TestCreateRecord_UnknownMedicationID(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.catalog, f.dir, rollbackRunner{repo: f.repo})
	bogus := uuid.New()

	_, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:             f.patientID,
		ChiefComplaint:        "flu",
		ExistingMedicationIDs: []uuid.UUID{bogus},
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if len(f.repo.records) != 0 {
		t.Errorf("record survived unknown medication id")
	}
}

func TestCreateRecord_PatientNotTreatedByDoctor(t *testing.T) {
	f := newFixture(t)
	stranger := uuid.New() // patient with no appointments with this doctor

	_, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:      stranger,
		ChiefComplaint: "flu",
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateRecord_AdminNeedsDoctorID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRecord(context.Background(), f.admin, &CreateRequest{
		PatientID:      f.patientID,
		ChiefComplaint: "flu",
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}

	rec, err := f.svc.CreateRecord(context.Background(), f.admin, &CreateRequest{
		PatientID:      f.patientID,
		DoctorID:       f.doctorID,
		ChiefComplaint: "flu",
	})
	if err != nil {
		t.Fatalf("CreateRecord as admin: %v", err)
	}
	if rec.DoctorID != f.doctorID {
		t.Errorf("doctor id = %s, want %s", rec.DoctorID, f.doctorID)
	}
}

func TestCreateRecord_NonDoctorForbidden(t *testing.T) {
	f := newFixture(t)
	for _, ident := range []auth.Identity{
		{UserID: uuid.New(), Role: auth.RoleSecretary},
		f.patient,
	} {
		_, err := f.svc.CreateRecord(context.Background(), ident, &CreateRequest{
			PatientID:      f.patientID,
			ChiefComplaint: "flu",
		})
		if !apperr.IsForbidden(err) {
			t.Errorf("role %s: err = %v, want forbidden", ident.Role, err)
		}
	}
}

func TestGetRecord_Access(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:      f.patientID,
		ChiefComplaint: "flu",
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// The treating doctor, the patient and an admin may read it.
	for _, ident := range []auth.Identity{f.doctor, f.patient, f.admin} {
		if _, err := f.svc.GetRecord(context.Background(), ident, rec.ID); err != nil {
			t.Errorf("role %s: GetRecord: %v", ident.Role, err)
		}
	}

	// A doctor without the patient on their roster may not.
	stranger := auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor}
	f.dir.doctors[stranger.UserID] = uuid.New()
	if _, err := f.svc.GetRecord(context.Background(), stranger, rec.ID); !apperr.IsForbidden(err) {
		t.Errorf("stranger doctor: err = %v, want forbidden", err)
	}

	// Another patient may not.
	other := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
	f.dir.patients[other.UserID] = uuid.New()
	if _, err := f.svc.GetRecord(context.Background(), other, rec.ID); !apperr.IsForbidden(err) {
		t.Errorf("other patient: err = %v, want forbidden", err)
	}
}

func TestPatientHistory_SecretaryScope(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateRecord(context.Background(), f.doctor, &CreateRequest{
		PatientID:      f.patientID,
		ChiefComplaint: "flu",
		NewMedication:  &NewMedicationInput{Name: "Paracetamol", Dosage: strPtr("1g")},
	}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	sec := auth.Identity{UserID: uuid.New(), Role: auth.RoleSecretary}
	secID := uuid.New()
	f.dir.secretaries[sec.UserID] = secID

	if _, _, err := f.svc.PatientHistory(context.Background(), sec, f.patientID, 20, 0); !apperr.IsForbidden(err) {
		t.Fatalf("unassigned secretary: err = %v, want forbidden", err)
	}

	f.dir.secAccess[secID] = map[uuid.UUID]bool{f.patientID: true}
	items, total, err := f.svc.PatientHistory(context.Background(), sec, f.patientID, 20, 0)
	if err != nil {
		t.Fatalf("assigned secretary: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("got %d items (total %d), want 1", len(items), total)
	}
	if len(items[0].Medications) != 1 || items[0].Medications[0] != "Paracetamol" {
		t.Errorf("medications = %v, want [Paracetamol]", items[0].Medications)
	}
}
