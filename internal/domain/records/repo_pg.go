package records

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

func (r *repoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, chief_complaint, diagnosis, therapy_notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.ChiefComplaint, rec.Diagnosis, rec.TherapyNotes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "patient or doctor not found")
		}
		return apperr.Wrap(apperr.Storage, "create medical record", err)
	}
	return nil
}

func (r *repoPG) AddPrescription(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, record_id, medication_id, dosage, frequency)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.RecordID, p.MedicationID, p.Dosage, p.Frequency)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "record or medication not found")
		}
		return apperr.Wrap(apperr.Storage, "add prescription", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT r.id, r.patient_id, r.doctor_id, r.chief_complaint, r.diagnosis, r.therapy_notes,
			d.full_name, r.created_at
		FROM medical_records r
		JOIN doctors d ON d.id = r.doctor_id
		WHERE r.id = $1`, id).
		Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.ChiefComplaint, &rec.Diagnosis, &rec.TherapyNotes,
			&rec.DoctorName, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "medical record not found")
		}
		return nil, apperr.Wrap(apperr.Storage, "get medical record", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.record_id, p.medication_id, m.name, p.dosage, p.frequency
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		WHERE p.record_id = $1
		ORDER BY m.name ASC`, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "get prescriptions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.RecordID, &p.MedicationID, &p.MedicationName, &p.Dosage, &p.Frequency); err != nil {
			return nil, apperr.Wrap(apperr.Storage, "scan prescription", err)
		}
		rec.Prescriptions = append(rec.Prescriptions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Storage, "iterate prescriptions", err)
	}
	return &rec, nil
}

func (r *repoPG) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count medical records", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT r.id, r.doctor_id, d.full_name, r.chief_complaint, r.diagnosis, r.therapy_notes,
			COALESCE(array_agg(m.name ORDER BY m.name) FILTER (WHERE m.name IS NOT NULL), '{}'),
			r.created_at
		FROM medical_records r
		JOIN doctors d ON d.id = r.doctor_id
		LEFT JOIN prescriptions p ON p.record_id = r.id
		LEFT JOIN medications m ON m.id = p.medication_id
		WHERE r.patient_id = $1
		GROUP BY r.id, d.full_name
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list medical records", err)
	}
	defer rows.Close()

	var items []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.DoctorID, &e.DoctorName, &e.ChiefComplaint, &e.Diagnosis, &e.TherapyNotes, &e.Medications, &e.CreatedAt); err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan medical record", err)
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
