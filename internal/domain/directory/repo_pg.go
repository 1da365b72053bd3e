package directory

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

func wrapNotFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, msg)
	}
	return apperr.Wrap(apperr.Storage, msg, err)
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, user_id, full_name, specialty, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialty, &d.CreatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, user_id, full_name, specialty)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.UserID, d.FullName, d.Specialty)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "create doctor", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(err, "doctor not found")
	}
	return d, nil
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID))
	if err != nil {
		return nil, wrapNotFound(err, "doctor not found")
	}
	return d, nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count doctors", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctors ORDER BY full_name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list doctors", err)
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan doctor", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET full_name = $2, specialty = $3 WHERE id = $1`,
		d.ID, d.FullName, d.Specialty)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "update doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.Conflict, "doctor still has linked records")
		}
		return apperr.Wrap(apperr.Storage, "delete doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	return nil
}

func (r *doctorRepoPG) CountBlockingDependents(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND status <> 'cancelled')
		     + (SELECT COUNT(*) FROM medical_records WHERE doctor_id = $1)`, id).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "count doctor dependents", err)
	}
	return n, nil
}

// =========== Secretary Repository ===========

type secretaryRepoPG struct{ pool *pgxpool.Pool }

func NewSecretaryRepoPG(pool *pgxpool.Pool) SecretaryRepository { return &secretaryRepoPG{pool: pool} }

func (r *secretaryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const secretaryCols = `id, user_id, full_name, created_at`

func scanSecretary(row pgx.Row) (*Secretary, error) {
	var s Secretary
	err := row.Scan(&s.ID, &s.UserID, &s.FullName, &s.CreatedAt)
	return &s, err
}

func (r *secretaryRepoPG) Create(ctx context.Context, s *Secretary) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO secretaries (id, user_id, full_name)
		VALUES ($1,$2,$3)`,
		s.ID, s.UserID, s.FullName)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "create secretary", err)
	}
	return nil
}

func (r *secretaryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Secretary, error) {
	s, err := scanSecretary(r.conn(ctx).QueryRow(ctx, `SELECT `+secretaryCols+` FROM secretaries WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(err, "secretary not found")
	}
	return s, nil
}

func (r *secretaryRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Secretary, error) {
	s, err := scanSecretary(r.conn(ctx).QueryRow(ctx, `SELECT `+secretaryCols+` FROM secretaries WHERE user_id = $1`, userID))
	if err != nil {
		return nil, wrapNotFound(err, "secretary not found")
	}
	return s, nil
}

func (r *secretaryRepoPG) List(ctx context.Context, limit, offset int) ([]*Secretary, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM secretaries`).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count secretaries", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+secretaryCols+` FROM secretaries ORDER BY full_name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list secretaries", err)
	}
	defer rows.Close()
	var items []*Secretary
	for rows.Next() {
		s, err := scanSecretary(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan secretary", err)
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *secretaryRepoPG) AssignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO secretary_doctors (secretary_id, doctor_id)
		VALUES ($1,$2)
		ON CONFLICT (secretary_id, doctor_id) DO NOTHING`,
		secretaryID, doctorID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "secretary or doctor not found")
		}
		return apperr.Wrap(apperr.Storage, "assign doctor", err)
	}
	return nil
}

func (r *secretaryRepoPG) UnassignDoctor(ctx context.Context, secretaryID, doctorID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM secretary_doctors WHERE secretary_id = $1 AND doctor_id = $2`,
		secretaryID, doctorID)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "unassign doctor", err)
	}
	return nil
}

func (r *secretaryRepoPG) Assists(ctx context.Context, secretaryID, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM secretary_doctors WHERE secretary_id = $1 AND doctor_id = $2)`,
		secretaryID, doctorID).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "check secretary assignment", err)
	}
	return exists, nil
}

func (r *secretaryRepoPG) DoctorIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT doctor_id FROM secretary_doctors WHERE secretary_id = $1`, secretaryID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list assigned doctors", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.Storage, "scan doctor id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, user_id, doctor_id, full_name, birth_date, phone, email,
	emergency_contact_name, emergency_contact_phone, diagnosis, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.DoctorID, &p.FullName, &p.BirthDate, &p.Phone, &p.Email,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.Diagnosis, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, user_id, doctor_id, full_name, birth_date, phone, email,
			emergency_contact_name, emergency_contact_phone, diagnosis)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.UserID, p.DoctorID, p.FullName, p.BirthDate, p.Phone, p.Email,
		p.EmergencyContactName, p.EmergencyContactPhone, p.Diagnosis)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "doctor not found")
		}
		return apperr.Wrap(apperr.Storage, "create patient", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(err, "patient not found")
	}
	return p, nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
	if err != nil {
		return nil, wrapNotFound(err, "patient not found")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET doctor_id=$2, full_name=$3, birth_date=$4, phone=$5, email=$6,
			emergency_contact_name=$7, emergency_contact_phone=$8, diagnosis=$9, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.DoctorID, p.FullName, p.BirthDate, p.Phone, p.Email,
		p.EmergencyContactName, p.EmergencyContactPhone, p.Diagnosis)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "doctor not found")
		}
		return apperr.Wrap(apperr.Storage, "update patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.Conflict, "patient still has linked records")
		}
		return apperr.Wrap(apperr.Storage, "delete patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count patients", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY full_name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list patients", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan patient", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "count doctor patients", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE doctor_id = $1
		ORDER BY full_name ASC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Storage, "list doctor patients", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.Storage, "scan patient", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) BelongsTo(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND doctor_id = $2)`,
		patientID, doctorID).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "check patient ownership", err)
	}
	return exists, nil
}

func (r *patientRepoPG) CountBlockingDependents(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM appointments WHERE patient_id = $1 AND status <> 'cancelled')
		     + (SELECT COUNT(*) FROM medical_records WHERE patient_id = $1)`, id).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "count patient dependents", err)
	}
	return n, nil
}
