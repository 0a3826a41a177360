package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinified/clinified/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, tenant_id, patient_id, abha_id, first_name, middle_name, last_name,
	date_of_birth, gender, phone, email, address, city, state, pincode, country,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
	blood_group, height, weight, allergies, medical_history, family_history,
	insurance_provider, insurance_policy_number, insurance_group_number,
	abdm_consent, abdm_consent_date, abdm_consent_version,
	is_active, is_deceased, date_of_death, notes, preferences, last_visit,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, tenant_id, patient_id, abha_id, first_name, middle_name, last_name,
			date_of_birth, gender, phone, email, address, city, state, pincode, country,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
			blood_group, height, weight, allergies, medical_history, family_history,
			insurance_provider, insurance_policy_number, insurance_group_number,
			abdm_consent, abdm_consent_date, abdm_consent_version,
			is_active, is_deceased, date_of_death, notes, preferences, last_visit
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,
			$31,$32,$33,$34,$35,$36,$37
		) RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.PatientNumber, p.AbhaID, p.FirstName, p.MiddleName, p.LastName,
		p.DateOfBirth, p.Gender, p.Phone, p.Email, p.Address, p.City, p.State, p.Pincode, p.Country,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.BloodGroup, p.Height, p.Weight, jsonList(p.Allergies), jsonList(p.MedicalHistory), jsonList(p.FamilyHistory),
		p.InsuranceProvider, p.InsurancePolicyNumber, p.InsuranceGroupNumber,
		p.ABDMConsent, p.ABDMConsentDate, p.ABDMConsentVersion,
		p.IsActive, p.IsDeceased, p.DateOfDeath, p.Notes, jsonMap(p.Preferences), p.LastVisit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repoPG) GetByPatientNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE tenant_id = $1 AND patient_id = $2`, tenantID, number))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			abha_id=$3, first_name=$4, middle_name=$5, last_name=$6,
			date_of_birth=$7, gender=$8, phone=$9, email=$10, address=$11, city=$12,
			state=$13, pincode=$14, country=$15,
			emergency_contact_name=$16, emergency_contact_phone=$17, emergency_contact_relationship=$18,
			blood_group=$19, height=$20, weight=$21, allergies=$22, medical_history=$23, family_history=$24,
			insurance_provider=$25, insurance_policy_number=$26, insurance_group_number=$27,
			abdm_consent=$28, abdm_consent_date=$29, abdm_consent_version=$30,
			is_active=$31, is_deceased=$32, date_of_death=$33, notes=$34, preferences=$35,
			last_visit=$36, updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, p.AbhaID, p.FirstName, p.MiddleName, p.LastName,
		p.DateOfBirth, p.Gender, p.Phone, p.Email, p.Address, p.City,
		p.State, p.Pincode, p.Country,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.BloodGroup, p.Height, p.Weight, jsonList(p.Allergies), jsonList(p.MedicalHistory), jsonList(p.FamilyHistory),
		p.InsuranceProvider, p.InsurancePolicyNumber, p.InsuranceGroupNumber,
		p.ABDMConsent, p.ABDMConsentDate, p.ABDMConsentVersion,
		p.IsActive, p.IsDeceased, p.DateOfDeath, p.Notes, jsonMap(p.Preferences),
		p.LastVisit,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET is_active = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE tenant_id = $1
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	pts, err := collectPatients(rows)
	return pts, total, err
}

func (r *repoPG) Search(ctx context.Context, tenantID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + query + "%"
	const where = ` WHERE tenant_id = $1 AND (
		first_name ILIKE $2 OR last_name ILIKE $2 OR patient_id ILIKE $2
		OR phone ILIKE $2 OR abha_id ILIKE $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, tenantID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients`+where+` ORDER BY last_name, first_name LIMIT $3 OFFSET $4`,
		tenantID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	pts, err := collectPatients(rows)
	return pts, total, err
}

func (r *repoPG) ListChangedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients
		WHERE (updated_at, id) > ($1, $2)
		ORDER BY updated_at, id LIMIT $3`, since, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p, err := scanInto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanInto(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.TenantID, &p.PatientNumber, &p.AbhaID, &p.FirstName, &p.MiddleName, &p.LastName,
		&p.DateOfBirth, &p.Gender, &p.Phone, &p.Email, &p.Address, &p.City, &p.State, &p.Pincode, &p.Country,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelationship,
		&p.BloodGroup, &p.Height, &p.Weight, &p.Allergies, &p.MedicalHistory, &p.FamilyHistory,
		&p.InsuranceProvider, &p.InsurancePolicyNumber, &p.InsuranceGroupNumber,
		&p.ABDMConsent, &p.ABDMConsentDate, &p.ABDMConsentVersion,
		&p.IsActive, &p.IsDeceased, &p.DateOfDeath, &p.Notes, &p.Preferences, &p.LastVisit,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	var pts []*Patient
	for rows.Next() {
		p, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// jsonList keeps NULL out of JSONB list columns.
func jsonList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func jsonMap(v map[string]interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}
