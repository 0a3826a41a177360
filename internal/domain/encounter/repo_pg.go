package encounter

import (
	"context"
	"errors"
	"fmt"
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

const encCols = `id, tenant_id, patient_id, practitioner_id, encounter_id, fhir_encounter_id,
	status, class_code, priority, start_date, end_date, duration_minutes,
	reason_code, reason_text, diagnosis, chief_complaint, vital_signs, physical_examination,
	location, service_type, insurance_status, copay_amount, total_amount, payment_status,
	follow_up_required, follow_up_date, follow_up_notes, abdm_consent, abdm_consent_date,
	notes, tags, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, e *Encounter) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounters (
			id, tenant_id, patient_id, practitioner_id, encounter_id, fhir_encounter_id,
			status, class_code, priority, start_date, end_date, duration_minutes,
			reason_code, reason_text, diagnosis, chief_complaint, vital_signs, physical_examination,
			location, service_type, insurance_status, copay_amount, total_amount, payment_status,
			follow_up_required, follow_up_date, follow_up_notes, abdm_consent, abdm_consent_date,
			notes, tags
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31
		) RETURNING created_at, updated_at`,
		e.ID, e.TenantID, e.PatientID, e.PractitionerID, e.EncounterNumber, e.FHIREncounterID,
		e.Status, e.ClassCode, e.Priority, e.StartDate, e.EndDate, e.DurationMinutes,
		reasons(e.ReasonCode), e.ReasonText, diagnoses(e.Diagnosis), e.ChiefComplaint, vitals(e.VitalSigns), e.PhysicalExamination,
		e.Location, e.ServiceType, e.InsuranceStatus, e.CopayAmount, e.TotalAmount, e.PaymentStatus,
		e.FollowUpRequired, e.FollowUpDate, e.FollowUpNotes, e.ABDMConsent, e.ABDMConsentDate,
		e.Notes, tags(e.Tags),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Encounter, error) {
	e, err := scanEncounter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encCols+` FROM encounters WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *repoPG) Update(ctx context.Context, e *Encounter) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE encounters SET
			practitioner_id=$3, fhir_encounter_id=$4, status=$5, class_code=$6, priority=$7,
			start_date=$8, end_date=$9, duration_minutes=$10, reason_code=$11, reason_text=$12,
			diagnosis=$13, chief_complaint=$14, vital_signs=$15, physical_examination=$16,
			location=$17, service_type=$18, insurance_status=$19, copay_amount=$20, total_amount=$21,
			payment_status=$22, follow_up_required=$23, follow_up_date=$24, follow_up_notes=$25,
			abdm_consent=$26, abdm_consent_date=$27, notes=$28, tags=$29, updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`,
		e.TenantID, e.ID,
		e.PractitionerID, e.FHIREncounterID, e.Status, e.ClassCode, e.Priority,
		e.StartDate, e.EndDate, e.DurationMinutes, reasons(e.ReasonCode), e.ReasonText,
		diagnoses(e.Diagnosis), e.ChiefComplaint, vitals(e.VitalSigns), e.PhysicalExamination,
		e.Location, e.ServiceType, e.InsuranceStatus, e.CopayAmount, e.TotalAmount,
		e.PaymentStatus, e.FollowUpRequired, e.FollowUpDate, e.FollowUpNotes,
		e.ABDMConsent, e.ABDMConsentDate, e.Notes, tags(e.Tags),
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return r.page(ctx, ` WHERE tenant_id = $1`, []interface{}{tenantID}, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return r.page(ctx, ` WHERE tenant_id = $1 AND patient_id = $2`, []interface{}{tenantID, patientID}, limit, offset)
}

func (r *repoPG) page(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM encounters%s ORDER BY start_date DESC, id LIMIT $%d OFFSET $%d`,
		encCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	encs, err := collect(rows)
	return encs, total, err
}

func (r *repoPG) PatientInTenant(ctx context.Context, tenantID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE tenant_id = $1 AND id = $2)`, tenantID, patientID).Scan(&ok)
	return ok, err
}

func (r *repoPG) PractitionerInTenant(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2)`, tenantID, userID).Scan(&ok)
	return ok, err
}

func (r *repoPG) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter_status_history (id, encounter_id, from_status, to_status, changed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING changed_at`,
		sc.ID, sc.EncounterID, sc.FromStatus, sc.ToStatus, sc.ChangedBy,
	).Scan(&sc.ChangedAt)
}

func (r *repoPG) GetStatusHistory(ctx context.Context, encounterID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, encounter_id, from_status, to_status, changed_by, changed_at
		FROM encounter_status_history WHERE encounter_id = $1 ORDER BY changed_at`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.EncounterID, &sc.FromStatus, &sc.ToStatus, &sc.ChangedBy, &sc.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

func (r *repoPG) ListChangedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]*Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM encounters
		WHERE (updated_at, id) > ($1, $2)
		ORDER BY updated_at, id LIMIT $3`, since, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(
		&e.ID, &e.TenantID, &e.PatientID, &e.PractitionerID, &e.EncounterNumber, &e.FHIREncounterID,
		&e.Status, &e.ClassCode, &e.Priority, &e.StartDate, &e.EndDate, &e.DurationMinutes,
		&e.ReasonCode, &e.ReasonText, &e.Diagnosis, &e.ChiefComplaint, &e.VitalSigns, &e.PhysicalExamination,
		&e.Location, &e.ServiceType, &e.InsuranceStatus, &e.CopayAmount, &e.TotalAmount, &e.PaymentStatus,
		&e.FollowUpRequired, &e.FollowUpDate, &e.FollowUpNotes, &e.ABDMConsent, &e.ABDMConsentDate,
		&e.Notes, &e.Tags, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]*Encounter, error) {
	var out []*Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// The helpers below keep NULL out of JSONB columns.

func reasons(v []ReasonCode) []ReasonCode {
	if v == nil {
		return []ReasonCode{}
	}
	return v
}

func diagnoses(v []Diagnosis) []Diagnosis {
	if v == nil {
		return []Diagnosis{}
	}
	return v
}

func vitals(v map[string]interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}

func tags(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
