package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinified/clinified/internal/platform/db"
)

const uniqueViolation = "23505"

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

const userCols = `id, tenant_id, email, phone, username, hashed_password, is_active, is_verified,
	first_name, last_name, middle_name, roles, specialization, license_number, registration_number,
	abha_id, hpr_id, address, city, state, pincode, country, preferences, last_login,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (
			id, tenant_id, email, phone, username, hashed_password, is_active, is_verified,
			first_name, last_name, middle_name, roles, specialization, license_number, registration_number,
			abha_id, hpr_id, address, city, state, pincode, country, preferences
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23
		) RETURNING created_at, updated_at`,
		u.ID, u.TenantID, u.Email, u.Phone, u.Username, u.PasswordHash, u.IsActive, u.IsVerified,
		u.FirstName, u.LastName, u.MiddleName, u.Roles, u.Specialization, u.LicenseNumber, u.RegistrationNumber,
		u.AbhaID, u.HPRID, u.Address, u.City, u.State, u.Pincode, u.Country, prefs(u.Preferences),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// GetByEmail is not tenant scoped: email addresses are unique system wide.
func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET
			email=$3, phone=$4, username=$5, hashed_password=$6, is_active=$7, is_verified=$8,
			first_name=$9, last_name=$10, middle_name=$11, roles=$12, specialization=$13,
			license_number=$14, registration_number=$15, abha_id=$16, hpr_id=$17,
			address=$18, city=$19, state=$20, pincode=$21, country=$22, preferences=$23,
			updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2`,
		u.TenantID, u.ID,
		u.Email, u.Phone, u.Username, u.PasswordHash, u.IsActive, u.IsVerified,
		u.FirstName, u.LastName, u.MiddleName, u.Roles, u.Specialization,
		u.LicenseNumber, u.RegistrationNumber, u.AbhaID, u.HPRID,
		u.Address, u.City, u.State, u.Pincode, u.Country, prefs(u.Preferences),
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List filters on role when it is non-empty.
func (r *repoPG) List(ctx context.Context, tenantID uuid.UUID, role string, limit, offset int) ([]*User, int, error) {
	const where = ` WHERE tenant_id = $1 AND ($2 = '' OR roles ? $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, tenantID, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users`+where+` ORDER BY last_name, first_name LIMIT $3 OFFSET $4`,
		tenantID, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanInto(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	u, err := scanInto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanInto(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.Phone, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsVerified,
		&u.FirstName, &u.LastName, &u.MiddleName, &u.Roles, &u.Specialization, &u.LicenseNumber, &u.RegistrationNumber,
		&u.AbhaID, &u.HPRID, &u.Address, &u.City, &u.State, &u.Pincode, &u.Country, &u.Preferences, &u.LastLogin,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func prefs(v map[string]interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}
