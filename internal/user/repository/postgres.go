package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"resqride/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, email_verified, role, password_hash,
	phone, country_code, provider_subject, avatar_url, deleted, online, socket_connected,
	approval_status, rating, total_rides, total_earnings, loyalty_points,
	permissions, super_admin, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmailAndRole returns the non-deleted user with the given email and role, or nil.
func (r *PostgresRepository) GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND role = $2 AND NOT deleted`,
		email, string(role))
	return scanUser(row)
}

// GetByProviderSubjectOrEmail returns the non-deleted user matched by provider
// subject OR email, or nil. Subject match takes precedence via ordering.
func (r *PostgresRepository) GetByProviderSubjectOrEmail(ctx context.Context, subject, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE NOT deleted AND ((provider_subject = $1 AND $1 <> '') OR (email = $2 AND $2 <> ''))
		ORDER BY (provider_subject = $1 AND $1 <> '') DESC
		LIMIT 1`,
		subject, email)
	return scanUser(row)
}

// ExistsByEmailOrPhone reports whether a non-deleted user exists with the
// given email or the given (phone, country code) pair.
func (r *PostgresRepository) ExistsByEmailOrPhone(ctx context.Context, email, phone, countryCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE NOT deleted AND (email = $1 OR (phone = $2 AND country_code = $3 AND $2 <> ''))
		)`, email, phone, countryCode).Scan(&exists)
	return exists, err
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	perms, err := marshalPermissions(u.Permissions)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.EmailVerified, string(u.Role), u.PasswordHash,
		u.Phone, u.CountryCode, u.ProviderSubject, u.AvatarURL, u.Deleted, u.Online, u.SocketConnected,
		string(u.ApprovalStatus), u.Rating, u.TotalRides, u.TotalEarnings, u.LoyaltyPoints,
		perms, u.SuperAdmin, u.CreatedAt, u.UpdatedAt)
	return err
}

// Update persists all mutable user fields by id.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	perms, err := marshalPermissions(u.Permissions)
	if err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, email = $4, email_verified = $5,
			role = $6, password_hash = $7, phone = $8, country_code = $9,
			provider_subject = $10, avatar_url = $11, deleted = $12,
			online = $13, socket_connected = $14, approval_status = $15,
			rating = $16, total_rides = $17, total_earnings = $18,
			loyalty_points = $19, permissions = $20, super_admin = $21,
			updated_at = $22
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Email, u.EmailVerified,
		string(u.Role), u.PasswordHash, u.Phone, u.CountryCode,
		u.ProviderSubject, u.AvatarURL, u.Deleted,
		u.Online, u.SocketConnected, string(u.ApprovalStatus),
		u.Rating, u.TotalRides, u.TotalEarnings,
		u.LoyaltyPoints, perms, u.SuperAdmin, u.UpdatedAt)
	return err
}

// SetPresence updates the online/socket presence flags.
func (r *PostgresRepository) SetPresence(ctx context.Context, id string, online, socketConnected bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET online = $2, socket_connected = $3, updated_at = $4 WHERE id = $1`,
		id, online, socketConnected, time.Now().UTC())
	return err
}

func marshalPermissions(perms []domain.Permission) ([]byte, error) {
	if len(perms) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(perms)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role, approval string
	var perms []byte
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.EmailVerified, &role, &u.PasswordHash,
		&u.Phone, &u.CountryCode, &u.ProviderSubject, &u.AvatarURL, &u.Deleted, &u.Online, &u.SocketConnected,
		&approval, &u.Rating, &u.TotalRides, &u.TotalEarnings, &u.LoyaltyPoints,
		&perms, &u.SuperAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.ApprovalStatus = domain.ApprovalStatus(approval)
	if len(perms) > 0 {
		_ = json.Unmarshal(perms, &u.Permissions)
	}
	return &u, nil
}
