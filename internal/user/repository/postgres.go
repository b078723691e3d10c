package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	devicedomain "anomalyguard/backend/internal/device/domain"
	mfadomain "anomalyguard/backend/internal/mfa/domain"
	"anomalyguard/backend/internal/user/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectUser = `SELECT id, email, password_hash, name, company, created_at, updated_at FROM users`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	u, err := loadUser(ctx, r.db, selectUser+` WHERE id = $1`, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return u, nil
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := loadUser(ctx, r.db, selectUser+` WHERE email = $1`, domain.NormalizeEmail(email))
	if err != nil {
		return nil, unavailable(err)
	}
	return u, nil
}

// Create persists a new user without history. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, company, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, domain.NormalizeEmail(u.Email), u.PasswordHash, u.Name, u.Company, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return unavailable(err)
	}
	return nil
}

// Update locks the users row with SELECT ... FOR UPDATE, applies fn, and writes the
// changed children in the same transaction.
func (r *PostgresRepository) Update(ctx context.Context, userID string, fn func(u *domain.User) error) error {
	if uuid.Validate(userID) != nil {
		return ErrUserNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := loadUser(ctx, tx, selectUser+` WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		return unavailable(err)
	}
	if before == nil {
		return ErrUserNotFound
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return err
	}
	if err := writeChanges(ctx, tx, before, after); err != nil {
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func writeChanges(ctx context.Context, tx *sql.Tx, before, after *domain.User) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET name = $2, company = $3, password_hash = $4, updated_at = $5 WHERE id = $1`,
		after.ID, after.Name, after.Company, after.PasswordHash, after.UpdatedAt); err != nil {
		return err
	}

	for _, d := range after.TrustedDevices {
		if i := devicedomain.Find(before.TrustedDevices, d.Fingerprint); i >= 0 && before.TrustedDevices[i] == d {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trusted_devices (user_id, fingerprint, label, last_seen, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (user_id, fingerprint) DO UPDATE SET label = EXCLUDED.label, last_seen = EXCLUDED.last_seen`,
			after.ID, d.Fingerprint, d.Label, d.LastSeen, d.CreatedAt); err != nil {
			return err
		}
	}

	for i, rec := range after.LoginHistory {
		if i < len(before.LoginHistory) && sameRecord(before.LoginHistory[i], rec) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO login_records (user_id, seq, ip, country, city, device, at, risk_score, status, reasons, decision)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (user_id, seq) DO UPDATE SET status = EXCLUDED.status, risk_score = EXCLUDED.risk_score,
			   reasons = EXCLUDED.reasons, decision = EXCLUDED.decision`,
			after.ID, i, rec.IP, rec.Country, rec.City, rec.Device, rec.Time, rec.RiskScore,
			string(rec.Status), strings.Join(rec.Reasons, ","), rec.Decision); err != nil {
			return err
		}
	}

	if after.PendingChallenge == nil {
		if before.PendingChallenge != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM pending_challenges WHERE user_id = $1`, after.ID); err != nil {
				return err
			}
		}
		return nil
	}
	c := after.PendingChallenge
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pending_challenges (user_id, code_hash, fingerprint, risk_score, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET code_hash = EXCLUDED.code_hash, fingerprint = EXCLUDED.fingerprint,
		   risk_score = EXCLUDED.risk_score, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		after.ID, c.CodeHash, c.Fingerprint, c.RiskScore, c.ExpiresAt, c.CreatedAt)
	return err
}

func sameRecord(a, b domain.LoginRecord) bool {
	return a.Status == b.Status && a.RiskScore == b.RiskScore && a.Decision == b.Decision &&
		strings.Join(a.Reasons, ",") == strings.Join(b.Reasons, ",")
}

// loadUser returns the user selected by query with its devices, history and challenge, or nil if no row matches.
func loadUser(ctx context.Context, q queryer, query string, arg string) (*domain.User, error) {
	u := &domain.User{}
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Company, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.TrustedDevices, err = loadDevices(ctx, q, u.ID); err != nil {
		return nil, err
	}
	if u.LoginHistory, err = loadHistory(ctx, q, u.ID); err != nil {
		return nil, err
	}
	if u.PendingChallenge, err = loadChallenge(ctx, q, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func loadDevices(ctx context.Context, q queryer, userID string) ([]devicedomain.TrustedDevice, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT fingerprint, label, last_seen, created_at FROM trusted_devices WHERE user_id = $1 ORDER BY created_at, fingerprint`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []devicedomain.TrustedDevice
	for rows.Next() {
		var d devicedomain.TrustedDevice
		if err := rows.Scan(&d.Fingerprint, &d.Label, &d.LastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func loadHistory(ctx context.Context, q queryer, userID string) ([]domain.LoginRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ip, country, city, device, at, risk_score, status, reasons, decision
		 FROM login_records WHERE user_id = $1 ORDER BY seq`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LoginRecord
	for rows.Next() {
		var (
			rec     domain.LoginRecord
			status  string
			reasons string
		)
		if err := rows.Scan(&rec.IP, &rec.Country, &rec.City, &rec.Device, &rec.Time, &rec.RiskScore,
			&status, &reasons, &rec.Decision); err != nil {
			return nil, err
		}
		rec.Status = domain.LoginStatus(status)
		if reasons != "" {
			rec.Reasons = strings.Split(reasons, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func loadChallenge(ctx context.Context, q queryer, userID string) (*mfadomain.PendingChallenge, error) {
	c := &mfadomain.PendingChallenge{}
	err := q.QueryRowContext(ctx,
		`SELECT code_hash, fingerprint, risk_score, expires_at, created_at FROM pending_challenges WHERE user_id = $1`,
		userID).Scan(&c.CodeHash, &c.Fingerprint, &c.RiskScore, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
