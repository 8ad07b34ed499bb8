package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

//go:embed schema.sql
var schema string

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" also needs it
	// so every query sees the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// ApplySchema creates all tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() time.Time {
	return s.now().UTC()
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64, prefix ...any) []any {
	args := make([]any, 0, len(prefix)+len(ids))
	args = append(args, prefix...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// ==== UserStore implementation ====

// CreateUser inserts a user. Accounts are owned by another subsystem;
// this is used by seeding and tests.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	query := `
		INSERT INTO users (email, fullname, password_hash, is_staff, is_superuser, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		u.Email, u.Fullname, u.PasswordHash, u.IsStaff, u.IsSuperuser, u.IsActive, s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	// read back regardless of is_active so inactive accounts can be seeded
	query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

const userColumns = `id, email, fullname, password_hash, is_staff, is_superuser, is_active, created_at`

func scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Fullname,
		&user.PasswordHash,
		&user.IsStaff,
		&user.IsSuperuser,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, notFound("user", err)
	}
	return &user, nil
}

// GetUserByID retrieves an active user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND is_active = 1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves an active user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND is_active = 1`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// ==== BrandStore implementation ====

// CreateBrand inserts a brand for the user. Used by seeding and tests.
func (s *SQLiteStore) CreateBrand(ctx context.Context, userID int64, name string) (*store.Brand, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO brands (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("insert brand: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &store.Brand{ID: id, UserID: userID, Name: name}, nil
}

// CreateSubscription records a subscription period for the brand.
func (s *SQLiteStore) CreateSubscription(ctx context.Context, brandID int64, start, end time.Time, active bool) (int64, error) {
	query := `
		INSERT INTO subscriptions (brand_id, is_active, start_date, end_date)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, brandID, active, start.UTC(), end.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	return result.LastInsertId()
}

// SetSubscriptionEnd moves the end of a subscription period.
func (s *SQLiteStore) SetSubscriptionEnd(ctx context.Context, id int64, end time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET end_date = ? WHERE id = ?`, end.UTC(), id)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// Block records that initiator blocked the other brand.
func (s *SQLiteStore) Block(ctx context.Context, initiatorID, blockedID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist (initiator_id, blocked_id) VALUES (?, ?)`, initiatorID, blockedID)
	if err != nil {
		return fmt.Errorf("insert blacklist: %w", err)
	}
	return nil
}

// CreateCoop records a cooperation between two brands bound to a room.
func (s *SQLiteStore) CreateCoop(ctx context.Context, initiatorID, targetID, roomID int64, isMatch bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (initiator_id, target_id, is_match, room_id) VALUES (?, ?, ?, ?)`,
		initiatorID, targetID, isMatch, roomID)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetBrandByUserID returns the brand owned by the user.
func (s *SQLiteStore) GetBrandByUserID(ctx context.Context, userID int64) (*store.Brand, error) {
	var brand store.Brand
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, logo FROM brands WHERE user_id = ?`, userID,
	).Scan(&brand.ID, &brand.UserID, &brand.Name, &brand.Logo)
	if err != nil {
		return nil, notFound("brand", err)
	}
	return &brand, nil
}

// IsSubscriptionActive reports whether the brand has an active subscription at now.
func (s *SQLiteStore) IsSubscriptionActive(ctx context.Context, brandID int64, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE brand_id = ? AND is_active = 1 AND start_date <= ? AND end_date > ?
		)
	`
	var active bool
	utc := now.UTC()
	if err := s.db.QueryRowContext(ctx, query, brandID, utc, utc).Scan(&active); err != nil {
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return active, nil
}

// IsBlocked reports whether either brand has blocked the other.
func (s *SQLiteStore) IsBlocked(ctx context.Context, brandID, otherBrandID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blacklist
			WHERE (initiator_id = ? AND blocked_id = ?) OR (initiator_id = ? AND blocked_id = ?)
		)
	`
	var blocked bool
	err := s.db.QueryRowContext(ctx, query, brandID, otherBrandID, otherBrandID, brandID).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("query blacklist: %w", err)
	}
	return blocked, nil
}

// CoopInitiator returns the user id of the brand that opened an instant room.
func (s *SQLiteStore) CoopInitiator(ctx context.Context, roomID int64) (int64, error) {
	query := `
		SELECT b.user_id
		FROM matches m
		JOIN brands b ON b.id = m.initiator_id
		WHERE m.room_id = ?
	`
	var userID int64
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&userID); err != nil {
		return 0, notFound("coop", err)
	}
	return userID, nil
}
