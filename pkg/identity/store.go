package identity

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/curateio/curate/pkg/workspace"
)

// DefaultInvitationTTL is how long a pending user has to accept an invitation.
const DefaultInvitationTTL = 14 * 24 * time.Hour

// Store provides user and invitation persistence. Like the workspace store
// it runs on either a *sql.DB or a *sql.Tx so user resolution can happen
// inside a cascade transaction.
type Store struct {
	db *sql.DB
	q  workspace.DBTX

	// InvitationTTL controls the expiry of invitations sent to new
	// pending users. Zero means DefaultInvitationTTL.
	InvitationTTL time.Duration
}

// NewStore creates a new identity store backed by the database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store that runs all statements on the given transaction
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx, InvitationTTL: s.InvitationTTL}
}

const userColumns = `id, username, email, display_name, is_pending, is_global_template_admin, created_at, updated_at`

func (s *Store) scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.IsPending, &u.IsGlobalTemplateAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (username, email, display_name, is_pending, is_global_template_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.q.QueryRowContext(ctx, query, u.Username, u.Email, u.DisplayName, u.IsPending, u.IsGlobalTemplateAdmin, now, now).Scan(&u.ID)
	if err != nil {
		if workspace.IsUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, workspace.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := s.scanUser(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	u, err := s.scanUser(s.q.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// ResolveUser resolves a user reference to an existing user. Unknown
// references fail; use ResolveOrCreateUser when an email reference should
// create a pending account.
func (s *Store) ResolveUser(ctx context.Context, ref workspace.UserRef) (*User, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.ID != 0 {
		return s.GetUser(ctx, ref.ID)
	}
	return s.GetUserByEmail(ctx, ref.Email)
}

// ResolveOrCreateUser resolves a user reference, creating a pending user and
// invitation when an email reference is unknown. ID references never create
// anything and fail with a validation error if the user does not exist, so a
// typo in a numeric ID cannot materialize an account.
func (s *Store) ResolveOrCreateUser(ctx context.Context, ref workspace.UserRef) (*User, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	if ref.ID != 0 {
		u, err := s.GetUser(ctx, ref.ID)
		if err != nil {
			return nil, workspace.NewValidationError("unknown user ID %d", ref.ID)
		}
		return u, nil
	}

	email := strings.TrimSpace(strings.ToLower(ref.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, workspace.NewValidationError("invalid email %q", ref.Email)
	}

	u, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}

	u = &User{
		Username:  email,
		Email:     email,
		IsPending: true,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.CreateInvitation(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateInvitation creates a new invitation for the user
func (s *Store) CreateInvitation(ctx context.Context, userID int64) (*Invitation, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	ttl := s.InvitationTTL
	if ttl == 0 {
		ttl = DefaultInvitationTTL
	}

	now := time.Now().UTC()
	inv := &Invitation{
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	query := `
		INSERT INTO invitations (user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err = s.q.QueryRowContext(ctx, query, inv.UserID, inv.Token, inv.ExpiresAt, inv.CreatedAt).Scan(&inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv, nil
}

// GetInvitation retrieves an invitation by token
func (s *Store) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, user_id, token, expires_at, accepted_at, created_at
		FROM invitations
		WHERE token = $1
	`
	var inv Invitation
	var acceptedAt sql.NullTime
	err := s.q.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.UserID, &inv.Token, &inv.ExpiresAt, &acceptedAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation: %w", workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if acceptedAt.Valid {
		at := acceptedAt.Time
		inv.AcceptedAt = &at
	}
	return &inv, nil
}

// AcceptInvitation marks an invitation as accepted and activates the
// pending user. Expired or already-accepted invitations fail validation.
func (s *Store) AcceptInvitation(ctx context.Context, token string, displayName string) (*User, error) {
	inv, err := s.GetInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, workspace.NewValidationError("invitation already accepted")
	}
	if inv.Expired(time.Now().UTC()) {
		return nil, workspace.NewValidationError("invitation expired")
	}

	now := time.Now().UTC()
	_, err = s.q.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = $1 WHERE id = $2`, now, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE users SET is_pending = FALSE, display_name = $1, updated_at = $2 WHERE id = $3`,
		displayName, now, inv.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	return s.GetUser(ctx, inv.UserID)
}

// CleanupExpiredInvitations removes expired unaccepted invitations and
// returns how many were deleted. Pending users keep their memberships; a
// fresh invitation can be issued later.
func (s *Store) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM invitations WHERE expires_at < $1 AND accepted_at IS NULL`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// generateToken generates a random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
