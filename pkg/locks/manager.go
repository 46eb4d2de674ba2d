// Package locks implements the advisory lock protocol shared by every
// lockable workspace resource. A lock marks a resource as being edited by
// one user; other users can still read it but mutations are rejected until
// the lock is released or goes stale.
//
// Locks live in the locked, locked_by, and locked_at columns of the
// resource's own row, so acquisition is a single conditional UPDATE and
// needs no separate lock table. A lock older than the configured maximum
// hold time is stale: anyone may take it over, silently, without the
// previous holder being notified. Holders keep a lock alive by re-acquiring
// it, which refreshes locked_at.
package locks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curateio/curate/pkg/workspace"
)

// DefaultMaxLockTime is how long a lock stays valid without a refresh.
const DefaultMaxLockTime = 30 * time.Minute

// ErrLocked is returned when a resource is locked by another user and the
// lock has not gone stale. Lock contention is a forbidden mutation, not a
// conflict, so it sits inside the workspace.ErrForbidden class.
var ErrLocked = fmt.Errorf("%w: resource is locked by another user", workspace.ErrForbidden)

// Status describes the current lock state of a resource
type Status struct {
	Locked   bool       `json:"locked"`
	LockedBy *int64     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	Stale    bool       `json:"stale"`
}

// Manager acquires and releases advisory locks on workspace resources
type Manager struct {
	q           workspace.DBTX
	maxLockTime time.Duration
}

// NewManager creates a lock manager. A zero maxLockTime falls back to
// DefaultMaxLockTime.
func NewManager(db *sql.DB, maxLockTime time.Duration) *Manager {
	if maxLockTime <= 0 {
		maxLockTime = DefaultMaxLockTime
	}
	return &Manager{q: db, maxLockTime: maxLockTime}
}

// WithTx returns a manager that runs all statements on the given transaction
func (m *Manager) WithTx(tx *sql.Tx) *Manager {
	return &Manager{q: tx, maxLockTime: m.maxLockTime}
}

// MaxLockTime returns the configured maximum lock hold time
func (m *Manager) MaxLockTime() time.Duration {
	return m.maxLockTime
}

// Acquire locks the resource for the user. Succeeds when the resource is
// unlocked, already held by the same user (refreshing the hold), or held by
// a stale lock. Returns ErrLocked when another user holds a live lock.
func (m *Manager) Acquire(ctx context.Context, kind workspace.Kind, id uuid.UUID, userID int64) error {
	now := time.Now().UTC()
	cutoff := now.Add(-m.maxLockTime)

	query := fmt.Sprintf(`
		UPDATE %s
		SET locked = TRUE, locked_by = $1, locked_at = $2
		WHERE id = $3 AND (locked = FALSE OR locked_by = $1 OR locked_at < $4)
	`, kind.TableName())

	result, err := m.q.ExecContext(ctx, query, userID, now, id, cutoff)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", kind, err)
	}
	if n == 0 {
		return m.contendedError(ctx, kind, id)
	}
	return nil
}

// Release unlocks the resource. Releasing an unlocked resource is a no-op,
// and a stale lock may be released by anyone. Returns ErrLocked when
// another user holds a live lock.
func (m *Manager) Release(ctx context.Context, kind workspace.Kind, id uuid.UUID, userID int64) error {
	cutoff := time.Now().UTC().Add(-m.maxLockTime)

	query := fmt.Sprintf(`
		UPDATE %s
		SET locked = FALSE, locked_by = NULL, locked_at = NULL
		WHERE id = $1 AND (locked = FALSE OR locked_by = $2 OR locked_at < $3)
	`, kind.TableName())

	result, err := m.q.ExecContext(ctx, query, id, userID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", kind, err)
	}
	if n == 0 {
		return m.contendedError(ctx, kind, id)
	}
	return nil
}

// ForceRelease unlocks the resource regardless of who holds the lock.
// Callers must verify the actor administers the resource first.
func (m *Manager) ForceRelease(ctx context.Context, kind workspace.Kind, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET locked = FALSE, locked_by = NULL, locked_at = NULL
		WHERE id = $1
	`, kind.TableName())

	result, err := m.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to force unlock %s: %w", kind, err)
	}
	return requireFound(result, kind)
}

// Status reports the lock state of the resource
func (m *Manager) Status(ctx context.Context, kind workspace.Kind, id uuid.UUID) (*Status, error) {
	rec, err := m.lockRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return &Status{
		Locked:   rec.Locked,
		LockedBy: rec.LockedBy,
		LockedAt: rec.LockedAt,
		Stale:    rec.Expired(m.maxLockTime, time.Now().UTC()),
	}, nil
}

// CheckMutable verifies the user may mutate the resource right now: the
// resource is unlocked, held by the user, or held by a stale lock. Returns
// ErrLocked otherwise. Run inside the mutation's transaction.
func (m *Manager) CheckMutable(ctx context.Context, kind workspace.Kind, id uuid.UUID, userID int64) error {
	rec, err := m.lockRecord(ctx, kind, id)
	if err != nil {
		return err
	}
	if !rec.Locked || rec.HeldBy(userID) || rec.Expired(m.maxLockTime, time.Now().UTC()) {
		return nil
	}
	return fmt.Errorf("%s %s is held by user %d: %w", kind, id, *rec.LockedBy, ErrLocked)
}

// ReleaseAfterMutation drops the user's lock after a successful mutation.
// When keepLock is true the lock is refreshed instead, which supports
// long-running edit sessions that save intermediate state.
func (m *Manager) ReleaseAfterMutation(ctx context.Context, kind workspace.Kind, id uuid.UUID, userID int64, keepLock bool) error {
	if keepLock {
		return m.Acquire(ctx, kind, id, userID)
	}
	return m.Release(ctx, kind, id, userID)
}

func (m *Manager) lockRecord(ctx context.Context, kind workspace.Kind, id uuid.UUID) (*workspace.LockRecord, error) {
	query := fmt.Sprintf(`SELECT locked, locked_by, locked_at FROM %s WHERE id = $1`, kind.TableName())

	var rec workspace.LockRecord
	var lockedBy sql.NullInt64
	var lockedAt sql.NullTime
	err := m.q.QueryRowContext(ctx, query, id).Scan(&rec.Locked, &lockedBy, &lockedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", kind, id, workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lock state of %s: %w", kind, err)
	}
	if lockedBy.Valid {
		v := lockedBy.Int64
		rec.LockedBy = &v
	}
	if lockedAt.Valid {
		v := lockedAt.Time
		rec.LockedAt = &v
	}
	return &rec, nil
}

// contendedError distinguishes a missing row from a live lock held by
// someone else after a conditional UPDATE matched nothing.
func (m *Manager) contendedError(ctx context.Context, kind workspace.Kind, id uuid.UUID) error {
	rec, err := m.lockRecord(ctx, kind, id)
	if err != nil {
		return err
	}
	holder := int64(0)
	if rec.LockedBy != nil {
		holder = *rec.LockedBy
	}
	return fmt.Errorf("%s %s is held by user %d: %w", kind, id, holder, ErrLocked)
}

func requireFound(result sql.Result, kind workspace.Kind) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", kind, workspace.ErrNotFound)
	}
	return nil
}
