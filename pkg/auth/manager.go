package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/curateio/curate/pkg/workspace"
)

const (
	// validationCacheSize bounds the number of hot tokens kept in memory
	validationCacheSize = 1024
	// validationCacheTTL bounds how long a revocation can lag behind
	validationCacheTTL = 30 * time.Second
)

// TokenManager manages API token lifecycle
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
	cache     *lru.LRU[string, *APIToken]
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
		cache:     lru.NewLRU[string, *APIToken](validationCacheSize, nil, validationCacheTTL),
	}
}

// CreateToken creates a new API token. The plaintext token is returned once
// and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name, description string, scopes []Scope, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		Description: description,
		Scopes:      scopes,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}

	var expires interface{}
	if expiresAt != nil {
		expires = *expiresAt
	}
	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, description, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = tm.db.QueryRowContext(ctx, query,
		userID, tokenHash, tokenPrefix, name, description, joinScopes(scopes), expires, apiToken.CreatedAt,
	).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a token and returns its record. Results are
// cached briefly, so a revocation may take up to the cache TTL to apply.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	tokenHash := tm.generator.HashToken(token)
	now := time.Now().UTC()

	if cached, ok := tm.cache.Get(tokenHash); ok {
		if !cached.Valid(now) {
			return nil, fmt.Errorf("token is expired or revoked")
		}
		return cached, nil
	}

	apiToken, err := tm.lookupByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if !apiToken.Valid(now) {
		return nil, fmt.Errorf("token is expired or revoked")
	}

	// Best effort; validation must not fail on a busy database
	_, _ = tm.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, apiToken.ID)

	tm.cache.Add(tokenHash, apiToken)
	return apiToken, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error {
	result, err := tm.db.ExecContext(ctx, `
		UPDATE api_tokens
		SET revoked_at = $1, revoked_by = $2, revoke_reason = $3
		WHERE id = $4 AND revoked_at IS NULL
	`, time.Now().UTC(), revokedBy, reason, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("token %d: %w", tokenID, workspace.ErrNotFound)
	}

	// Drop stale validation entries rather than hunting for the one hash
	tm.cache.Purge()
	return nil
}

// ListUserTokens lists all tokens for a user, newest first
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, name, description, scopes,
		       expires_at, last_used_at, created_at, revoked_at, revoked_by, revoke_reason
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := tm.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// CleanupExpiredTokens removes tokens past their expiry
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := tm.db.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup tokens: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (tm *TokenManager) lookupByHash(ctx context.Context, tokenHash string) (*APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, name, description, scopes,
		       expires_at, last_used_at, created_at, revoked_at, revoked_by, revoke_reason
		FROM api_tokens
		WHERE token_hash = $1
	`
	t, err := scanToken(tm.db.QueryRowContext(ctx, query, tokenHash))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("token: %w", workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	return t, nil
}

func scanToken(row interface{ Scan(...interface{}) error }) (*APIToken, error) {
	var t APIToken
	var description, scopes, revokeReason sql.NullString
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	var revokedBy sql.NullInt64

	err := row.Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name, &description, &scopes,
		&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt, &revokedBy, &revokeReason,
	)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Scopes = splitScopes(scopes.String)
	t.RevokeReason = revokeReason.String
	if expiresAt.Valid {
		v := expiresAt.Time
		t.ExpiresAt = &v
	}
	if lastUsedAt.Valid {
		v := lastUsedAt.Time
		t.LastUsedAt = &v
	}
	if revokedAt.Valid {
		v := revokedAt.Time
		t.RevokedAt = &v
	}
	if revokedBy.Valid {
		v := revokedBy.Int64
		t.RevokedBy = &v
	}
	return &t, nil
}

func joinScopes(scopes []Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitScopes(joined string) []Scope {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	scopes := make([]Scope, len(parts))
	for i, p := range parts {
		scopes[i] = Scope(p)
	}
	return scopes
}
