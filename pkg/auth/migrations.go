package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// RunMigrations creates the api_tokens table. Runs after the identity
// migrations, which own the users table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			token_prefix VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			scopes TEXT,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			revoked_at TIMESTAMP,
			revoked_by BIGINT,
			revoke_reason TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_api_tokens_user_id ON api_tokens(user_id);
		CREATE INDEX IF NOT EXISTS idx_api_tokens_token_hash ON api_tokens(token_hash)
	`)
	if err != nil {
		return fmt.Errorf("failed to create api_tokens table: %w", err)
	}
	return nil
}
