// Package auth provides API token management for the Curate service.
//
// # Overview
//
// This package implements token-based authentication for the HTTP API:
// cryptographically random tokens with prefix display, SHA256-hashed
// storage, scope-based permissions, expiry, and revocation. Workspace
// authorization itself (who can see or change a project) lives in
// pkg/access and pkg/cascade; this package only answers "who is calling
// and what may they ask for".
//
// # Token Format
//
// Tokens are generated once and shown once:
//
//	generator := auth.NewTokenGenerator()
//	tokenString, hash, prefix, err := generator.GenerateToken()
//	// tokenString: curate_[base64url(32 random bytes)] (give to user)
//	// hash: SHA256(tokenString) (stored in database)
//	// prefix: first 8 characters, kept for display in token listings
//
// Only the hash and an 8-character display prefix are persisted, so a
// database leak does not leak usable credentials.
//
// # Scopes
//
//	ScopeWorkspaceRead  - Read projects, folders, datasets, templates
//	ScopeWorkspaceWrite - Create and modify workspace resources
//	ScopeWorkspaceAdmin - Manage memberships and permissions
//	ScopeTokenCreate    - Create API tokens
//	ScopeTokenRevoke    - Revoke API tokens
//	ScopeAll            - Full access
//
// # Token Lifecycle
//
//	manager := auth.NewTokenManager(db)
//
//	// Create (plaintext returned exactly once)
//	token, plaintext, err := manager.CreateToken(ctx, userID, "CI Pipeline", "",
//		[]auth.Scope{auth.ScopeWorkspaceRead}, &expiresAt)
//
//	// Validate on each request (results cached briefly)
//	token, err := manager.ValidateToken(ctx, plaintext)
//
//	// Revoke
//	err := manager.RevokeToken(ctx, token.ID, actorID, "rotated")
//
//	// Periodic cleanup of expired tokens
//	deleted, err := manager.CleanupExpiredTokens(ctx)
//
// Validation results are held in a small expiring LRU cache, so the
// hot path usually avoids a database round trip. Revocation purges the
// cache and therefore takes effect immediately.
//
// # Authorization Context
//
// AuthContext carries the authenticated user and token through a
// request via pkg/contextkeys:
//
//	authCtx := middleware.GetAuthContext(r)
//	if authCtx == nil || !authCtx.HasScope(auth.ScopeWorkspaceWrite) {
//		// reject
//	}
//
// # Related Packages
//
//   - pkg/identity: user accounts and invitations
//   - pkg/access: workspace-level permission resolution
//   - pkg/middleware: HTTP authentication middleware
package auth
