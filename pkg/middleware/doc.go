// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Overview
//
// This package implements request processing middleware: Bearer token
// authentication, scope enforcement, and in-memory rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: token-based authentication
//
//	authMw := middleware.NewAuthMiddleware(tokenManager, userStore, false)
//	router.Use(authMw.Handler)
//	// Extracts Bearer token, validates, loads the owning user,
//	// and adds an AuthContext to the request context
//
// RequireScope: per-route scope enforcement (after AuthMiddleware)
//
//	router.Handle("/projects", middleware.RequireScope(auth.ScopeWorkspaceWrite)(handler))
//
// RateLimitMiddleware: in-memory token bucket rate limiting
//
//	rateMw := middleware.NewRateLimitMiddleware()
//	router.Use(rateMw.Handler)
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst, keyed by client IP
// Per-User: 1000 req/min, 50 burst
// Per-Service (full-access tokens): 5000 req/min, 100 burst
//
// # Related Packages
//
//   - pkg/auth: token validation
//   - pkg/contextkeys: request context keys
package middleware
