// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, project)
//	httputil.WriteCreated(w, folder)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token expired")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//
// Domain error mapping (workspace sentinels and lock contention):
//
//	if err != nil {
//		httputil.WriteDomainError(w, err)
//		return
//	}
//	// ErrNotFound -> 404, ErrForbidden -> 403, ErrValidation -> 400,
//	// ErrConflict -> 409, locks.ErrLocked -> 423
//
// # Request Parsing
//
// JSON parsing:
//
//	var req CreateProjectRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	projectID, ok := httputil.ParsePathUUIDOrError(w, r, "id")
//	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
//
// Query parameters:
//
//	reason := httputil.ParseQueryString(r, "reason", "revoked by owner")
//
// # Validation
//
//	if !httputil.RequireNonEmpty(w, req.Name, "name") {
//		return
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.LoggingMiddleware(),
//		httputil.RecoveryMiddleware(),
//		httputil.RequestIDMiddleware(),
//		httputil.TimeoutMiddleware(30*time.Second),
//		httputil.MaxBytesMiddleware(10*1024*1024), // 10MB
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and authorization middleware
package httputil
