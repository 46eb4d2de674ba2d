package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/auth"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/identity"
)

// AuthHandlers handles API token and invitation HTTP requests
type AuthHandlers struct {
	tokens *auth.TokenManager
	users  *identity.Store
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(tokens *auth.TokenManager, users *identity.Store) *AuthHandlers {
	return &AuthHandlers{tokens: tokens, users: users}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/tokens", h.createToken).Methods("POST")
	router.HandleFunc("/api/v1/auth/tokens", h.listTokens).Methods("GET")
	router.HandleFunc("/api/v1/auth/tokens/{id}", h.revokeToken).Methods("DELETE")

	// Invitation acceptance is the one unauthenticated route: the caller
	// proves identity with the invitation token itself.
	router.HandleFunc("/api/v1/auth/invitations/accept", h.acceptInvitation).Methods("POST")
}

// createToken handles POST /api/v1/auth/tokens
func (h *AuthHandlers) createToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Scopes      []auth.Scope `json:"scopes"`
		ExpiresAt   *time.Time   `json:"expires_at"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	apiToken, token, err := h.tokens.CreateToken(r.Context(), actor, req.Name, req.Description, req.Scopes, req.ExpiresAt)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	// The plaintext token is returned exactly once
	response := struct {
		ID          int64        `json:"id"`
		Token       string       `json:"token"`
		TokenPrefix string       `json:"token_prefix"`
		Name        string       `json:"name"`
		Scopes      []auth.Scope `json:"scopes"`
		ExpiresAt   *time.Time   `json:"expires_at"`
		CreatedAt   time.Time    `json:"created_at"`
	}{
		ID:          apiToken.ID,
		Token:       token,
		TokenPrefix: apiToken.TokenPrefix,
		Name:        apiToken.Name,
		Scopes:      apiToken.Scopes,
		ExpiresAt:   apiToken.ExpiresAt,
		CreatedAt:   apiToken.CreatedAt,
	}

	httputil.WriteJSON(w, http.StatusCreated, response)
}

// listTokens handles GET /api/v1/auth/tokens
func (h *AuthHandlers) listTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	tokens, err := h.tokens.ListUserTokens(r.Context(), actor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, tokens)
}

// revokeToken handles DELETE /api/v1/auth/tokens/{id}
func (h *AuthHandlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Only the owner may revoke; other users' token IDs read as not found
	owned, err := h.tokens.ListUserTokens(r.Context(), actor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	found := false
	for _, t := range owned {
		if t.ID == tokenID {
			found = true
			break
		}
	}
	if !found {
		httputil.WriteNotFoundError(w, "token not found")
		return
	}

	reason := httputil.ParseQueryString(r, "reason", "revoked by owner")
	if err := h.tokens.RevokeToken(r.Context(), tokenID, actor, reason); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// acceptInvitation handles POST /api/v1/auth/invitations/accept
func (h *AuthHandlers) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		DisplayName string `json:"display_name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	user, err := h.users.AcceptInvitation(r.Context(), req.Token, req.DisplayName)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}
