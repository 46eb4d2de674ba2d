package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/auth"
	"github.com/curateio/curate/pkg/cascade"
	"github.com/curateio/curate/pkg/datasets"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/identity"
	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/middleware"
	"github.com/curateio/curate/pkg/workspace"
)

// Server represents our API server
type Server struct {
	router   *mux.Router
	db       *sql.DB
	store    *workspace.Store
	users    *identity.Store
	locks    *locks.Manager
	resolver *access.Resolver
	engine   *cascade.Engine
	datasets *datasets.Service
	tokens   *auth.TokenManager
	log      *logrus.Logger
}

// NewServer creates a new API server wired over the given database
func NewServer(db *sql.DB, maxLockTime time.Duration, log *logrus.Logger) *Server {
	store := workspace.NewStore(db)
	users := identity.NewStore(db)
	lockManager := locks.NewManager(db, maxLockTime)
	resolver := access.NewResolver(store, users)

	s := &Server{
		router:   mux.NewRouter(),
		db:       db,
		store:    store,
		users:    users,
		locks:    lockManager,
		resolver: resolver,
		engine:   cascade.NewEngine(store, users, lockManager, log),
		datasets: datasets.NewService(store, lockManager, resolver, log),
		tokens:   auth.NewTokenManager(db),
		log:      log,
	}

	s.setupRoutes()
	return s
}

// Resolver exposes the server's access resolver so callers can adjust
// denial behavior before serving
func (s *Server) Resolver() *access.Resolver {
	return s.resolver
}

// TokenManager exposes the server's token manager for middleware wiring
func (s *Server) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Users exposes the server's identity store for middleware wiring
func (s *Server) Users() *identity.Store {
	return s.users
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	projectHandlers := NewProjectHandlers(s.engine, s.store, s.resolver)
	projectHandlers.RegisterRoutes(s.router)

	folderHandlers := NewFolderHandlers(s.engine, s.store, s.resolver)
	folderHandlers.RegisterRoutes(s.router)

	datasetHandlers := NewDatasetHandlers(s.datasets)
	datasetHandlers.RegisterRoutes(s.router)

	templateHandlers := NewTemplateHandlers(s.store, s.resolver, s.locks)
	templateHandlers.RegisterRoutes(s.router)

	lockHandlers := NewLockHandlers(s.locks, s.resolver)
	lockHandlers.RegisterRoutes(s.router)

	authHandlers := NewAuthHandlers(s.tokens, s.users)
	authHandlers.RegisterRoutes(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// actorID extracts the authenticated user from the request. Writes a 401
// and returns false when the request carries no authenticated user.
func actorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return 0, false
	}
	return authCtx.User.ID, true
}

// parsePathUUID parses a UUID path variable, writing a 400 on failure
func parsePathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	return httputil.ParsePathUUIDOrError(w, r, key)
}
