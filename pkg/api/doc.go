// Package api implements the HTTP surface of the workspace service.
//
// Server wires the domain services over a single database handle and
// exposes them under /api/v1. Handlers are grouped per resource and
// register themselves on the shared gorilla/mux router:
//
//   - ProjectHandlers: projects and project memberships
//   - FolderHandlers: folders and folder permissions
//   - DatasetHandlers: dataset drafts, publication, folder listings
//   - TemplateHandlers: metadata templates at global, project, and
//     folder scope
//   - LockHandlers: advisory locks on every lockable resource
//   - AuthHandlers: API tokens and invitation acceptance
//
// Handlers authorize through access.Resolver before touching anything;
// mutations then run through the cascade engine or dataset service,
// which enforce locks and admin guards transactionally. Domain errors
// map onto status codes via httputil.WriteDomainError, so a denied view
// reads as 404, a denied edit as 403, and lock contention as 423.
//
// Authentication is middleware's concern: requests arrive here with an
// auth.AuthContext already attached (see pkg/middleware). The only
// route that works without it is invitation acceptance, where the
// invitation token itself is the credential.
package api
