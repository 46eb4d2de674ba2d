package identity

import "time"

// User is an account known to the workspace. Pending users are created when
// someone grants access to an email address that has no account yet; they
// hold real memberships and permissions but cannot sign in until they accept
// their invitation.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsPending   bool      `json:"is_pending"`
	// IsGlobalTemplateAdmin lets the user manage metadata templates that
	// are not assigned to any project or folder.
	IsGlobalTemplateAdmin bool      `json:"is_global_template_admin"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Invitation is a single-use token linking a pending user to the email it
// was sent to. Expired unaccepted invitations are purged by a cleanup job.
type Invitation struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the invitation can no longer be accepted
func (i *Invitation) Expired(now time.Time) bool {
	return i.AcceptedAt == nil && now.After(i.ExpiresAt)
}
