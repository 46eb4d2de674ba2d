package workspace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a lockable resource type
type Kind string

const (
	KindProject          Kind = "project"
	KindFolder           Kind = "folder"
	KindDataset          Kind = "dataset"
	KindMetadataTemplate Kind = "metadata_template"
)

// TableName returns the table that stores rows of this kind
func (k Kind) TableName() string {
	switch k {
	case KindProject:
		return "projects"
	case KindFolder:
		return "folders"
	case KindDataset:
		return "datasets"
	case KindMetadataTemplate:
		return "metadata_templates"
	}
	return ""
}

// LockRecord is the advisory lock state embedded in every lockable resource
type LockRecord struct {
	Locked   bool       `json:"locked"`
	LockedBy *int64     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
}

// HeldBy reports whether the lock is currently assigned to the given user
func (l LockRecord) HeldBy(userID int64) bool {
	return l.Locked && l.LockedBy != nil && *l.LockedBy == userID
}

// Expired reports whether the lock is strictly older than maxLockTime.
// A lock held for exactly maxLockTime is still live.
func (l LockRecord) Expired(maxLockTime time.Duration, now time.Time) bool {
	if !l.Locked || l.LockedAt == nil {
		return false
	}
	return now.Sub(*l.LockedAt) > maxLockTime
}

// Project is the top level of the workspace hierarchy
type Project struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	CreatedBy    *int64     `json:"created_by,omitempty"`
	MembersCount int        `json:"members_count"`
	Lock         LockRecord `json:"lock"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Folder groups datasets inside a project
type Folder struct {
	ID                 uuid.UUID  `json:"id"`
	ProjectID          uuid.UUID  `json:"project_id"`
	Name               string     `json:"name"`
	StorageRef         string     `json:"storage_ref,omitempty"`
	MetadataTemplateID *uuid.UUID `json:"metadata_template_id,omitempty"`
	MembersCount       int        `json:"members_count"`
	DatasetsCount      int        `json:"datasets_count"`
	CreatedBy          *int64     `json:"created_by,omitempty"`
	Lock               LockRecord `json:"lock"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProjectMembership links a user to a project with project-wide flags.
// Unique on (project, member).
type ProjectMembership struct {
	ID                      uuid.UUID `json:"id"`
	ProjectID               uuid.UUID `json:"project_id"`
	MemberID                int64     `json:"member_id"`
	IsProjectAdmin          bool      `json:"is_project_admin"`
	CanCreateFolders        bool      `json:"can_create_folders"`
	IsMetadataTemplateAdmin bool      `json:"is_metadata_template_admin"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Flags returns the membership's flag set
func (m *ProjectMembership) Flags() MembershipFlags {
	return MembershipFlags{
		IsProjectAdmin:          m.IsProjectAdmin,
		CanCreateFolders:        m.CanCreateFolders,
		IsMetadataTemplateAdmin: m.IsMetadataTemplateAdmin,
	}
}

// FolderPermission links a project membership to a folder with folder-level
// flags. Unique on (folder, project_membership); removed when the membership
// is removed.
type FolderPermission struct {
	ID                      uuid.UUID `json:"id"`
	FolderID                uuid.UUID `json:"folder_id"`
	ProjectMembershipID     uuid.UUID `json:"project_membership_id"`
	MemberID                int64     `json:"member_id"`
	IsFolderAdmin           bool      `json:"is_folder_admin"`
	IsMetadataTemplateAdmin bool      `json:"is_metadata_template_admin"`
	CanEdit                 bool      `json:"can_edit"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Flags returns the permission's flag set
func (p *FolderPermission) Flags() PermissionFlags {
	return PermissionFlags{
		IsFolderAdmin:           p.IsFolderAdmin,
		IsMetadataTemplateAdmin: p.IsMetadataTemplateAdmin,
		CanEdit:                 p.CanEdit,
	}
}

// Dataset is the leaf of the hierarchy. A dataset with no folder and no
// publication date is a private draft of its creator.
type Dataset struct {
	ID              uuid.UUID  `json:"id"`
	FolderID        *uuid.UUID `json:"folder_id,omitempty"`
	Name            string     `json:"name"`
	CreatedBy       int64      `json:"created_by"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Lock            LockRecord `json:"lock"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsPublished reports whether the dataset has been published into a folder
func (d *Dataset) IsPublished() bool {
	return d.PublicationDate != nil
}

// MetadataTemplate describes a metadata schema assigned globally, to a
// project, or to a folder. Field rendering and type validation are external
// concerns; the core only stores the raw field definitions.
type MetadataTemplate struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Fields         json.RawMessage `json:"fields,omitempty"`
	AssignedToKind *Kind           `json:"assigned_to_kind,omitempty"`
	AssignedToID   *uuid.UUID      `json:"assigned_to_id,omitempty"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	Lock           LockRecord      `json:"lock"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsGlobal reports whether the template is not assigned to any resource
func (t *MetadataTemplate) IsGlobal() bool {
	return t.AssignedToKind == nil
}

// MembershipFlags is the project-level flag set for a membership
type MembershipFlags struct {
	IsProjectAdmin          bool `json:"is_project_admin"`
	CanCreateFolders        bool `json:"can_create_folders"`
	IsMetadataTemplateAdmin bool `json:"is_metadata_template_admin"`
}

// Normalize applies the admin implication: a project admin can always create
// folders and administer metadata templates. The implication is one-way;
// removing the admin flag leaves the other flags as supplied.
func (f MembershipFlags) Normalize() MembershipFlags {
	if f.IsProjectAdmin {
		f.CanCreateFolders = true
		f.IsMetadataTemplateAdmin = true
	}
	return f
}

// AdminFlags returns a fully elevated membership flag set
func AdminFlags() MembershipFlags {
	return MembershipFlags{
		IsProjectAdmin:          true,
		CanCreateFolders:        true,
		IsMetadataTemplateAdmin: true,
	}
}

// PermissionFlags is the folder-level flag set for a permission
type PermissionFlags struct {
	IsFolderAdmin           bool `json:"is_folder_admin"`
	IsMetadataTemplateAdmin bool `json:"is_metadata_template_admin"`
	CanEdit                 bool `json:"can_edit"`
}

// Normalize applies the admin implication at folder level: a folder admin can
// always edit and administer metadata templates.
func (f PermissionFlags) Normalize() PermissionFlags {
	if f.IsFolderAdmin {
		f.IsMetadataTemplateAdmin = true
		f.CanEdit = true
	}
	return f
}

// FolderAdminFlags returns a fully elevated permission flag set
func FolderAdminFlags() PermissionFlags {
	return PermissionFlags{
		IsFolderAdmin:           true,
		IsMetadataTemplateAdmin: true,
		CanEdit:                 true,
	}
}

// UserRef identifies a membership target either by numeric user ID or by
// email address. Exactly one of the two must be set; an unknown email is
// resolved into a freshly created pending user.
type UserRef struct {
	ID    int64  `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// UserByID returns a UserRef for an existing user ID
func UserByID(id int64) UserRef { return UserRef{ID: id} }

// UserByEmail returns a UserRef for an email address
func UserByEmail(email string) UserRef { return UserRef{Email: email} }

// Validate checks that exactly one of ID and Email is set
func (r UserRef) Validate() error {
	if (r.ID == 0) == (r.Email == "") {
		return NewValidationError("user reference must set exactly one of id and email")
	}
	return nil
}

// MemberGrant is one entry of a desired project membership set
type MemberGrant struct {
	User  UserRef         `json:"user"`
	Flags MembershipFlags `json:"flags"`
}

// PermissionGrant is one entry of a desired folder permission set
type PermissionGrant struct {
	User  UserRef         `json:"user"`
	Flags PermissionFlags `json:"flags"`
}
