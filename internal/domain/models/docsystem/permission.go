package docsystem

import (
	"time"
)

// PermissionLevel is totally ordered: read < write < admin.
type PermissionLevel string

const (
	LevelRead  PermissionLevel = "read"
	LevelWrite PermissionLevel = "write"
	LevelAdmin PermissionLevel = "admin"
)

var levelRank = map[PermissionLevel]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

// PermissionLevels lists the accepted values, for validation rules.
var PermissionLevels = []interface{}{LevelRead, LevelWrite, LevelAdmin}

// Satisfies reports whether holding l grants at least the required level.
// Unknown levels never satisfy anything.
func (l PermissionLevel) Satisfies(required PermissionLevel) bool {
	have, ok := levelRank[l]
	if !ok {
		return false
	}
	need, ok := levelRank[required]
	if !ok {
		return false
	}
	return have >= need
}

// TargetKind tags what a permission applies to.
type TargetKind string

const (
	TargetFolder   TargetKind = "folder"
	TargetDocument TargetKind = "document"
)

// Permission grants a level on a folder or document to exactly one of a user or a department.
type Permission struct {
	ID                  string          `json:"id" db:"id"`
	TargetKind          TargetKind      `json:"target_kind" db:"target_kind"`
	TargetID            string          `json:"target_id" db:"target_id"`
	UserID              *string         `json:"user_id,omitempty" db:"user_id"`
	Department          *string         `json:"department,omitempty" db:"department"`
	Level               PermissionLevel `json:"permission_level" db:"permission_level"`
	InheritToSubfolders bool            `json:"inherit_to_subfolders" db:"inherit_to_subfolders"` // Folder grants only
	GrantedBy           string          `json:"granted_by" db:"granted_by"`
	GrantedAt           time.Time       `json:"granted_at" db:"granted_at"`
	ValidUntil          *time.Time      `json:"valid_until,omitempty" db:"valid_until"`
}

// IsValid reports whether the grant is unexpired at now.
// A grant expires only when valid_until is set and in the past.
func (p *Permission) IsValid(now time.Time) bool {
	return p.ValidUntil == nil || now.Before(*p.ValidUntil)
}

// Grants reports whether p is an unexpired grant of at least required.
func (p *Permission) Grants(required PermissionLevel, now time.Time) bool {
	return p.Level.Satisfies(required) && p.IsValid(now)
}

// IsForUser reports whether the grant targets the given user.
func (p *Permission) IsForUser(userID string) bool {
	return userID != "" && p.UserID != nil && *p.UserID == userID
}

// IsForDepartment reports whether the grant targets the given department.
func (p *Permission) IsForDepartment(department string) bool {
	return department != "" && p.Department != nil && *p.Department == department
}
