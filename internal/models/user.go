package models

// Role is a team role carried by the credential and the users table.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is a team member account. Accounts are managed elsewhere; this
// service only reads them.
type User struct {
	ID        string `db:"id" json:"id"`
	TeamID    string `db:"team_id" json:"team_id"`
	Name      string `db:"name" json:"name"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role   `db:"role" json:"role"`
}
