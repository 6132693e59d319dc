package auth

import "time"

type Role string

const (
	RoleFounder Role = "FOUNDER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// CanViewFinancials reports whether the role may see monetary fields.
func (r Role) CanViewFinancials() bool {
	return r != RoleMember
}

// User is the domain representation of an organization member.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	OrgID        string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller every internal operation acts as.
type Principal struct {
	UserID string
	OrgID  string
	Role   Role
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	OrgID    string `json:"org_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
