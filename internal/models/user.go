package models

import "time"

// UserRole represents the capability tiers for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// Valid reports whether the role is a supported value.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// rolePrecedence orders roles from most to least capable.
var rolePrecedence = []UserRole{RoleAdmin, RoleUser}

// EffectiveRole collapses a user's role rows into a single effective role.
// The relation is one-to-many in the database; reads resolve it with a fixed
// precedence where admin dominates user. An empty set yields RoleUser.
func EffectiveRole(roles []UserRole) UserRole {
	for _, candidate := range rolePrecedence {
		for _, role := range roles {
			if role == candidate {
				return candidate
			}
		}
	}
	return RoleUser
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserWithRole pairs a user with their resolved effective role.
type UserWithRole struct {
	User
	Role UserRole `json:"role"`
}

// RoleAssignment is a single (user, role) row.
type RoleAssignment struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      UserRole  `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
