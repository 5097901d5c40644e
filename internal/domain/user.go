package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// UserRole enumerates privilege levels. Agents and admins are staff.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAgent UserRole = "AGENT"
	RoleAdmin UserRole = "ADMIN"
)

// User is the domain model for anyone who files or works service requests.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user may transition or assign requests.
func (u *User) IsStaff() bool {
	return u != nil && (u.Role == RoleAgent || u.Role == RoleAdmin)
}

// IsAdmin reports whether the user may run administrative operations.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
