// Package models defines the persistent entities of the contacts service.
package models

import "time"

// UserRole distinguishes regular users from administrators.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is an account record. HashedPassword and RefreshToken never leave the
// service in API responses.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	Avatar         string    `json:"avatar,omitempty" db:"avatar"`
	Confirmed      bool      `json:"confirmed" db:"confirmed"`
	Role           UserRole  `json:"role" db:"role"`
	RefreshToken   string    `json:"-" db:"refresh_token"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Contact is an address-book entry owned by a single user.
type Contact struct {
	ID         int64      `json:"id" db:"id"`
	FirstName  string     `json:"first_name" db:"first_name"`
	LastName   string     `json:"last_name" db:"last_name"`
	Email      string     `json:"email" db:"email"`
	Phone      string     `json:"phone" db:"phone"`
	BirthDate  *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Additional string     `json:"additional,omitempty" db:"additional"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	UserID     int64      `json:"-" db:"user_id"`
}
