package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single authorization attribute of a user.  Authorization is a
// binary role check: business users manage venues, clients reserve slots.
type Role string

const (
	RoleBusiness Role = "business"
	RoleClient   Role = "client"
)

// ParseRole validates a role from a request or a token claim.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBusiness, RoleClient:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database.
//
// Fields:
//  ID           – primary key (UUID string).
//  Phone        – unique phone number used to log in.
//  Name         – display name.
//  Role         – business or client.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           string    // users.id
	Phone        string    // users.phone
	Name         string    // users.name
	Role         Role      // users.role
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}
