// Package model defines domain entities for the application.
package model

import "time"

// User is an account that owns costs.
type User struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"user_name"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
}

// ToResponse converts a User to its public view.
func (u *User) ToResponse() UserResponse {
	return UserResponse{ID: u.ID, UserName: u.UserName}
}

// AuthContext holds the authenticated principal for a request.
type AuthContext struct {
	UserID    int64
	UserName  string
	TokenID   string // jti of the access token
	ExpiresAt time.Time
}
