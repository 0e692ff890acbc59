package models

import "time"

// Roles. Students and staff may ride; admins and staff review requests;
// drivers only push bus positions.
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleStudent = "student"
	RoleDriver  = "driver"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleStudent, RoleDriver:
		return true
	}
	return false
}

// RiderRole reports whether a role is assignable as a bus passenger.
func RiderRole(role string) bool {
	return role == RoleStudent || role == RoleStaff
}

// ReviewerRole reports whether a role may review and assign bus requests.
func ReviewerRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

type User struct {
	ID        int       `json:"id"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
	ExpiresIn    int    `json:"expires_in"`
}

type Session struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	RefreshToken string    `json:"-"`
	UserAgent    string    `json:"user_agent"`
	IP           string    `json:"ip"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
