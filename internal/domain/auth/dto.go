package auth

import "github.com/google/uuid"

// LoginRequest for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse represents an account in API responses
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// LoginResponse for a successful sign-in
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// CreateAccountRequest for POST /accounts. Password policy follows the
// provisioning screen: at least 6 characters.
type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func userResponseFromEntity(u *User) *UserResponse {
	return &UserResponse{ID: u.ID, Email: u.Email, Role: u.Role}
}
