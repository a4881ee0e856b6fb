package dto

import (
	"strings"

	"github.com/google/uuid"
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required" msg:"Name is required"`
	Email    string `json:"email" validate:"required,email" msg:"Email is required"`
	Password string `json:"password" validate:"required,min=6" msg:"Password should contain atleast 6 characters"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"Email is required"`
	Password string `json:"password" validate:"required,min=6" msg:"Password should contain atleast 6 characters"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// AuthResult is what signup and login hand back to the transport.
type AuthResult struct {
	Token   string
	Profile UserProfile
}

// Principal is the verified caller attached to a request or connection.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Email  string
}
