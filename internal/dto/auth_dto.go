package dto

import (
	"time"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// StudentRegisterRequest describes the payload for student self-registration.
type StudentRegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Nickname  string `json:"nickname" validate:"omitempty,max=100"`
	School    string `json:"school" validate:"required,max=255"`
	Purpose   string `json:"purpose" validate:"required,max=500"`
}

// AdminRegisterRequest describes the payload for admin registration.
// Only the configured admin username is accepted.
type AdminRegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest describes the credential payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued session token and the authenticated user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// RejectStudentRequest carries the optional rejection reason.
type RejectStudentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// StudentListRequest filters the admin student listing.
type StudentListRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=pending approved rejected"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// UserResponse is the serialized account representation returned to clients.
type UserResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Nickname        string     `json:"nickname,omitempty"`
	School          string     `json:"school,omitempty"`
	Purpose         string     `json:"purpose,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:              user.ID.String(),
		Username:        user.Username,
		Role:            user.Role,
		Status:          user.Status,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Nickname:        user.Nickname,
		School:          user.School,
		Purpose:         user.Purpose,
		ApprovedAt:      user.ApprovedAt,
		RejectedAt:      user.RejectedAt,
		RejectionReason: user.RejectionReason,
		CreatedAt:       user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of user models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// StudentListResponse is the paginated admin student listing.
type StudentListResponse struct {
	Students   []UserResponse `json:"students"`
	Pagination Pagination     `json:"pagination"`
}
