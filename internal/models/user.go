package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Approval states for student accounts.
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// User represents an account that can authenticate against the API.
// Students start in pending status and must be approved by an admin
// before they can be assigned work.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:16;not null;default:student" json:"role"`
	Status       string    `gorm:"size:16;not null;default:pending" json:"status"`

	FirstName string `gorm:"size:100" json:"first_name"`
	LastName  string `gorm:"size:100" json:"last_name"`
	Nickname  string `gorm:"size:100" json:"nickname"`
	School    string `gorm:"size:255" json:"school"`
	Purpose   string `gorm:"size:500" json:"purpose"`

	ApprovedBy      *uuid.UUID `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `gorm:"size:200" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a fresh identifier when none was provided.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), 12)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the candidate matches the stored hash.
func (u User) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}

// IsApprovedStudent reports whether the user is a student cleared for assignments.
func (u User) IsApprovedStudent() bool {
	return u.Role == RoleStudent && u.Status == UserStatusApproved
}

// FullName renders "First Last (Nickname)" with the nickname omitted when empty.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	if u.Nickname != "" {
		return fmt.Sprintf("%s (%s)", name, u.Nickname)
	}
	return name
}

// DisplayName renders the roster label shown to admins when assigning work.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	if u.School == "" {
		return name
	}
	return fmt.Sprintf("%s - %s", name, u.School)
}
