package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Assignment is the aggregate root for teacher-assigned work: a total
// question count, an ordered list of option sets, and one progress row per
// assigned student.
type Assignment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string         `gorm:"size:200;not null" json:"title"`
	Description    string         `gorm:"size:1000;not null" json:"description"`
	TotalQuestions int            `gorm:"not null" json:"total_questions"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;index;not null" json:"created_by"`
	DueDate        time.Time      `gorm:"not null;index" json:"due_date"`
	OptionSets     datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Students []StudentProgress `gorm:"foreignKey:AssignmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"students"`
}

// BeforeCreate assigns a fresh identifier when none was provided.
func (a *Assignment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// SetOptionSets serializes the option sets into the JSON storage column.
func (a *Assignment) SetOptionSets(sets []OptionSet) {
	if len(sets) == 0 {
		a.OptionSets = datatypes.JSON([]byte("[]"))
		return
	}
	data, err := json.Marshal(sets)
	if err != nil {
		a.OptionSets = datatypes.JSON([]byte("[]"))
		return
	}
	a.OptionSets = datatypes.JSON(data)
}

// OptionSetList deserializes the stored option sets.
func (a Assignment) OptionSetList() []OptionSet {
	if len(a.OptionSets) == 0 {
		return nil
	}

	var sets []OptionSet
	if err := json.Unmarshal(a.OptionSets, &sets); err != nil {
		return nil
	}
	return sets
}
