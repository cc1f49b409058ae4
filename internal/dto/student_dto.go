package dto

import "github.com/mathbingo/mathbingo-go-api/internal/models"

// AvailableStudentResponse is one approved student in the assignment roster.
type AvailableStudentResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Nickname    string `json:"nickname,omitempty"`
	School      string `json:"school"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
}

// AvailableStudentsResponse lists the approved students an admin can assign.
type AvailableStudentsResponse struct {
	Students []AvailableStudentResponse `json:"students"`
	Count    int                        `json:"count"`
}

// NewAvailableStudentsResponse formats the approved-student roster.
func NewAvailableStudentsResponse(students []models.User) AvailableStudentsResponse {
	formatted := make([]AvailableStudentResponse, 0, len(students))
	for _, student := range students {
		formatted = append(formatted, AvailableStudentResponse{
			ID:          student.ID.String(),
			Username:    student.Username,
			FirstName:   student.FirstName,
			LastName:    student.LastName,
			Nickname:    student.Nickname,
			School:      student.School,
			FullName:    student.FullName(),
			DisplayName: student.DisplayName(),
		})
	}

	return AvailableStudentsResponse{Students: formatted, Count: len(formatted)}
}
