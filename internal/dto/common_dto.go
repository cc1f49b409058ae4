package dto

import (
	"bytes"
	"fmt"
	"strings"
)

// Pagination is the standard pagination block returned by list endpoints.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

// NewPagination computes the pagination block for a page/limit/total triple.
func NewPagination(page, limit int, total int64) Pagination {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	totalPages := int(total / int64(limit))
	if total%int64(limit) != 0 {
		totalPages++
	}

	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		Limit:       limit,
	}
}

// FlexBool unmarshals JSON booleans as well as their common string spellings
// ("true"/"false", any case). Upstream clients historically sent both.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("true")):
		*b = true
	case bytes.Equal(trimmed, []byte("false")), bytes.Equal(trimmed, []byte("null")):
		*b = false
	default:
		unquoted := strings.Trim(string(trimmed), `"`)
		switch strings.ToLower(strings.TrimSpace(unquoted)) {
		case "true", "1":
			*b = true
		case "false", "0", "":
			*b = false
		default:
			return fmt.Errorf("invalid boolean value %q", string(data))
		}
	}
	return nil
}

// Bool returns the underlying value.
func (b FlexBool) Bool() bool {
	return bool(b)
}
