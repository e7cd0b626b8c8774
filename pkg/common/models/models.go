package models

import (
	"time"

	"github.com/google/uuid"
)

// Accounts
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Age          int       `json:"age"`
	MobileNumber string    `json:"mobileNumber"`
	Photo        *string   `json:"photo"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type RegisterRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
	Age             int     `json:"age"`
	MobileNumber    string  `json:"mobileNumber"`
	Photo           *string `json:"photo,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User    User   `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Session tracks one issued token from login until logout.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	TokenID    string     `json:"tokenId"`
	LoginTime  time.Time  `json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

func (s Session) Active(now time.Time) bool {
	return s.LogoutTime == nil && now.Before(s.ExpiresAt)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID  uuid.UUID
	Email   string
	TokenID string
}

// Response envelopes
type APIResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Data      interface{}            `json:"data,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination derives page metadata for a 1-based page.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if total > 0 && limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
