package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the subset of the account record the messaging service reads.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Searchable  bool      `json:"searchable"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserSearchResult struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}
