package domain

import "time"

// User represents a user of the voice task manager.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Language   string    `json:"language"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
