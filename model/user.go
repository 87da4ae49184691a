package model

import "time"

// User is an ephemeral, session-bound identity. A user exists only as long as
// its session and carries no credentials.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"` // object name in the avatar bucket
	SessionID string    `json:"-"`                // not exposed in API responses
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
