package model

import "time"

// Role is a user's membership level within a room.
type Role string

const (
	RoleHost      Role = "host"
	RoleModerator Role = "moderator"
	RoleBasic     Role = "basic"
	RoleBanned    Role = "banned"
)

// Room is a shared listening session owning one playlist and a membership list.
type Room struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	PasswordHash string    `json:"-" gorm:"size:100"` // empty means open room
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName sets the rooms table name.
func (Room) TableName() string {
	return "rooms"
}

// Association links a user to a room with a role. A user belongs to at most
// one room at a time, so UserID alone identifies the association.
type Association struct {
	UserID   int64     `json:"userId" gorm:"primaryKey"`
	RoomID   int64     `json:"roomId" gorm:"primaryKey;index"`
	Role     Role      `json:"role" gorm:"size:20;default:'basic'"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TableName sets the associations table name.
func (Association) TableName() string {
	return "associations"
}

// CanDeleteSongs reports whether this member may delete songs from the room
// playlist. Banned members never reach this check; they are filtered out at
// membership lookup.
func (a *Association) CanDeleteSongs() bool {
	switch a.Role {
	case RoleHost, RoleModerator, RoleBasic:
		return true
	}
	return false
}

// CanEditRoom reports whether this member may edit or delete the room.
func (a *Association) CanEditRoom() bool {
	return a.Role == RoleHost || a.Role == RoleModerator
}
