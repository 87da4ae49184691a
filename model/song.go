package model

import "time"

// SongStatus is the playback lifecycle state of a song within its room.
type SongStatus string

const (
	SongInQueue SongStatus = "in_queue"
	SongPlaying SongStatus = "is_playing"
	SongPlayed  SongStatus = "played"
)

// Song is one entry in a room's queue. QueueNum is the 1-based rank of the
// song within its room and must stay contiguous across all statuses; the
// queue engine renumbers on every insert and delete.
type Song struct {
	ID       int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomID   int64      `json:"roomId" gorm:"index:idx_room_queue,priority:1;not null"`
	UserID   int64      `json:"userId" gorm:"index;not null"` // who added it, attribution only
	Link     string     `json:"link" gorm:"size:2048;not null"`
	Title    string     `json:"title" gorm:"size:255"`
	Avatar   string     `json:"avatar" gorm:"size:512"`
	QueueNum int        `json:"queueNum" gorm:"column:queue_num;index:idx_room_queue,priority:2;not null"`
	Status   SongStatus `json:"status" gorm:"size:20;default:'in_queue';index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the songs table name.
func (Song) TableName() string {
	return "songs"
}

// SetQueueNum moves the song to rank n. Panics on a non-positive rank, which
// can only come from a broken renumbering computation.
func (s *Song) SetQueueNum(n int) {
	if n < 1 {
		panic("song queue_num must be positive")
	}
	s.QueueNum = n
}

// SetStatus transitions the song's lifecycle state.
func (s *Song) SetStatus(st SongStatus) {
	s.Status = st
}

// IsPlaying reports whether this song is the room's current song.
func (s *Song) IsPlaying() bool {
	return s.Status == SongPlaying
}
