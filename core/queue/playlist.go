// Package queue implements the room playlist engine: the 1-based contiguous
// position model, the in_queue/is_playing/played lifecycle and the reordering
// operations over a room's songs.
package queue

import (
	"fmt"
	"sort"

	"kwadrop/model"
)

// byPosition returns the songs sorted by queue_num ascending, spanning all
// statuses. This is the authoritative position order every operation works on.
func byPosition(songs []*model.Song) []*model.Song {
	out := make([]*model.Song, len(songs))
	copy(out, songs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueueNum < out[j].QueueNum
	})
	return out
}

// DisplayOrder projects a room's songs into the order clients see: played
// songs by queue_num ascending, then the playing song if any, then queued
// songs by queue_num ascending. It is a read-side projection only; position
// arithmetic always uses queue_num order.
func DisplayOrder(songs []*model.Song) []*model.Song {
	ordered := byPosition(songs)
	out := make([]*model.Song, 0, len(ordered))
	for _, s := range ordered {
		if s.Status == model.SongPlayed {
			out = append(out, s)
		}
	}
	for _, s := range ordered {
		if s.Status == model.SongPlaying {
			out = append(out, s)
		}
	}
	for _, s := range ordered {
		if s.Status == model.SongInQueue {
			out = append(out, s)
		}
	}
	return out
}

// currentQueueNum returns the queue_num of the playing song, or 0 if nothing
// is playing.
func currentQueueNum(songs []*model.Song) int {
	for _, s := range songs {
		if s.IsPlaying() {
			return s.QueueNum
		}
	}
	return 0
}

// songAt returns the song holding rank n, or nil.
func songAt(songs []*model.Song, n int) *model.Song {
	for _, s := range songs {
		if s.QueueNum == n {
			return s
		}
	}
	return nil
}

// maxQueueNum returns the highest rank in use, or 0 for an empty playlist.
func maxQueueNum(songs []*model.Song) int {
	max := 0
	for _, s := range songs {
		if s.QueueNum > max {
			max = s.QueueNum
		}
	}
	return max
}

// validateQueue checks the engine's postconditions: queue_num values are
// exactly {1..N} and at most one song is playing.
func validateQueue(songs []*model.Song) error {
	seen := make(map[int]bool, len(songs))
	playing := 0
	for _, s := range songs {
		if s.QueueNum < 1 || s.QueueNum > len(songs) {
			return fmt.Errorf("queue_num %d out of range 1..%d", s.QueueNum, len(songs))
		}
		if seen[s.QueueNum] {
			return fmt.Errorf("duplicate queue_num %d", s.QueueNum)
		}
		seen[s.QueueNum] = true
		if s.IsPlaying() {
			playing++
		}
	}
	if playing > 1 {
		return fmt.Errorf("%d songs marked playing, want at most 1", playing)
	}
	return nil
}
