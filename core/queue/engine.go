package queue

import (
	"context"
	"fmt"

	"kwadrop/apperr"
	"kwadrop/core/resolver"
	"kwadrop/logger"
	"kwadrop/model"
	"kwadrop/repository"
)

// PlaylistCache caches the assembled display-order playlist per room.
// Implementations must treat a miss as (nil, nil).
type PlaylistCache interface {
	Get(ctx context.Context, roomID int64) ([]*model.Song, error)
	Set(ctx context.Context, roomID int64, songs []*model.Song) error
	Invalidate(ctx context.Context, roomID int64) error
}

// AddResult is the outcome of AddSong: either a created song or, when the
// reference was a search phrase, a disambiguation list of candidates for the
// client to pick from. Candidates is never longer than five entries.
type AddResult struct {
	Song       *model.Song
	Candidates []resolver.Candidate
}

// Engine executes queue operations for rooms. Every mutation reads the full
// playlist once, recomputes positions and statuses in memory, and persists
// the change set atomically under the room's lock. Track resolution happens
// before the lock is taken so a slow resolver never stalls the room.
type Engine struct {
	rooms    repository.RoomRepository
	songs    repository.SongRepository
	resolver resolver.Resolver
	cache    PlaylistCache // optional
	locks    *roomLocks
}

// NewEngine creates a queue engine. cache may be nil.
func NewEngine(rooms repository.RoomRepository, songs repository.SongRepository, res resolver.Resolver, cache PlaylistCache) *Engine {
	return &Engine{
		rooms:    rooms,
		songs:    songs,
		resolver: res,
		cache:    cache,
		locks:    newRoomLocks(),
	}
}

// membership returns the caller's room association. A banned member is
// indistinguishable from a non-member.
func (e *Engine) membership(ctx context.Context, userID int64) (*model.Association, error) {
	a, err := e.rooms.GetAssociationByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if a == nil || a.Role == model.RoleBanned {
		return nil, apperr.NotFound("This user has no association with any room.")
	}
	return a, nil
}

// playlist fetches the room's songs in position order.
func (e *Engine) playlist(ctx context.Context, roomID int64) ([]*model.Song, error) {
	songs, err := e.songs.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return byPosition(songs), nil
}

// commit validates the resulting queue state, persists the change set and
// drops the room's cached playlist.
func (e *Engine) commit(ctx context.Context, roomID int64, result []*model.Song, cs *repository.SongChangeSet) error {
	if err := validateQueue(result); err != nil {
		return apperr.Wrap(fmt.Errorf("queue invariant violated: %w", err))
	}
	if err := e.songs.Apply(ctx, cs); err != nil {
		return apperr.Wrap(err)
	}
	e.dropCache(ctx, roomID)
	return nil
}

func (e *Engine) dropCache(ctx context.Context, roomID int64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, roomID); err != nil {
		logger.Warn("failed to invalidate playlist cache",
			logger.Int64("roomId", roomID), logger.ErrorField(err))
	}
}

// AddSong resolves ref and appends or inserts the resulting song into the
// caller's room playlist. With afterQueueNum nil the song goes after the
// current maximum rank; otherwise afterQueueNum must name an existing rank
// and every later song shifts up by one. A search phrase yields a
// disambiguation result instead of a song.
func (e *Engine) AddSong(ctx context.Context, userID int64, ref string, afterQueueNum *int) (*AddResult, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Resolution talks to an external service; keep it outside the lock.
	res, err := e.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if len(res.Candidates) > 0 {
		return &AddResult{Candidates: res.Candidates}, nil
	}
	if res.Resolved == nil {
		return nil, apperr.BadRequest("no playable track found for %q", ref)
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}

	var after int
	switch {
	case afterQueueNum == nil && len(songs) == 0:
		after = 0
	case afterQueueNum == nil:
		after = maxQueueNum(songs)
	default:
		after = *afterQueueNum
		if songAt(songs, after) == nil {
			return nil, apperr.NotFound("No song found with queue index %d", after)
		}
	}

	song := &model.Song{
		RoomID:   a.RoomID,
		UserID:   userID,
		Link:     res.Resolved.Link,
		Title:    res.Resolved.Title,
		Avatar:   res.Resolved.Avatar,
		QueueNum: after + 1,
		Status:   model.SongInQueue,
	}

	cs := &repository.SongChangeSet{Create: []*model.Song{song}}
	for _, s := range songs {
		if s.QueueNum > after {
			s.SetQueueNum(s.QueueNum + 1)
			cs.Update = append(cs.Update, s)
		}
	}

	if err := e.commit(ctx, a.RoomID, append(songs, song), cs); err != nil {
		return nil, err
	}
	logger.Debug("song added",
		logger.Int64("roomId", a.RoomID),
		logger.Int("queueNum", song.QueueNum),
		logger.String("title", song.Title))
	return &AddResult{Song: song}, nil
}

// PlayNext advances the room to the next song. Starting from nothing playing
// it starts at rank 1; advancing past the last rank wraps the whole room
// back to rank 1 with every other song requeued.
func (e *Engine) PlayNext(ctx context.Context, userID int64) (*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, apperr.NotFound("Playlist is empty.")
	}
	if len(songs) == 1 {
		s := songs[0]
		s.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{s}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return s, nil
	}

	cur := currentQueueNum(songs)
	last := songs[len(songs)-1]

	switch {
	case cur == 0:
		s := songs[0]
		s.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{s}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return s, nil

	case cur == last.QueueNum:
		// Wrap: the whole room restarts from rank 1.
		cs := &repository.SongChangeSet{}
		for _, s := range songs {
			want := model.SongInQueue
			if s.QueueNum == songs[0].QueueNum {
				want = model.SongPlaying
			}
			if s.Status != want {
				s.SetStatus(want)
				cs.Update = append(cs.Update, s)
			}
		}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return songs[0], nil

	default:
		curSong := songAt(songs, cur)
		next := songAt(songs, cur+1)
		curSong.SetStatus(model.SongPlayed)
		next.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{curSong, next}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return next, nil
	}
}

// PlayPrev steps the room back one song. From the first rank it wraps to the
// last; with nothing playing it starts at the last rank, mirroring PlayNext.
func (e *Engine) PlayPrev(ctx context.Context, userID int64) (*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, apperr.NotFound("Playlist is empty.")
	}
	if len(songs) == 1 {
		s := songs[0]
		s.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{s}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return s, nil
	}

	cur := currentQueueNum(songs)
	first := songs[0]
	last := songs[len(songs)-1]

	switch {
	case cur == 0:
		last.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{last}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return last, nil

	case cur == first.QueueNum:
		// Wrap backwards: first requeues, last becomes current.
		first.SetStatus(model.SongInQueue)
		last.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{first, last}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return last, nil

	default:
		curSong := songAt(songs, cur)
		prev := songAt(songs, cur-1)
		curSong.SetStatus(model.SongInQueue)
		prev.SetStatus(model.SongPlaying)
		cs := &repository.SongChangeSet{Update: []*model.Song{curSong, prev}}
		if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
			return nil, err
		}
		return prev, nil
	}
}

// PlayAt seeks directly to queueNum: everything before it becomes played,
// everything after requeued, regardless of prior status.
func (e *Engine) PlayAt(ctx context.Context, userID int64, queueNum int) (*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, apperr.NotFound("Playlist is empty.")
	}
	target := songAt(songs, queueNum)
	if target == nil {
		return nil, apperr.NotFound("There is no song in this room playlist with index %d.", queueNum)
	}

	cs := &repository.SongChangeSet{}
	for _, s := range songs {
		var want model.SongStatus
		switch {
		case s.QueueNum < queueNum:
			want = model.SongPlayed
		case s.QueueNum > queueNum:
			want = model.SongInQueue
		default:
			want = model.SongPlaying
		}
		if s.Status != want {
			s.SetStatus(want)
			cs.Update = append(cs.Update, s)
		}
	}

	if err := e.commit(ctx, a.RoomID, songs, cs); err != nil {
		return nil, err
	}
	return target, nil
}

// SwapSongs exchanges the ranks of two songs. When the current song lies
// inside the swapped span the statuses of the span are recomputed so that
// everything before the current rank reads played and everything after reads
// queued; a swap entirely outside the span touches ranks only.
func (e *Engine) SwapSongs(ctx context.Context, userID int64, numA, numB int) error {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return err
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return err
	}

	l, h := numA, numB
	if l > h {
		l, h = h, l
	}
	low := songAt(songs, l)
	high := songAt(songs, h)
	if low == nil || high == nil {
		return apperr.NotFound("There is no song in this room playlist with index %d or with index %d.", l, h)
	}
	if l == h {
		return nil
	}

	cur := currentQueueNum(songs)
	changed := make(map[int64]*model.Song)
	mark := func(s *model.Song) {
		changed[s.ID] = s
	}

	switch {
	case cur == 0 || cur < l || cur > h:
		// Current song outside the span: pure rank exchange.

	case cur == l:
		// The playing song moves to h; everything it skips over is now
		// behind it.
		for n := l + 1; n < h; n++ {
			s := songAt(songs, n)
			s.SetStatus(model.SongPlayed)
			mark(s)
		}
		high.SetStatus(model.SongPlayed)
		mark(high)

	case cur == h:
		// The playing song moves to l; everything it skips over is now
		// ahead of it.
		for n := l + 1; n < h; n++ {
			s := songAt(songs, n)
			s.SetStatus(model.SongInQueue)
			mark(s)
		}
		low.SetStatus(model.SongInQueue)
		mark(low)

	default:
		// Only the endpoints cross the current rank.
		high.SetStatus(model.SongPlayed)
		low.SetStatus(model.SongInQueue)
		mark(high)
		mark(low)
	}

	low.SetQueueNum(h)
	high.SetQueueNum(l)
	mark(low)
	mark(high)

	cs := &repository.SongChangeSet{Update: make([]*model.Song, 0, len(changed))}
	for _, s := range changed {
		cs.Update = append(cs.Update, s)
	}
	return e.commit(ctx, a.RoomID, songs, cs)
}

// DeleteSong removes the song at queueNum and closes the rank gap. Any
// member except a banned one may delete. The removed song is returned with
// its pre-deletion data.
func (e *Engine) DeleteSong(ctx context.Context, userID int64, queueNum int) (*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !a.CanDeleteSongs() {
		return nil, apperr.Forbidden("This user has no permission to perform this action.")
	}

	mu := e.locks.get(a.RoomID)
	mu.Lock()
	defer mu.Unlock()

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	target := songAt(songs, queueNum)
	if target == nil {
		return nil, apperr.NotFound("There is no song in this room playlist with index %d.", queueNum)
	}

	cs := &repository.SongChangeSet{Delete: []*model.Song{target}}
	remaining := make([]*model.Song, 0, len(songs)-1)
	for _, s := range songs {
		if s == target {
			continue
		}
		if s.QueueNum > queueNum {
			s.SetQueueNum(s.QueueNum - 1)
			cs.Update = append(cs.Update, s)
		}
		remaining = append(remaining, s)
	}

	if err := e.commit(ctx, a.RoomID, remaining, cs); err != nil {
		return nil, err
	}
	return target, nil
}

// CurrentSong returns the room's playing song.
func (e *Engine) CurrentSong(ctx context.Context, userID int64) (*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	for _, s := range songs {
		if s.IsPlaying() {
			return s, nil
		}
	}
	return nil, apperr.NotFound("Nothing is playing.")
}

// Playlist returns the caller's room playlist in display order.
func (e *Engine) Playlist(ctx context.Context, userID int64) ([]*model.Song, error) {
	a, err := e.membership(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, a.RoomID)
		if err != nil {
			logger.Warn("playlist cache read failed",
				logger.Int64("roomId", a.RoomID), logger.ErrorField(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	songs, err := e.playlist(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	display := DisplayOrder(songs)

	if e.cache != nil {
		if err := e.cache.Set(ctx, a.RoomID, display); err != nil {
			logger.Warn("playlist cache write failed",
				logger.Int64("roomId", a.RoomID), logger.ErrorField(err))
		}
	}
	return display, nil
}
