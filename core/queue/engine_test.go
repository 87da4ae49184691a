package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwadrop/apperr"
	"kwadrop/core/resolver"
	"kwadrop/model"
	"kwadrop/repository"
)

type fakeRoomRepo struct {
	mu     sync.Mutex
	assocs map[int64]*model.Association // by user id
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{assocs: make(map[int64]*model.Association)}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *model.Room) error  { return nil }
func (r *fakeRoomRepo) Update(ctx context.Context, room *model.Room) error  { return nil }
func (r *fakeRoomRepo) Delete(ctx context.Context, id int64) error          { return nil }
func (r *fakeRoomRepo) GetByID(ctx context.Context, id int64) (*model.Room, error) {
	return nil, nil
}

func (r *fakeRoomRepo) AddAssociation(ctx context.Context, a *model.Association) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assocs[a.UserID] = a
	return nil
}

func (r *fakeRoomRepo) GetAssociationByUser(ctx context.Context, userID int64) (*model.Association, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assocs[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRoomRepo) ListAssociations(ctx context.Context, roomID int64) ([]*model.Association, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Association
	for _, a := range r.assocs {
		if a.RoomID == roomID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) RemoveAssociation(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assocs, userID)
	return nil
}

// fakeSongRepo keeps songs by id and, like the real repository, applies only
// queue_num and status on update. ListByRoom hands out clones so a change set
// that never reaches Apply leaves the store untouched.
type fakeSongRepo struct {
	mu     sync.Mutex
	nextID int64
	songs  map[int64]*model.Song
}

func newFakeSongRepo() *fakeSongRepo {
	return &fakeSongRepo{songs: make(map[int64]*model.Song)}
}

func (r *fakeSongRepo) ListByRoom(ctx context.Context, roomID int64) ([]*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Song
	for _, s := range r.songs {
		if s.RoomID == roomID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNum < out[j].QueueNum })
	return out, nil
}

func (r *fakeSongRepo) Apply(ctx context.Context, cs *repository.SongChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range cs.Delete {
		delete(r.songs, s.ID)
	}
	for _, s := range cs.Update {
		stored, ok := r.songs[s.ID]
		if !ok {
			return fmt.Errorf("update of unknown song id %d", s.ID)
		}
		stored.QueueNum = s.QueueNum
		stored.Status = s.Status
	}
	for _, s := range cs.Create {
		r.nextID++
		s.ID = r.nextID
		cp := *s
		r.songs[s.ID] = &cp
	}
	return nil
}

type fakeResolver struct {
	results map[string]*resolver.Result
}

func (f *fakeResolver) Resolve(ctx context.Context, ref string) (*resolver.Result, error) {
	if res, ok := f.results[ref]; ok {
		return res, nil
	}
	return &resolver.Result{Resolved: &resolver.Resolved{
		Link:  "https://www.youtube.com/watch?v=" + ref,
		Title: "title " + ref,
	}}, nil
}

type engineFixture struct {
	engine *Engine
	rooms  *fakeRoomRepo
	songs  *fakeSongRepo
	res    *fakeResolver
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		rooms: newFakeRoomRepo(),
		songs: newFakeSongRepo(),
		res:   &fakeResolver{results: make(map[string]*resolver.Result)},
	}
	f.engine = NewEngine(f.rooms, f.songs, f.res, nil)
	return f
}

func (f *engineFixture) join(t *testing.T, userID, roomID int64, role model.Role) {
	t.Helper()
	err := f.rooms.AddAssociation(context.Background(), &model.Association{
		UserID: userID, RoomID: roomID, Role: role,
	})
	require.NoError(t, err)
}

func (f *engineFixture) add(t *testing.T, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.engine.AddSong(context.Background(), userID, fmt.Sprintf("ref%d", i), nil)
		require.NoError(t, err)
	}
}

// stored returns the persisted queue in rank order and asserts the
// contiguity and single-playing postconditions hold.
func (f *engineFixture) stored(t *testing.T, roomID int64) []*model.Song {
	t.Helper()
	songs, err := f.songs.ListByRoom(context.Background(), roomID)
	require.NoError(t, err)
	require.NoError(t, validateQueue(songs))
	return songs
}

func statuses(songs []*model.Song) []model.SongStatus {
	out := make([]model.SongStatus, len(songs))
	for i, s := range songs {
		out[i] = s.Status
	}
	return out
}

func TestAddSongEmptyRoom(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)

	res, err := f.engine.AddSong(context.Background(), 1, "abc", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Song)
	assert.Equal(t, 1, res.Song.QueueNum)
	assert.Equal(t, model.SongInQueue, res.Song.Status)
	assert.Equal(t, int64(10), res.Song.RoomID)
	assert.Equal(t, "title abc", res.Song.Title)

	songs := f.stored(t, 10)
	require.Len(t, songs, 1)
}

func TestAddSongAppendsAfterMax(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	songs := f.stored(t, 10)
	require.Len(t, songs, 3)
	for i, s := range songs {
		assert.Equal(t, i+1, s.QueueNum)
	}
}

func TestAddSongInsertShiftsLaterRanks(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	after := 1
	res, err := f.engine.AddSong(context.Background(), 1, "inserted", &after)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Song.QueueNum)

	songs := f.stored(t, 10)
	require.Len(t, songs, 4)
	assert.Equal(t, "title inserted", songs[1].Title)
	assert.Equal(t, "title ref1", songs[2].Title)
	assert.Equal(t, "title ref2", songs[3].Title)
}

func TestAddSongAfterMissingRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	after := 7
	_, err := f.engine.AddSong(context.Background(), 1, "x", &after)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	songs := f.stored(t, 10)
	assert.Len(t, songs, 2)
}

func TestAddSongDisambiguation(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.res.results["never gonna"] = &resolver.Result{Candidates: []resolver.Candidate{
		{Link: "https://www.youtube.com/watch?v=a", Title: "one"},
		{Link: "https://www.youtube.com/watch?v=b", Title: "two"},
	}}

	res, err := f.engine.AddSong(context.Background(), 1, "never gonna", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Song)
	assert.Len(t, res.Candidates, 2)

	// A disambiguation answer must not create anything.
	songs := f.stored(t, 10)
	assert.Empty(t, songs)
}

func TestAddSongNoMembership(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.AddSong(context.Background(), 1, "abc", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBannedMemberIsInvisible(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleBanned)

	_, err := f.engine.AddSong(context.Background(), 1, "abc", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.PlayNext(context.Background(), 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPlayNextEmptyRoom(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)

	_, err := f.engine.PlayNext(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPlayNextStartsAtFirstRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	song, err := f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, song.QueueNum)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongPlaying, model.SongInQueue, model.SongInQueue}, statuses(songs))
}

func TestPlayNextAdvances(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	_, err := f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	song, err := f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, song.QueueNum)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongPlayed, model.SongPlaying, model.SongInQueue}, statuses(songs))
}

func TestPlayNextWrapsPastLastRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	// Advance to the last rank, then once more.
	for i := 0; i < 3; i++ {
		_, err := f.engine.PlayNext(context.Background(), 1)
		require.NoError(t, err)
	}
	song, err := f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, song.QueueNum)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongPlaying, model.SongInQueue, model.SongInQueue}, statuses(songs))
}

func TestPlayNextSingleSongIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 1)

	for i := 0; i < 3; i++ {
		song, err := f.engine.PlayNext(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 1, song.QueueNum)
		assert.Equal(t, model.SongPlaying, song.Status)
	}
}

func TestPlayPrevStartsAtLastRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	song, err := f.engine.PlayPrev(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, song.QueueNum)
}

func TestPlayPrevWrapsFromFirstRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	_, err := f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	song, err := f.engine.PlayPrev(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, song.QueueNum)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongInQueue, model.SongInQueue, model.SongPlaying}, statuses(songs))
}

func TestPlayPrevUndoesPlayNext(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 2)
	require.NoError(t, err)
	before := statuses(f.stored(t, 10))

	_, err = f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.engine.PlayPrev(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, before, statuses(f.stored(t, 10)))
}

func TestPlayAtRecomputesAllStatuses(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	song, err := f.engine.PlayAt(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, song.QueueNum)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongPlayed, model.SongPlaying, model.SongInQueue}, statuses(songs))
}

func TestPlayAtMissingRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	_, err := f.engine.PlayAt(context.Background(), 1, 9)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSwapSongsOutsideCurrentSpan(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 1)
	require.NoError(t, err)

	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 3, 4))

	songs := f.stored(t, 10)
	assert.Equal(t, "title ref3", songs[2].Title)
	assert.Equal(t, "title ref2", songs[3].Title)
	assert.Equal(t, []model.SongStatus{model.SongPlaying, model.SongInQueue, model.SongInQueue, model.SongInQueue}, statuses(songs))
}

func TestSwapSongsCurrentAtLowEnd(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 2)
	require.NoError(t, err)

	// The playing song at rank 2 moves to rank 4.
	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 2, 4))

	songs := f.stored(t, 10)
	assert.Equal(t, "title ref1", songs[3].Title)
	assert.Equal(t, []model.SongStatus{model.SongPlayed, model.SongPlayed, model.SongPlayed, model.SongPlaying}, statuses(songs))
}

func TestSwapSongsCurrentAtHighEnd(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 3)
	require.NoError(t, err)

	// The playing song at rank 3 moves to rank 1.
	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 3, 1))

	songs := f.stored(t, 10)
	assert.Equal(t, "title ref2", songs[0].Title)
	assert.Equal(t, []model.SongStatus{model.SongPlaying, model.SongInQueue, model.SongInQueue, model.SongInQueue}, statuses(songs))
}

func TestSwapSongsCurrentInsideSpan(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 2)
	require.NoError(t, err)

	// Endpoints cross the current rank: rank 1 lands after it, rank 4 before.
	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 1, 4))

	songs := f.stored(t, 10)
	assert.Equal(t, "title ref3", songs[0].Title)
	assert.Equal(t, "title ref0", songs[3].Title)
	assert.Equal(t, []model.SongStatus{model.SongPlayed, model.SongPlaying, model.SongInQueue, model.SongInQueue}, statuses(songs))
}

func TestSwapSongsSelfInverseWithNothingPlaying(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	before := f.stored(t, 10)
	titles := func(songs []*model.Song) []string {
		out := make([]string, len(songs))
		for i, s := range songs {
			out[i] = s.Title
		}
		return out
	}
	want := titles(before)

	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 1, 3))
	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 1, 3))

	assert.Equal(t, want, titles(f.stored(t, 10)))
}

func TestSwapSongsSameRankIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	require.NoError(t, f.engine.SwapSongs(context.Background(), 1, 2, 2))

	songs := f.stored(t, 10)
	assert.Equal(t, "title ref1", songs[1].Title)
}

func TestSwapSongsMissingRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	err := f.engine.SwapSongs(context.Background(), 1, 1, 5)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteSongClosesRankGap(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	song, err := f.engine.DeleteSong(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "title ref1", song.Title)

	songs := f.stored(t, 10)
	require.Len(t, songs, 2)
	assert.Equal(t, "title ref0", songs[0].Title)
	assert.Equal(t, "title ref2", songs[1].Title)
}

func TestDeleteSongMissingRank(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 1)

	_, err := f.engine.DeleteSong(context.Background(), 1, 4)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteCurrentSongLeavesNothingPlaying(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 3)

	_, err := f.engine.PlayAt(context.Background(), 1, 2)
	require.NoError(t, err)
	_, err = f.engine.DeleteSong(context.Background(), 1, 2)
	require.NoError(t, err)

	songs := f.stored(t, 10)
	assert.Equal(t, []model.SongStatus{model.SongPlayed, model.SongInQueue}, statuses(songs))

	_, err = f.engine.CurrentSong(context.Background(), 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCurrentSong(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	_, err := f.engine.CurrentSong(context.Background(), 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)

	song, err := f.engine.CurrentSong(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, song.QueueNum)
}

func TestPlaylistDisplayOrder(t *testing.T) {
	f := newEngineFixture(t)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 4)

	_, err := f.engine.PlayAt(context.Background(), 1, 3)
	require.NoError(t, err)

	songs, err := f.engine.Playlist(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, songs, 4)
	assert.Equal(t, []model.SongStatus{
		model.SongPlayed, model.SongPlayed, model.SongPlaying, model.SongInQueue,
	}, statuses(songs))
	assert.Equal(t, "title ref2", songs[2].Title)
}

// memCache records cache traffic for Playlist tests.
type memCache struct {
	mu       sync.Mutex
	snapshot map[int64][]*model.Song
	sets     int
	hits     int
}

func newMemCache() *memCache {
	return &memCache{snapshot: make(map[int64][]*model.Song)}
}

func (c *memCache) Get(ctx context.Context, roomID int64) ([]*model.Song, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	songs, ok := c.snapshot[roomID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return songs, nil
}

func (c *memCache) Set(ctx context.Context, roomID int64, songs []*model.Song) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot[roomID] = songs
	c.sets++
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, roomID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshot, roomID)
	return nil
}

func TestPlaylistCacheRoundtrip(t *testing.T) {
	f := newEngineFixture(t)
	cache := newMemCache()
	f.engine = NewEngine(f.rooms, f.songs, f.res, cache)
	f.join(t, 1, 10, model.RoleHost)
	f.add(t, 1, 2)

	_, err := f.engine.Playlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, err = f.engine.Playlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	// Any mutation drops the snapshot.
	_, err = f.engine.PlayNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, cache.snapshot)
}
