package server

import (
	"net/http"
	"strconv"

	"kwadrop/apperr"
	"kwadrop/model"
)

// PlaylistResponse is the get_playlist payload.
type PlaylistResponse struct {
	Songs []*model.Song `json:"songs"`
}

func queueNumParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest("invalid %s", name)
	}
	return n, nil
}

// AddSongHandler queues a song resolved from a link or search phrase. When the
// phrase is ambiguous, it answers 449 with up to five candidates to retry with.
func (h *APIHandler) AddSongHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := r.URL.Query().Get("link")
	if ref == "" {
		writeError(w, apperr.BadRequest("link is required"))
		return
	}

	var after *int
	if r.URL.Query().Has("queue_num") {
		n, err := queueNumParam(r, "queue_num")
		if err != nil {
			writeError(w, err)
			return
		}
		after = &n
	}

	result, err := h.engine.AddSong(r.Context(), user.ID, ref, after)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(result.Candidates) > 0 {
		writeJSON(w, StatusDisambiguation, result.Candidates)
		return
	}

	writeJSON(w, http.StatusOK, result.Song)
}

// PlayNextHandler advances playback to the next song.
func (h *APIHandler) PlayNextHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.engine.PlayNext(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// PlayPrevHandler moves playback back to the previous song.
func (h *APIHandler) PlayPrevHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.engine.PlayPrev(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// PlayThisHandler jumps playback to the song at the given queue index.
func (h *APIHandler) PlayThisHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := queueNumParam(r, "queue_num")
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.engine.PlayAt(r.Context(), user.ID, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// SwapSongsHandler exchanges the positions of two songs.
func (h *APIHandler) SwapSongsHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := queueNumParam(r, "queue_num1")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := queueNumParam(r, "queue_num2")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.SwapSongs(r.Context(), user.ID, a, b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteSongHandler removes the song at the given queue index.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := queueNumParam(r, "queue_num")
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.engine.DeleteSong(r.Context(), user.ID, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// GetCurrentSongHandler returns the song currently playing.
func (h *APIHandler) GetCurrentSongHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.engine.CurrentSong(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// GetPlaylistHandler returns the room playlist in display order.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	songs, err := h.engine.Playlist(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PlaylistResponse{Songs: songs})
}
