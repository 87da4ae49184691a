package server

import (
	"net/http"
	"strconv"
	"time"

	"kwadrop/apperr"
	"kwadrop/core/auth"
	"kwadrop/model"
)

// RoomAssociation pairs a roommate with their role.
type RoomAssociation struct {
	User *model.User `json:"user"`
	Role model.Role  `json:"role"`
}

// UserListResponse is the get_roommates payload.
type UserListResponse struct {
	Users []RoomAssociation `json:"users"`
}

// CreateRoomHandler creates a room; the creator joins as host.
func (h *APIHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, apperr.BadRequest("name is required"))
		return
	}

	a, err := h.rooms.GetAssociationByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if a != nil {
		writeError(w, apperr.Conflict("User already has association to existing room."))
		return
	}

	room := &model.Room{Name: name}
	if password := r.URL.Query().Get("password"); password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			writeError(w, apperr.Wrap(err))
			return
		}
		room.PasswordHash = hash
	}

	if err := h.rooms.Create(r.Context(), room); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	assoc := &model.Association{
		UserID:   user.ID,
		RoomID:   room.ID,
		Role:     model.RoleHost,
		JoinedAt: time.Now(),
	}
	if err := h.rooms.AddAssociation(r.Context(), assoc); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// ConnectHandler joins the caller to a room as a basic member.
func (h *APIHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	roomID, err := strconv.ParseInt(r.URL.Query().Get("room_id"), 10, 64)
	if err != nil {
		writeError(w, apperr.BadRequest("invalid room_id"))
		return
	}

	a, err := h.rooms.GetAssociationByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if a != nil {
		writeError(w, apperr.Conflict("User already has association to existing room."))
		return
	}

	room, err := h.rooms.GetByID(r.Context(), roomID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if room == nil {
		writeError(w, apperr.NotFound("There is no room with id %d.", roomID))
		return
	}

	if room.PasswordHash != "" {
		if !auth.CheckPasswordHash(r.URL.Query().Get("password"), room.PasswordHash) {
			writeError(w, apperr.Forbidden("Password is incorrect"))
			return
		}
	}

	assoc := &model.Association{
		UserID:   user.ID,
		RoomID:   room.ID,
		Role:     model.RoleBasic,
		JoinedAt: time.Now(),
	}
	if err := h.rooms.AddAssociation(r.Context(), assoc); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// DisconnectHandler removes the caller from their room.
func (h *APIHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.rooms.GetAssociationByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if a == nil {
		writeError(w, apperr.NotFound("This user has no association with any room."))
		return
	}

	if err := h.rooms.RemoveAssociation(r.Context(), user.ID); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetRoommatesHandler lists the members of the caller's room.
func (h *APIHandler) GetRoommatesHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.roomAssociation(r, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.rooms.ListAssociations(r.Context(), a.RoomID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	resp := UserListResponse{Users: make([]RoomAssociation, 0, len(list))}
	for _, assoc := range list {
		member, err := h.users.GetUserByID(assoc.UserID)
		if err != nil {
			writeError(w, apperr.Wrap(err))
			return
		}
		if member == nil {
			continue
		}
		resp.Users = append(resp.Users, RoomAssociation{User: member, Role: assoc.Role})
	}

	writeJSON(w, http.StatusOK, resp)
}

// EditRoomHandler updates the room's name or password.
func (h *APIHandler) EditRoomHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.roomAssociation(r, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !a.CanEditRoom() {
		writeError(w, apperr.Forbidden("This user has no permission to edit this room."))
		return
	}

	room, err := h.rooms.GetByID(r.Context(), a.RoomID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if room == nil {
		writeError(w, apperr.NotFound("There is no room with id %d.", a.RoomID))
		return
	}

	query := r.URL.Query()
	if query.Has("name") {
		room.Name = query.Get("name")
	}
	if query.Has("password") {
		if password := query.Get("password"); password == "" {
			room.PasswordHash = ""
		} else {
			hash, err := auth.HashPassword(password)
			if err != nil {
				writeError(w, apperr.Wrap(err))
				return
			}
			room.PasswordHash = hash
		}
	}

	if err := h.rooms.Update(r.Context(), room); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// DeleteRoomHandler deletes the caller's room, disconnecting all members and
// dropping its songs.
func (h *APIHandler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.roomAssociation(r, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !a.CanEditRoom() {
		writeError(w, apperr.Forbidden("This user has no permission to edit this room."))
		return
	}

	room, err := h.rooms.GetByID(r.Context(), a.RoomID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if room == nil {
		writeError(w, apperr.NotFound("There is no room with id %d.", a.RoomID))
		return
	}

	if err := h.rooms.Delete(r.Context(), room.ID); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// roomAssociation returns the caller's room association, excluding banned
// members.
func (h *APIHandler) roomAssociation(r *http.Request, userID int64) (*model.Association, error) {
	a, err := h.rooms.GetAssociationByUser(r.Context(), userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if a == nil || a.Role == model.RoleBanned {
		return nil, apperr.NotFound("This user has no association with any room.")
	}
	return a, nil
}
