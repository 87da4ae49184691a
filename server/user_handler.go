package server

import (
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"kwadrop/apperr"
	"kwadrop/model"
)

// readAvatarUpload pulls the optional avatar file out of a multipart form
// and stores it, returning the object name or "" when no file was sent.
func (h *APIHandler) readAvatarUpload(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(int64(h.cfg.MaxAvatarMB) << 20); err != nil {
		if err == http.ErrNotMultipart || err == http.ErrMissingBoundary {
			return "", nil
		}
		return "", apperr.BadRequest("failed to parse form: %v", err)
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", apperr.BadRequest("failed to read avatar: %v", err)
	}
	defer file.Close()

	return h.storeAvatar(r, file, header)
}

func (h *APIHandler) storeAvatar(r *http.Request, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" {
		return "", apperr.BadRequest("Only jpeg and png images are allowed")
	}
	maxBytes := int64(h.cfg.MaxAvatarMB) << 20
	if header.Size > maxBytes {
		return "", apperr.BadRequest("File exceeds max size")
	}

	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	objectName := uuid.New().String() + ext
	if _, err := h.avatars.Put(r.Context(), objectName, file, header.Size, contentType); err != nil {
		return "", apperr.Wrap(err)
	}
	return objectName, nil
}

// CreateUserHandler creates a user for the current session.
func (h *APIHandler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	data, err := sessionData(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, apperr.BadRequest("name is required"))
		return
	}

	existing, err := h.users.GetUserBySessionID(data.SessionID)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	if existing != nil {
		writeError(w, apperr.Conflict("User for this session already exists."))
		return
	}

	avatar, err := h.readAvatarUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &model.User{Name: name, Avatar: avatar, SessionID: data.SessionID}
	id, err := h.users.CreateUser(user)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	user.ID = id

	data.UserID = id
	data.Username = name
	if err := h.sessions.Update(r.Context(), data); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// RenameUserHandler changes the current user's display name.
func (h *APIHandler) RenameUserHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := h.users.UpdateUserName(user.ID, name); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	user.Name = name

	if data, err := sessionData(r); err == nil {
		data.Username = name
		if err := h.sessions.Update(r.Context(), data); err != nil {
			writeError(w, apperr.Wrap(err))
			return
		}
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateAvatarHandler replaces or clears the current user's avatar.
func (h *APIHandler) UpdateAvatarHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	avatar, err := h.readAvatarUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// An empty upload clears the avatar; the janitor collects the old
	// object later.
	if err := h.users.UpdateUserAvatar(user.ID, avatar); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}
	user.Avatar = avatar

	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler removes the current session's user, disconnecting them
// from their room first.
func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
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
	if a != nil {
		if err := h.rooms.RemoveAssociation(r.Context(), user.ID); err != nil {
			writeError(w, apperr.Wrap(err))
			return
		}
	}

	if err := h.users.DeleteUser(user.ID); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	if data, err := sessionData(r); err == nil {
		data.UserID = 0
		data.Username = ""
		if err := h.sessions.Update(r.Context(), data); err != nil {
			writeError(w, apperr.Wrap(err))
			return
		}
	}

	writeJSON(w, http.StatusOK, user)
}
