package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/erazemk/oprema/internal/imaging"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// UsersHandler handles user endpoints.
type UsersHandler struct {
	Store          store.Store
	UploadsDir     string
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err, "listing users")
		return
	}

	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	jsonResponse(w, http.StatusOK, out)
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.Store.GetUser(r.Context(), ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, "getting current user")
		return
	}
	if me == nil {
		writeError(w, r, model.ErrMeNotFound, "")
		return
	}
	jsonResponse(w, http.StatusOK, me.Public())
}

// UploadAvatar handles POST /api/users/me/avatar.
func (h *UsersHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	actorID := ActorID(r.Context())

	file, size, err := ReadAvatarUpload(w, r, h.MaxUploadBytes)
	if err != nil {
		h.Metrics.AvatarUpload(metrics.OutcomeRejected)
		writeError(w, r, err, "")
		return
	}
	defer file.Close()

	name, err := ReplaceAvatar(r.Context(), h.Store, h.UploadsDir, actorID, file)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.Metrics.AvatarUpload(metrics.OutcomeRejected)
			writeError(w, r, model.ErrMeNotFound, "")
			return
		}
		h.Metrics.AvatarUpload(metrics.OutcomeError)
		slog.Error("avatar upload failed", "error", err, "user", actorID, "request_id", RequestID(r.Context()))
		jsonError(w, http.StatusInternalServerError, "avatar upload failed")
		return
	}

	h.Metrics.AvatarUpload(metrics.OutcomeOK)
	slog.Info("avatar updated", "user", actorID, "file", name, "size", size)
	jsonResponse(w, http.StatusOK, map[string]*string{"avatarUrl": model.AvatarURL(name)})
}

// ReadAvatarUpload extracts the "avatar" file from a multipart request,
// enforcing maxBytes on the file. The caller closes the returned file.
// Failures are model.ErrNoFile or model.ErrFileTooLarge.
func ReadAvatarUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, int64, error) {
	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, 0, model.ErrFileTooLarge
		}
		return nil, 0, model.ErrNoFile
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		return nil, 0, model.ErrNoFile
	}
	if header.Size > maxBytes {
		file.Close()
		return nil, 0, model.ErrFileTooLarge
	}
	return file, header.Size, nil
}

// ReplaceAvatar processes an uploaded image, stores it under the user's
// fixed avatar name and points the user record at it. The record is only
// updated once the file is in place. A missing user yields
// model.ErrMeNotFound; anything else is an internal failure.
func ReplaceAvatar(ctx context.Context, s store.Store, dir string, userID int64, src io.Reader) (string, error) {
	me, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("getting user: %w", err)
	}
	if me == nil {
		return "", model.ErrMeNotFound
	}

	name, err := imaging.SaveAvatar(dir, userID, src)
	if err != nil {
		return "", fmt.Errorf("saving avatar: %w", err)
	}

	if err := s.SetUserAvatar(ctx, userID, name); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrMeNotFound
		}
		return "", fmt.Errorf("updating avatar reference: %w", err)
	}
	return name, nil
}
