package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"clipstash/internal/models"
	"clipstash/internal/storage"
)

type profileResponse struct {
	UserID    string          `json:"userId"`
	Username  string          `json:"username,omitempty"`
	Bio       string          `json:"bio"`
	AvatarURL string          `json:"avatarUrl"`
	Videos    []videoResponse `json:"videos"`
}

func (h *Handler) newProfileResponse(profile models.Profile) profileResponse {
	resp := profileResponse{
		UserID:    profile.UserID,
		Bio:       profile.Bio,
		AvatarURL: avatarURL(profile.AvatarPath),
	}
	if name, ok := h.Store.GetUsername(profile.UserID); ok {
		resp.Username = name
	}
	videos := h.Store.ListVideosByOwner(profile.UserID)
	resp.Videos = make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		resp.Videos = append(resp.Videos, newVideoResponse(video))
	}
	return resp
}

func avatarURL(path string) string {
	if path == "" || path == models.DefaultProfileAvatar {
		return "/avatars/" + models.DefaultProfileAvatar
	}
	return "/avatars/" + filepath.Base(path)
}

// ProfileByID serves a profile on GET and merges submitted fields on POST.
// Reading an unknown user returns defaults rather than an error.
func (h *Handler) ProfileByID(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/profile/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("user id missing"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, _ := h.Store.GetProfile(userID)
		writeJSON(w, http.StatusOK, h.newProfileResponse(profile))
	case http.MethodPost:
		h.updateProfile(w, r, userID)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

// updateProfile accepts multipart form data with optional bio and avatar
// fields. Omitted fields keep their stored values.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart payload"))
		return
	}

	var (
		bio    *string
		avatar *uploadedMedia
	)
	defer func() {
		if avatar != nil && avatar.tempPath != "" {
			_ = os.Remove(avatar.tempPath)
		}
	}()

	for {
		part, partErr := reader.NextPart()
		if errors.Is(partErr, io.EOF) {
			break
		}
		if partErr != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read multipart data: %w", partErr))
			return
		}
		name := part.FormName()
		switch name {
		case "avatar":
			if avatar != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := saveMultipartFile(part)
			if saveErr != nil {
				writeError(w, http.StatusBadRequest, saveErr)
				return
			}
			avatar = saved
		case "bio":
			payload, readErr := io.ReadAll(part)
			_ = part.Close()
			if readErr != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("read form field: %w", readErr))
				return
			}
			value := strings.TrimSpace(string(payload))
			bio = &value
		default:
			_ = part.Close()
		}
	}

	update := storage.ProfileUpdate{Bio: bio}
	if avatar != nil {
		file, openErr := os.Open(avatar.tempPath)
		if openErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			return
		}
		ext := strings.ToLower(filepath.Ext(avatar.originalName))
		if ext == "" {
			ext = ".png"
		}
		info, saveErr := h.Store.Blobs().SaveAvatar(userID+ext, file)
		_ = file.Close()
		if saveErr != nil {
			writeStorageError(w, saveErr)
			return
		}
		update.AvatarPath = &info.Path
	}

	profile, err := h.Store.UpsertProfile(r.Context(), userID, update)
	if err != nil {
		if errors.Is(err, storage.ErrResourceBusy) {
			h.recorder().ObserveBusyRejection("update_profile")
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "profile updated",
		"profile": h.newProfileResponse(profile),
	})
}
