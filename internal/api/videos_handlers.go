package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"clipstash/internal/models"
	"clipstash/internal/storage"
)

type videoResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	Likes       int    `json:"likes"`
	Dislikes    int    `json:"dislikes"`
	MediaURL    string `json:"mediaUrl"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type uploadResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Video   videoResponse `json:"video"`
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type uploadedMedia struct {
	tempPath     string
	size         int64
	originalName string
	contentType  string
}

func newVideoResponse(video models.Video) videoResponse {
	return videoResponse{
		ID:          video.ID,
		Title:       video.Title,
		Description: video.Description,
		OwnerID:     video.OwnerID,
		Filename:    video.Filename,
		ContentType: video.ContentType,
		SizeBytes:   video.SizeBytes,
		Likes:       video.Likes,
		Dislikes:    video.Dislikes,
		MediaURL:    "/videos/media/" + video.ID,
		CreatedAt:   video.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   video.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// Upload accepts a multipart clip upload with optional title, description, and
// userId form fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart payload"))
		return
	}

	var (
		media       *uploadedMedia
		title       string
		description string
		userID      string
	)
	defer func() {
		if media != nil && media.tempPath != "" {
			_ = os.Remove(media.tempPath)
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
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "video" || name == "file" {
			if media != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := saveMultipartFile(part)
			if saveErr != nil {
				writeError(w, http.StatusBadRequest, saveErr)
				return
			}
			media = saved
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read form field: %w", readErr))
			return
		}
		value := strings.TrimSpace(string(payload))
		switch name {
		case "title":
			title = value
		case "description":
			description = value
		case "userId":
			userID = value
		}
	}

	if media == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("video field is required"))
		return
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("userId is required"))
		return
	}

	file, err := os.Open(media.tempPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
		return
	}
	defer file.Close()

	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		Title:       title,
		Description: description,
		OwnerID:     userID,
		Filename:    media.originalName,
		ContentType: media.contentType,
		Body:        file,
	})
	if err != nil {
		if errors.Is(err, storage.ErrResourceBusy) {
			h.recorder().ObserveBusyRejection("upload")
		}
		writeStorageError(w, err)
		return
	}

	h.recorder().VideoUploaded()
	h.logger().Info("video uploaded", "video_id", video.ID, "owner_id", video.OwnerID, "size_bytes", video.SizeBytes)
	writeJSON(w, http.StatusCreated, uploadResult{
		Success: true,
		Message: "upload complete",
		Video:   newVideoResponse(video),
	})
}

func saveMultipartFile(part *multipart.Part) (*uploadedMedia, error) {
	defer part.Close()
	tmp, err := os.CreateTemp("", "pending-clip-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()
	written, err := io.Copy(tmp, part)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return &uploadedMedia{
		tempPath:     tmp.Name(),
		size:         written,
		originalName: part.FileName(),
		contentType:  part.Header.Get("Content-Type"),
	}, nil
}

// Videos lists every stored clip ordered by creation time.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	videos := h.Store.ListVideos()
	response := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		response = append(response, newVideoResponse(video))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "videos": response})
}

// VideoByID handles metadata edits and deletion for a single clip.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/videos/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		video, ok := h.Store.GetVideo(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(video))
	case http.MethodPut:
		var req updateVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		update := storage.VideoUpdate{Title: req.Title, Description: req.Description}
		video, err := h.Store.UpdateVideo(r.Context(), id, update)
		if err != nil {
			if errors.Is(err, storage.ErrResourceBusy) {
				h.recorder().ObserveBusyRejection("update_video")
			}
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "video": newVideoResponse(video)})
	case http.MethodDelete:
		if _, ok := h.Store.GetVideo(id); !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
			return
		}
		if err := h.Store.DeleteVideo(r.Context(), id); err != nil {
			if errors.Is(err, storage.ErrResourceBusy) {
				h.recorder().ObserveBusyRejection("delete_video")
			}
			writeStorageError(w, err)
			return
		}
		h.recorder().VideoDeleted()
		h.logger().Info("video deleted", "video_id", id)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "video deleted"})
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

// VideoMedia streams the stored clip bytes.
func (h *Handler) VideoMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/videos/media/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}
	video, ok := h.Store.GetVideo(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
		return
	}
	file, err := h.Store.Blobs().Open(video.BlobPath)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
		return
	}
	contentType := strings.TrimSpace(video.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, video.Filename, stat.ModTime(), file)
}
