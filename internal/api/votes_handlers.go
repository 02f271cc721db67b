package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipstash/internal/models"
	"clipstash/internal/storage"
)

type voteRequest struct {
	UserID string `json:"userId"`
	Vote   string `json:"vote"`
}

type voteResponse struct {
	Success  bool   `json:"success"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	UserVote string `json:"userVote"`
}

// Vote records a like or dislike for a clip. Repeating a vote removes it and
// submitting the opposite choice replaces the previous one.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/video/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "vote" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown video path"))
		return
	}
	videoID := parts[0]

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	choice, err := models.ParseVoteChoice(req.Vote)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("userId is required"))
		return
	}

	previous, hadVote := h.Store.GetVote(videoID, userID)
	video, err := h.Store.CastVote(r.Context(), videoID, userID, choice)
	if err != nil {
		if errors.Is(err, storage.ErrResourceBusy) {
			h.recorder().ObserveBusyRejection("vote")
		}
		writeStorageError(w, err)
		return
	}

	current, voted := h.Store.GetVote(videoID, userID)
	outcome := "recorded"
	switch {
	case !voted:
		outcome = "removed"
	case hadVote && previous != choice:
		outcome = "switched"
	}
	h.recorder().ObserveVote(string(choice), outcome)

	writeJSON(w, http.StatusOK, voteResponse{
		Success:  true,
		Likes:    video.Likes,
		Dislikes: video.Dislikes,
		UserVote: string(current),
	})
}
