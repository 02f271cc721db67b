package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipstash/internal/storage"
)

type updateUsernameRequest struct {
	UserID      string `json:"userId"`
	NewUsername string `json:"newUsername"`
	Username    string `json:"username"`
}

func (r updateUsernameRequest) name() string {
	if strings.TrimSpace(r.NewUsername) != "" {
		return r.NewUsername
	}
	return r.Username
}

// UpdateUsername claims a display name for a user. Names are unique across all
// users and rebinding a user's existing name is allowed.
func (h *Handler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var req updateUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("userId is required"))
		return
	}

	if err := h.Store.SetUsername(r.Context(), userID, req.name()); err != nil {
		if errors.Is(err, storage.ErrResourceBusy) {
			h.recorder().ObserveBusyRejection("update_username")
		}
		writeStorageError(w, err)
		return
	}

	name, _ := h.Store.GetUsername(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "username updated",
		"username": name,
	})
}
