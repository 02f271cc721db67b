package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fetchProfile(t *testing.T, handler *Handler, userID string) profileResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/profile/"+userID, nil)
	rec := httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching profile, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return profile
}

func TestProfileUnknownUserServesDefaults(t *testing.T) {
	handler, _ := newTestHandler(t)

	profile := fetchProfile(t, handler, "ghost")
	if profile.UserID != "ghost" {
		t.Fatalf("expected userId ghost, got %q", profile.UserID)
	}
	if profile.Bio != "No bio" {
		t.Fatalf("expected default bio, got %q", profile.Bio)
	}
	if profile.AvatarURL != "/avatars/default.png" {
		t.Fatalf("expected default avatar url, got %q", profile.AvatarURL)
	}
	if len(profile.Videos) != 0 {
		t.Fatalf("expected no videos, got %d", len(profile.Videos))
	}
}

func TestProfileIncludesOwnedVideosAndUsername(t *testing.T) {
	handler, store := newTestHandler(t)
	clip := uploadClip(t, handler, "alice", "Mine", []byte("payload"))
	uploadClip(t, handler, "bob", "Theirs", []byte("other"))
	if err := store.SetUsername(context.Background(), "alice", "AliceStreams"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}

	profile := fetchProfile(t, handler, "alice")
	if profile.Username != "AliceStreams" {
		t.Fatalf("expected username in profile, got %q", profile.Username)
	}
	if len(profile.Videos) != 1 || profile.Videos[0].ID != clip.Video.ID {
		t.Fatalf("expected only alice's clip, got %+v", profile.Videos)
	}
}

func TestProfileUpdateMergesBio(t *testing.T) {
	handler, _ := newTestHandler(t)

	buf, contentType := multipartBody(t, map[string]string{"bio": "clip enjoyer"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/profile/alice", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating profile, got %d: %s", rec.Code, rec.Body.String())
	}

	profile := fetchProfile(t, handler, "alice")
	if profile.Bio != "clip enjoyer" {
		t.Fatalf("expected updated bio, got %q", profile.Bio)
	}

	// A second update without a bio field keeps the stored one.
	buf, contentType = multipartBody(t, nil, "avatar", "face.png", []byte("png bytes"))
	req = httptest.NewRequest(http.MethodPost, "/profile/alice", buf)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating avatar, got %d: %s", rec.Code, rec.Body.String())
	}

	profile = fetchProfile(t, handler, "alice")
	if profile.Bio != "clip enjoyer" {
		t.Fatalf("avatar update must not clear bio, got %q", profile.Bio)
	}
	if !strings.HasSuffix(profile.AvatarURL, "alice.png") {
		t.Fatalf("expected avatar url ending in alice.png, got %q", profile.AvatarURL)
	}
}

func TestProfileUpdateStoresAvatarBlob(t *testing.T) {
	handler, store := newTestHandler(t)

	buf, contentType := multipartBody(t, nil, "avatar", "face.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/profile/alice", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 uploading avatar, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.Blobs().Exists("avatars/alice.jpg") {
		t.Fatalf("expected avatar blob on disk")
	}
}

func TestProfileMethodAndPathErrors(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/profile/", nil)
	rec := httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing user id, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/profile/alice", nil)
	rec = httptest.NewRecorder()
	handler.ProfileByID(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE, got %d", rec.Code)
	}
}
