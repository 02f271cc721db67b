package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func castVote(t *testing.T, handler *Handler, videoID, userID, vote string) (*httptest.ResponseRecorder, voteResponse) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"userId": userID, "vote": vote})
	req := httptest.NewRequest(http.MethodPost, "/video/"+videoID+"/vote", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Vote(rec, req)

	var response voteResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("decode vote response: %v", err)
		}
	}
	return rec, response
}

func TestVoteToggleAndSwitchSemantics(t *testing.T) {
	handler, _ := newTestHandler(t)
	clip := uploadClip(t, handler, "alice", "Clip", []byte("payload"))

	rec, response := castVote(t, handler, clip.Video.ID, "bob", "like")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first vote, got %d: %s", rec.Code, rec.Body.String())
	}
	if response.Likes != 1 || response.Dislikes != 0 || response.UserVote != "like" {
		t.Fatalf("unexpected first vote response: %+v", response)
	}

	// Repeating the same vote removes it.
	rec, response = castVote(t, handler, clip.Video.ID, "bob", "like")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for toggle, got %d", rec.Code)
	}
	if response.Likes != 0 || response.UserVote != "" {
		t.Fatalf("unexpected toggle response: %+v", response)
	}

	// Opposite choice replaces the previous vote.
	if _, response = castVote(t, handler, clip.Video.ID, "bob", "like"); response.Likes != 1 {
		t.Fatalf("expected like restored, got %+v", response)
	}
	rec, response = castVote(t, handler, clip.Video.ID, "bob", "dislike")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for switch, got %d", rec.Code)
	}
	if response.Likes != 0 || response.Dislikes != 1 || response.UserVote != "dislike" {
		t.Fatalf("unexpected switch response: %+v", response)
	}
}

func TestVoteCountsAcrossUsers(t *testing.T) {
	handler, _ := newTestHandler(t)
	clip := uploadClip(t, handler, "alice", "Clip", []byte("payload"))

	for _, user := range []string{"bob", "carol"} {
		if rec, _ := castVote(t, handler, clip.Video.ID, user, "like"); rec.Code != http.StatusOK {
			t.Fatalf("vote %s failed: %d", user, rec.Code)
		}
	}
	rec, response := castVote(t, handler, clip.Video.ID, "dave", "dislike")
	if rec.Code != http.StatusOK {
		t.Fatalf("vote dave failed: %d", rec.Code)
	}
	if response.Likes != 2 || response.Dislikes != 1 {
		t.Fatalf("expected counts 2/1, got %d/%d", response.Likes, response.Dislikes)
	}
}

func TestVoteValidationErrors(t *testing.T) {
	handler, _ := newTestHandler(t)
	clip := uploadClip(t, handler, "alice", "Clip", []byte("payload"))

	rec, _ := castVote(t, handler, clip.Video.ID, "bob", "banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus vote, got %d", rec.Code)
	}

	rec, _ = castVote(t, handler, clip.Video.ID, "", "like")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing user, got %d", rec.Code)
	}

	rec, _ = castVote(t, handler, "missing-clip", "bob", "like")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown clip, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/video/"+clip.Video.ID+"/vote", nil)
	recorder := httptest.NewRecorder()
	handler.Vote(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/video/"+clip.Video.ID+"/wrong", nil)
	recorder = httptest.NewRecorder()
	handler.Vote(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed path, got %d", recorder.Code)
	}
}
