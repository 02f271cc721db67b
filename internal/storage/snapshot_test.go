package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clipstash/internal/models"
)

func TestExportSnapshotCopiesDataset(t *testing.T) {
	store := newTestStore(t)
	video := uploadTestClip(t, store, "alice", "Clip", "payload")
	if _, err := store.CastVote(context.Background(), video.ID, "bob", models.VoteLike); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	bio := "hi"
	if _, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &bio}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if err := store.SetUsername(context.Background(), "alice", "Alice"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}

	snapshot := store.ExportSnapshot()
	counts := snapshot.Counts()
	if counts.Videos != 1 || counts.Votes != 1 || counts.Profiles != 1 || counts.Usernames != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	// Mutating the snapshot must not touch the live dataset.
	delete(snapshot.Videos, video.ID)
	snapshot.Votes[video.ID]["bob"] = models.VoteDislike
	if _, ok := store.GetVideo(video.ID); !ok {
		t.Fatalf("snapshot mutation leaked into the store")
	}
	if choice, _ := store.GetVote(video.ID, "bob"); choice != models.VoteLike {
		t.Fatalf("snapshot vote mutation leaked into the store")
	}
}

func TestReadSnapshotFileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	video := uploadTestClip(t, store, "alice", "Clip", "payload")

	snapshot, err := ReadSnapshotFile(store.filePath)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	got, ok := snapshot.Videos[video.ID]
	if !ok {
		t.Fatalf("expected video %s in snapshot", video.ID)
	}
	if got.Checksum != video.Checksum {
		t.Fatalf("snapshot checksum mismatch")
	}
}

func TestReadSnapshotFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadSnapshotFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadSnapshotFile(path); err == nil {
		t.Fatalf("expected error for corrupt file")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("WriteFile empty: %v", err)
	}
	snapshot, err := ReadSnapshotFile(empty)
	if err != nil {
		t.Fatalf("expected empty file to parse as empty snapshot, got %v", err)
	}
	if counts := snapshot.Counts(); counts.Videos != 0 {
		t.Fatalf("expected empty snapshot, got %+v", counts)
	}
}
