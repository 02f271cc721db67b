package storage

import (
	"context"
	"errors"
	"testing"
)

func TestGetProfileUnknownUserReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	profile, stored := store.GetProfile("ghost")
	if stored {
		t.Fatalf("expected unknown user to report not stored")
	}
	if profile.UserID != "ghost" {
		t.Fatalf("expected userId ghost, got %q", profile.UserID)
	}
	if profile.Bio != "No bio" {
		t.Fatalf("expected default bio, got %q", profile.Bio)
	}
	if profile.AvatarPath != "default.png" {
		t.Fatalf("expected default avatar, got %q", profile.AvatarPath)
	}
}

func TestUpsertProfileMergesOmittedFields(t *testing.T) {
	store := newTestStore(t)

	bio := "streamer of clips"
	profile, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("UpsertProfile bio: %v", err)
	}
	if profile.Bio != bio {
		t.Fatalf("expected bio %q, got %q", bio, profile.Bio)
	}
	if profile.AvatarPath != "default.png" {
		t.Fatalf("expected avatar untouched, got %q", profile.AvatarPath)
	}

	avatar := "avatars/alice.png"
	profile, err = store.UpsertProfile(context.Background(), "alice", ProfileUpdate{AvatarPath: &avatar})
	if err != nil {
		t.Fatalf("UpsertProfile avatar: %v", err)
	}
	if profile.Bio != bio {
		t.Fatalf("expected bio preserved through avatar patch, got %q", profile.Bio)
	}
	if profile.AvatarPath != avatar {
		t.Fatalf("expected avatar %q, got %q", avatar, profile.AvatarPath)
	}
}

func TestUpsertProfileEmptyPatchIsNoOp(t *testing.T) {
	store := newTestStore(t)

	bio := "original"
	if _, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &bio}); err != nil {
		t.Fatalf("UpsertProfile seed: %v", err)
	}
	before, _ := store.GetProfile("alice")

	profile, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{})
	if err != nil {
		t.Fatalf("UpsertProfile empty patch: %v", err)
	}
	if profile.Bio != before.Bio || profile.AvatarPath != before.AvatarPath {
		t.Fatalf("empty patch changed profile: %+v vs %+v", profile, before)
	}
	if !profile.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("empty patch should not bump UpdatedAt")
	}
}

func TestUpsertProfileBlankFieldKeepsPrevious(t *testing.T) {
	store := newTestStore(t)

	bio := "original"
	if _, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &bio}); err != nil {
		t.Fatalf("UpsertProfile seed: %v", err)
	}

	blank := "   "
	profile, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &blank})
	if err != nil {
		t.Fatalf("UpsertProfile blank: %v", err)
	}
	if profile.Bio != "original" {
		t.Fatalf("blank bio should keep previous value, got %q", profile.Bio)
	}
}

func TestUpsertProfilePersistFailureLeavesDataUntouched(t *testing.T) {
	store := newTestStore(t)

	initial := "initial"
	if _, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &initial}); err != nil {
		t.Fatalf("UpsertProfile initial: %v", err)
	}

	store.persistOverride = func(dataset) error {
		return errors.New("persist failed")
	}
	updated := "updated"
	if _, err := store.UpsertProfile(context.Background(), "alice", ProfileUpdate{Bio: &updated}); err == nil {
		t.Fatalf("expected UpsertProfile error when persist fails")
	}
	store.persistOverride = nil

	profile, ok := store.GetProfile("alice")
	if !ok {
		t.Fatalf("expected profile to remain")
	}
	if profile.Bio != initial {
		t.Fatalf("expected bio %q after rollback, got %q", initial, profile.Bio)
	}
}

func TestUpsertProfilePersistFailureRemovesLazyProfile(t *testing.T) {
	store := newTestStore(t)

	store.persistOverride = func(dataset) error {
		return errors.New("persist failed")
	}
	bio := "hello"
	if _, err := store.UpsertProfile(context.Background(), "fresh", ProfileUpdate{Bio: &bio}); err == nil {
		t.Fatalf("expected UpsertProfile error when persist fails")
	}
	store.persistOverride = nil

	if _, stored := store.GetProfile("fresh"); stored {
		t.Fatalf("expected lazily created profile to be rolled back")
	}
}
