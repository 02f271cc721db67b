package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"clipstash/internal/models"
)

// CreateVideo stores the media blob, then commits the metadata record. The
// blob is written before the record so a crash can only leave an orphaned
// blob under a never-published id, never a record pointing at missing bytes.
func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	if params.Body == nil {
		return models.Video{}, fmt.Errorf("video blob is required: %w", ErrInvalidArgument)
	}

	ownerID := strings.TrimSpace(params.OwnerID)
	if ownerID == "" {
		ownerID = "Anonymous"
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = models.DefaultVideoTitle
	}
	description := strings.TrimSpace(params.Description)
	if description == "" {
		description = models.DefaultVideoDescription
	}

	id, err := newVideoID(ownerID, path.Ext(params.Filename))
	if err != nil {
		return models.Video{}, err
	}

	blob, err := s.blobs.SaveVideo(id, params.Body)
	if err != nil {
		return models.Video{}, err
	}

	release, err := s.locks.acquire(ctx, videoKey(id))
	if err != nil {
		_ = s.blobs.Remove(blob.Path)
		return models.Video{}, err
	}
	defer release()

	now := s.now()
	video := models.Video{
		ID:          id,
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Filename:    strings.TrimSpace(params.Filename),
		BlobPath:    blob.Path,
		ContentType: strings.TrimSpace(params.ContentType),
		SizeBytes:   blob.Size,
		Checksum:    blob.Checksum,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Videos[id]; exists {
		_ = s.blobs.Remove(blob.Path)
		return models.Video{}, fmt.Errorf("video %s already exists: %w", id, ErrConflict)
	}

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		delete(s.data.Videos, id)
		_ = s.blobs.Remove(blob.Path)
		return models.Video{}, err
	}

	return video, nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok
}

// ListVideos returns a point-in-time slice of every record, oldest first.
func (s *Storage) ListVideos() []models.Video {
	return s.ListVideosByOwner("")
}

// ListVideosByOwner filters the listing to a single owner; an empty owner
// returns everything.
func (s *Storage) ListVideosByOwner(ownerID string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if ownerID != "" && video.OwnerID != ownerID {
			continue
		}
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})
	return videos
}

// UpdateVideo merges the patch fields into the record. The full read-modify-
// write holds the record's resource token so concurrent edits cannot lose
// updates.
func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	release, err := s.locks.acquire(ctx, videoKey(id))
	if err != nil {
		return models.Video{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	original := video

	if update.Title != nil {
		if title := strings.TrimSpace(*update.Title); title != "" {
			video.Title = title
		}
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	video.UpdatedAt = s.now()

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = original
		return models.Video{}, err
	}
	return video, nil
}

// DeleteVideo removes the blob and its sidecar record as one logical unit,
// along with the video's vote ledger entries. Deleting an absent id is a
// no-op success so an explicit delete racing the retention sweep stays safe.
func (s *Storage) DeleteVideo(ctx context.Context, id string) error {
	release, err := s.locks.acquire(ctx, videoKey(id))
	if err != nil {
		return err
	}
	defer release()
	return s.deleteVideoHoldingToken(id)
}

// deleteVideoHoldingToken assumes the caller holds the video's resource
// token. The blob goes first: a crash mid-delete leaves a record without a
// blob, which the next delete or sweep pass finishes, and never an orphaned
// blob.
func (s *Storage) deleteVideoHoldingToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return nil
	}

	if err := s.blobs.Remove(video.BlobPath); err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}

	votes := s.data.Votes[id]
	delete(s.data.Videos, id)
	delete(s.data.Votes, id)
	if err := s.persist(); err != nil {
		s.data.Videos[id] = video
		if votes != nil {
			s.data.Votes[id] = votes
		}
		return err
	}
	return nil
}
