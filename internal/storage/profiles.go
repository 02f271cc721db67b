package storage

import (
	"context"
	"strings"

	"clipstash/internal/models"
)

// GetProfile returns the stored profile, or a defaulted one for users that
// never saved anything. The second return reports whether the profile was
// stored; an unknown user is still a successful read.
func (s *Storage) GetProfile(userID string) (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.data.Profiles[userID]
	if !ok {
		return models.DefaultProfile(userID), false
	}
	return profile, true
}

// UpsertProfile merges the patch into the stored profile, creating it lazily
// on first write. Omitted fields keep their previous values; a patch with no
// fields present is a successful no-op.
func (s *Storage) UpsertProfile(ctx context.Context, userID string, update ProfileUpdate) (models.Profile, error) {
	release, err := s.locks.acquire(ctx, profilesKey)
	if err != nil {
		return models.Profile{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, exists := s.data.Profiles[userID]
	now := s.now()
	if !exists {
		profile = models.DefaultProfile(userID)
		profile.CreatedAt = now
	}

	if update.Bio == nil && update.AvatarPath == nil {
		return profile, nil
	}

	original := profile
	if update.Bio != nil {
		if bio := strings.TrimSpace(*update.Bio); bio != "" {
			profile.Bio = bio
		}
	}
	if update.AvatarPath != nil {
		if avatar := strings.TrimSpace(*update.AvatarPath); avatar != "" {
			profile.AvatarPath = avatar
		}
	}
	profile.UpdatedAt = now

	s.data.Profiles[userID] = profile
	if err := s.persist(); err != nil {
		if exists {
			s.data.Profiles[userID] = original
		} else {
			delete(s.data.Profiles, userID)
		}
		return models.Profile{}, err
	}
	return profile, nil
}
