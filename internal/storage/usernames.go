package storage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeDisplayName trims and NFC-normalizes a display name so visually
// identical names cannot coexist under different codepoint sequences.
// Comparison stays case-sensitive.
func NormalizeDisplayName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// SetUsername binds a display name to a user, enforcing global uniqueness.
// The check and the write happen under the usernames token so two concurrent
// claims on the same free name cannot both succeed. Rebinding a user to a new
// name releases their previous one.
func (s *Storage) SetUsername(ctx context.Context, userID, name string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("userId is required: %w", ErrInvalidArgument)
	}
	normalized := NormalizeDisplayName(name)
	if normalized == "" {
		return fmt.Errorf("username is required: %w", ErrInvalidArgument)
	}

	release, err := s.locks.acquire(ctx, usernamesKey)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	for existingID, existing := range s.data.Usernames {
		if existing == normalized && existingID != userID {
			return fmt.Errorf("username %s already taken: %w", normalized, ErrConflict)
		}
	}

	previous, hadPrevious := s.data.Usernames[userID]
	s.data.Usernames[userID] = normalized
	if err := s.persist(); err != nil {
		if hadPrevious {
			s.data.Usernames[userID] = previous
		} else {
			delete(s.data.Usernames, userID)
		}
		return err
	}
	return nil
}

// GetUsername returns the display name bound to the user, if any.
func (s *Storage) GetUsername(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.data.Usernames[userID]
	return name, ok
}
