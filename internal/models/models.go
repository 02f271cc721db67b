package models

import (
	"fmt"
	"strings"
	"time"
)

// VoteChoice enumerates the vote values a viewer may cast on a clip.
type VoteChoice string

const (
	VoteLike    VoteChoice = "like"
	VoteDislike VoteChoice = "dislike"
)

// ParseVoteChoice validates a caller-supplied vote value. Anything other than
// the two canonical choices is rejected so bogus values never reach the
// ledger.
func ParseVoteChoice(value string) (VoteChoice, error) {
	switch VoteChoice(strings.ToLower(strings.TrimSpace(value))) {
	case VoteLike:
		return VoteLike, nil
	case VoteDislike:
		return VoteDislike, nil
	default:
		return "", fmt.Errorf("invalid vote %q", value)
	}
}

const (
	DefaultVideoTitle       = "Untitled"
	DefaultVideoDescription = "No description"
	DefaultProfileBio       = "No bio"
	DefaultProfileAvatar    = "default.png"
)

// Video is the sidecar metadata for an uploaded clip. Likes and Dislikes are
// derived from the vote ledger and are only written alongside a ledger
// mutation.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     string    `json:"ownerId"`
	Filename    string    `json:"filename"`
	BlobPath    string    `json:"blobPath"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	Checksum    string    `json:"checksum,omitempty"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Profile holds the stored portion of a user profile. The owned video list is
// derived on read and never persisted.
type Profile struct {
	UserID     string    `json:"userId"`
	Bio        string    `json:"bio"`
	AvatarPath string    `json:"avatarPath"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DefaultProfile returns the profile served for users that never stored one.
// Unknown users are a successful, defaulted read rather than an error.
func DefaultProfile(userID string) Profile {
	return Profile{
		UserID:     userID,
		Bio:        DefaultProfileBio,
		AvatarPath: DefaultProfileAvatar,
	}
}
