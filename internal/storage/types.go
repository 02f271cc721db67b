package storage

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"clipstash/internal/models"
)

// DefaultRetentionTTL is the maximum clip age before the sweeper removes it.
const DefaultRetentionTTL = 168 * time.Hour

type dataset struct {
	Videos    map[string]models.Video                      `json:"videos"`
	Votes     map[string]map[string]models.VoteChoice      `json:"votes"`
	Profiles  map[string]models.Profile                    `json:"profiles"`
	Usernames map[string]string                            `json:"usernames"`
}

// Storage is the JSON file-resident datastore. The dataset lives in memory
// behind mu and every committed mutation is persisted atomically; read-modify-
// write sequences additionally hold the owning resource token so the mutex is
// only ever held for map access and the file swap.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	locks           *resourceLocks
	blobs           *BlobStore
	retentionTTL    time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// CreateVideoParams captures the attributes of a new clip upload. Body is the
// raw media stream; it is stored before the metadata record is committed.
type CreateVideoParams struct {
	Title       string
	Description string
	OwnerID     string
	Filename    string
	ContentType string
	Body        io.Reader
}

// VideoUpdate describes a metadata patch. Nil fields are omitted from the
// merge and keep their previous values.
type VideoUpdate struct {
	Title       *string
	Description *string
}

// ProfileUpdate describes a profile patch with the same omitted-vs-present
// semantics as VideoUpdate.
type ProfileUpdate struct {
	Bio        *string
	AvatarPath *string
}

func newDataset() dataset {
	return dataset{
		Videos:    make(map[string]models.Video),
		Votes:     make(map[string]map[string]models.VoteChoice),
		Profiles:  make(map[string]models.Profile),
		Usernames: make(map[string]string),
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Votes == nil {
		s.data.Votes = make(map[string]map[string]models.VoteChoice)
	}
	if s.data.Profiles == nil {
		s.data.Profiles = make(map[string]models.Profile)
	}
	if s.data.Usernames == nil {
		s.data.Usernames = make(map[string]string)
	}
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()
	for id, video := range src.Videos {
		clone.Videos[id] = video
	}
	for videoID, votes := range src.Votes {
		if votes == nil {
			clone.Votes[videoID] = nil
			continue
		}
		cloned := make(map[string]models.VoteChoice, len(votes))
		for userID, choice := range votes {
			cloned[userID] = choice
		}
		clone.Votes[videoID] = cloned
	}
	for userID, profile := range src.Profiles {
		clone.Profiles[userID] = profile
	}
	for userID, name := range src.Usernames {
		clone.Usernames[userID] = name
	}
	return clone
}
