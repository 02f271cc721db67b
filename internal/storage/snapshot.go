package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"clipstash/internal/models"
)

// Snapshot is a complete JSON-serialisable view of the datastore, keyed the
// same way the live dataset is, so one driver's contents can be replayed into
// another.
type Snapshot struct {
	Videos    map[string]models.Video                 `json:"videos"`
	Votes     map[string]map[string]models.VoteChoice `json:"votes"`
	Profiles  map[string]models.Profile               `json:"profiles"`
	Usernames map[string]string                       `json:"usernames"`
}

// ExportSnapshot copies the current dataset.
func (s *Storage) ExportSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := cloneDataset(s.data)
	return Snapshot{
		Videos:    data.Videos,
		Votes:     data.Votes,
		Profiles:  data.Profiles,
		Usernames: data.Usernames,
	}
}

// SnapshotCounts summarises a snapshot for migration verification.
type SnapshotCounts struct {
	Videos    int
	Votes     int
	Profiles  int
	Usernames int
}

// Counts tallies the records held in the snapshot.
func (s Snapshot) Counts() SnapshotCounts {
	counts := SnapshotCounts{
		Videos:    len(s.Videos),
		Profiles:  len(s.Profiles),
		Usernames: len(s.Usernames),
	}
	for _, ledger := range s.Votes {
		counts.Votes += len(ledger)
	}
	return counts
}

// ReadSnapshotFile parses a JSON datastore file into a Snapshot without
// constructing a live store, used by the migration tool.
func ReadSnapshotFile(path string) (Snapshot, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", path, ErrNotFound)
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	var snapshot Snapshot
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&snapshot); err != nil {
		if errors.Is(err, io.EOF) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", fmt.Errorf("%w: %v", ErrCorruptDataset, err))
	}
	return snapshot, nil
}
