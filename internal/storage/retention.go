package storage

import (
	"context"
	"time"
)

// RetentionTTL reports the configured maximum clip age.
func (s *Storage) RetentionTTL() time.Duration {
	return s.retentionTTL
}

// PurgeExpired scans every record and removes clips whose age has reached the
// retention TTL, reusing the same token-guarded record+blob deletion as an
// explicit delete. One record's failure is logged and the scan continues; the
// next sweep cycle retries whatever was left behind.
func (s *Storage) PurgeExpired(ctx context.Context) (int, error) {
	type candidate struct {
		id        string
		createdAt time.Time
	}

	now := s.now()
	s.mu.RLock()
	candidates := make([]candidate, 0)
	for id, video := range s.data.Videos {
		if now.Sub(video.CreatedAt) >= s.retentionTTL {
			candidates = append(candidates, candidate{id: id, createdAt: video.CreatedAt})
		}
	}
	s.mu.RUnlock()

	purged := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		release, err := s.locks.acquire(ctx, videoKey(c.id))
		if err != nil {
			s.logger.Warn("retention sweep skipped busy video", "video", c.id, "error", err)
			continue
		}

		// Recheck under the token: an edit cannot extend CreatedAt, but
		// the record may have been deleted while we waited.
		s.mu.RLock()
		video, exists := s.data.Videos[c.id]
		s.mu.RUnlock()
		if !exists || now.Sub(video.CreatedAt) < s.retentionTTL {
			release()
			continue
		}

		if err := s.deleteVideoHoldingToken(c.id); err != nil {
			s.logger.Error("retention sweep failed to delete video", "video", c.id, "error", err)
			release()
			continue
		}
		release()
		purged++
	}

	if purged > 0 {
		s.logger.Info("retention sweep removed expired videos", "purged", purged)
	}
	return purged, nil
}
