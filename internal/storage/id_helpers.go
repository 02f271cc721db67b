package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var idSequence atomic.Uint64

// newVideoID derives a storage key from the owner label, the upload instant,
// a process-wide sequence number, and a random suffix. The sequence keeps two
// uploads in the same millisecond distinct within a process; the random
// suffix plus the store's duplicate-key rejection covers processes sharing a
// store.
func newVideoID(ownerID, ext string) (string, error) {
	owner := sanitizeIDComponent(ownerID)
	if owner == "" {
		owner = "anonymous"
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	seq := idSequence.Add(1)
	id := fmt.Sprintf("%s-%d-%d-%s", owner, time.Now().UnixMilli(), seq, hex.EncodeToString(suffix))
	if ext = normalizeExtension(ext); ext != "" {
		id += ext
	}
	return id, nil
}

func sanitizeIDComponent(value string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
