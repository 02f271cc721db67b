package storage

import (
	"context"

	"clipstash/internal/models"
)

// Repository exposes the datastore operations required by the HTTP handlers
// and the retention sweep worker. Both the JSON file driver and the Postgres
// driver satisfy it.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	ListVideos() []models.Video
	ListVideosByOwner(ownerID string) []models.Video
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) error

	CastVote(ctx context.Context, videoID, userID string, choice models.VoteChoice) (models.Video, error)
	GetVote(videoID, userID string) (models.VoteChoice, bool)

	GetProfile(userID string) (models.Profile, bool)
	UpsertProfile(ctx context.Context, userID string, update ProfileUpdate) (models.Profile, error)

	SetUsername(ctx context.Context, userID, name string) error
	GetUsername(userID string) (string, bool)

	PurgeExpired(ctx context.Context) (int, error)

	Blobs() *BlobStore
}

var _ Repository = (*Storage)(nil)
var _ Repository = (*postgresRepository)(nil)
