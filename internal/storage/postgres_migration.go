package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS videos (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	filename     TEXT NOT NULL,
	blob_path    TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	checksum     TEXT NOT NULL DEFAULT '',
	likes        INTEGER NOT NULL DEFAULT 0,
	dislikes     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id);
CREATE INDEX IF NOT EXISTS videos_created_idx ON videos (created_at);

CREATE TABLE IF NOT EXISTS votes (
	video_id   TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	choice     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (video_id, user_id)
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id     TEXT PRIMARY KEY,
	bio         TEXT NOT NULL,
	avatar_path TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS usernames (
	user_id      TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	CONSTRAINT usernames_display_name_unique UNIQUE (display_name)
);
`

func (r *postgresRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ImportSnapshotToPostgres replays a snapshot into a Postgres-backed
// repository. It fails for any other driver.
func ImportSnapshotToPostgres(ctx context.Context, repo Repository, snapshot Snapshot) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return fmt.Errorf("snapshot import requires the postgres driver")
	}
	return pg.ImportSnapshot(ctx, snapshot)
}

// ImportSnapshot replays a JSON-driver snapshot into Postgres inside one
// transaction, used by the migration tool. Existing rows with matching keys
// are overwritten.
func (r *postgresRepository) ImportSnapshot(ctx context.Context, snapshot Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, video := range snapshot.Videos {
		if _, err := tx.Exec(ctx, `
			INSERT INTO videos (`+videoColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO UPDATE
			SET title = $2, description = $3, owner_id = $4, filename = $5,
			    blob_path = $6, content_type = $7, size_bytes = $8,
			    checksum = $9, likes = $10, dislikes = $11,
			    created_at = $12, updated_at = $13`,
			video.ID, video.Title, video.Description, video.OwnerID,
			video.Filename, video.BlobPath, video.ContentType,
			video.SizeBytes, video.Checksum, video.Likes, video.Dislikes,
			video.CreatedAt, video.UpdatedAt,
		); err != nil {
			return fmt.Errorf("import video %s: %w", video.ID, err)
		}
	}

	for videoID, ledger := range snapshot.Votes {
		for userID, choice := range ledger {
			if _, err := tx.Exec(ctx, `
				INSERT INTO votes (video_id, user_id, choice, created_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (video_id, user_id) DO UPDATE SET choice = $3`,
				videoID, userID, string(choice), r.now(),
			); err != nil {
				return fmt.Errorf("import vote %s/%s: %w", videoID, userID, err)
			}
		}
	}

	for _, profile := range snapshot.Profiles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles (user_id, bio, avatar_path, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO UPDATE
			SET bio = $2, avatar_path = $3, created_at = $4, updated_at = $5`,
			profile.UserID, profile.Bio, profile.AvatarPath, profile.CreatedAt, profile.UpdatedAt,
		); err != nil {
			return fmt.Errorf("import profile %s: %w", profile.UserID, err)
		}
	}

	for userID, name := range snapshot.Usernames {
		if _, err := tx.Exec(ctx, `
			INSERT INTO usernames (user_id, display_name, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET display_name = $2, updated_at = $3`,
			userID, name, r.now(),
		); err != nil {
			return fmt.Errorf("import username %s: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot import: %w", err)
	}
	return nil
}
