package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipstash/internal/models"
)

const pgUniqueViolation = "23505"

// postgresRepository implements Repository on a pgx connection pool. Row
// locks inside per-operation transactions provide the same per-resource
// serialization the JSON driver gets from its token table; media blobs still
// live in the shared BlobStore.
type postgresRepository struct {
	pool         *pgxpool.Pool
	blobs        *BlobStore
	retentionTTL time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewPostgresRepository opens the Postgres-backed repository and ensures the
// schema exists.
func NewPostgresRepository(dsn string, blobs *BlobStore, opts ...Option) (Repository, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{
		pool:         pool,
		blobs:        blobs,
		retentionTTL: cfg.RetentionTTL,
		lockTimeout:  cfg.LockTimeout,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), repo.lockTimeout)
	defer cancel()
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) Blobs() *BlobStore {
	return r.blobs
}

// opContext bounds an operation the same way token acquisition bounds the
// JSON driver; an exceeded deadline surfaces as ErrResourceBusy.
func (r *postgresRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.lockTimeout)
}

func (r *postgresRepository) classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%v: %w", pgErr.ConstraintName, ErrConflict)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("postgres deadline: %w", ErrResourceBusy)
	}
	return err
}

const videoColumns = "id, title, description, owner_id, filename, blob_path, content_type, size_bytes, checksum, likes, dislikes, created_at, updated_at"

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(
		&video.ID, &video.Title, &video.Description, &video.OwnerID,
		&video.Filename, &video.BlobPath, &video.ContentType,
		&video.SizeBytes, &video.Checksum, &video.Likes, &video.Dislikes,
		&video.CreatedAt, &video.UpdatedAt,
	)
	return video, err
}

func (r *postgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
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
	blob, err := r.blobs.SaveVideo(id, params.Body)
	if err != nil {
		return models.Video{}, err
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	now := r.now()
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

	_, err = r.pool.Exec(opCtx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		video.ID, video.Title, video.Description, video.OwnerID,
		video.Filename, video.BlobPath, video.ContentType,
		video.SizeBytes, video.Checksum, video.Likes, video.Dislikes,
		video.CreatedAt, video.UpdatedAt,
	)
	if err != nil {
		_ = r.blobs.Remove(blob.Path)
		return models.Video{}, fmt.Errorf("insert video: %w", r.classify(err))
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(id string) (models.Video, bool) {
	ctx, cancel := r.opContext(context.Background())
	defer cancel()

	video, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		return models.Video{}, false
	}
	return video, true
}

func (r *postgresRepository) ListVideos() []models.Video {
	return r.ListVideosByOwner("")
}

func (r *postgresRepository) ListVideosByOwner(ownerID string) []models.Video {
	ctx, cancel := r.opContext(context.Background())
	defer cancel()

	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at, id`
	args := []any{}
	if ownerID != "" {
		query = `SELECT ` + videoColumns + ` FROM videos WHERE owner_id = $1 ORDER BY created_at, id`
		args = append(args, ownerID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("list videos query failed", "error", err)
		return nil
	}
	defer rows.Close()

	videos := make([]models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			r.logger.Error("list videos scan failed", "error", err)
			continue
		}
		videos = append(videos, video)
	}
	return videos
}

func (r *postgresRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var title, description *string
	if update.Title != nil {
		if trimmed := strings.TrimSpace(*update.Title); trimmed != "" {
			title = &trimmed
		}
	}
	if update.Description != nil {
		trimmed := strings.TrimSpace(*update.Description)
		description = &trimmed
	}

	video, err := scanVideo(r.pool.QueryRow(opCtx, `
		UPDATE videos
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    updated_at = $4
		WHERE id = $1
		RETURNING `+videoColumns,
		id, title, description, r.now(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	} else if err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", r.classify(err))
	}
	return video, nil
}

func (r *postgresRepository) DeleteVideo(ctx context.Context, id string) error {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(opCtx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin delete: %w", r.classify(err))
	}
	defer func() { _ = tx.Rollback(opCtx) }()

	var blobPath string
	err = tx.QueryRow(opCtx, `SELECT blob_path FROM videos WHERE id = $1 FOR UPDATE`, id).Scan(&blobPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	} else if err != nil {
		return fmt.Errorf("lock video: %w", r.classify(err))
	}

	if err := r.blobs.Remove(blobPath); err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	if _, err := tx.Exec(opCtx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete video row: %w", r.classify(err))
	}
	if err := tx.Commit(opCtx); err != nil {
		return fmt.Errorf("commit delete: %w", r.classify(err))
	}
	return nil
}

func (r *postgresRepository) CastVote(ctx context.Context, videoID, userID string, choice models.VoteChoice) (models.Video, error) {
	if choice != models.VoteLike && choice != models.VoteDislike {
		return models.Video{}, fmt.Errorf("vote %q: %w", choice, ErrInvalidArgument)
	}
	if userID == "" {
		return models.Video{}, fmt.Errorf("userId is required: %w", ErrInvalidArgument)
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(opCtx, pgx.TxOptions{})
	if err != nil {
		return models.Video{}, fmt.Errorf("begin vote: %w", r.classify(err))
	}
	defer func() { _ = tx.Rollback(opCtx) }()

	var likes, dislikes int
	err = tx.QueryRow(opCtx, `SELECT likes, dislikes FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&likes, &dislikes)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	} else if err != nil {
		return models.Video{}, fmt.Errorf("lock video: %w", r.classify(err))
	}

	var previous string
	voted := true
	err = tx.QueryRow(opCtx, `SELECT choice FROM votes WHERE video_id = $1 AND user_id = $2`, videoID, userID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		voted = false
	} else if err != nil {
		return models.Video{}, fmt.Errorf("read vote: %w", r.classify(err))
	}

	var likeDelta, dislikeDelta int
	switch {
	case !voted:
		likeDelta, dislikeDelta = voteDeltas(choice, +1)
		_, err = tx.Exec(opCtx, `
			INSERT INTO votes (video_id, user_id, choice, created_at)
			VALUES ($1, $2, $3, $4)`,
			videoID, userID, string(choice), r.now())
	case models.VoteChoice(previous) == choice:
		likeDelta, dislikeDelta = voteDeltas(choice, -1)
		_, err = tx.Exec(opCtx, `DELETE FROM votes WHERE video_id = $1 AND user_id = $2`, videoID, userID)
	default:
		oldLike, oldDislike := voteDeltas(models.VoteChoice(previous), -1)
		newLike, newDislike := voteDeltas(choice, +1)
		likeDelta, dislikeDelta = oldLike+newLike, oldDislike+newDislike
		_, err = tx.Exec(opCtx, `UPDATE votes SET choice = $3, created_at = $4 WHERE video_id = $1 AND user_id = $2`,
			videoID, userID, string(choice), r.now())
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("write vote: %w", r.classify(err))
	}

	video, err := scanVideo(tx.QueryRow(opCtx, `
		UPDATE videos
		SET likes = GREATEST(likes + $2, 0),
		    dislikes = GREATEST(dislikes + $3, 0),
		    updated_at = $4
		WHERE id = $1
		RETURNING `+videoColumns,
		videoID, likeDelta, dislikeDelta, r.now(),
	))
	if err != nil {
		return models.Video{}, fmt.Errorf("apply vote delta: %w", r.classify(err))
	}

	if err := tx.Commit(opCtx); err != nil {
		return models.Video{}, fmt.Errorf("commit vote: %w", r.classify(err))
	}
	return video, nil
}

func (r *postgresRepository) GetVote(videoID, userID string) (models.VoteChoice, bool) {
	ctx, cancel := r.opContext(context.Background())
	defer cancel()

	var choice string
	err := r.pool.QueryRow(ctx, `SELECT choice FROM votes WHERE video_id = $1 AND user_id = $2`, videoID, userID).Scan(&choice)
	if err != nil {
		return "", false
	}
	return models.VoteChoice(choice), true
}

func (r *postgresRepository) GetProfile(userID string) (models.Profile, bool) {
	ctx, cancel := r.opContext(context.Background())
	defer cancel()

	var profile models.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, bio, avatar_path, created_at, updated_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&profile.UserID, &profile.Bio, &profile.AvatarPath, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return models.DefaultProfile(userID), false
	}
	return profile, true
}

func (r *postgresRepository) UpsertProfile(ctx context.Context, userID string, update ProfileUpdate) (models.Profile, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var bio, avatar *string
	if update.Bio != nil {
		if trimmed := strings.TrimSpace(*update.Bio); trimmed != "" {
			bio = &trimmed
		}
	}
	if update.AvatarPath != nil {
		if trimmed := strings.TrimSpace(*update.AvatarPath); trimmed != "" {
			avatar = &trimmed
		}
	}

	now := r.now()
	var profile models.Profile
	err := r.pool.QueryRow(opCtx, `
		INSERT INTO profiles (user_id, bio, avatar_path, created_at, updated_at)
		VALUES ($1, COALESCE($2, $4), COALESCE($3, $5), $6, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET bio = COALESCE($2, profiles.bio),
		    avatar_path = COALESCE($3, profiles.avatar_path),
		    updated_at = $6
		RETURNING user_id, bio, avatar_path, created_at, updated_at`,
		userID, bio, avatar, models.DefaultProfileBio, models.DefaultProfileAvatar, now).
		Scan(&profile.UserID, &profile.Bio, &profile.AvatarPath, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", r.classify(err))
	}
	return profile, nil
}

func (r *postgresRepository) SetUsername(ctx context.Context, userID, name string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("userId is required: %w", ErrInvalidArgument)
	}
	normalized := NormalizeDisplayName(name)
	if normalized == "" {
		return fmt.Errorf("username is required: %w", ErrInvalidArgument)
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	_, err := r.pool.Exec(opCtx, `
		INSERT INTO usernames (user_id, display_name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = $2, updated_at = $3`,
		userID, normalized, r.now())
	if err != nil {
		classified := r.classify(err)
		if errors.Is(classified, ErrConflict) {
			return fmt.Errorf("username %s already taken: %w", normalized, ErrConflict)
		}
		return fmt.Errorf("set username: %w", classified)
	}
	return nil
}

func (r *postgresRepository) GetUsername(userID string) (string, bool) {
	ctx, cancel := r.opContext(context.Background())
	defer cancel()

	var name string
	err := r.pool.QueryRow(ctx, `SELECT display_name FROM usernames WHERE user_id = $1`, userID).Scan(&name)
	if err != nil {
		return "", false
	}
	return name, true
}

func (r *postgresRepository) PurgeExpired(ctx context.Context) (int, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	cutoff := r.now().Add(-r.retentionTTL)
	rows, err := r.pool.Query(opCtx, `SELECT id FROM videos WHERE created_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired videos: %w", r.classify(err))
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	purged := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if err := r.DeleteVideo(ctx, id); err != nil {
			r.logger.Error("retention sweep failed to delete video", "video", id, "error", err)
			continue
		}
		purged++
	}
	if purged > 0 {
		r.logger.Info("retention sweep removed expired videos", "purged", purged)
	}
	return purged, nil
}
