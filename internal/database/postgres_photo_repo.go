package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"photopost-bot/internal/database/models"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS photos (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	location    TEXT NOT NULL,
	posted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	posted_at   TIMESTAMPTZ,
	CONSTRAINT photos_posted_at_check CHECK (posted = (posted_at IS NOT NULL))
);
ALTER TABLE photos ADD COLUMN IF NOT EXISTS description TEXT NOT NULL DEFAULT '';
ALTER TABLE photos ADD COLUMN IF NOT EXISTS caption_source TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS photos_posted_idx ON photos (posted);
CREATE TABLE IF NOT EXISTS generations (
	id          BIGSERIAL PRIMARY KEY,
	photo_id    BIGINT NOT NULL REFERENCES photos (id),
	description TEXT NOT NULL,
	source      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS post_logs (
	id              BIGSERIAL PRIMARY KEY,
	photo_id        BIGINT NOT NULL REFERENCES photos (id),
	caption         TEXT NOT NULL,
	caption_source  TEXT NOT NULL,
	trigger         TEXT NOT NULL,
	channel_id      TEXT NOT NULL,
	channel_post_id INTEGER NOT NULL,
	published_at    TIMESTAMPTZ NOT NULL
);
`

const photoColumns = "id, external_id, location, posted, created_at, posted_at, description, caption_source"

// PostgresPhotoStore implements Store on top of database/sql and lib/pq.
type PostgresPhotoStore struct {
	db *sql.DB
}

// OpenPostgres connects, pings and migrates the schema.
func OpenPostgres(ctx context.Context, uri string) (*PostgresPhotoStore, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres is unreachable: %w", err)
	}
	store := NewPostgresPhotoStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("Connected to postgres")
	return store, nil
}

// NewPostgresPhotoStore wraps an open database handle.
func NewPostgresPhotoStore(db *sql.DB) *PostgresPhotoStore {
	return &PostgresPhotoStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (r *PostgresPhotoStore) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}

func (r *PostgresPhotoStore) Insert(ctx context.Context, externalID, location string) (bool, error) {
	query := `
		INSERT INTO photos (external_id, location)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, externalID, location).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert photo %s: %w", externalID, err)
	}
	return true, nil
}

func (r *PostgresPhotoStore) PickRandomUnposted(ctx context.Context) (*models.Photo, error) {
	query := `
		SELECT `+photoColumns+`
		FROM photos
		WHERE NOT posted
		ORDER BY random()
		LIMIT 1
	`
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick unposted photo: %w", err)
	}
	return photo, nil
}

func (r *PostgresPhotoStore) MarkPosted(ctx context.Context, id int64) error {
	query := `
		UPDATE photos SET posted = TRUE, posted_at = now()
		WHERE id = $1 AND NOT posted
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark photo %d posted: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up photo %d: %w", id, err)
	}
	if !exists {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *PostgresPhotoStore) ResetAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE photos SET posted = FALSE, posted_at = NULL`); err != nil {
		return fmt.Errorf("failed to reset photos: %w", err)
	}
	return nil
}

func (r *PostgresPhotoStore) Stats(ctx context.Context) (models.PhotoStats, error) {
	query := `SELECT count(*), count(*) FILTER (WHERE posted) FROM photos`
	var total, posted int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &posted); err != nil {
		return models.PhotoStats{}, fmt.Errorf("failed to count photos: %w", err)
	}
	return models.NewPhotoStats(total, posted), nil
}

func (r *PostgresPhotoStore) Get(ctx context.Context, id int64) (*models.Photo, error) {
	query := `
		SELECT `+photoColumns+`
		FROM photos
		WHERE id = $1
	`
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to get photo %d: %w", id, err)
	}
	return photo, nil
}

func (r *PostgresPhotoStore) GetByExternalID(ctx context.Context, externalID string) (*models.Photo, error) {
	query := `
		SELECT `+photoColumns+`
		FROM photos
		WHERE external_id = $1
	`
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to get photo %s: %w", externalID, err)
	}
	return photo, nil
}

func (r *PostgresPhotoStore) ListRecent(ctx context.Context, limit int) ([]models.Photo, error) {
	if limit <= 0 {
		return []models.Photo{}, nil
	}
	query := `
		SELECT `+photoColumns+`
		FROM photos
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return photos, nil
}

// SaveDescription updates the photo and appends to generations in one transaction.
func (r *PostgresPhotoStore) SaveDescription(ctx context.Context, id int64, description, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE photos SET description = $2, caption_source = $3 WHERE id = $1`,
		id, description, source,
	)
	if err != nil {
		return fmt.Errorf("failed to save description for photo %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save description for photo %d: %w", id, err)
	}
	if affected == 0 {
		return ErrPhotoNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (photo_id, description, source) VALUES ($1, $2, $3)`,
		id, description, source,
	); err != nil {
		return fmt.Errorf("failed to insert generation for photo %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit description for photo %d: %w", id, err)
	}
	return nil
}

func (r *PostgresPhotoStore) LogPublishedPost(ctx context.Context, entry models.PostLog) error {
	query := `
		INSERT INTO post_logs (photo_id, caption, caption_source, trigger, channel_id, channel_post_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.PhotoID, entry.Caption, entry.CaptionSource, entry.Trigger,
		entry.ChannelID, entry.ChannelPostID, entry.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post log for photo %d: %w", entry.PhotoID, err)
	}
	return nil
}

func (r *PostgresPhotoStore) Close(context.Context) error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var (
		photo    models.Photo
		postedAt sql.NullTime
	)
	err := row.Scan(
		&photo.ID, &photo.ExternalID, &photo.Location, &photo.Posted,
		&photo.CreatedAt, &postedAt, &photo.Description, &photo.CaptionSource,
	)
	if err != nil {
		return nil, err
	}
	if postedAt.Valid {
		t := postedAt.Time
		photo.PostedAt = &t
	}
	return &photo, nil
}
