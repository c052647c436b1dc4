package database

import (
	"context"
	"photopost-bot/internal/database/models"
)

// PhotoStore defines the persistence operations for the rotation pool.
type PhotoStore interface {
	// Insert creates an unposted record unless externalID is already stored.
	// It reports whether a new record was created.
	Insert(ctx context.Context, externalID, location string) (bool, error)
	// PickRandomUnposted returns a uniformly random unposted photo, or nil when none is left.
	PickRandomUnposted(ctx context.Context) (*models.Photo, error)
	// MarkPosted flags the photo as posted and stamps PostedAt. Already posted photos are left untouched.
	MarkPosted(ctx context.Context, id int64) error
	// ResetAll makes every photo unposted again.
	ResetAll(ctx context.Context) error
	// Stats returns the total, posted and pending counts.
	Stats(ctx context.Context) (models.PhotoStats, error)
	// Get returns a photo by id or ErrPhotoNotFound.
	Get(ctx context.Context, id int64) (*models.Photo, error)
	// GetByExternalID returns a photo by its platform identifier or ErrPhotoNotFound.
	GetByExternalID(ctx context.Context, externalID string) (*models.Photo, error)
	// ListRecent returns up to limit photos, newest first. A limit below one yields no rows.
	ListRecent(ctx context.Context, limit int) ([]models.Photo, error)
	// SaveDescription stores the latest generated caption on the photo and appends it to
	// the generation history. Returns ErrPhotoNotFound for an unknown id.
	SaveDescription(ctx context.Context, id int64, description, source string) error
}

// PostLogger defines the interface for logging published posts.
type PostLogger interface {
	// LogPublishedPost logs information about a post published to the channel.
	LogPublishedPost(ctx context.Context, entry models.PostLog) error
}

// Store bundles both persistence concerns; every backend implements it.
type Store interface {
	PhotoStore
	PostLogger
	Close(ctx context.Context) error
}
