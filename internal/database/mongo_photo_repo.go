package database

import (
	"context"
	"errors"
	"fmt"
	"photopost-bot/internal/database/models"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	photoCollectionName      = "photos"
	counterCollectionName    = "counters"
	postLogCollectionName    = "post_logs"
	generationCollectionName = "generations"
)

// MongoPhotoStore implements Store for MongoDB.
// Photo ids are integers drawn from a sequence document in the counters collection.
type MongoPhotoStore struct {
	client      *mongo.Client
	photos      *mongo.Collection
	counters    *mongo.Collection
	postLogs    *mongo.Collection
	generations *mongo.Collection
}

// NewMongoPhotoStore creates a new MongoDB photo store.
func NewMongoPhotoStore(client *mongo.Client, db *mongo.Database) *MongoPhotoStore {
	return &MongoPhotoStore{
		client:      client,
		photos:      db.Collection(photoCollectionName),
		counters:    db.Collection(counterCollectionName),
		postLogs:    db.Collection(postLogCollectionName),
		generations: db.Collection(generationCollectionName),
	}
}

// EnsureIndexes creates the unique external_id index and the posted index.
func (r *MongoPhotoStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.photos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "posted", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create photo indexes: %w", err)
	}
	return nil
}

// nextID increments and returns the photo id sequence.
func (r *MongoPhotoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": photoCollectionName},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate photo id: %w", err)
	}
	return counter.Seq, nil
}

// Insert adds a new photo unless its external id is already stored.
func (r *MongoPhotoStore) Insert(ctx context.Context, externalID, location string) (bool, error) {
	count, err := r.photos.CountDocuments(ctx, bson.M{"external_id": externalID})
	if err != nil {
		return false, fmt.Errorf("failed to look up photo %s: %w", externalID, err)
	}
	if count > 0 {
		return false, nil
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return false, err
	}

	photo := models.Photo{
		ID:         id,
		ExternalID: externalID,
		Location:   location,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := r.photos.InsertOne(ctx, photo); err != nil {
		// A concurrent upload of the same photo won the race on the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert photo %s: %w", externalID, err)
	}
	return true, nil
}

// PickRandomUnposted samples one unposted photo.
func (r *MongoPhotoStore) PickRandomUnposted(ctx context.Context) (*models.Photo, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"posted": false}}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	}
	cursor, err := r.photos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sample unposted photo: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("failed to read sampled photo: %w", err)
		}
		return nil, nil
	}
	var photo models.Photo
	if err := cursor.Decode(&photo); err != nil {
		return nil, fmt.Errorf("failed to decode sampled photo: %w", err)
	}
	return &photo, nil
}

// MarkPosted flags the photo as posted.
func (r *MongoPhotoStore) MarkPosted(ctx context.Context, id int64) error {
	result, err := r.photos.UpdateOne(ctx,
		bson.M{"_id": id, "posted": false},
		bson.M{"$set": bson.M{"posted": true, "posted_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark photo %d posted: %w", id, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either already posted (no-op) or missing.
	count, err := r.photos.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to look up photo %d: %w", id, err)
	}
	if count == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// ResetAll clears the posted flag on every photo.
func (r *MongoPhotoStore) ResetAll(ctx context.Context) error {
	_, err := r.photos.UpdateMany(ctx,
		bson.M{},
		bson.M{
			"$set":   bson.M{"posted": false},
			"$unset": bson.M{"posted_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to reset photos: %w", err)
	}
	return nil
}

// Stats counts all and posted photos.
func (r *MongoPhotoStore) Stats(ctx context.Context) (models.PhotoStats, error) {
	total, err := r.photos.CountDocuments(ctx, bson.M{})
	if err != nil {
		return models.PhotoStats{}, fmt.Errorf("failed to count photos: %w", err)
	}
	posted, err := r.photos.CountDocuments(ctx, bson.M{"posted": true})
	if err != nil {
		return models.PhotoStats{}, fmt.Errorf("failed to count posted photos: %w", err)
	}
	return models.NewPhotoStats(total, posted), nil
}

// Get retrieves a single photo by id.
func (r *MongoPhotoStore) Get(ctx context.Context, id int64) (*models.Photo, error) {
	var photo models.Photo
	err := r.photos.FindOne(ctx, bson.M{"_id": id}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to find photo %d: %w", id, err)
	}
	return &photo, nil
}

func (r *MongoPhotoStore) GetByExternalID(ctx context.Context, externalID string) (*models.Photo, error) {
	var photo models.Photo
	err := r.photos.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to find photo %s: %w", externalID, err)
	}
	return &photo, nil
}

// ListRecent returns the newest photos first.
func (r *MongoPhotoStore) ListRecent(ctx context.Context, limit int) ([]models.Photo, error) {
	// SetLimit(0) would mean no limit at all.
	if limit <= 0 {
		return []models.Photo{}, nil
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.photos.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer cursor.Close(ctx)

	photos := []models.Photo{}
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}
	return photos, nil
}

// SaveDescription sets the photo's description and appends to the generations collection.
func (r *MongoPhotoStore) SaveDescription(ctx context.Context, id int64, description, source string) error {
	result, err := r.photos.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"description": description, "caption_source": source}},
	)
	if err != nil {
		return fmt.Errorf("failed to save description for photo %d: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrPhotoNotFound
	}

	entry := models.Generation{
		PhotoID:     id,
		Description: description,
		Source:      source,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := r.generations.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert generation for photo %d: %w", id, err)
	}
	return nil
}

// LogPublishedPost records a channel publication.
func (r *MongoPhotoStore) LogPublishedPost(ctx context.Context, entry models.PostLog) error {
	if _, err := r.postLogs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert post log for photo %d: %w", entry.PhotoID, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (r *MongoPhotoStore) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
