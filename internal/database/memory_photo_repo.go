package database

import (
	"context"
	"math/rand/v2"
	"photopost-bot/internal/database/models"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps photos in process memory. Used with STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	photos      map[int64]*models.Photo
	byExternal  map[string]int64
	postLogs    []models.PostLog
	generations []models.Generation
	intn        func(n int) int
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos:     make(map[int64]*models.Photo),
		byExternal: make(map[string]int64),
		intn:       rand.IntN,
		now:        time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, externalID, location string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byExternal[externalID]; exists {
		return false, nil
	}
	s.nextID++
	s.photos[s.nextID] = &models.Photo{
		ID:         s.nextID,
		ExternalID: externalID,
		Location:   location,
		CreatedAt:  s.now().UTC(),
	}
	s.byExternal[externalID] = s.nextID
	return true, nil
}

func (s *MemoryStore) PickRandomUnposted(context.Context) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []int64
	for id, photo := range s.photos {
		if !photo.Posted {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	// Map iteration order is not uniform; sort before drawing.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	photo := *s.photos[candidates[s.intn(len(candidates))]]
	return &photo, nil
}

func (s *MemoryStore) MarkPosted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[id]
	if !ok {
		return ErrPhotoNotFound
	}
	if photo.Posted {
		return nil
	}
	now := s.now().UTC()
	photo.Posted = true
	photo.PostedAt = &now
	return nil
}

func (s *MemoryStore) ResetAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, photo := range s.photos {
		photo.Posted = false
		photo.PostedAt = nil
	}
	return nil
}

func (s *MemoryStore) Stats(context.Context) (models.PhotoStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posted int64
	for _, photo := range s.photos {
		if photo.Posted {
			posted++
		}
	}
	return models.NewPhotoStats(int64(len(s.photos)), posted), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[id]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	cp := *photo
	return &cp, nil
}

func (s *MemoryStore) GetByExternalID(_ context.Context, externalID string) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	cp := *s.photos[id]
	return &cp, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]models.Photo, error) {
	if limit <= 0 {
		return []models.Photo{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	photos := make([]models.Photo, 0, len(s.photos))
	for _, photo := range s.photos {
		photos = append(photos, *photo)
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID > photos[j].ID })
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos, nil
}

func (s *MemoryStore) SaveDescription(_ context.Context, id int64, description, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[id]
	if !ok {
		return ErrPhotoNotFound
	}
	photo.Description = description
	photo.CaptionSource = source
	s.generations = append(s.generations, models.Generation{
		PhotoID:     id,
		Description: description,
		Source:      source,
		CreatedAt:   s.now().UTC(),
	})
	return nil
}

// Generations returns the caption history of a photo, oldest first.
func (s *MemoryStore) Generations(photoID int64) []models.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Generation
	for _, g := range s.generations {
		if g.PhotoID == photoID {
			out = append(out, g)
		}
	}
	return out
}

func (s *MemoryStore) LogPublishedPost(_ context.Context, entry models.PostLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.postLogs = append(s.postLogs, entry)
	return nil
}

// PostLogs returns a copy of the recorded publications.
func (s *MemoryStore) PostLogs() []models.PostLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.PostLog(nil), s.postLogs...)
}

func (s *MemoryStore) Close(context.Context) error { return nil }
