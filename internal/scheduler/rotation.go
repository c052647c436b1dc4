// Package scheduler publishes one stored photo per tick, cycling through the pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photopost-bot/internal/captions"
	"photopost-bot/internal/database"
	"photopost-bot/internal/database/models"
	"photopost-bot/internal/locales"
	"photopost-bot/internal/storage"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCycleInProgress is returned when a cycle is requested while another is publishing.
	ErrCycleInProgress = errors.New("publishing cycle already in progress")
	// ErrEmptyPool means there is nothing to publish even after a reset.
	ErrEmptyPool = errors.New("photo pool is empty")
)

// Captioner produces a caption for photo bytes.
type Captioner interface {
	Generate(ctx context.Context, img *captions.Image) captions.Result
}

// Publisher sends a finished post to the channel.
type Publisher interface {
	Publish(ctx context.Context, data []byte, caption string) (int, error)
	Channel() string
}

// Notifier reaches every operator.
type Notifier interface {
	NotifyOperators(ctx context.Context, text string) int
}

// RotatorDeps holds the collaborators of a Rotator.
type RotatorDeps struct {
	Photos    database.PhotoStore
	PostLog   database.PostLogger
	Storage   storage.ObjectStorage
	Captioner Captioner
	Publisher Publisher
	Notifier  Notifier
	Footer    string
	Language  string
}

// CycleReport describes what one cycle did.
type CycleReport struct {
	Photo      *models.Photo
	Caption    captions.Result
	MessageID  int
	PoolReset  bool
	ResetTotal int64
	Notified   int
}

// Rotator runs publishing cycles. At most one cycle runs at a time.
type Rotator struct {
	deps RotatorDeps
	mu   sync.Mutex
	now  func() time.Time
}

func NewRotator(deps RotatorDeps) (*Rotator, error) {
	switch {
	case deps.Photos == nil:
		return nil, errors.New("photo store cannot be nil")
	case deps.Storage == nil:
		return nil, errors.New("object storage cannot be nil")
	case deps.Captioner == nil:
		return nil, errors.New("captioner cannot be nil")
	case deps.Publisher == nil:
		return nil, errors.New("publisher cannot be nil")
	case deps.Notifier == nil:
		return nil, errors.New("notifier cannot be nil")
	}
	if deps.Language == "" {
		deps.Language = locales.DefaultLanguage
	}
	return &Rotator{deps: deps, now: time.Now}, nil
}

// RunCycle picks an unposted photo, resetting the pool first when it is exhausted,
// captions it, publishes it and marks it posted. A failed publish leaves the photo
// eligible for the next cycle.
func (r *Rotator) RunCycle(ctx context.Context, trigger string) (CycleReport, error) {
	if !r.mu.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer r.mu.Unlock()

	var report CycleReport
	logger := log.With().Str("trigger", trigger).Logger()

	photo, err := r.deps.Photos.PickRandomUnposted(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to pick photo: %w", err)
	}

	if photo == nil {
		stats, err := r.deps.Photos.Stats(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to read stats before reset: %w", err)
		}
		if stats.Total == 0 {
			logger.Warn().Msg("No photos stored, nothing to publish")
			return report, ErrEmptyPool
		}
		if err := r.deps.Photos.ResetAll(ctx); err != nil {
			return report, fmt.Errorf("failed to reset pool: %w", err)
		}
		report.PoolReset = true
		report.ResetTotal = stats.Total

		text := locales.GetMessage(locales.NewLocalizer(r.deps.Language), "MsgPoolReset", map[string]interface{}{
			"Total": stats.Total,
		}, nil)
		report.Notified = r.deps.Notifier.NotifyOperators(ctx, text)
		logger.Info().Int64("total", stats.Total).Int("notified", report.Notified).Msg("Photo pool exhausted, reset")

		photo, err = r.deps.Photos.PickRandomUnposted(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to pick photo after reset: %w", err)
		}
		if photo == nil {
			logger.Error().Msg("Pool still empty after reset")
			return report, ErrEmptyPool
		}
	}
	report.Photo = photo
	logger = logger.With().Int64("photo_id", photo.ID).Logger()

	data, err := r.deps.Storage.Get(ctx, photo.Location)
	if err != nil {
		return report, fmt.Errorf("failed to load photo %d: %w", photo.ID, err)
	}

	mimeType, _ := storage.DetectContentType(data)
	report.Caption = r.deps.Captioner.Generate(ctx, &captions.Image{Data: data, MIMEType: mimeType})
	caption := captions.Compose(report.Caption, r.deps.Footer)

	messageID, err := r.deps.Publisher.Publish(ctx, data, caption)
	if err != nil {
		logger.Error().Err(err).Msg("Publish failed, photo stays in the pool")
		return report, fmt.Errorf("failed to publish photo %d: %w", photo.ID, err)
	}
	report.MessageID = messageID

	if err := r.deps.Photos.MarkPosted(ctx, photo.ID); err != nil {
		return report, fmt.Errorf("photo %d published but not marked posted: %w", photo.ID, err)
	}

	if r.deps.PostLog != nil {
		entry := models.PostLog{
			PhotoID:       photo.ID,
			Caption:       caption,
			CaptionSource: report.Caption.Source,
			Trigger:       trigger,
			ChannelID:     r.deps.Publisher.Channel(),
			ChannelPostID: messageID,
			PublishedAt:   r.now().UTC(),
		}
		if err := r.deps.PostLog.LogPublishedPost(ctx, entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to record published post")
		}
	}

	logger.Info().
		Str("caption_source", report.Caption.Source).
		Int("message_id", messageID).
		Msg("Cycle finished")
	return report, nil
}
