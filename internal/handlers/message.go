package handlers

import (
	"context"
	"errors"
	"fmt"

	"photopost-bot/internal/locales"
	"photopost-bot/internal/storage"
	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

type ingestStatus int

const (
	ingestSaved ingestStatus = iota
	ingestDuplicate
	ingestFailed
)

type ingestResult struct {
	status  ingestStatus
	photoID int64
	err     error
}

// HandlePhoto stores a single photo sent by an operator and replies with its id.
func (h *MessageHandler) HandlePhoto(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	localizer := h.getLocalizer(message.From)

	res := h.ingest(ctx, bot, message)
	switch res.status {
	case ingestSaved:
		log.Info().Int64("user_id", message.From.ID).Int64("photo_id", res.photoID).Str("action", ActionUploadPhoto).Msg("Photo stored")
		msg := locales.GetMessage(localizer, "MsgPhotoSaved", map[string]interface{}{"ID": res.photoID}, nil)
		params := tu.Message(tu.ID(message.Chat.ID), msg).WithReplyMarkup(photoKeyboard(localizer, res.photoID))
		if _, err := bot.SendMessage(ctx, params); err != nil {
			log.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to send upload confirmation")
		}
		return nil
	case ingestDuplicate:
		log.Info().Int64("user_id", message.From.ID).Int64("photo_id", res.photoID).Msg("Duplicate photo ignored")
		params := tu.Message(tu.ID(message.Chat.ID), locales.GetMessage(localizer, "MsgPhotoDuplicate", nil, nil))
		if res.photoID > 0 {
			params = params.WithReplyMarkup(photoKeyboard(localizer, res.photoID))
		}
		if _, err := bot.SendMessage(ctx, params); err != nil {
			log.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to send duplicate notice")
		}
		return nil
	default:
		_ = h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgPhotoUploadFailed", nil, nil))
		return res.err
	}
}

// HandleAlbum stores every photo of a media group and replies once with a summary.
func (h *MessageHandler) HandleAlbum(ctx context.Context, bot telegoapi.BotAPI, messages []telego.Message) error {
	if len(messages) == 0 {
		return nil
	}
	first := messages[0]
	if !h.requireAdmin(ctx, bot, first.From, first.Chat.ID) {
		return nil
	}

	var saved, duplicates, failed int
	var errs []error
	for _, msg := range messages {
		res := h.ingest(ctx, bot, msg)
		switch res.status {
		case ingestSaved:
			saved++
		case ingestDuplicate:
			duplicates++
		default:
			failed++
			errs = append(errs, res.err)
		}
	}

	log.Info().
		Int64("user_id", first.From.ID).
		Str("media_group_id", first.MediaGroupID).
		Int("saved", saved).
		Int("duplicates", duplicates).
		Int("failed", failed).
		Str("action", ActionUploadAlbum).
		Msg("Album processed")

	msg := locales.GetMessage(h.getLocalizer(first.From), "MsgAlbumSaved", map[string]interface{}{
		"Saved":      saved,
		"Duplicates": duplicates,
		"Failed":     failed,
	}, nil)
	_ = h.sendSuccess(ctx, bot, first.Chat.ID, msg)
	return errors.Join(errs...)
}

// ingest downloads the largest size of the photo, stores the bytes and records it.
func (h *MessageHandler) ingest(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) ingestResult {
	if len(message.Photo) == 0 {
		return ingestResult{status: ingestFailed, err: errors.New("message has no photo")}
	}
	largest := message.Photo[len(message.Photo)-1]
	externalID := largest.FileUniqueID

	// Skip the download when the photo is already known.
	if existing, err := h.photos.GetByExternalID(ctx, externalID); err == nil {
		return ingestResult{status: ingestDuplicate, photoID: existing.ID}
	}

	data, err := h.downloadFile(ctx, bot, largest.FileID)
	if err != nil {
		return ingestResult{status: ingestFailed, err: fmt.Errorf("photo %s: %w", externalID, err)}
	}

	contentType, ext := storage.DetectContentType(data)
	key := storage.NewKey(h.storagePrefix, externalID, ext)
	location, err := h.storage.Put(ctx, key, data, contentType)
	if err != nil {
		return ingestResult{status: ingestFailed, err: fmt.Errorf("store photo %s: %w", externalID, err)}
	}

	created, err := h.photos.Insert(ctx, externalID, location)
	if err != nil {
		return ingestResult{status: ingestFailed, err: fmt.Errorf("record photo %s: %w", externalID, err)}
	}
	photo, err := h.photos.GetByExternalID(ctx, externalID)
	if err != nil {
		return ingestResult{status: ingestFailed, err: fmt.Errorf("reload photo %s: %w", externalID, err)}
	}
	if !created {
		return ingestResult{status: ingestDuplicate, photoID: photo.ID}
	}
	return ingestResult{status: ingestSaved, photoID: photo.ID}
}
