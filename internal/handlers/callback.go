package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"photopost-bot/internal/captions"
	"photopost-bot/internal/database"
	"photopost-bot/internal/locales"
	"photopost-bot/internal/storage"
	"photopost-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

// HandleCallbackQuery handles the inline buttons attached to uploads and the photo list.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	// Always answer so the client stops showing the spinner.
	if err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		log.Warn().Err(err).Str("query_id", query.ID).Msg("Failed to answer callback query")
	}

	user := &query.From
	chatID := query.From.ID
	if !h.requireAdmin(ctx, bot, user, chatID) {
		return nil
	}
	log.Debug().Int64("user_id", user.ID).Str("data", query.Data).Str("action", ActionCallbackQuery).Msg("Callback received")

	if query.Data == callbackList {
		return h.sendList(ctx, bot, chatID, user)
	}
	if photoID, ok := parseGenerateData(query.Data); ok {
		return h.generateForPhoto(ctx, bot, chatID, user, photoID)
	}
	return h.sendSuccess(ctx, bot, chatID, locales.GetMessage(h.getLocalizer(user), "MsgUnknownAction", nil, nil))
}

// generateForPhoto sends the photo back to the operator with a freshly generated caption
// and stores it as the photo's description. Nothing is published and the photo's
// posted flag is not touched. Fallback captions are not stored.
func (h *MessageHandler) generateForPhoto(ctx context.Context, bot telegoapi.BotAPI, chatID int64, user *telego.User, photoID int64) error {
	localizer := h.getLocalizer(user)

	photo, err := h.photos.Get(ctx, photoID)
	if errors.Is(err, database.ErrPhotoNotFound) {
		msg := locales.GetMessage(localizer, "MsgPhotoNotFound", map[string]interface{}{"ID": photoID}, nil)
		return h.sendSuccess(ctx, bot, chatID, msg)
	}
	if err != nil {
		return h.sendError(ctx, bot, chatID, user, fmt.Errorf("load photo %d: %w", photoID, err))
	}

	_ = h.sendSuccess(ctx, bot, chatID, locales.GetMessage(localizer, "MsgGenerating", nil, nil))

	data, err := h.storage.Get(ctx, photo.Location)
	if err != nil {
		return h.sendError(ctx, bot, chatID, user, fmt.Errorf("read photo %d: %w", photoID, err))
	}
	mimeType, _ := storage.DetectContentType(data)
	result := h.captioner.Generate(ctx, &captions.Image{Data: data, MIMEType: mimeType})
	caption := captions.Compose(result, h.footer)

	if !result.IsFallback() {
		if err := h.photos.SaveDescription(ctx, photoID, captions.Compose(result, ""), result.Source); err != nil {
			// The preview is still worth sending.
			log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to save description")
			sentry.CaptureException(err)
		}
	}

	log.Info().
		Int64("user_id", user.ID).
		Int64("photo_id", photoID).
		Str("source", result.Source).
		Str("action", ActionGenerateCaption).
		Msg("Caption generated on demand")

	params := tu.Photo(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(data), "photo.jpg"))).WithCaption(caption)
	if _, err := bot.SendPhoto(ctx, params); err != nil {
		return h.sendError(ctx, bot, chatID, user, fmt.Errorf("send preview for photo %d: %w", photoID, err))
	}

	msg := locales.GetMessage(localizer, "MsgCaptionReady", map[string]interface{}{
		"ID":     photoID,
		"Source": result.Source,
	}, nil)
	return h.sendSuccess(ctx, bot, chatID, msg)
}
