package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"photopost-bot/internal/database/models"
	"photopost-bot/internal/locales"
	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	callbackGenerate = "gen:"
	callbackList     = "list"

	downloadTimeout = 30 * time.Second
	dateLayout      = "02.01.2006 15:04"

	descriptionPreviewRunes = 60
)

// sendSuccess sends text to the chat. Send failures are logged, not returned.
func (h *MessageHandler) sendSuccess(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
	return nil
}

// sendError tells the user something went wrong and returns the original error for Sentry.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, user *telego.User, originalErr error) error {
	log.Error().Err(originalErr).Int64("chat_id", chatID).Msg("Handler error")

	msg := locales.GetMessage(h.getLocalizer(user), "MsgErrorGeneral", nil, nil)
	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send error message")
	}
	return originalErr
}

// getLocalizer prefers the user's Telegram language and falls back to the default.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	if user != nil && user.LanguageCode != "" {
		return locales.NewLocalizer(user.LanguageCode, locales.GetDefaultLanguageTag().String())
	}
	return locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
}

// requireAdmin replies with a denial and returns false for non-operators.
func (h *MessageHandler) requireAdmin(ctx context.Context, bot telegoapi.BotAPI, user *telego.User, chatID int64) bool {
	if user != nil && h.admins.IsAdmin(user.ID) {
		return true
	}
	var userID int64
	if user != nil {
		userID = user.ID
	}
	log.Warn().Int64("user_id", userID).Str("action", ActionAccessDenied).Msg("Non-admin attempted a restricted action")

	msg := locales.GetMessage(h.getLocalizer(user), "MsgErrorRequiresAdmin", nil, nil)
	_ = h.sendSuccess(ctx, bot, chatID, msg)
	return false
}

// setupCommands registers the command list with Telegram.
func (h *MessageHandler) setupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	commands := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}
	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Debug().Int("count", len(commands)).Msg("Bot commands registered")
	return nil
}

// photoKeyboard offers on-demand caption generation and the photo list.
func photoKeyboard(localizer *i18n.Localizer, photoID int64) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "ButtonGenerate", nil, nil)).
				WithCallbackData(generateData(photoID)),
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "ButtonList", nil, nil)).
				WithCallbackData(callbackList),
		),
	)
}

func statsText(localizer *i18n.Localizer, stats models.PhotoStats) string {
	return locales.GetMessage(localizer, "MsgStats", map[string]interface{}{
		"Total":   stats.Total,
		"Posted":  stats.Posted,
		"Pending": stats.Pending,
	}, nil)
}

// listItem renders one entry of the photo list. Posted photos show when they went out;
// a saved description adds its first line below.
func listItem(localizer *i18n.Localizer, photo models.Photo) string {
	var item string
	if photo.Posted && photo.PostedAt != nil {
		item = locales.GetMessage(localizer, "MsgListItemPosted", map[string]interface{}{
			"ID":   photo.ID,
			"Date": photo.PostedAt.Format(dateLayout),
		}, nil)
	} else {
		item = locales.GetMessage(localizer, "MsgListItemPending", map[string]interface{}{
			"ID":   photo.ID,
			"Date": photo.CreatedAt.Format(dateLayout),
		}, nil)
	}

	if summary := descriptionSummary(photo.Description); summary != "" {
		item += "\n" + locales.GetMessage(localizer, "MsgListItemDescription", map[string]interface{}{
			"Description": summary,
		}, nil)
	}
	return item
}

// descriptionSummary returns the first non-empty line, cut to descriptionPreviewRunes.
func descriptionSummary(description string) string {
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > descriptionPreviewRunes {
			return string(runes[:descriptionPreviewRunes]) + "…"
		}
		return line
	}
	return ""
}

func generateData(photoID int64) string {
	return callbackGenerate + strconv.FormatInt(photoID, 10)
}

// parseGenerateData extracts the photo id from "gen:<id>".
func parseGenerateData(data string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, callbackGenerate)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// downloadFile resolves a Telegram file id and fetches its bytes.
func (h *MessageHandler) downloadFile(ctx context.Context, bot telegoapi.BotAPI, fileID string) ([]byte, error) {
	file, err := bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	data, err := h.fetch(ctx, bot.FileDownloadURL(file.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return data, nil
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	timeout := downloadTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, ctx.Err()
		}
	}
	status, body, err := fasthttp.GetTimeout(nil, url, timeout)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", status)
	}
	return body, nil
}
