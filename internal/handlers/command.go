package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photopost-bot/internal/database/models"
	"photopost-bot/internal/locales"
	"photopost-bot/internal/scheduler"
	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

const listLimit = 5

// HandleStart registers the command list and greets the operator.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	if err := h.setupCommands(ctx, bot); err != nil {
		// The greeting is still useful without the command menu.
		log.Warn().Err(err).Msg("Failed to register commands")
	}

	log.Info().Int64("user_id", message.From.ID).Str("action", ActionCommandStart).Msg("Command handled")
	msg := locales.GetMessage(h.getLocalizer(message.From), "MsgStart", map[string]interface{}{
		"Name":    message.From.FirstName,
		"Channel": h.channelLabel,
	}, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, msg)
}

// HandleHelp lists the commands the caller may use.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	isAdmin := message.From != nil && h.admins.IsAdmin(message.From.ID)

	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgHelpHeader", nil, nil) + "\n")
	for _, cmd := range h.commands {
		if cmd.AdminOnly && !isAdmin {
			continue
		}
		fmt.Fprintf(&text, "/%s - %s\n", cmd.Command, locales.GetMessage(localizer, cmd.Description, nil, nil))
	}
	if isAdmin {
		text.WriteString(locales.GetMessage(localizer, "MsgHelpFooter", nil, nil))
	}

	log.Debug().Bool("is_admin", isAdmin).Str("action", ActionCommandHelp).Msg("Command handled")
	return h.sendSuccess(ctx, bot, message.Chat.ID, text.String())
}

// HandleStats reports total, posted and pending counts.
func (h *MessageHandler) HandleStats(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	stats, err := h.photos.Stats(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, message.From, fmt.Errorf("stats: %w", err))
	}

	log.Info().Int64("user_id", message.From.ID).Str("action", ActionCommandStats).Msg("Command handled")
	return h.sendSuccess(ctx, bot, message.Chat.ID, statsText(h.getLocalizer(message.From), stats))
}

// HandleReset makes every photo unposted again.
func (h *MessageHandler) HandleReset(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	if err := h.photos.ResetAll(ctx); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, message.From, fmt.Errorf("reset: %w", err))
	}
	stats, err := h.photos.Stats(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, message.From, fmt.Errorf("stats after reset: %w", err))
	}

	log.Info().Int64("user_id", message.From.ID).Int64("total", stats.Total).Str("action", ActionCommandReset).Msg("Pool reset by operator")
	msg := locales.GetMessage(h.getLocalizer(message.From), "MsgResetDone", map[string]interface{}{"Total": stats.Total}, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, msg)
}

// HandleList shows the latest photos with caption buttons.
func (h *MessageHandler) HandleList(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	log.Info().Int64("user_id", message.From.ID).Str("action", ActionCommandList).Msg("Command handled")
	return h.sendList(ctx, bot, message.Chat.ID, message.From)
}

func (h *MessageHandler) sendList(ctx context.Context, bot telegoapi.BotAPI, chatID int64, user *telego.User) error {
	localizer := h.getLocalizer(user)
	photos, err := h.photos.ListRecent(ctx, listLimit)
	if err != nil {
		return h.sendError(ctx, bot, chatID, user, fmt.Errorf("list: %w", err))
	}
	if len(photos) == 0 {
		return h.sendSuccess(ctx, bot, chatID, locales.GetMessage(localizer, "MsgListEmpty", nil, nil))
	}

	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgListHeader", nil, nil))
	rows := make([][]telego.InlineKeyboardButton, 0, len(photos))
	for _, photo := range photos {
		text.WriteString("\n")
		text.WriteString(listItem(localizer, photo))
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf("#%d · %s", photo.ID, locales.GetMessage(localizer, "ButtonGenerate", nil, nil))).
				WithCallbackData(generateData(photo.ID)),
		))
	}

	params := tu.Message(tu.ID(chatID), text.String()).WithReplyMarkup(tu.InlineKeyboard(rows...))
	if _, err := bot.SendMessage(ctx, params); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send photo list")
	}
	return nil
}

// HandleGenerate generates a caption for the most recently uploaded photo.
func (h *MessageHandler) HandleGenerate(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	photos, err := h.photos.ListRecent(ctx, 1)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, message.From, fmt.Errorf("latest photo: %w", err))
	}
	if len(photos) == 0 {
		msg := locales.GetMessage(h.getLocalizer(message.From), "MsgListEmpty", nil, nil)
		return h.sendSuccess(ctx, bot, message.Chat.ID, msg)
	}

	log.Info().Int64("user_id", message.From.ID).Int64("photo_id", photos[0].ID).Str("action", ActionCommandGenerate).Msg("Command handled")
	return h.generateForPhoto(ctx, bot, message.Chat.ID, message.From, photos[0].ID)
}

// HandlePost publishes one photo right away, outside the schedule.
func (h *MessageHandler) HandlePost(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !h.requireAdmin(ctx, bot, message.From, message.Chat.ID) {
		return nil
	}
	localizer := h.getLocalizer(message.From)
	log.Info().Int64("user_id", message.From.ID).Str("action", ActionCommandPost).Msg("Manual publishing requested")

	report, err := h.cycler.RunCycle(ctx, models.TriggerManual)
	switch {
	case err == nil:
		msg := locales.GetMessage(localizer, "MsgPostPublished", map[string]interface{}{
			"ID":     report.Photo.ID,
			"Source": report.Caption.Source,
		}, nil)
		return h.sendSuccess(ctx, bot, message.Chat.ID, msg)
	case errors.Is(err, scheduler.ErrCycleInProgress):
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgPostInProgress", nil, nil))
	case errors.Is(err, scheduler.ErrEmptyPool):
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgPoolEmpty", nil, nil))
	default:
		_ = h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgPostFailed", nil, nil))
		return fmt.Errorf("manual post: %w", err)
	}
}

// HandleMyID shows the caller's Telegram id and whether they are an operator.
func (h *MessageHandler) HandleMyID(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	key := "MsgMyIDUser"
	if h.admins.IsAdmin(message.From.ID) {
		key = "MsgMyIDAdmin"
	}
	log.Debug().Int64("user_id", message.From.ID).Str("action", ActionCommandMyID).Msg("Command handled")
	msg := locales.GetMessage(h.getLocalizer(message.From), key, map[string]interface{}{"ID": message.From.ID}, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, msg)
}
