package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"photopost-bot/internal/locales"
	"photopost-bot/internal/mediagroups"
	"photopost-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const updateTimeout = 60 * time.Second

// UpdateHandler is the part of handlers.MessageHandler the update loop dispatches to.
type UpdateHandler interface {
	GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error
	HandlePhoto(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error
	HandleAlbum(ctx context.Context, bot telegoapi.BotAPI, messages []telego.Message) error
	HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error
}

// Bot reads updates from Telegram and routes them to the handler.
// Albums are collected by the media group manager and handled as one batch.
type Bot struct {
	bot           telegoapi.BotAPI
	updatesChan   <-chan telego.Update
	debug         bool
	handler       UpdateHandler
	mediaGroupMgr *mediagroups.Manager
	albumDelay    time.Duration
	ratelimiter   ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot           telegoapi.BotAPI
	UpdatesChan   <-chan telego.Update
	Debug         bool
	Handler       UpdateHandler
	MediaGroupMgr *mediagroups.Manager
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, errors.New("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.Handler == nil {
		return nil, errors.New("message handler cannot be nil")
	}
	if deps.MediaGroupMgr == nil {
		return nil, errors.New("media group manager cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, errors.New("updates channel cannot be nil")
	}

	return &Bot{
		bot:           deps.Bot,
		updatesChan:   deps.UpdatesChan,
		debug:         deps.Debug,
		handler:       deps.Handler,
		mediaGroupMgr: deps.MediaGroupMgr,
		albumDelay:    mediagroups.DefaultProcessDelay,
		ratelimiter:   ratelimit.New(20),
	}, nil
}

// commandName extracts "stats" from "/stats@PhotoPostBot extra args".
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return ""
	}
	command, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(command)
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command := commandName(message.Text)
	logger := log.With().Str("command", command).Int64("user_id", message.From.ID).Logger()

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		logger.Debug().Msg("No handler found")
		localizer := locales.NewLocalizer(message.From.LanguageCode, locales.GetDefaultLanguageTag().String())
		text := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), text)); err != nil {
			logger.Error().Err(err).Msg("Failed to send unknown command message")
		}
		return
	}

	if b.debug {
		logger.Debug().Msg("Executing handler")
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		logger.Error().Err(err).Msg("Handler error")
		sentry.CaptureException(fmt.Errorf("command %s: %w", command, err))
	}
}

// handlePhotoUpdate processes a single photo outside any album.
func (b *Bot) handlePhotoUpdate(ctx context.Context, message telego.Message) {
	if err := b.handler.HandlePhoto(ctx, b.bot, message); err != nil {
		log.Error().Err(err).Int64("user_id", message.From.ID).Int("message_id", message.MessageID).Msg("Photo handler error")
		sentry.CaptureException(fmt.Errorf("photo %d: %w", message.MessageID, err))
	}
}

// handleCallbackQuery processes an incoming callback query.
func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	if b.debug {
		log.Debug().Int64("user_id", query.From.ID).Str("data", query.Data).Msg("Received callback query")
	}
	if err := b.handler.HandleCallbackQuery(ctx, b.bot, query); err != nil {
		log.Error().Err(err).Str("query_id", query.ID).Msg("Callback handler error")
		sentry.CaptureException(fmt.Errorf("callback %q: %w", query.Data, err))
	}
}

// handleAlbum is the handler passed to the media group manager.
func (b *Bot) handleAlbum(ctx context.Context, groupID string, messages []telego.Message) error {
	if len(messages) == 0 {
		return errors.New("received empty media group")
	}
	log.Info().Str("media_group_id", groupID).Int("count", len(messages)).Msg("Processing album")
	if err := b.handler.HandleAlbum(ctx, b.bot, messages); err != nil {
		sentry.CaptureException(fmt.Errorf("album %s: %w", groupID, err))
		return err
	}
	return nil
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Panic recovered in processUpdate")
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		// Channel posts forwarded from a linked chat have no sender.
		if message.From == nil {
			log.Debug().Int("message_id", message.MessageID).Int64("chat_id", message.Chat.ID).Msg("Ignoring message without sender")
			return
		}

		switch {
		case message.MediaGroupID != "" && message.Photo != nil:
			b.mediaGroupMgr.HandleMessage(message, b.handleAlbum, b.albumDelay, mediagroups.DefaultMaxGroupSize)
		case strings.HasPrefix(message.Text, "/"):
			b.handleCommandUpdate(processingCtx, message)
		case message.Photo != nil:
			b.handlePhotoUpdate(processingCtx, message)
		default:
			if b.debug {
				log.Debug().Int("message_id", message.MessageID).Msg("Ignoring unhandled message type")
			}
		}

	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)

	default:
		if b.debug {
			log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unhandled update type")
		}
	}
}

// Start runs the update loop until ctx is done or the updates channel closes.
// It returns after every in-flight update has been processed.
func (b *Bot) Start(ctx context.Context) {
	log.Info().Msg("Listening for updates...")

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		log.Info().Msg("All update processing finished")
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context done, stopping update processing...")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Info().Msg("Updates channel closed")
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop waits for albums already being processed. The update loop itself stops with its context.
func (b *Bot) Stop() {
	b.mediaGroupMgr.Shutdown()
}
