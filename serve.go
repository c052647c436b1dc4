package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	telegoBot "photopost-bot/bot"
	"photopost-bot/internal/auth"
	"photopost-bot/internal/captions"
	"photopost-bot/internal/config"
	"photopost-bot/internal/database"
	"photopost-bot/internal/handlers"
	"photopost-bot/internal/health"
	"photopost-bot/internal/locales"
	"photopost-bot/internal/logging"
	"photopost-bot/internal/mediagroups"
	"photopost-bot/internal/publish"
	"photopost-bot/internal/scheduler"
	"photopost-bot/internal/storage"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the publishing schedule and the health listener",
	RunE:  runServe,
}

// setup loads configuration and initializes logging, Sentry and locales.
// The returned flush must be deferred by the caller.
func setup() (*config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	logging.Init(cfg.LogLevel, cfg.Debug)

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		AttachStacktrace: true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	}); err != nil {
		return nil, nil, fmt.Errorf("sentry.Init: %w", err)
	}
	flush := func() { sentry.Flush(2 * time.Second) }

	if err := locales.Init(cfg.DefaultLanguage); err != nil {
		flush()
		return nil, nil, fmt.Errorf("failed to load translations: %w", err)
	}
	return cfg, flush, nil
}

// newCaptionChain builds the model chain for the configured provider.
// A provider without credentials yields a chain that always falls back.
func newCaptionChain(ctx context.Context, cfg *config.Config) (*captions.Chain, error) {
	var (
		provider captions.Provider
		models   []string
	)
	switch cfg.CaptionProvider {
	case config.ProviderYandex:
		provider = captions.NewYandexProvider(cfg.YandexAPIKey, cfg.YandexFolderID)
		models = cfg.YandexModels
	default:
		gemini, err := captions.NewGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		provider = gemini
		models = cfg.GeminiModels
	}

	chain := captions.NewChain(provider, models, cfg.RateLimitPause)
	if !chain.Enabled() {
		log.Warn().Str("provider", provider.Name()).Msg("Caption provider has no credentials, fallback captions only")
	} else {
		log.Info().Str("provider", provider.Name()).Strs("models", chain.Models()).Msg("Caption chain ready")
	}
	return chain, nil
}

// closeStore closes the store and reports a failure to the log and Sentry.
func closeStore(store database.Store) {
	if err := store.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("Error closing store")
		sentry.CaptureException(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, flush, err := setup()
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer closeStore(store)

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to init %s storage: %w", cfg.StorageDriver, err)
	}

	chain, err := newCaptionChain(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to init caption provider: %w", err)
	}

	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, true))
	}
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to create telego bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to reach Telegram: %w", err)
	}
	log.Info().Str("username", me.Username).Msg("Authorized on Telegram")

	// Long polling fails while a webhook is set; stale updates are dropped too.
	if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	publisher, err := publish.NewChannelPublisher(bot, cfg.ChannelID, cfg.ChannelUsername)
	if err != nil {
		return err
	}
	rotator, err := scheduler.NewRotator(scheduler.RotatorDeps{
		Photos:    store,
		PostLog:   store,
		Storage:   objects,
		Captioner: chain,
		Publisher: publisher,
		Notifier:  publish.NewOperatorNotifier(bot, cfg.AdminIDs),
		Footer:    cfg.CaptionFooter,
		Language:  cfg.DefaultLanguage,
	})
	if err != nil {
		return err
	}

	times, err := scheduler.ParseFireTimes(cfg.PostTimes, cfg.TimezoneOffset)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(rotator, times, scheduler.DefaultCycleTimeout)
	if err != nil {
		return err
	}

	messageHandler, err := handlers.NewMessageHandler(handlers.HandlerDeps{
		Photos:        store,
		Storage:       objects,
		Captioner:     chain,
		Cycler:        rotator,
		Admins:        auth.NewAdminChecker(cfg.AdminIDs),
		StoragePrefix: cfg.StoragePrefix,
		Footer:        cfg.CaptionFooter,
		ChannelLabel:  publisher.Channel(),
	})
	if err != nil {
		return err
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:           bot,
		UpdatesChan:   updates,
		Debug:         cfg.Debug,
		Handler:       messageHandler,
		MediaGroupMgr: mediagroups.NewManager(),
	})
	if err != nil {
		return err
	}

	healthServer := health.New(cfg.HealthPort)
	go func() {
		if err := healthServer.Start(); err != nil {
			log.Error().Err(err).Msg("Health listener stopped")
		}
	}()

	sched.Start()

	done := make(chan struct{})
	go func() {
		appBot.Start(ctx)
		close(done)
	}()
	log.Info().Str("channel", publisher.Channel()).Int("admins", len(cfg.AdminIDs)).Msg("Bot started")

	<-ctx.Done()
	log.Info().Msg("Shutting down bot...")

	sched.Stop()
	<-done
	appBot.Stop()
	if err := healthServer.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to stop health listener")
	}

	log.Info().Msg("Bot shutdown complete")
	return nil
}
