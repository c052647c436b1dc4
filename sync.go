package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"photopost-bot/internal/database"
	"photopost-bot/internal/storage"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register photos already present in object storage",
	Long: `sync lists every object under STORAGE_PREFIX and inserts a photo record for
each key the store does not know yet. Known keys are left untouched, so the
command can be run any number of times.`,
	RunE: runSync,
}

// SyncReport counts what a sync run did.
type SyncReport struct {
	Listed int
	Added  int
	Known  int
}

// syncPhotos inserts one unposted photo per object key under prefix.
// The external id is the key's base name, matching keys written on upload.
func syncPhotos(ctx context.Context, photos database.PhotoStore, objects storage.ObjectStorage, prefix string) (SyncReport, error) {
	keys, err := objects.List(ctx, prefix)
	if err != nil {
		return SyncReport{}, fmt.Errorf("failed to list %q: %w", prefix, err)
	}

	report := SyncReport{Listed: len(keys)}
	for _, key := range keys {
		externalID := storage.ExternalIDFromKey(key)
		if externalID == "" {
			continue
		}
		created, err := photos.Insert(ctx, externalID, objects.Location(key))
		if err != nil {
			return report, fmt.Errorf("failed to insert %s: %w", key, err)
		}
		if created {
			report.Added++
			log.Debug().Str("key", key).Msg("Photo registered")
		} else {
			report.Known++
		}
	}
	return report, nil
}

func runSync(cmd *cobra.Command, args []string) error {
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

	report, err := syncPhotos(ctx, store, objects, cfg.StoragePrefix)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	log.Info().
		Str("prefix", cfg.StoragePrefix).
		Int("listed", report.Listed).
		Int("added", report.Added).
		Int("known", report.Known).
		Msg("Storage sync finished")
	return nil
}
