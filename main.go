package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd runs the bot when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "photopost-bot",
	Short: "Telegram bot that publishes stored bouquet photos to a channel on a schedule",
	Long: `photopost-bot keeps a pool of photos uploaded by operators and publishes one
random unposted photo to the channel at each configured time, with a caption
written by a vision model. When every photo has been posted the pool starts over.

Configuration is read from the environment (and .env when present).

Examples:
  photopost-bot          # same as "serve"
  photopost-bot serve
  photopost-bot sync     # register objects already in storage`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
