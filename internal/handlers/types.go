package handlers

import (
	"context"
	"errors"

	"photopost-bot/internal/auth"
	"photopost-bot/internal/database"
	"photopost-bot/internal/storage"
	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// Command maps a bot command to its description key and handler.
type Command struct {
	Command     string // without the leading slash
	Description string // locale key
	AdminOnly   bool
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error
}

// HandlerDeps holds what MessageHandler needs.
type HandlerDeps struct {
	Photos        database.PhotoStore
	Storage       storage.ObjectStorage
	Captioner     Captioner
	Cycler        Cycler
	Admins        *auth.AdminChecker
	StoragePrefix string
	Footer        string
	ChannelLabel  string
}

// MessageHandler handles commands, uploads and inline actions.
type MessageHandler struct {
	photos        database.PhotoStore
	storage       storage.ObjectStorage
	captioner     Captioner
	cycler        Cycler
	admins        *auth.AdminChecker
	storagePrefix string
	footer        string
	channelLabel  string

	// fetch downloads a Telegram file URL; replaced in tests.
	fetch func(ctx context.Context, url string) ([]byte, error)

	commands []Command
}

// NewMessageHandler validates deps and builds the command table.
func NewMessageHandler(deps HandlerDeps) (*MessageHandler, error) {
	switch {
	case deps.Photos == nil:
		return nil, errors.New("photo store cannot be nil")
	case deps.Storage == nil:
		return nil, errors.New("object storage cannot be nil")
	case deps.Captioner == nil:
		return nil, errors.New("captioner cannot be nil")
	case deps.Cycler == nil:
		return nil, errors.New("cycler cannot be nil")
	case deps.Admins == nil:
		return nil, errors.New("admin checker cannot be nil")
	}

	h := &MessageHandler{
		photos:        deps.Photos,
		storage:       deps.Storage,
		captioner:     deps.Captioner,
		cycler:        deps.Cycler,
		admins:        deps.Admins,
		storagePrefix: deps.StoragePrefix,
		footer:        deps.Footer,
		channelLabel:  deps.ChannelLabel,
		fetch:         fetchURL,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", AdminOnly: true, Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: "stats", Description: "CmdStatsDesc", AdminOnly: true, Handler: h.HandleStats},
		{Command: "reset", Description: "CmdResetDesc", AdminOnly: true, Handler: h.HandleReset},
		{Command: "list", Description: "CmdListDesc", AdminOnly: true, Handler: h.HandleList},
		{Command: "generate", Description: "CmdGenerateDesc", AdminOnly: true, Handler: h.HandleGenerate},
		{Command: "post", Description: "CmdPostDesc", AdminOnly: true, Handler: h.HandlePost},
		{Command: "myid", Description: "CmdMyIDDesc", Handler: h.HandleMyID},
	}
	return h, nil
}

// GetCommandHandler returns the handler for command, or nil if unknown.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}

// Commands returns the command table.
func (h *MessageHandler) Commands() []Command {
	return h.commands
}
