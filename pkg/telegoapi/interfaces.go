package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotAPI is the subset of *telego.Bot the bot uses, so handlers and publishers can be tested with mocks.
type BotAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error

	// Photo downloads
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

var _ BotAPI = (*telego.Bot)(nil)
