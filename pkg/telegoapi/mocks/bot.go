// Package mocks provides a testify mock of telegoapi.BotAPI.
package mocks

import (
	"context"

	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"
)

// MockBot implements telegoapi.BotAPI.
type MockBot struct {
	mock.Mock
}

var _ telegoapi.BotAPI = (*MockBot)(nil)

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	args := m.Called(ctx, params)
	if file, ok := args.Get(0).(*telego.File); ok {
		return file, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) FileDownloadURL(filepath string) string {
	args := m.Called(filepath)
	return args.String(0)
}

// SentTexts returns the text of every SendMessage call to chatID, in order.
func (m *MockBot) SentTexts(chatID int64) []string {
	var texts []string
	for _, call := range m.Calls {
		if call.Method != "SendMessage" {
			continue
		}
		params, ok := call.Arguments.Get(1).(*telego.SendMessageParams)
		if ok && params.ChatID.ID == chatID {
			texts = append(texts, params.Text)
		}
	}
	return texts
}
