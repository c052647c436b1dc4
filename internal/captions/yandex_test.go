package captions

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newYandexTestServer(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = fasthttp.Serve(ln, handler)
	}()
	t.Cleanup(func() { _ = ln.Close() })

	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestYandexProviderComplete(t *testing.T) {
	var got yandexRequest
	var auth string
	client := newYandexTestServer(t, func(ctx *fasthttp.RequestCtx) {
		auth = string(ctx.Request.Header.Peek("Authorization"))
		_ = json.Unmarshal(ctx.PostBody(), &got)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"Name: Нежность\nDescription: Пионы."},"status":"ALTERNATIVE_STATUS_FINAL"}]}}`)
	})

	y := NewYandexProvider("key-1", "folder-1", WithYandexClient(client), WithYandexEndpoint("http://yandex.test/completion"))
	require.True(t, y.Configured())

	text, err := y.Complete(context.Background(), Request{
		Model:       "yandexgpt-lite",
		System:      SystemPrompt,
		Prompt:      UserPrompt,
		Temperature: 0.6,
		MaxTokens:   200,
	})
	require.NoError(t, err)
	assert.Equal(t, "Name: Нежность\nDescription: Пионы.", text)

	assert.Equal(t, "Api-Key key-1", auth)
	assert.Equal(t, "gpt://folder-1/yandexgpt-lite", got.ModelURI)
	assert.Equal(t, 200, got.CompletionOptions.MaxTokens)
	assert.InDelta(t, 0.6, got.CompletionOptions.Temperature, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestYandexProviderErrorsClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Outcome
	}{
		{"RateLimited", fasthttp.StatusTooManyRequests, `{"error":{"httpCode":429,"message":"ai.languageModels.user.generateText.rps exceeded"}}`, OutcomeRateLimited},
		{"NotFound", fasthttp.StatusNotFound, `{"error":{"httpCode":404,"message":"Model not found"}}`, OutcomeNotFound},
		{"ServerError", fasthttp.StatusInternalServerError, `oops`, OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newYandexTestServer(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetStatusCode(tt.status)
				ctx.SetBodyString(tt.body)
			})
			y := NewYandexProvider("k", "f", WithYandexClient(client), WithYandexEndpoint("http://yandex.test/completion"))

			text, err := y.Complete(context.Background(), Request{Model: "yandexgpt"})
			require.Error(t, err)
			assert.Equal(t, tt.want, Classify(text, err))
		})
	}
}

func TestYandexProviderUnconfigured(t *testing.T) {
	y := NewYandexProvider("", "folder")
	assert.False(t, y.Configured())

	_, err := y.Complete(context.Background(), Request{Model: "yandexgpt-lite"})
	assert.Error(t, err)
}

func TestYandexModelURI(t *testing.T) {
	y := NewYandexProvider("k", "b1g")
	assert.Equal(t, "gpt://b1g/yandexgpt", y.ModelURI("yandexgpt"))
	assert.Equal(t, "gpt://other/yandexgpt-lite/latest", y.ModelURI("gpt://other/yandexgpt-lite/latest"))
}
