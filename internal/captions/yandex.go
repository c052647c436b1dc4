package captions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	YandexCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

	yandexTimeout = 30 * time.Second
)

// YandexProvider calls the YandexGPT completion API. The models are text-only, so the
// image is not sent; the prompt asks for a generic bouquet description instead.
type YandexProvider struct {
	apiKey   string
	folderID string
	endpoint string
	client   *fasthttp.Client
	timeout  time.Duration
}

// YandexOption customizes a YandexProvider.
type YandexOption func(*YandexProvider)

// WithYandexEndpoint overrides the completion URL.
func WithYandexEndpoint(endpoint string) YandexOption {
	return func(y *YandexProvider) { y.endpoint = endpoint }
}

// WithYandexClient replaces the HTTP client.
func WithYandexClient(client *fasthttp.Client) YandexOption {
	return func(y *YandexProvider) { y.client = client }
}

func NewYandexProvider(apiKey, folderID string, opts ...YandexOption) *YandexProvider {
	y := &YandexProvider{
		apiKey:   apiKey,
		folderID: folderID,
		endpoint: YandexCompletionURL,
		client:   &fasthttp.Client{Name: "photopost-bot"},
		timeout:  yandexTimeout,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YandexProvider) Name() string { return "yandexgpt" }

func (y *YandexProvider) Configured() bool {
	return y.apiKey != "" && y.folderID != ""
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexCompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type yandexRequest struct {
	ModelURI          string                  `json:"modelUri"`
	CompletionOptions yandexCompletionOptions `json:"completionOptions"`
	Messages          []yandexMessage         `json:"messages"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
	Error *struct {
		GRPCCode   int    `json:"grpcCode"`
		HTTPCode   int    `json:"httpCode"`
		Message    string `json:"message"`
		HTTPStatus string `json:"httpStatus"`
	} `json:"error,omitempty"`
}

// ModelURI builds the gpt://<folder>/<model> identifier. Full URIs pass through.
func (y *YandexProvider) ModelURI(model string) string {
	if strings.HasPrefix(model, "gpt://") {
		return model
	}
	return fmt.Sprintf("gpt://%s/%s", y.folderID, model)
}

func (y *YandexProvider) Complete(ctx context.Context, req Request) (string, error) {
	if !y.Configured() {
		return "", errors.New("yandexgpt: no api key or folder configured")
	}

	body, err := json.Marshal(yandexRequest{
		ModelURI: y.ModelURI(req.Model),
		CompletionOptions: yandexCompletionOptions{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
		Messages: []yandexMessage{
			{Role: "system", Text: req.System},
			{Role: "user", Text: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("yandexgpt: failed to encode request: %w", err)
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(y.endpoint)
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+y.apiKey)
	httpReq.SetBody(body)

	timeout := y.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", fmt.Errorf("yandexgpt %s: %w", req.Model, context.DeadlineExceeded)
	}

	if err := y.client.DoTimeout(httpReq, httpResp, timeout); err != nil {
		return "", fmt.Errorf("yandexgpt %s: request failed: %w", req.Model, err)
	}

	var parsed yandexResponse
	decodeErr := json.Unmarshal(httpResp.Body(), &parsed)

	if status := httpResp.StatusCode(); status != fasthttp.StatusOK {
		msg := fasthttp.StatusMessage(status)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("yandexgpt %s: status %d: %s", req.Model, status, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("yandexgpt %s: failed to decode response: %w", req.Model, decodeErr)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", fmt.Errorf("yandexgpt %s: no alternatives in response", req.Model)
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}
