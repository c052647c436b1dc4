package captions

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRateLimitPause is the wait after a rate-limited attempt before the next model.
const DefaultRateLimitPause = 5 * time.Second

// Request is a single completion call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Image       *Image
	Temperature float32
	MaxTokens   int
}

// Provider calls one model family.
type Provider interface {
	Name() string
	// Configured reports whether credentials are present. An unconfigured provider is never called.
	Configured() bool
	Complete(ctx context.Context, req Request) (string, error)
}

// Outcome is the classified result of one model attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

var (
	rateLimitMarkers = []string{"429", "quota", "rate limit", "ratelimit", "rate_limit", "resource_exhausted", "resource exhausted", "too many requests"}
	notFoundMarkers  = []string{"404", "not_found", "not found", "unknown model", "does not exist", "is not supported"}
)

// Classify maps an attempt to an outcome. An empty answer counts as a failure.
func Classify(text string, err error) Outcome {
	if err == nil {
		if strings.TrimSpace(text) == "" {
			return OutcomeFailed
		}
		return OutcomeSuccess
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, rateLimitMarkers):
		return OutcomeRateLimited
	case containsAny(msg, notFoundMarkers):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}

// Policy decides what follows an attempt: stop on success, otherwise move to the next
// model, pausing first when the provider asked us to slow down.
func Policy(outcome Outcome, pause time.Duration) (stop bool, wait time.Duration) {
	switch outcome {
	case OutcomeSuccess:
		return true, 0
	case OutcomeRateLimited:
		return false, pause
	default:
		return false, 0
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Chain tries models in order until one produces a caption.
type Chain struct {
	provider    Provider
	models      []string
	pause       time.Duration
	temperature float32
	maxTokens   int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewChain creates a chain over the given models of one provider.
func NewChain(provider Provider, models []string, pause time.Duration) *Chain {
	if pause < 0 {
		pause = DefaultRateLimitPause
	}
	return &Chain{
		provider:    provider,
		models:      models,
		pause:       pause,
		temperature: 0.6,
		maxTokens:   200,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

// Models returns the configured model order.
func (c *Chain) Models() []string {
	return append([]string(nil), c.models...)
}

// Enabled reports whether Generate can reach any model at all.
func (c *Chain) Enabled() bool {
	return c.provider != nil && c.provider.Configured() && len(c.models) > 0
}

// Generate always returns a usable caption. With no credentials or no image the plain
// fallback is returned without any call; when every model fails the fallback is stamped
// with the current time.
func (c *Chain) Generate(ctx context.Context, img *Image) Result {
	if !c.Enabled() || img == nil || len(img.Data) == 0 {
		return Fallback(time.Time{})
	}

	for i, model := range c.models {
		if ctx.Err() != nil {
			break
		}

		text, err := c.provider.Complete(ctx, Request{
			Model:       model,
			System:      SystemPrompt,
			Prompt:      UserPrompt,
			Image:       img,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		outcome := Classify(text, err)

		event := log.Debug()
		if outcome != OutcomeSuccess {
			event = log.Warn().Err(err)
		}
		event.Str("provider", c.provider.Name()).
			Str("model", model).
			Stringer("outcome", outcome).
			Msg("Caption attempt finished")

		stop, wait := Policy(outcome, c.pause)
		if stop {
			parsed, ok := ParseCaption(text)
			if !ok {
				log.Warn().Str("model", model).Msg("Model answer had no Name/Description lines, using placeholders")
			}
			return Result{Title: parsed.Title, Body: parsed.Body, Source: model}
		}
		if wait > 0 && i < len(c.models)-1 {
			if err := c.sleep(ctx, wait); err != nil {
				break
			}
		}
	}

	log.Error().Str("provider", c.provider.Name()).Msg("All caption models failed, using fallback")
	return Fallback(c.now())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
