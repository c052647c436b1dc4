package captions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
	configured bool
}

func (m *MockProvider) Name() string     { return "mock" }
func (m *MockProvider) Configured() bool { return m.configured }

func (m *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req.Model)
	return args.String(0), args.Error(1)
}

type recordedSleeps struct {
	durations []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.durations = append(r.durations, d)
	return nil
}

func newTestChain(p Provider, models ...string) (*Chain, *recordedSleeps) {
	c := NewChain(p, models, DefaultRateLimitPause)
	sleeps := &recordedSleeps{}
	c.sleep = sleeps.sleep
	c.now = func() time.Time { return time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC) }
	return c, sleeps
}

var testImage = &Image{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg"}

func TestChainFallsThroughNotFound(t *testing.T) {
	p := &MockProvider{configured: true}
	p.On("Complete", mock.Anything, "m1").Return("", errors.New("404 model not found")).Once()
	p.On("Complete", mock.Anything, "m2").Return("", errors.New("models/m2 is not found for API version v1beta")).Once()
	p.On("Complete", mock.Anything, "m3").Return("Name: Весна\nDescription: Нежные тюльпаны.", nil).Once()

	c, sleeps := newTestChain(p, "m1", "m2", "m3", "m4")
	result := c.Generate(context.Background(), testImage)

	assert.Equal(t, "m3", result.Source)
	assert.Equal(t, "Весна", result.Title)
	assert.Equal(t, "Нежные тюльпаны.", result.Body)
	assert.False(t, result.IsFallback())
	assert.Empty(t, sleeps.durations, "not-found never pauses")
	p.AssertExpectations(t)
	p.AssertNotCalled(t, "Complete", mock.Anything, "m4")
}

func TestChainPausesOnRateLimit(t *testing.T) {
	p := &MockProvider{configured: true}
	p.On("Complete", mock.Anything, "m1").Return("", errors.New("Error 429, RESOURCE_EXHAUSTED: quota exceeded")).Once()
	p.On("Complete", mock.Anything, "m2").Return("Name: Розы", nil).Once()

	c, sleeps := newTestChain(p, "m1", "m2")
	result := c.Generate(context.Background(), testImage)

	assert.Equal(t, "m2", result.Source)
	assert.Equal(t, "Розы", result.Title)
	assert.Equal(t, PlaceholderBody, result.Body)
	assert.Equal(t, []time.Duration{DefaultRateLimitPause}, sleeps.durations)
	p.AssertExpectations(t)
}

func TestChainAllFail(t *testing.T) {
	p := &MockProvider{configured: true}
	p.On("Complete", mock.Anything, "m1").Return("", errors.New("internal error")).Once()
	p.On("Complete", mock.Anything, "m2").Return("   ", nil).Once()

	c, _ := newTestChain(p, "m1", "m2")
	result := c.Generate(context.Background(), testImage)

	assert.True(t, result.IsFallback())
	assert.Equal(t, FallbackTitle, result.Title)
	assert.Contains(t, result.Body, FallbackBody)
	assert.Contains(t, result.Body, "08.03.2026 09:00")
	p.AssertExpectations(t)
}

func TestChainSkipsCallsWithoutCredentials(t *testing.T) {
	p := &MockProvider{configured: false}

	c, _ := newTestChain(p, "m1")
	result := c.Generate(context.Background(), testImage)

	assert.Equal(t, Fallback(time.Time{}), result)
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChainSkipsCallsWithoutImage(t *testing.T) {
	p := &MockProvider{configured: true}

	c, _ := newTestChain(p, "m1")
	assert.True(t, c.Generate(context.Background(), nil).IsFallback())
	assert.True(t, c.Generate(context.Background(), &Image{}).IsFallback())
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	p := &MockProvider{configured: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestChain(p, "m1", "m2")
	assert.True(t, c.Generate(ctx, testImage).IsFallback())
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want Outcome
	}{
		{"success", "Name: x", nil, OutcomeSuccess},
		{"empty answer", "", nil, OutcomeFailed},
		{"429", "", errors.New("status 429: Too Many Requests"), OutcomeRateLimited},
		{"quota", "", errors.New("Quota exceeded for metric"), OutcomeRateLimited},
		{"not found", "", errors.New("Error 404, NOT_FOUND"), OutcomeNotFound},
		{"unknown model", "", errors.New("unknown model gpt://x/y"), OutcomeNotFound},
		{"other", "", errors.New("connection reset by peer"), OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.err))
		})
	}
}

func TestPolicy(t *testing.T) {
	stop, wait := Policy(OutcomeSuccess, time.Second)
	assert.True(t, stop)
	assert.Zero(t, wait)

	stop, wait = Policy(OutcomeRateLimited, time.Second)
	assert.False(t, stop)
	assert.Equal(t, time.Second, wait)

	for _, o := range []Outcome{OutcomeNotFound, OutcomeFailed} {
		stop, wait = Policy(o, time.Second)
		assert.False(t, stop, o.String())
		assert.Zero(t, wait, o.String())
	}
}
