package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"photopost-bot/internal/captions"
	"photopost-bot/internal/database"
	"photopost-bot/internal/database/models"
	"photopost-bot/internal/locales"
	"photopost-bot/internal/publish"
	"photopost-bot/internal/storage"
	"photopost-bot/pkg/telegoapi/mocks"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := locales.Init("ru"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type fakeCaptioner struct{ calls int }

func (f *fakeCaptioner) Generate(_ context.Context, img *captions.Image) captions.Result {
	f.calls++
	if img == nil || len(img.Data) == 0 {
		return captions.Fallback(time.Time{})
	}
	return captions.Result{Title: "Весна", Body: "Тюльпаны.", Source: "gemini-2.5-flash"}
}

type fakePublisher struct {
	mu       sync.Mutex
	fail     error
	captions []string
	entered  chan struct{}
	block    chan struct{}
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, caption string) (int, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	f.captions = append(f.captions, caption)
	return 100 + len(f.captions), nil
}

func (f *fakePublisher) Channel() string { return "@flowers" }

type rotatorFixture struct {
	store     *database.MemoryStore
	storage   *storage.LocalStorage
	publisher *fakePublisher
	bot       *mocks.MockBot
	rotator   *Rotator
}

func newFixture(t *testing.T) *rotatorFixture {
	t.Helper()
	st, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	bot := new(mocks.MockBot)
	bot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	f := &rotatorFixture{
		store:     database.NewMemoryStore(),
		storage:   st,
		publisher: &fakePublisher{},
		bot:       bot,
	}
	f.rotator, err = NewRotator(RotatorDeps{
		Photos:    f.store,
		PostLog:   f.store,
		Storage:   st,
		Captioner: &fakeCaptioner{},
		Publisher: f.publisher,
		Notifier:  publish.NewOperatorNotifier(bot, []int64{11, 22}),
		Footer:    "📞 +7 900 000-00-00",
		Language:  "ru",
	})
	require.NoError(t, err)
	return f
}

func (f *rotatorFixture) addPhoto(t *testing.T, externalID string) int64 {
	t.Helper()
	ctx := context.Background()
	location, err := f.storage.Put(ctx, storage.NewKey("photos/", externalID, "jpg"), jpeg, "image/jpeg")
	require.NoError(t, err)
	inserted, err := f.store.Insert(ctx, externalID, location)
	require.NoError(t, err)
	require.True(t, inserted)

	recent, err := f.store.ListRecent(ctx, 1)
	require.NoError(t, err)
	return recent[0].ID
}

func TestRotationScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	idA := f.addPhoto(t, "A")
	idB := f.addPhoto(t, "B")
	require.NoError(t, f.store.MarkPosted(ctx, idA))

	// Only B is unposted.
	report, err := f.rotator.RunCycle(ctx, models.TriggerSchedule)
	require.NoError(t, err)
	require.NotNil(t, report.Photo)
	assert.Equal(t, idB, report.Photo.ID)
	assert.False(t, report.PoolReset)
	assert.Equal(t, "gemini-2.5-flash", report.Caption.Source)
	assert.Equal(t, "Весна\n\nТюльпаны.\n\n📞 +7 900 000-00-00", f.publisher.captions[0])

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoStats{Total: 2, Posted: 2, Pending: 0}, stats)

	// Pool exhausted: reset, notify both operators, post one of A/B.
	report, err = f.rotator.RunCycle(ctx, models.TriggerSchedule)
	require.NoError(t, err)
	assert.True(t, report.PoolReset)
	assert.Equal(t, int64(2), report.ResetTotal)
	assert.Equal(t, 2, report.Notified)
	require.NotNil(t, report.Photo)
	assert.Contains(t, []int64{idA, idB}, report.Photo.ID)

	for _, operator := range []int64{11, 22} {
		texts := f.bot.SentTexts(operator)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "2")
	}

	stats, err = f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoStats{Total: 2, Posted: 1, Pending: 1}, stats)

	logs := f.store.PostLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, idB, logs[0].PhotoID)
	assert.Equal(t, "@flowers", logs[0].ChannelID)
	assert.Equal(t, 101, logs[0].ChannelPostID)
	assert.Equal(t, models.TriggerSchedule, logs[0].Trigger)
}

func TestRotationPublishFailureKeepsPhotoUnposted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addPhoto(t, "A")
	f.publisher.fail = errors.New("Bad Request: not enough rights")

	report, err := f.rotator.RunCycle(ctx, models.TriggerManual)
	require.Error(t, err)
	assert.Equal(t, id, report.Photo.ID)

	photo, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, photo.Posted)
	assert.Nil(t, photo.PostedAt)
	assert.Empty(t, f.store.PostLogs())

	// Next cycle retries the same photo without a reset.
	f.publisher.fail = nil
	report, err = f.rotator.RunCycle(ctx, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, id, report.Photo.ID)
	assert.False(t, report.PoolReset)
}

func TestRotationEmptyPool(t *testing.T) {
	f := newFixture(t)

	report, err := f.rotator.RunCycle(context.Background(), models.TriggerSchedule)
	assert.ErrorIs(t, err, ErrEmptyPool)
	assert.False(t, report.PoolReset)
	f.bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestRotationMissingPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.Insert(ctx, "ghost", "/nonexistent/ghost.jpg")
	require.NoError(t, err)

	_, err = f.rotator.RunCycle(ctx, models.TriggerSchedule)
	require.Error(t, err)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Posted)
}

func TestRotationSingleCycleAtATime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addPhoto(t, "A")
	f.publisher.entered = make(chan struct{})
	f.publisher.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.rotator.RunCycle(ctx, models.TriggerSchedule)
		done <- err
	}()

	select {
	case <-f.publisher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle never reached publish")
	}

	_, err := f.rotator.RunCycle(ctx, models.TriggerManual)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(f.publisher.block)
	assert.NoError(t, <-done)
}

func TestNewRotatorValidation(t *testing.T) {
	_, err := NewRotator(RotatorDeps{})
	assert.Error(t, err)
}
