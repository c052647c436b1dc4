package config

import (
	"strings"
	"testing"
	"time"

	"photopost-bot/internal/captions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_ID", "-1001234")
	t.Setenv("ADMIN_IDS", "7651760894, 7750251679")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("CAPTION_PROVIDER", "gemini")
	t.Setenv("POST_TIMES", "09:00,18:00")
	t.Setenv("POST_TZ_OFFSET", "7")
	t.Setenv("CAPTION_RATE_LIMIT_PAUSE", "2s")
	t.Setenv("PORT", "8080")
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		setBaseEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, int64(-1001234), cfg.ChannelID)
		assert.Empty(t, cfg.ChannelUsername)
		assert.Equal(t, []int64{7651760894, 7750251679}, cfg.AdminIDs)
		assert.Equal(t, []string{"09:00", "18:00"}, cfg.PostTimes)
		assert.Equal(t, 7, cfg.TimezoneOffset)
		assert.Equal(t, 2*time.Second, cfg.RateLimitPause)
		assert.Equal(t, 8080, cfg.HealthPort)
		assert.Equal(t, StoreMemory, cfg.StoreDriver)
		assert.Equal(t, StorageLocal, cfg.StorageDriver)
	})

	t.Run("ChannelUsername", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CHANNEL_ID", "@flowers")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, int64(0), cfg.ChannelID)
		assert.Equal(t, "@flowers", cfg.ChannelUsername)
	})

	t.Run("MissingToken", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "TELEGRAM_BOT_TOKEN")
	})

	t.Run("MissingAdmins", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("ADMIN_IDS", " , ")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "ADMIN_IDS")
	})

	t.Run("InvalidAdminID", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("ADMIN_IDS", "1,abc")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "abc")
	})

	t.Run("S3RequiresCredentials", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("STORAGE_DRIVER", "s3")
		t.Setenv("YC_ACCESS_KEY", "")
		t.Setenv("YC_SECRET_KEY", "")
		t.Setenv("YC_BUCKET_NAME", "")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "YC_ACCESS_KEY")
	})

	t.Run("MongoRequiresURI", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "MONGODB_URI")
	})

	for _, key := range []string{"DEBUG", "S3_PATH_STYLE"} {
		t.Run("Invalid"+key, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(key, "ture")

			_, err := LoadConfig()
			assert.ErrorContains(t, err, "invalid "+key)
		})
	}

	t.Run("FooterLongerThanCaptionLimit", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CAPTION_FOOTER", strings.Repeat("ж", captions.MaxCaptionRunes+1))

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "CAPTION_FOOTER")
	})

	t.Run("FooterAtCaptionLimit", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CAPTION_FOOTER", strings.Repeat("ж", captions.MaxCaptionRunes))

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Len(t, []rune(cfg.CaptionFooter), captions.MaxCaptionRunes)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CAPTION_PROVIDER", "openai")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "CAPTION_PROVIDER")
	})
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b ,"))
	assert.Nil(t, splitList(""))
}
