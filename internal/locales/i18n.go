package locales

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// DefaultLanguage is used when Init is given an unparsable code.
const DefaultLanguage = "ru"

//go:embed *.json
var localeFS embed.FS

var (
	mu              sync.RWMutex
	bundle          *i18n.Bundle
	defaultLanguage = language.Russian
)

// Init loads the embedded translation files and sets the default language.
func Init(defaultLangCode string) error {
	tag, err := language.Parse(defaultLangCode)
	if err != nil {
		log.Warn().Err(err).Str("code", defaultLangCode).Msg("Failed to parse default language, using " + DefaultLanguage)
		tag = language.Russian
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("failed to read embedded locales: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if _, err := b.LoadMessageFileFS(localeFS, entry.Name()); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to load message file")
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return errors.New("no message files loaded")
	}

	mu.Lock()
	bundle = b
	defaultLanguage = tag
	mu.Unlock()

	log.Debug().Int("files", loaded).Str("default", tag.String()).Msg("i18n bundle initialized")
	return nil
}

// GetDefaultLanguageTag returns the configured default language tag.
func GetDefaultLanguageTag() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences, falling back to the default.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b == nil {
		panic("locales: NewLocalizer called before Init")
	}
	return i18n.NewLocalizer(b, langPrefs...)
}

// GetMessage localizes msgID. Unknown ids fall back to English, then to the id itself.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}, pluralCount *int) string {
	config := &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	}
	if pluralCount != nil {
		config.PluralCount = *pluralCount
	}

	msg, err := localizer.Localize(config)
	if err == nil {
		return msg
	}
	log.Error().Err(err).Str("message_id", msgID).Msg("Failed to localize message")

	msg, err = NewLocalizer(language.English.String()).Localize(config)
	if err == nil {
		return msg
	}
	return msgID
}
