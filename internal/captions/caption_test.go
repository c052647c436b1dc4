package captions

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseCaption(t *testing.T) {
	t.Run("BothLines", func(t *testing.T) {
		parsed, ok := ParseCaption("Name: Утро\nDescription: Пионы и эвкалипт.")
		assert.True(t, ok)
		assert.Equal(t, Parsed{Title: "Утро", Body: "Пионы и эвкалипт."}, parsed)
	})

	t.Run("MarkdownDecorations", func(t *testing.T) {
		parsed, ok := ParseCaption("Вот вариант:\n**Name:** Закат\n- **Description:** Оранжевые розы.")
		assert.True(t, ok)
		assert.Equal(t, "Закат", parsed.Title)
		assert.Equal(t, "Оранжевые розы.", parsed.Body)
	})

	t.Run("RussianLabelsAndCase", func(t *testing.T) {
		parsed, ok := ParseCaption("НАЗВАНИЕ: Облако\nописание: Белые гортензии.")
		assert.True(t, ok)
		assert.Equal(t, "Облако", parsed.Title)
		assert.Equal(t, "Белые гортензии.", parsed.Body)
	})

	t.Run("FirstOccurrenceWins", func(t *testing.T) {
		parsed, _ := ParseCaption("Name: A\nName: B\nDescription: one\nDescription: two")
		assert.Equal(t, "A", parsed.Title)
		assert.Equal(t, "one", parsed.Body)
	})

	t.Run("OnlyTitle", func(t *testing.T) {
		parsed, ok := ParseCaption("Name: Лето")
		assert.True(t, ok)
		assert.Equal(t, "Лето", parsed.Title)
		assert.Equal(t, PlaceholderBody, parsed.Body)
	})

	t.Run("Unstructured", func(t *testing.T) {
		parsed, ok := ParseCaption("Красивый букет из роз")
		assert.False(t, ok)
		assert.Equal(t, Parsed{Title: PlaceholderTitle, Body: PlaceholderBody}, parsed)
	})

	t.Run("EmptyValueIgnored", func(t *testing.T) {
		parsed, ok := ParseCaption("Name:\nDescription: Текст")
		assert.True(t, ok)
		assert.Equal(t, PlaceholderTitle, parsed.Title)
		assert.Equal(t, "Текст", parsed.Body)
	})
}

func TestFallback(t *testing.T) {
	plain := Fallback(time.Time{})
	assert.Equal(t, Result{Title: FallbackTitle, Body: FallbackBody, Source: SourceFallback}, plain)

	stamped := Fallback(time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC))
	assert.True(t, stamped.IsFallback())
	assert.True(t, strings.HasPrefix(stamped.Body, FallbackBody))
	assert.True(t, strings.HasSuffix(stamped.Body, "02.01.2026 15:04"))
}

func TestCompose(t *testing.T) {
	footer := "📞 +7 900 000-00-00\n📍 ул. Цветочная, 1"

	text := Compose(Result{Title: "Весна", Body: "Тюльпаны."}, footer)
	assert.Equal(t, "Весна\n\nТюльпаны.\n\n"+footer, text)

	assert.Equal(t, "Весна\n\nТюльпаны.", Compose(Result{Title: "Весна", Body: "Тюльпаны."}, ""))
}

func TestComposeTruncatesBodyKeepsFooter(t *testing.T) {
	footer := "📞 +7 900 000-00-00"
	body := strings.Repeat("цветы ", 400)

	text := Compose(Result{Title: "Длинный", Body: body}, footer)

	assert.Equal(t, MaxCaptionRunes, utf8.RuneCountInString(text))
	assert.True(t, strings.HasPrefix(text, "Длинный\n\n"))
	assert.True(t, strings.HasSuffix(text, "…\n\n"+footer))
}

func TestComposeLongFooterStaysVerbatim(t *testing.T) {
	footer := strings.Repeat("ф", MaxCaptionRunes-10)

	text := Compose(Result{Title: "Длинное название букета", Body: "Тюльпаны."}, footer)

	assert.LessOrEqual(t, utf8.RuneCountInString(text), MaxCaptionRunes)
	assert.True(t, strings.HasSuffix(text, "\n\n"+footer))
	assert.True(t, strings.HasPrefix(text, "Длинное\n\n"))
	assert.NotContains(t, text, "Тюльпаны")

	assert.Equal(t, strings.Repeat("ф", MaxCaptionRunes), Compose(Result{Title: "Весна"}, strings.Repeat("ф", MaxCaptionRunes)))
}
