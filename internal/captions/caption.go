// Package captions turns a photo into a short channel caption using a chain of
// language models, falling back to fixed text when no model answers.
package captions

import (
	"strings"
	"time"
)

// SourceFallback marks a caption that did not come from a model.
const SourceFallback = "fallback"

// MaxCaptionRunes is Telegram's photo caption limit.
const MaxCaptionRunes = 1024

const separator = "\n\n"

const (
	SystemPrompt = "Ты - профессиональный флорист и копирайтер. Составляй красивые описания для букетов цветов."
	UserPrompt   = `Посмотри на фото букета и придумай для него название и короткое описание для поста в Telegram-канале цветочного магазина (2-3 предложения, без хэштегов).
Ответь строго в формате:
Name: <название>
Description: <описание>`

	PlaceholderTitle = "Букет"
	PlaceholderBody  = "Свежий букет ручной работы от наших флористов."

	FallbackTitle = "Букет дня"
	FallbackBody  = "Свежие цветы, собранные с любовью. Закажите такой же букет!"

	fallbackStampLayout = "02.01.2006 15:04"
)

var (
	titlePrefixes = []string{"name:", "название:"}
	bodyPrefixes  = []string{"description:", "описание:"}
)

// Image is the photo payload sent to vision-capable models.
type Image struct {
	Data     []byte
	MIMEType string
}

// Result is a generated caption.
type Result struct {
	Title  string
	Body   string
	Source string // model identifier or SourceFallback
}

// IsFallback reports whether no model produced the caption.
func (r Result) IsFallback() bool {
	return r.Source == SourceFallback
}

// Parsed is the structured part of a model answer.
type Parsed struct {
	Title string
	Body  string
}

// ParseCaption extracts the Name:/Description: lines from a model answer.
// ok is false when neither line is present. Missing parts are filled with placeholders
// either way, so the result is always usable.
func ParseCaption(text string) (Parsed, bool) {
	var parsed Parsed
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "*-#• \t")
		if parsed.Title == "" {
			if value, found := cutPrefixFold(line, titlePrefixes); found {
				parsed.Title = value
				continue
			}
		}
		if parsed.Body == "" {
			if value, found := cutPrefixFold(line, bodyPrefixes); found {
				parsed.Body = value
			}
		}
	}

	ok := parsed.Title != "" || parsed.Body != ""
	if parsed.Title == "" {
		parsed.Title = PlaceholderTitle
	}
	if parsed.Body == "" {
		parsed.Body = PlaceholderBody
	}
	return parsed, ok
}

func cutPrefixFold(line string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			value := strings.TrimSpace(strings.Trim(line[len(prefix):], "* "))
			return value, value != ""
		}
	}
	return "", false
}

// Fallback returns the fixed caption. A non-zero stamp is appended to the body so
// operators can tell a failed generation from a skipped one.
func Fallback(stamp time.Time) Result {
	body := FallbackBody
	if !stamp.IsZero() {
		body += "\n\n🕒 " + stamp.Format(fallbackStampLayout)
	}
	return Result{Title: FallbackTitle, Body: body, Source: SourceFallback}
}

// Compose renders the caption text followed by the footer block verbatim.
// When the whole text exceeds MaxCaptionRunes the body is shortened first, then
// dropped with the title cut to fit. The footer is only cut when it alone exceeds the limit.
func Compose(result Result, footer string) string {
	footer = strings.TrimSpace(footer)
	text := join(result.Title, result.Body, footer)
	if runeLen(text) <= MaxCaptionRunes {
		return text
	}

	// Budget for the body: everything except title, footer, separators and the ellipsis.
	budget := MaxCaptionRunes - runeLen(join(result.Title, "", footer)) - runeLen(separator) - 1
	body := []rune(strings.TrimSpace(result.Body))
	if budget > 0 && budget < len(body) {
		text = join(result.Title, strings.TrimSpace(string(body[:budget]))+"…", footer)
		if runeLen(text) <= MaxCaptionRunes {
			return text
		}
	}

	if room := MaxCaptionRunes - runeLen(footer) - runeLen(separator); room > 0 {
		title := []rune(strings.TrimSpace(result.Title))
		if len(title) > room {
			title = title[:room]
		}
		return join(string(title), "", footer)
	}
	if runeLen(footer) <= MaxCaptionRunes {
		return footer
	}
	return string([]rune(footer)[:MaxCaptionRunes])
}

func join(title, body, footer string) string {
	var parts []string
	for _, part := range []string{title, body, footer} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, separator)
}

func runeLen(s string) int {
	return len([]rune(s))
}
