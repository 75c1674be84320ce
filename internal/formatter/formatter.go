// Package formatter renders listings as Telegram messages and applies the delivery policy.
package formatter

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/freshness"
)

// Telegram message size limits, in characters.
const (
	TextLimit    = 4096
	CaptionLimit = 1024
)

const (
	privateLabel  = "Частное лицо ✅"
	businessLabel = "Компания/Бизнес"
	unknownViews  = "неизвестно"
	noPhone       = "недоступен"
	linkLabel     = "Открыть объявление"
	ellipsis      = "…"
)

// Dialect is a Telegram parse mode.
type Dialect string

const (
	MarkdownV2 Dialect = "MarkdownV2"
	HTML       Dialect = "HTML"
)

// Formatter builds message bodies in one dialect.
type Formatter struct {
	dialect Dialect
}

// New picks the dialect by Telegram parse mode name; anything but HTML means MarkdownV2.
func New(parseMode string) *Formatter {
	if strings.EqualFold(parseMode, string(HTML)) {
		return &Formatter{dialect: HTML}
	}
	return &Formatter{dialect: MarkdownV2}
}

// ParseMode is the value for the Bot API parse_mode field.
func (f *Formatter) ParseMode() string { return string(f.dialect) }

// Text renders the full message bounded to the sendMessage limit.
func (f *Formatter) Text(l domain.Listing, d domain.EnrichedDetail, photos int) string {
	return f.bounded(l, d, photos, TextLimit)
}

// Caption renders the message bounded to the media caption limit.
func (f *Formatter) Caption(l domain.Listing, d domain.EnrichedDetail, photos int) string {
	return f.bounded(l, d, photos, CaptionLimit)
}

// Simplified carries only title, price and link.
func (f *Formatter) Simplified(l domain.Listing) string {
	lines := []string{
		"📌 " + f.strong(l.Title),
		"💰 " + f.escape(l.Price),
		"🔗 " + f.link(l.URL),
	}
	return strings.Join(lines, "\n")
}

// bounded shortens the description until the rendered message fits limit.
func (f *Formatter) bounded(l domain.Listing, d domain.EnrichedDetail, photos, limit int) string {
	desc := []rune(Normalize(d.Description))
	text := f.render(l, d, photos, string(desc))

	for utf8.RuneCountInString(text) > limit && len(desc) > 0 {
		over := utf8.RuneCountInString(text) - limit
		keep := len(desc) - over - 1
		if keep <= 0 {
			desc = desc[:0]
			text = f.render(l, d, photos, "")
			break
		}
		desc = desc[:keep]
		text = f.render(l, d, photos, strings.TrimSpace(string(desc))+ellipsis)
	}

	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
		text = strings.TrimRight(text, "\\")
	}
	return text
}

func (f *Formatter) render(l domain.Listing, d domain.EnrichedDetail, photos int, description string) string {
	seller := businessLabel
	if d.IsPrivateSeller {
		seller = privateLabel
	}

	lines := []string{
		"📌 " + f.strong(l.Title),
		"💰 " + f.escape(l.Price),
		"👤 " + f.escape(seller),
	}
	if d.SellerName != "" {
		who := d.SellerName
		if d.SellerSince != "" {
			who += ", " + d.SellerSince
		}
		lines = append(lines, "🙋 "+f.escape(who))
	}
	if !l.PostedAt.IsZero() {
		lines = append(lines, "🕒 "+f.escape(freshness.Format(l.PostedAt)))
	}
	if city := firstNonEmpty(d.City, l.Location); city != "" {
		lines = append(lines, "📍 "+f.escape(city))
	}

	views := firstNonEmpty(d.ViewCount, unknownViews)
	phone := firstNonEmpty(d.Phone, noPhone)
	lines = append(lines,
		"👁 "+f.escape("Просмотры: "+views),
		"📞 "+f.escape("Телефон: "+phone),
	)

	if description != "" {
		lines = append(lines, "📝 "+f.escape(description))
	}
	if photos > 0 {
		lines = append(lines, "📷 "+f.escape(fmt.Sprintf("Фото: %d", photos)))
	}
	lines = append(lines, "🔗 "+f.link(l.URL))

	return collapseBlankLines(strings.Join(lines, "\n"))
}

func (f *Formatter) escape(s string) string {
	if f.dialect == HTML {
		return html.EscapeString(Normalize(s))
	}
	return EscapeMarkdownV2(s)
}

func (f *Formatter) strong(s string) string {
	if f.dialect == HTML {
		return "<b>" + f.escape(s) + "</b>"
	}
	return "*" + f.escape(s) + "*"
}

func (f *Formatter) link(u string) string {
	if f.dialect == HTML {
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(u), linkLabel)
	}
	return f.escape(u)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
