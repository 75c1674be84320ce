// Package freshness converts the marketplace's localized "posted at" strings into
// timestamps and decides whether a listing is recent enough to deliver.
package freshness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Window is how far back a listing may have been posted to count as fresh.
	Window = 24 * time.Hour

	postedMarker    = "Опубликовано"
	todayMarker     = "Сегодня"
	yesterdayMarker = "Вчера"
	locationSep     = " - "
)

var (
	timeOfDayExpr = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

	monthNames = [12]string{
		"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря",
	}
	monthIndex = func() map[string]time.Month {
		m := make(map[string]time.Month, len(monthNames))
		for i, name := range monthNames {
			m[name] = time.Month(i + 1)
		}
		return m
	}()
)

// Parser resolves posted-at strings relative to a clock.
type Parser struct {
	// Offset is added to "today"/"yesterday" times: the site displays them shifted
	// from the scraper's local clock.
	Offset   time.Duration
	Location *time.Location
	Now      func() time.Time
}

// NewParser builds a parser using time.Now in loc.
func NewParser(offset time.Duration, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{Offset: offset, Location: loc, Now: time.Now}
}

// Posted is the outcome of parsing one card's location/date line.
type Posted struct {
	At       time.Time
	OK       bool
	Location string
}

// Parse splits off an optional "City - " prefix and resolves the remainder.
// A failed parse is reported via Posted.OK, never as an error.
func (p *Parser) Parse(raw string) Posted {
	text := strings.TrimSpace(strings.ReplaceAll(raw, postedMarker, ""))

	var location string
	if idx := strings.LastIndex(text, locationSep); idx >= 0 {
		location = strings.TrimSpace(text[:idx])
		text = strings.TrimSpace(text[idx+len(locationSep):])
	}

	at, ok := p.resolve(text)
	return Posted{At: at, OK: ok, Location: location}
}

func (p *Parser) resolve(text string) (time.Time, bool) {
	now := p.now()

	switch {
	case strings.Contains(text, todayMarker):
		return p.timeOfDay(text, now), true
	case strings.Contains(text, yesterdayMarker):
		return p.timeOfDay(text, now.AddDate(0, 0, -1)), true
	}

	parts := strings.Fields(text)
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := monthIndex[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(year, month, day, 0, 0, 0, 0, p.location()), true
}

// timeOfDay anchors an HH:MM token on the given day. No token means "now".
func (p *Parser) timeOfDay(text string, day time.Time) time.Time {
	m := timeOfDayExpr.FindStringSubmatch(text)
	if m == nil {
		return day
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours > 23 || minutes > 59 {
		return day
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, p.location())
	return at.Add(p.Offset)
}

// Fresh reports whether posted falls inside the freshness window.
func (p *Parser) Fresh(posted Posted) bool {
	if !posted.OK {
		return false
	}
	return p.now().Sub(posted.At) < Window
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now().In(p.location())
	}
	return p.Now().In(p.location())
}

func (p *Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Format renders t as "5 марта 2024 в 09:05".
func Format(t time.Time) string {
	return fmt.Sprintf("%d %s %d в %02d:%02d",
		t.Day(), monthNames[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// MonthName returns the genitive month name used on the site.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}
