// Package useragent rotates desktop browser identities for outbound scraping requests.
package useragent

import (
	"math/rand"
	"net/http"
)

var desktop = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Random returns one of the known desktop user agents.
func Random() string {
	return desktop[rand.Intn(len(desktop))]
}

// All returns a copy of the rotation pool.
func All() []string {
	out := make([]string, len(desktop))
	copy(out, desktop)
	return out
}

// ApplyBrowserHeaders decorates h so a request looks like a page navigation.
func ApplyBrowserHeaders(h http.Header, referer string) {
	h.Set("User-Agent", Random())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		h.Set("Referer", referer)
	}
}
