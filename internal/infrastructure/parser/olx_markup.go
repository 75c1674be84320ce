package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/scanner"
)

const (
	olxBaseURL = "https://www.olx.kz"

	maxPhotos      = 10
	photoFullSize  = ";s=1920x1080"
	privateSeller  = "Частное лицо"
	noTitle        = "Без названия"
	noPrice        = "Цена не указана"
	phoneEndpointF = "/api/v1/offers/%s/limited-phones/"
)

var (
	listingIDExpr = regexp.MustCompile(`-(ID[0-9A-Za-z]+)\.html`)
	photoSizeExpr = regexp.MustCompile(`;s=\d+x\d+`)
	digitsExpr    = regexp.MustCompile(`\d+`)

	blockMarkers = []string{
		"access denied",
		"attention required",
		"captcha",
		"just a moment",
		"доступ ограничен",
		"доступ запрещен",
	}
)

// OLXMarkup holds every OLX selector used for category and detail pages.
type OLXMarkup struct {
	baseURL string
}

var (
	_ scanner.Markup       = (*OLXMarkup)(nil)
	_ scanner.DetailMarkup = (*OLXMarkup)(nil)
)

// NewOLXMarkup resolves relative links against baseURL (defaults to olx.kz).
func NewOLXMarkup(baseURL string) *OLXMarkup {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = olxBaseURL
	}
	return &OLXMarkup{baseURL: baseURL}
}

// BaseURL returns the site root used for relative links.
func (m *OLXMarkup) BaseURL() string { return m.baseURL }

func (m *OLXMarkup) Cards(doc *goquery.Document) *goquery.Selection {
	return doc.Find(`div[data-cy="l-card"]`)
}

func (m *OLXMarkup) Card(card *goquery.Selection) scanner.Card {
	title := text(card.Find(`div[data-cy="ad-card-title"] h4`))
	if title == "" {
		title = text(card.Find("h4"))
	}

	href, _ := card.Find("a[href]").First().Attr("href")

	return scanner.Card{
		Title:    title,
		Price:    text(card.Find(`[data-testid="ad-price"]`)),
		PostedAt: text(card.Find(`p[data-testid="location-date"]`)),
		Href:     strings.TrimSpace(href),
	}
}

func (m *OLXMarkup) NoTitle() string { return noTitle }
func (m *OLXMarkup) NoPrice() string { return noPrice }

// ResolveURL makes href absolute and drops tracking query strings and fragments.
func (m *OLXMarkup) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	base, err := url.Parse(m.baseURL + "/")
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(ref)
	if abs.Host == "" {
		return ""
	}
	abs.RawQuery = ""
	abs.Fragment = ""
	return abs.String()
}

// ListingID extracts the "ID…" token from OLX detail URLs, falling back to the URL itself.
func (m *OLXMarkup) ListingID(detailURL string) string {
	if match := listingIDExpr.FindStringSubmatch(detailURL); match != nil {
		return match[1]
	}
	return detailURL
}

func (m *OLXMarkup) IsBlocked(doc *goquery.Document) bool {
	title := strings.ToLower(text(doc.Find("title")))
	for _, marker := range blockMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// Extract reads the structured detail fields. Description cleaning is left to
// the caller, which receives the raw block via DescriptionHTML.
func (m *OLXMarkup) Extract(doc *goquery.Document) domain.EnrichedDetail {
	seller := text(doc.Find(`div[data-testid="ad-parameters-container"] p span`).First())

	return domain.EnrichedDetail{
		IsPrivateSeller: strings.Contains(seller, privateSeller),
		PhotoURLs:       m.photos(doc),
		City:            text(doc.Find(`[data-testid="map-aside-section"] p`).First()),
		SellerName:      text(doc.Find(`[data-testid="user-profile-user-name"]`).First()),
		SellerSince:     text(doc.Find(`[data-testid="member-since"]`).First()),
		AdID:            m.adID(doc),
	}
}

func (m *OLXMarkup) DescriptionHTML(doc *goquery.Document) (string, bool) {
	for _, sel := range []string{`div[data-cy="ad_description"] div`, `div.css-19duwlz`} {
		block := doc.Find(sel).First()
		if block.Length() == 0 {
			continue
		}
		if html, err := block.Html(); err == nil {
			return html, true
		}
	}
	return "", false
}

func (m *OLXMarkup) ViewCount(doc *goquery.Document) string {
	return digitsExpr.FindString(text(doc.Find(`[data-testid="page-view-counter"]`).First()))
}

func (m *OLXMarkup) ReadySelector() string {
	return `div[data-cy="ad_description"]`
}

func (m *OLXMarkup) ScriptText(doc *goquery.Document) []string {
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.TrimSpace(body) != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

func (m *OLXMarkup) PhoneEndpoint(adID string) string {
	return m.baseURL + fmt.Sprintf(phoneEndpointF, url.PathEscape(adID))
}

func (m *OLXMarkup) photos(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var photos []string

	doc.Find(`div[data-testid="ad-photo"] img, img[data-testid="swiper-image"]`).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := firstAttr(img, "src", "data-src")
		if src == "" {
			if srcset, ok := img.Attr("srcset"); ok {
				if fields := strings.Fields(srcset); len(fields) > 0 {
					src = fields[0]
				}
			}
		}
		src = m.ResolveImage(src)
		if src == "" {
			return true
		}
		if _, dup := seen[src]; dup {
			return true
		}
		seen[src] = struct{}{}
		photos = append(photos, src)
		return len(photos) < maxPhotos
	})

	return photos
}

// ResolveImage upgrades CDN thumbnails to the full-size variant.
func (m *OLXMarkup) ResolveImage(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if photoSizeExpr.MatchString(src) {
		return photoSizeExpr.ReplaceAllString(src, photoFullSize)
	}
	return src
}

func (m *OLXMarkup) adID(doc *goquery.Document) string {
	var id string
	doc.Find(`[data-cy="ad-footer-bar-section"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := s.Text(); strings.Contains(t, "ID") {
			id = digitsExpr.FindString(t)
		}
		return id == ""
	})
	return id
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.First().Text())
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
