package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"OlxWatcher/internal/infrastructure/useragent"
)

var phoneExpr = regexp.MustCompile(`\+?[78][\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`)

type phonesResponse struct {
	Data struct {
		Phones []string `json:"phones"`
	} `json:"data"`
}

// PhoneLookup resolves a seller phone number, best-effort.
type PhoneLookup struct {
	client  *http.Client
	referer string
}

// NewPhoneLookup uses client for the offers API; nil gets a 10s client.
func NewPhoneLookup(client *http.Client, referer string) *PhoneLookup {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PhoneLookup{client: client, referer: referer}
}

// Lookup asks endpoint first and then scans scripts. "" means no phone was found.
func (p *PhoneLookup) Lookup(ctx context.Context, endpoint string, scripts []string) string {
	if endpoint != "" {
		if phone, err := p.fromAPI(ctx, endpoint); err == nil && phone != "" {
			return phone
		}
	}
	return FindPhone(scripts)
}

func (p *PhoneLookup) fromAPI(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	useragent.ApplyBrowserHeaders(req.Header, p.referer)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request phones: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("phones endpoint returned %d", resp.StatusCode)
	}

	var payload phonesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode phones: %w", err)
	}
	for _, phone := range payload.Data.Phones {
		if phone = strings.TrimSpace(phone); phone != "" {
			return phone, nil
		}
	}
	return "", nil
}

// FindPhone returns the first phone-shaped token across scripts.
func FindPhone(scripts []string) string {
	for _, body := range scripts {
		if match := phoneExpr.FindString(body); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}
