// Package media downloads listing photos for upload to the messenger.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"OlxWatcher/internal/infrastructure/useragent"
	"OlxWatcher/internal/ports"
)

const defaultMaxBytes = 10 << 20

// NewSafeClient returns an HTTP client that refuses private, loopback and
// metadata addresses after DNS resolution.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// Downloader fetches images one by one, skipping any that fail.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ ports.PhotoDownloader = (*Downloader)(nil)

// NewDownloader caps every image at maxBytes.
func NewDownloader(client *http.Client, maxBytes int64, logger *slog.Logger) *Downloader {
	if client == nil {
		client = NewSafeClient(20 * time.Second)
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Downloader{client: client, maxBytes: maxBytes, logger: logger}
}

// Download returns at most limit photos in the order of urls.
func (d *Downloader) Download(ctx context.Context, urls []string, limit int) []ports.Photo {
	var photos []ports.Photo
	for _, u := range urls {
		if limit > 0 && len(photos) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		data, err := d.fetch(ctx, u)
		if err != nil {
			d.debug("photo download failed", "url", u, "error", err)
			continue
		}
		photos = append(photos, ports.Photo{Name: photoName(u, len(photos)), Data: data})
	}
	return photos
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	useragent.ApplyBrowserHeaders(req.Header, "")
	req.Header.Set("Accept", "image/avif,image/webp,image/jpeg,image/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return data, nil
}

func photoName(rawURL string, i int) string {
	base := path.Base(strings.SplitN(rawURL, ";", 2)[0])
	if ext := path.Ext(base); ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".webp" {
		return strconv.Itoa(i) + "_" + base
	}
	return "photo" + strconv.Itoa(i) + ".jpg"
}

func (d *Downloader) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
