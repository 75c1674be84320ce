package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDownloadSkipsFailuresAndHonoursLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			http.NotFound(w, r)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/huge.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		}
	}))
	defer server.Close()

	d := NewDownloader(server.Client(), 32, nil)
	photos := d.Download(context.Background(), []string{
		server.URL + "/missing.jpg",
		server.URL + "/page.html",
		server.URL + "/huge.jpg",
		server.URL + "/a.jpg",
		server.URL + "/b/image;s=1920x1080",
		server.URL + "/c.jpg",
	}, 2)

	if assert.Len(t, photos, 2) {
		assert.Equal(t, "0_a.jpg", photos[0].Name)
		assert.Equal(t, "photo1.jpg", photos[1].Name)
		assert.Equal(t, []byte("jpeg-bytes"), photos[0].Data)
	}
}

func TestSafeClientRefusesLoopback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	d := NewDownloader(NewSafeClient(time.Second), 0, nil)
	assert.Empty(t, d.Download(context.Background(), []string{server.URL + "/a.jpg"}, 5))
}
