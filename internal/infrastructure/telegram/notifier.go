package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"OlxWatcher/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// RateLimitError is a 429 answer; RetryAfter is zero when the API did not say.
type RateLimitError struct {
	RetryAfter  time.Duration
	Description string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limit (retry after %s): %s", e.RetryAfter, e.Description)
}

func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

var _ ports.RetryAfter = (*RateLimitError)(nil)

// APIError is any other unsuccessful Bot API answer.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type inputMedia struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Notifier sends listing messages to a Telegram chat via bot API.
type Notifier struct {
	apiBase   string
	botToken  string
	chatID    string
	parseMode string
	client    *http.Client
}

var _ ports.Messenger = (*Notifier)(nil)

// NewNotifier registers bot token, chat identifier and parse mode. apiBase may be empty.
func NewNotifier(apiBase, botToken, chatID, parseMode string, timeout time.Duration) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		apiBase:   strings.TrimRight(apiBase, "/"),
		botToken:  botToken,
		chatID:    chatID,
		parseMode: parseMode,
		client:    &http.Client{Timeout: timeout},
	}
}

// HasChat reports whether a target chat is configured.
func (n *Notifier) HasChat() bool {
	return n.chatID != ""
}

// SendText posts a formatted message.
func (n *Notifier) SendText(ctx context.Context, text string) error {
	if err := n.check(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")
	if n.parseMode != "" {
		form.Set("parse_mode", n.parseMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return n.do(req, "sendMessage")
}

// SendPhotos uploads photos as one album with caption on the first item.
func (n *Notifier) SendPhotos(ctx context.Context, caption string, photos []ports.Photo) error {
	if err := n.check(); err != nil {
		return err
	}
	if len(photos) == 0 {
		return errors.New("no photos to send")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	method := "sendMediaGroup"
	if len(photos) == 1 {
		method = "sendPhoto"
		if err := n.writePhotoFields(mw, caption, photos[0]); err != nil {
			return err
		}
	} else if err := n.writeAlbumFields(mw, caption, photos); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(method), &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return n.do(req, method)
}

func (n *Notifier) writePhotoFields(mw *multipart.Writer, caption string, photo ports.Photo) error {
	fields := map[string]string{"chat_id": n.chatID, "caption": caption}
	if n.parseMode != "" {
		fields["parse_mode"] = n.parseMode
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	return writeFile(mw, "photo", photo)
}

func (n *Notifier) writeAlbumFields(mw *multipart.Writer, caption string, photos []ports.Photo) error {
	media := make([]inputMedia, len(photos))
	for i := range photos {
		media[i] = inputMedia{Type: "photo", Media: "attach://" + attachName(i)}
	}
	media[0].Caption = caption
	media[0].ParseMode = n.parseMode

	encoded, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}
	if err := mw.WriteField("chat_id", n.chatID); err != nil {
		return fmt.Errorf("write field chat_id: %w", err)
	}
	if err := mw.WriteField("media", string(encoded)); err != nil {
		return fmt.Errorf("write field media: %w", err)
	}
	for i, photo := range photos {
		if err := writeFile(mw, attachName(i), photo); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) do(req *http.Request, method string) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var payload apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}

	if resp.StatusCode == http.StatusOK && payload.OK {
		return nil
	}

	code := payload.ErrorCode
	if code == 0 {
		code = resp.StatusCode
	}
	desc := payload.Description
	if desc == "" {
		desc = resp.Status
	}

	if code == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter:  time.Duration(payload.Parameters.RetryAfter) * time.Second,
			Description: desc,
		}
	}
	return &APIError{Method: method, Code: code, Description: desc}
}

func (n *Notifier) check() error {
	if n.botToken == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if n.chatID == "" {
		return ports.ErrNoChat
	}
	return nil
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.botToken, method)
}

func attachName(i int) string {
	return "photo" + strconv.Itoa(i)
}

func writeFile(mw *multipart.Writer, field string, photo ports.Photo) error {
	name := photo.Name
	if name == "" {
		name = field + ".jpg"
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(photo.Data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	return nil
}
