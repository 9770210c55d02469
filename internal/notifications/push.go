package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geocoder89/raksha/internal/domain/user"
)

// PushData is the payload the mobile app reads when an SOS push is opened.
type PushData struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	Location  *user.Location `json:"location"`
	Timestamp int64          `json:"timestamp"`
}

// PushMessage is one entry of an Expo push batch.
type PushMessage struct {
	To    string   `json:"to"`
	Sound string   `json:"sound"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Data  PushData `json:"data"`
}

// PushResult is the provider's answer to a batch, kept raw for logging.
type PushResult struct {
	StatusCode int
	Body       json.RawMessage
}

type PushSender interface {
	SendPush(ctx context.Context, msgs []PushMessage) (PushResult, error)
}

// ExpoClient posts message batches to the Expo push API.
type ExpoClient struct {
	url  string
	http *http.Client
}

func NewExpoClient(url string, timeout time.Duration) *ExpoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ExpoClient{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// SendPush issues a single POST carrying the whole batch. Non-2xx answers are errors.
func (c *ExpoClient) SendPush(ctx context.Context, msgs []PushMessage) (PushResult, error) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return PushResult{}, fmt.Errorf("encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return PushResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return PushResult{}, fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PushResult{StatusCode: resp.StatusCode}, fmt.Errorf("read push response: %w", err)
	}

	res := PushResult{StatusCode: resp.StatusCode}
	if json.Valid(body) {
		res.Body = body
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("push provider returned %d", resp.StatusCode)
	}

	return res, nil
}
