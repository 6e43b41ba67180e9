package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dratasich/thingspeak-go-dashboard/events"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	// the update endpoint answers "0" if it did not store the entry
	// (rate limit, wrong key)
	ErrUpdateRejected = errors.New("update rejected")
)

// REST configuration for ThingSpeak
type Config struct {
	URL       string `env:"URL,default=https://api.thingspeak.com"` // REST API base URL
	ChannelID string `env:"CHANNEL_ID,required"`                    // channel to read from

	ReadAPIKey  string `env:"READ_API_KEY"`  // may be empty for public channels
	WriteAPIKey string `env:"WRITE_API_KEY"` // required to write device states

	Timeout time.Duration `env:"TIMEOUT,default=5s"` // per request
}

type Client struct {
	config Config
	http   *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch the most recent record of the channel
//
// GET /channels/{id}/feeds.json?api_key={key}&results=1
func (c *Client) LatestFeed(ctx context.Context) (*events.Feed, error) {
	query := url.Values{}
	if c.config.ReadAPIKey != "" {
		query.Set("api_key", c.config.ReadAPIKey)
	}
	query.Set("results", "1")
	endpoint := fmt.Sprintf("%s/channels/%s/feeds.json?%s",
		strings.TrimRight(c.config.URL, "/"), url.PathEscape(c.config.ChannelID), query.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	feeds, err := events.ParseChannelFeeds(body)
	if err != nil {
		return nil, err
	}
	return feeds.Latest()
}

// Set a single field of the channel
//
// GET /update?api_key={key}&field{n}={value}
func (c *Client) WriteField(ctx context.Context, field int, value int) error {
	query := url.Values{}
	query.Set("api_key", c.config.WriteAPIKey)
	query.Set(fmt.Sprintf("field%d", field), strconv.Itoa(value))
	endpoint := fmt.Sprintf("%s/update?%s", strings.TrimRight(c.config.URL, "/"), query.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}

	// body is the id of the new entry
	entry := strings.TrimSpace(string(body))
	if entry == "" || entry == "0" {
		return ErrUpdateRejected
	}
	log.Debug().Msgf("Stored field%d=%d as entry %s", field, value, entry)
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
