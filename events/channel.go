package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNoFeeds = errors.New("channel returned no feeds")

// Channel metadata as returned along with the feeds
//
// see also
// - api: https://www.mathworks.com/help/thingspeak/readdata.html
type Channel struct {
	Id          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LastEntryId int64  `json:"last_entry_id"`

	// labels of the numbered fields, e.g. "field1": "Usage"
	Field1 string `json:"field1"`
	Field2 string `json:"field2"`
	Field3 string `json:"field3"`
	Field6 string `json:"field6"`
}

// Response body of `GET /channels/{id}/feeds.json`
//
// example:
// `{"channel": {"id": 42, ...}, "feeds": [{"created_at": "...", "entry_id": 7, "field1": "0.31", ...}]}`
type ChannelFeeds struct {
	Channel Channel `json:"channel"`

	// kept raw, every record is decoded with DecodeFeed
	Feeds []map[string]any `json:"feeds"`
}

// ParseChannelFeeds decodes a feeds.json body
func ParseChannelFeeds(body []byte) (*ChannelFeeds, error) {
	var cf ChannelFeeds
	if err := json.Unmarshal(body, &cf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel feeds: %w", err)
	}
	return &cf, nil
}

// Latest decodes the last record of the response; older records are ignored.
func (cf *ChannelFeeds) Latest() (*Feed, error) {
	if len(cf.Feeds) == 0 {
		return nil, ErrNoFeeds
	}
	return DecodeFeed(cf.Feeds[len(cf.Feeds)-1])
}
