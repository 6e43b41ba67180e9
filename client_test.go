package thingspeak

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		URL:         srv.URL,
		ChannelID:   "1234567",
		ReadAPIKey:  "READKEY",
		WriteAPIKey: "WRITEKEY",
		Timeout:     time.Second,
	}
	return NewClient(cfg)
}

func TestLatestFeed(t *testing.T) {
	// arrange
	var gotPath, gotKey, gotResults string
	client := fixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotResults = r.URL.Query().Get("results")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"channel": {"id": 1234567}, "feeds": [{"created_at": "2024-05-01T10:00:00Z", "entry_id": 3, "field1": "0.5", "field3": "0.9"}]}`))
	})

	// act
	feed, err := client.LatestFeed(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "/channels/1234567/feeds.json", gotPath)
	assert.Equal(t, "READKEY", gotKey)
	assert.Equal(t, "1", gotResults)
	assert.Equal(t, int64(3), feed.EntryId)
	usage, ok := feed.Field(1)
	assert.True(t, ok)
	assert.Equal(t, "0.5", usage)
}

func TestLatestFeedBadStatus(t *testing.T) {
	client := fixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.LatestFeed(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestLatestFeedMalformed(t *testing.T) {
	client := fixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`-1`))
	})

	_, err := client.LatestFeed(context.Background())
	assert.Error(t, err)
}

func TestWriteField(t *testing.T) {
	// arrange
	var gotPath, gotKey, gotField string
	client := fixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotField = r.URL.Query().Get("field7")
		w.Write([]byte("42"))
	})

	// act
	err := client.WriteField(context.Background(), 7, 1)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "/update", gotPath)
	assert.Equal(t, "WRITEKEY", gotKey)
	assert.Equal(t, "1", gotField)
}

func TestWriteFieldRejected(t *testing.T) {
	client := fixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0"))
	})

	err := client.WriteField(context.Background(), 8, 0)
	assert.ErrorIs(t, err, ErrUpdateRejected)
}

func TestWriteFieldUnreachable(t *testing.T) {
	client := NewClient(Config{URL: "http://127.0.0.1:1", ChannelID: "1", Timeout: 200 * time.Millisecond})

	err := client.WriteField(context.Background(), 7, 1)
	assert.Error(t, err)
}
