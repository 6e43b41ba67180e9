package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFeedsLatest(t *testing.T) {
	// arrange
	// https://www.mathworks.com/help/thingspeak/readdata.html
	jsonData := `
	{
		"channel": {
			"id": 1234567,
			"name": "home power",
			"field1": "Usage",
			"last_entry_id": 8
		},
		"feeds": [
			{
				"created_at": "2024-05-01T10:00:00Z",
				"entry_id": 7,
				"field1": "0.12"
			},
			{
				"created_at": "2024-05-01T10:00:15Z",
				"entry_id": 8,
				"field1": "0.31",
				"field2": "64.5",
				"field3": "0.29",
				"field6": "27",
				"field7": null
			}
		]
	}`

	// act
	cf, err := ParseChannelFeeds([]byte(jsonData))
	require.NoError(t, err)
	feed, err := cf.Latest()
	require.NoError(t, err)

	// assert
	assert.Equal(t, int64(1234567), cf.Channel.Id)
	assert.Equal(t, "Usage", cf.Channel.Field1)
	assert.Equal(t, int64(8), feed.EntryId)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 15, 0, time.UTC), feed.CreatedAt.UTC())

	usage, err := feed.Float(FieldUsage)
	require.NoError(t, err)
	assert.Equal(t, 0.31, usage)

	balance, err := feed.Float(FieldBalance)
	require.NoError(t, err)
	assert.Equal(t, 64.5, balance)

	_, ok := feed.Field(7)
	assert.False(t, ok, "null fields should stay unset")
}

func TestChannelFeedsEmpty(t *testing.T) {
	cf, err := ParseChannelFeeds([]byte(`{"channel": {"id": 1}, "feeds": []}`))
	require.NoError(t, err)

	_, err = cf.Latest()
	assert.ErrorIs(t, err, ErrNoFeeds)
}

func TestParseChannelFeedsMalformed(t *testing.T) {
	_, err := ParseChannelFeeds([]byte(`{"feeds": "nope"}`))
	assert.Error(t, err)
}

func TestDecodeFeedBadTimestamp(t *testing.T) {
	_, err := DecodeFeed(map[string]any{"created_at": "yesterday"})
	assert.Error(t, err)
}

func TestDecodeFeedLooseRecord(t *testing.T) {
	// unknown keys are ignored, offsets other than Z are accepted
	raw := map[string]any{
		"channel_id": float64(1234567),
		"created_at": "2024-05-01T12:00:15+02:00",
		"entry_id":   float64(9),
		"field1":     "0.40",
		"field8":     "1",
	}

	feed, err := DecodeFeed(raw)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 15, 0, time.UTC), feed.CreatedAt.UTC())
	assert.Equal(t, int64(9), feed.EntryId)
	v, ok := feed.Field(8)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestFloat(t *testing.T) {
	s := " 42.5 "
	bad := "n/a"
	feed := &Feed{Field2: &s, Field6: &bad}

	v, err := feed.Float(FieldBalance)
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)

	_, err = feed.Float(FieldTemperature)
	assert.Error(t, err)

	_, err = feed.Float(FieldUsage)
	assert.ErrorIs(t, err, ErrFieldMissing)
}
