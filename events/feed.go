package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Meaning of the read-side fields of the telemetry channel
const (
	FieldUsage       = 1
	FieldBalance     = 2
	FieldPredicted   = 3
	FieldTemperature = 6
)

var ErrFieldMissing = errors.New("field missing")

// One record of a telemetry channel
//
// All fields are optional strings, the service sends `null` for fields
// without a value in this entry.
//
// example:
// `{"created_at": "2024-05-01T10:00:00Z", "entry_id": 7, "field1": "0.31", "field2": "64", "field7": null}`
type Feed struct {
	CreatedAt time.Time `json:"created_at"`
	EntryId   int64     `json:"entry_id"`

	Field1 *string `json:"field1"`
	Field2 *string `json:"field2"`
	Field3 *string `json:"field3"`
	Field4 *string `json:"field4"`
	Field5 *string `json:"field5"`
	Field6 *string `json:"field6"`
	Field7 *string `json:"field7"`
	Field8 *string `json:"field8"`
}

// DecodeFeed maps a loosely typed record (decoded JSON) onto a Feed
func DecodeFeed(raw map[string]any) (*Feed, error) {
	var feed Feed
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		TagName:    "json",
		Result:     &feed,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return &feed, nil
}

// Field returns the raw value of field n (1..8)
func (f *Feed) Field(n int) (string, bool) {
	var v *string
	switch n {
	case 1:
		v = f.Field1
	case 2:
		v = f.Field2
	case 3:
		v = f.Field3
	case 4:
		v = f.Field4
	case 5:
		v = f.Field5
	case 6:
		v = f.Field6
	case 7:
		v = f.Field7
	case 8:
		v = f.Field8
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

// Float parses field n as a number
func (f *Feed) Float(n int) (float64, error) {
	s, ok := f.Field(n)
	if !ok {
		return 0, fmt.Errorf("field%d: %w", n, ErrFieldMissing)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("field%d: %w", n, err)
	}
	return v, nil
}
