package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2024, 3, 5, 10, 11, 12, 345000000, time.UTC)

	tests := []struct {
		name string
		typ  PrimitiveType
		raw  interface{}
		want interface{}
	}{
		{"text", TypeText, "Org1", "Org1"},
		{"uuid text", TypeUUID, id.String(), id},
		{"uuid native", TypeUUID, id, id},
		{"timestamp millis", TypeTimestamp, "1709633472345", ts},
		{"timestamp rfc3339", TypeTimestamp, "2024-03-05T10:11:12.345Z", ts},
		{"timestamp json number", TypeTimestamp, json.Number("1709633472345"), ts},
		{"int from float", TypeInt, float64(42), int64(42)},
		{"bigint from text", TypeBigInt, "9000000000", int64(9000000000)},
		{"float", TypeFloat, float64(1.5), 1.5},
		{"bool text", TypeBool, "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue("attr", tt.typ, tt.raw)
			require.NoError(t, err)
			assert.True(t, ValuesEqual(tt.want, got), "want %v, got %v", tt.want, got)
		})
	}

	_, err := ParseValue("attr", TypeInt, 1.5)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ParseValue("attr", TypeUUID, "nope")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestKeyDescriptorParse(t *testing.T) {
	kd, err := BuildKeyDescriptor(dummyModel())
	require.NoError(t, err)
	id := uuid.New()

	var raw KeyMapping
	require.NoError(t, json.Unmarshal([]byte(`{"key":"`+id.String()+`","organization":"Org1","start_date":1709633472345,"extra":1}`), &raw))

	parsed, err := kd.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "organization", "start_date", "extra"}, parsed.Names())

	key, _ := parsed.Get("key")
	assert.Equal(t, id, key)
	extra, _ := parsed.Get("extra")
	assert.Equal(t, json.Number("1"), extra)

	_, err = kd.Parse(NewKeyMapping(KeyValue{Name: "start_date", Value: "yesterday"}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
