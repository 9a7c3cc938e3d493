package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Native Go representations per semantic type:
//
//	string, text, ascii  string
//	int, bigint          int64
//	float                float64
//	bool                 bool
//	timestamp            time.Time, UTC, millisecond precision
//	date                 time.Time, UTC midnight
//	uuid                 uuid.UUID
//
// Text encodings (used inside composite key mappings):
//
//	timestamp  milliseconds since the Unix epoch, decimal
//	date       YYYY-MM-DD
//	uuid       canonical 36-character form
//	int        decimal
//	bool       true / false

const dateLayout = "2006-01-02"

// timestamp layouts accepted when decoding text that is not epoch milliseconds
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Normalize checks that v is a native value of type t and returns its
// canonical form. Integer widths are widened to int64 and float32 to float64;
// timestamps are truncated to milliseconds in UTC. Values of another kind are
// rejected, never converted.
func Normalize(attr string, t PrimitiveType, v interface{}) (interface{}, error) {
	switch t {
	case TypeString, TypeText, TypeASCII:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		if t == TypeASCII && !isASCII(s) {
			return nil, &TypeMismatchError{Attribute: attr, Expected: t.String(), Got: "non-ascii string"}
		}
		return s, nil

	case TypeInt, TypeBigInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		if t == TypeInt && (n > math.MaxInt32 || n < math.MinInt32) {
			return nil, &TypeMismatchError{Attribute: attr, Expected: t.String(), Got: "out of range integer"}
		}
		return n, nil

	case TypeFloat:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
		return nil, mismatch(attr, t, v)

	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		return b, nil

	case TypeTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		return TruncateMillis(ts), nil

	case TypeDate:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil

	case TypeUUID:
		id, ok := v.(uuid.UUID)
		if !ok {
			return nil, mismatch(attr, t, v)
		}
		return id, nil
	}

	return nil, fmt.Errorf("%s: %w", attr, ErrUnknownType)
}

// EncodeText encodes a native value as text
func EncodeText(attr string, t PrimitiveType, v interface{}) (string, error) {
	n, err := Normalize(attr, t, v)
	if err != nil {
		return "", err
	}

	switch t {
	case TypeString, TypeText, TypeASCII:
		return n.(string), nil
	case TypeInt, TypeBigInt:
		return strconv.FormatInt(n.(int64), 10), nil
	case TypeFloat:
		return strconv.FormatFloat(n.(float64), 'g', -1, 64), nil
	case TypeBool:
		return strconv.FormatBool(n.(bool)), nil
	case TypeTimestamp:
		return strconv.FormatInt(n.(time.Time).UnixMilli(), 10), nil
	case TypeDate:
		return n.(time.Time).Format(dateLayout), nil
	case TypeUUID:
		return n.(uuid.UUID).String(), nil
	}

	return "", fmt.Errorf("%s: %w", attr, ErrUnknownType)
}

// DecodeText parses the text encoding of type t back to its native value
func DecodeText(attr string, t PrimitiveType, s string) (interface{}, error) {
	malformed := func(cause error) error {
		return fmt.Errorf("%w: %v", &TypeMismatchError{Attribute: attr, Expected: t.String(), Got: strconv.Quote(s)}, cause)
	}

	switch t {
	case TypeString, TypeText, TypeASCII:
		return Normalize(attr, t, s)

	case TypeInt, TypeBigInt:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, malformed(err)
		}
		return Normalize(attr, t, n)

	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, malformed(err)
		}
		return f, nil

	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, malformed(err)
		}
		return b, nil

	case TypeTimestamp:
		ts, err := parseTimestamp(strings.TrimSpace(s))
		if err != nil {
			return nil, malformed(err)
		}
		return TruncateMillis(ts), nil

	case TypeDate:
		d, err := time.Parse(dateLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, malformed(err)
		}
		return d, nil

	case TypeUUID:
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, malformed(err)
		}
		return id, nil
	}

	return nil, fmt.Errorf("%s: %w", attr, ErrUnknownType)
}

// EncodeScalar encodes a native value for a plain, indexable storage column.
// UUIDs become their canonical string; every other type keeps its native
// representation.
func EncodeScalar(attr string, t PrimitiveType, v interface{}) (interface{}, error) {
	n, err := Normalize(attr, t, v)
	if err != nil {
		return nil, err
	}
	if t == TypeUUID {
		return n.(uuid.UUID).String(), nil
	}
	return n, nil
}

// DecodeScalar converts a value read back from a storage column to its
// native form. Drivers hand back text as string or []byte, so textual input
// is parsed with DecodeText for non-text types.
func DecodeScalar(attr string, t PrimitiveType, stored interface{}) (interface{}, error) {
	switch v := stored.(type) {
	case []byte:
		return DecodeText(attr, t, string(v))
	case string:
		return DecodeText(attr, t, v)
	}
	return Normalize(attr, t, stored)
}

// TruncateMillis returns ts in UTC truncated to millisecond precision
func TruncateMillis(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Millisecond)
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
