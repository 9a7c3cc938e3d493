package schema

import (
	"encoding/json"
	"fmt"
)

// ParseValue converts loosely typed input (command-line text or decoded
// JSON) to the native value of t. Strings and JSON numbers go through
// DecodeText; anything else must already be native.
func ParseValue(attr string, t PrimitiveType, raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return DecodeText(attr, t, v)
	case json.Number:
		return DecodeText(attr, t, v.String())
	case float64:
		if t.IsInteger() || t == TypeTimestamp {
			if v != float64(int64(v)) {
				return nil, mismatch(attr, t, raw)
			}
			return ParseValue(attr, t, json.Number(fmt.Sprintf("%d", int64(v))))
		}
	}
	return Normalize(attr, t, raw)
}

// Parse converts every component of km that names a key attribute to its
// native value, keeping the mapping order. Components naming no key
// attribute are kept as given so the caller's validation can report them.
func (kd KeyDescriptor) Parse(km KeyMapping) (KeyMapping, error) {
	var out KeyMapping
	for _, pair := range km.Pairs() {
		attr, ok := kd.Attribute(pair.Name)
		if !ok {
			out.Set(pair.Name, pair.Value)
			continue
		}
		v, err := ParseValue(attr.Name, attr.Type, pair.Value)
		if err != nil {
			return KeyMapping{}, err
		}
		out.Set(attr.Name, v)
	}
	return out, nil
}
