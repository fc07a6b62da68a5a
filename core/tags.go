package core

import (
	"encoding/json"
	"fmt"
)

// Tags is metadata attached to a metric or transaction for later filtering
// and grouping. Keys are unique, ordering is irrelevant. Values are expected
// to be scalars (string, number, bool); anything else is stringified rather
// than rejected so a bad tag never blocks a submission.
type Tags map[string]interface{}

// EncodedTags is the backend's expected encoded form of a tag set:
// a canonical JSON object. An empty tag set encodes as "{}".
type EncodedTags []byte

// EncodeTags serializes a tag set for transmission. It is a pure function
// with no state. Nil and empty sets are both valid and encode as "{}".
func EncodeTags(tags Tags) (EncodedTags, error) {
	if len(tags) == 0 {
		return EncodedTags("{}"), nil
	}

	normalized := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		normalized[k] = normalizeTagValue(v)
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, NewAgentError("tags.Encode", "tags", err)
	}
	return EncodedTags(data), nil
}

// DecodeTags parses an encoded tag set back into a map. Numbers come back as
// float64 per encoding/json semantics. Primarily useful for backends and
// tests that need to inspect submitted tags.
func DecodeTags(encoded EncodedTags) (map[string]interface{}, error) {
	if len(encoded) == 0 {
		return map[string]interface{}{}, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, NewAgentError("tags.Decode", "tags", err)
	}
	return out, nil
}

// normalizeTagValue keeps scalars as-is and stringifies everything else
func normalizeTagValue(v interface{}) interface{} {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
