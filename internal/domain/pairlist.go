package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pair is one ordered entry of an inline key/value list field
// (config, attribute, dependency, flags, files, parameter, fileparameter).
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DecodeOne decodes a single-valued inline field (probeexecutable, parent).
// The stored form is a JSON array with zero or one string element, or ""
// when the field is empty.
func DecodeOne(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return "", fmt.Errorf("failed to decode inline field %q: %w", s, err)
	}
	if len(items) == 0 {
		return "", nil
	}
	return items[0], nil
}

// EncodeOne is the inverse of DecodeOne. An empty value encodes to "".
func EncodeOne(v string) string {
	if v == "" {
		return ""
	}
	b, _ := json.Marshal([]string{v})
	return string(b)
}

// DecodePairs decodes an inline key/value list field. The stored form is a
// JSON array of "key value" strings; only the first space separates key
// from value, so values may themselves contain spaces. An empty field is
// stored as "" and decodes to an empty list.
func DecodePairs(s string) ([]Pair, error) {
	if s == "" {
		return []Pair{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to decode inline list %q: %w", s, err)
	}
	pairs := make([]Pair, 0, len(items))
	for _, item := range items {
		parts := strings.SplitN(item, " ", 2)
		p := Pair{Key: parts[0]}
		if len(parts) == 2 {
			p.Value = parts[1]
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// EncodePairs encodes an ordered pair list back to the stored form.
// Entries with an empty key (placeholder rows from the UI) are dropped.
// An empty list encodes to "", never to "[]".
func EncodePairs(pairs []Pair) string {
	items := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.Key == "" {
			continue
		}
		items = append(items, p.Key+" "+p.Value)
	}
	if len(items) == 0 {
		return ""
	}
	b, _ := json.Marshal(items)
	return string(b)
}
