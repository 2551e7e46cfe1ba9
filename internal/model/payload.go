package model

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// SectionPayload is a submitted section keyed by question id. Keys that are not
// question ids in canonical decimal form ("7", not "07" or "+7") are ignored.
type SectionPayload map[string]json.RawMessage

// PayloadEntry is one question's submission. Value or Other is nil when absent.
type PayloadEntry struct {
	QuestionID int64
	Value      json.RawMessage
	Other      json.RawMessage
}

type compositeAnswer struct {
	Answers    json.RawMessage `json:"answers"`
	OtherField json.RawMessage `json:"other_field"`
}

// Entries returns the question entries in ascending question id order.
func (p SectionPayload) Entries() []PayloadEntry {
	entries := make([]PayloadEntry, 0, len(p))
	for key, raw := range p {
		id, ok := questionKey(key)
		if !ok || IsNull(raw) {
			continue
		}

		entry := PayloadEntry{QuestionID: id}
		if c, ok := asComposite(raw); ok {
			if !IsNull(c.Answers) {
				entry.Value = c.Answers
			}
			if !IsNull(c.OtherField) {
				entry.Other = c.OtherField
			}
		} else {
			entry.Value = raw
		}

		if entry.Value == nil && entry.Other == nil {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].QuestionID < entries[j].QuestionID })
	return entries
}

// questionKey accepts only the canonical spelling of a positive id, so each
// question has exactly one key.
func questionKey(key string) (int64, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != key {
		return 0, false
	}
	return id, true
}

// asComposite recognises {"answers": ..., "other_field": ...}.
func asComposite(raw json.RawMessage) (*compositeAnswer, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, false
	}
	if _, ok := keys["answers"]; !ok {
		return nil, false
	}
	return &compositeAnswer{Answers: keys["answers"], OtherField: keys["other_field"]}, true
}

func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// EncodeValue turns a submitted value into its stored form: arrays stay JSON arrays,
// everything else becomes a JSON string.
func EncodeValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty answer value")
	}

	switch trimmed[0] {
	case '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", fmt.Errorf("invalid array answer: %w", err)
		}
		return buf.String(), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid string answer: %w", err)
		}
		return EncodeString(s), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", fmt.Errorf("invalid answer: %w", err)
		}
		return EncodeString(buf.String()), nil
	}
}

// EncodeString quotes s the way answer values are stored. Filters compare against this form.
func EncodeString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// EncodeList stores a list answer, e.g. uploaded file URLs.
func EncodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DisplayText unquotes a stored string value; arrays and anything else come back verbatim.
func DisplayText(value string) string {
	trimmed := bytes.TrimSpace([]byte(value))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return value
}

// RawValue exposes a stored value as JSON for clients.
func RawValue(value string) json.RawMessage {
	if value == "" || !json.Valid([]byte(value)) {
		return json.RawMessage(EncodeString(value))
	}
	return json.RawMessage(value)
}
