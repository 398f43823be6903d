package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Field is a single name/value pair posted by a client.
type Field struct {
	Name  string
	Value string
}

// Submission is the ordered set of fields a client posts for relay. Field
// order follows the wire payload so the rendered email reads like the form.
type Submission []Field

func (s Submission) Empty() bool {
	return len(s) == 0
}

// ParseSubmissionJSON decodes a flat JSON object while keeping key order,
// which a plain map decode would lose. Scalar values are stringified; nested
// values are kept as their raw JSON text.
func ParseSubmissionJSON(data []byte) (Submission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object")
	}

	var sub Submission
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("expected a JSON object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		sub = append(sub, Field{Name: key, Value: stringifyJSONValue(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return sub, nil
}

func stringifyJSONValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		return string(trimmed)
	}
	return string(trimmed)
}

// ParseSubmissionForm decodes an application/x-www-form-urlencoded body.
// url.ParseQuery returns a map, so pairs are split by hand to keep order.
func ParseSubmissionForm(body string) (Submission, error) {
	var sub Submission
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("invalid form field name %q: %w", rawKey, err)
		}
		if strings.TrimSpace(key) == "" {
			continue
		}
		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			return nil, fmt.Errorf("invalid form field value %q: %w", rawVal, err)
		}
		sub = append(sub, Field{Name: key, Value: val})
	}
	return sub, nil
}
