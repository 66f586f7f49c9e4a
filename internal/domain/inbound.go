package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload is returned when an inbound frame is not a JSON object.
var ErrMalformedPayload = errors.New("malformed chat payload")

// InboundMessage is a decoded client frame: {fromUserId?, content?, username?}.
type InboundMessage struct {
	FromUserID Optional[int64]
	Content    string
	Username   Optional[string]
}

// ParseInbound decodes a client frame. Only integral numbers are accepted
// for fromUserId; any other value leaves it unset.
func ParseInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, ErrMalformedPayload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if raw, ok := fields["fromUserId"]; ok {
		msg.FromUserID = parseInteger(raw)
	}
	if raw, ok := fields["content"]; ok && !isNull(raw) {
		msg.Content = scalarText(raw)
	}
	if raw, ok := fields["username"]; ok && !isNull(raw) {
		msg.Username = Some(scalarText(raw))
	}
	return msg, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func parseInteger(raw json.RawMessage) Optional[int64] {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Optional[int64]{}
	}
	n, ok := v.(json.Number)
	if !ok || strings.ContainsAny(n.String(), ".eE") {
		return Optional[int64]{}
	}
	i, err := n.Int64()
	if err != nil {
		return Optional[int64]{}
	}
	return Some(i)
}

// scalarText returns a JSON string's value, or the compact JSON text of any
// other value.
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}
