package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/weiawesome/cycredit-chat/pkg/log"
)

func capture(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return log.WithLogger(context.Background(), zerolog.New(&buf)), &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLog(t *testing.T) {
	ctx, buf := capture(t)
	Log(ctx, ActionSendMessage, "conn-1", "public:global", "alice", "chat message sent")

	entry := decode(t, buf)
	want := map[string]string{
		log.FieldLogType:  log.LogTypeAudit,
		FieldAction:       ActionSendMessage,
		log.FieldConnID:   "conn-1",
		log.FieldRoom:     "public:global",
		log.FieldUsername: "alice",
		"message":         "chat message sent",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLogScore(t *testing.T) {
	ctx, buf := capture(t)
	LogScore(ctx, "u1", 42, "add 2")

	entry := decode(t, buf)
	if entry[FieldAction] != ActionScoreUpdate || entry[log.FieldUserID] != "u1" {
		t.Errorf("entry = %v", entry)
	}
	if entry["score"] != float64(42) || entry[FieldDetail] != "add 2" {
		t.Errorf("entry = %v", entry)
	}
}
