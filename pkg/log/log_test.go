package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAddsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{Level: "info", ServiceName: "chat", InstanceID: "i-1"}, &buf)
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry[FieldService] != "chat" {
		t.Errorf("service = %v, want chat", entry[FieldService])
	}
	if entry[FieldInstance] != "i-1" {
		t.Errorf("instance = %v, want i-1", entry[FieldInstance])
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := WithLogger(context.Background(), logger)

	l := Ctx(ctx)
	l.Info().Msg("from ctx")
	if buf.Len() == 0 {
		t.Fatal("expected context logger to be used")
	}

	// Must not panic without a logger.
	_ = Ctx(context.Background())
}

func TestHTTPMiddlewareSetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	mw := HTTPMiddleware(zerolog.New(&buf))

	var seen bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := Ctx(r.Context())
		l.Info().Msg("inside")
		seen = true
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/public/global/alice", nil)
	req.Header.Set(headerRequestID, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if !seen {
		t.Fatal("handler not called")
	}
	if got := rr.Header().Get(headerRequestID); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-42"`)) {
		t.Errorf("log output missing request id: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"status":418`)) {
		t.Errorf("log output missing status: %s", buf.String())
	}
}
