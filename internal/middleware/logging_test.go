package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HammerMeetNail/fitchat/internal/logging"
)

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		status    int
		wantLevel string
		wantMsg   string
		wantQuery string
	}{
		{"server error", "/api/send?retry=1", http.StatusInternalServerError, "ERROR", "Request failed", "retry=1"},
		{"not friends", "/api/send", http.StatusForbidden, "WARN", "Request rejected", ""},
		{"rate limited", "/api/send-friend-request", http.StatusTooManyRequests, "WARN", "Request rejected", ""},
		{"poll", "/api/poll/abc?since=2024-01-01T00:00:00Z", http.StatusOK, "DEBUG", "Request completed", "since=2024-01-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.New().SetOutput(&buf).SetLevel(logging.LevelDebug)
			handler := NewRequestLogger(logger).Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			var entry logging.LogEntry
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
				t.Fatalf("failed to parse log entry: %v", err)
			}
			if entry.Level != tt.wantLevel || entry.Message != tt.wantMsg {
				t.Fatalf("expected %s %q, got %s %q", tt.wantLevel, tt.wantMsg, entry.Level, entry.Message)
			}
			if entry.Fields["status"] != float64(tt.status) || entry.Fields["bytes"] != float64(2) {
				t.Fatalf("unexpected status/bytes fields %+v", entry.Fields)
			}
			if entry.Fields["remote_ip"] != "203.0.113.9" {
				t.Fatalf("expected forwarded client ip, got %v", entry.Fields["remote_ip"])
			}
			query, hasQuery := entry.Fields["query"]
			if tt.wantQuery == "" && hasQuery {
				t.Fatalf("expected no query field, got %v", query)
			}
			if tt.wantQuery != "" && query != tt.wantQuery {
				t.Fatalf("expected query %q, got %v", tt.wantQuery, query)
			}
		})
	}
}

func TestRequestLogger_ImplicitOKIsQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New().SetOutput(&buf).SetLevel(logging.LevelInfo)

	handler := NewRequestLogger(logger).Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/live", nil))

	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %s", buf.String())
	}
}
