package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/wsf-tracker/internal/common/discord"
)

func TestLoggerKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Info("Schedule refreshed", "routes", 12, "error", errors.New("boom"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "Schedule refreshed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["routes"] != float64(12) {
		t.Errorf("routes = %v, want 12", entry["routes"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestLoggerMapFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Warn("Flush date missing", map[string]interface{}{"family": "terminals"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["family"] != "terminals" {
		t.Errorf("family = %v", entry["family"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	log.Debug("ignored", "k", "v")
	log.Error("ignored")
}

func TestDefaultLoggerConfig(t *testing.T) {
	cfg := DefaultLoggerConfig()
	if !cfg.Console || cfg.File || cfg.Level != zerolog.InfoLevel {
		t.Errorf("DefaultLoggerConfig() = %+v, want console-only info", cfg)
	}
	if cfg.DiscordURL != "" {
		t.Error("DefaultLoggerConfig() should not alert anywhere")
	}
}

func TestFieldMap(t *testing.T) {
	got := fieldMap([]interface{}{"cycle", "long", "error", errors.New("boom"), 42, "skipped"})
	if got["cycle"] != "long" || got["error"] != "boom" {
		t.Errorf("fieldMap() = %v", got)
	}
	if len(got) != 2 {
		t.Errorf("non-string key kept: %v", got)
	}

	m := map[string]interface{}{"family": "schedule"}
	if got := fieldMap([]interface{}{m}); got["family"] != "schedule" {
		t.Errorf("fieldMap(map) = %v", got)
	}
}

func TestDiscordAlertCarriesFields(t *testing.T) {
	bodies := make(chan discord.WebhookMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discord.WebhookMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		bodies <- msg
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	log := NewFromConfig(LoggerConfig{Level: zerolog.InfoLevel, DiscordURL: server.URL})
	log.Error("Refresh cycle failed", "cycle", "long", "error", errors.New("schedule 7-3: status 503"))

	var msg discord.WebhookMessage
	select {
	case msg = <-bodies:
	case <-time.After(2 * time.Second):
		t.Fatal("no webhook delivered")
	}
	if len(msg.Embeds) != 1 {
		t.Fatalf("len(Embeds) = %d, want 1", len(msg.Embeds))
	}

	fields := make(map[string]string)
	for _, f := range msg.Embeds[0].Fields {
		fields[f.Name] = f.Value
	}
	if fields["cycle"] != "long" || fields["error"] != "schedule 7-3: status 503" {
		t.Errorf("embed fields = %v", fields)
	}
}
