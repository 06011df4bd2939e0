package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARNING ", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate kept = %q", got)
	}
	got := truncate(strings.Repeat("a", 40), 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"warn","time":"x","message":"send failed","channel":"-100","err":"boom"}`)
	got := formatAlert(line)
	want := "[WARN] send failed\n- channel=-100\n- err=boom"
	if got != want {
		t.Fatalf("formatAlert = %q, want %q", got, want)
	}
	if got := formatAlert([]byte("not json")); got != "not json" {
		t.Fatalf("formatAlert(raw) = %q", got)
	}
	if got := formatAlert([]byte("   ")); got != "" {
		t.Fatalf("formatAlert(blank) = %q", got)
	}
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Warn("hello", Int("n", 3), Err(errors.New("bad")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if m["message"] != "hello" || m["comp"] != "test" || m["err"] != "bad" {
		t.Fatalf("unexpected event: %v", m)
	}
	if n, _ := m["n"].(float64); n != 3 {
		t.Fatalf("n = %v", m["n"])
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %v", m["caller"])
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("dropped")
	if l.Enabled(LevelError) {
		t.Fatal("zero logger should not be enabled")
	}
}

func TestAlertSinkQueuesAboveMinLevel(t *testing.T) {
	t.Parallel()
	svc := &Service{
		queue:    make(chan alertItem, 1),
		chatID:   42,
		threadID: 7,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		minLevel: zerolog.WarnLevel,
	}
	w := &alertWriter{svc: svc}

	_, _ = w.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info","message":"quiet"}`))
	if len(svc.queue) != 0 {
		t.Fatal("info line should not be queued")
	}
	_, _ = w.WriteLevel(zerolog.ErrorLevel, []byte(`{"level":"error","message":"loud"}`))
	_, _ = w.WriteLevel(zerolog.ErrorLevel, []byte(`{"level":"error","message":"overflow"}`))

	it := <-svc.queue
	if it.chatID != 42 || it.threadID != 7 || it.text != "[ERROR] loud" {
		t.Fatalf("queued = %+v", it)
	}
	if svc.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", svc.Dropped())
	}
}
