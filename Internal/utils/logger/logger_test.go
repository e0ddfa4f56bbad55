package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "monitor"))

	log.Warn("order not accepted", String("ticker", "ABC"), Int64("qty", 50), Float("price", 10.5), Error(errors.New("rejected")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	want := map[string]interface{}{
		"level":     "warn",
		"message":   "order not accepted",
		"component": "monitor",
		"ticker":    "ABC",
		"qty":       float64(50),
		"price":     10.5,
		"error":     "rejected",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %s", buf.String())
	}

	log.Error("shown")
	if buf.Len() == 0 {
		t.Errorf("error should be written")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "chatty", Output: "stdout"}); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
}
