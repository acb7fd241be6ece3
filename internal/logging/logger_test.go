package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerWithService(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithService("signagehub", "debug")
	l.SetOutput(&buf)

	l.WithField("k", "v").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "signagehub" {
		t.Errorf("service = %v, want signagehub", entry["service"])
	}
	if entry["k"] != "v" {
		t.Errorf("k = %v, want v", entry["k"])
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	l := NewLogger("loud")
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
}
