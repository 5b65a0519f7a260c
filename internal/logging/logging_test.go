package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			log := NewWithWriter(&bytes.Buffer{}, tc.level, "text")
			if log.GetLevel() != tc.want {
				t.Errorf("level %q = %v; want %v", tc.level, log.GetLevel(), tc.want)
			}
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")
	log.WithField("book_id", "b1").Info("plan generated")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["book_id"] != "b1" {
		t.Errorf("expected book_id field, got %v", entry["book_id"])
	}
	if entry["msg"] != "plan generated" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("should not panic or print")
	if !strings.EqualFold(log.GetLevel().String(), "panic") {
		t.Errorf("expected panic level, got %v", log.GetLevel())
	}
}
