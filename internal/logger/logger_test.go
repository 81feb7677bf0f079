package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "debug", "json")
	l.WithField("staff_id", "abc").Info("staff logged in")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "staff logged in" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["staff_id"] != "abc" {
		t.Errorf("staff_id: got %v", entry["staff_id"])
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level: got %v, want debug", l.GetLevel())
	}
}

func TestNewWithOutput_TextAndBadLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "shouting", "text")
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level: got %v, want info", l.GetLevel())
	}
	l.Debug("hidden")
	l.Info("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info line missing")
	}
}
