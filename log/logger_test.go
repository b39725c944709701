package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in     string
		exp    Level
		expErr bool
	}{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{"", Notice, false},
		{"warn", Warning, false},
		{"error", Error, false},
		{"chatty", Notice, true},
	}

	for index, s := range specs {
		level, err := ParseLevel(s.in)
		if s.expErr != (err != nil) {
			t.Fatalf("[spec %d] expected error: %t; got %v", index, s.expErr, err)
		}
		if level != s.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", index, s.exp, level)
		}
	}
}

func TestSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(nopWriter{})

	logger := New("log test")

	SetLevel(Warning)
	logger.Info("hidden message")
	if buf.Len() != 0 {
		t.Fatalf("expected info message to be filtered; got %q", buf.String())
	}

	SetLevel(Debug)
	logger.Debugf("visible %d", 42)
	if !strings.Contains(buf.String(), "visible 42") || !strings.Contains(buf.String(), "[log test]") {
		t.Fatalf("expected debug message with module name; got %q", buf.String())
	}
	SetLevel(Notice)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
