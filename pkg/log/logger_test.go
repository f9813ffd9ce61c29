package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	l := New("test")
	l.SetWriter(buf)
	l.SetColorize(false)
	return l
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.SetLevel(WARN)

	l.Debug("not shown")
	l.Info("not shown")
	l.Warn("shown warn")
	l.Error("shown error")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("below-level messages emitted: %q", out)
	}
	if !strings.Contains(out, "shown warn") || !strings.Contains(out, "shown error") {
		t.Errorf("expected messages missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.WithFields(Fields{"b": 2, "a": 1}).Info("msg")
	out := buf.String()
	if !strings.Contains(out, "{a=1, b=2}") {
		t.Errorf("fields not sorted: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.SetFormat(FormatJSON)

	l.WithField("axis", "axis1").Info("tick")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v: %q", err, buf.String())
	}
	if entry["message"] != "tick" || entry["logger"] != "test" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestChild(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	c := l.Child("servo")
	c.Info("hello")
	if !strings.Contains(buf.String(), "test.servo") {
		t.Errorf("child prefix missing: %q", buf.String())
	}
}

func TestRingDrain(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	r := NewRing(4)
	r.Append(INFO, "first", Fields{"n": 1})
	r.Append(WARN, "second", nil)
	r.Drain(l)

	out := buf.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("drained records missing: %q", out)
	}

	buf.Reset()
	r.Drain(l)
	if buf.Len() != 0 {
		t.Errorf("second drain emitted records: %q", buf.String())
	}
}

func TestRingDrops(t *testing.T) {
	r := NewRing(2)
	r.Append(INFO, "a", nil)
	r.Append(INFO, "b", nil)
	r.Append(INFO, "c", nil)
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}
