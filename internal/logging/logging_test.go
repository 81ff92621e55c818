package logging

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseThreshold(t *testing.T) {
	cases := []struct {
		name string
		want zapcore.Level
	}{
		{"error", LevelError},
		{"warn", LevelWarn},
		{"url", LevelHit},
		{"info", LevelInfo},
		{"garbage", LevelInfo},
	}
	for _, c := range cases {
		if got := ParseThreshold(c.name); got != c.want {
			t.Fatalf("ParseThreshold(%q): expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestLoggerWarnThresholdSuppressesInfo(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	l := New(LevelWarn)
	l.Info("should not appear")
	l.Warn("should appear")
	_ = l.Sync()
	w.Close()
	os.Stdout = orig

	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line at warn threshold, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "[WARN]") {
		t.Fatalf("expected a [WARN]-prefixed line, got %q", lines[0])
	}
}
