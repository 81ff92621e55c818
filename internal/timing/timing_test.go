package timing

import (
	"testing"
	"time"
)

func TestMetricsReflectsMarkedIntervals(t *testing.T) {
	timer := Start()
	timer.StartConnect()
	time.Sleep(5 * time.Millisecond)
	timer.EndConnect()

	timer.StartTTFB()
	time.Sleep(5 * time.Millisecond)
	timer.EndTTFB()

	m := timer.Metrics()
	if m.Connect <= 0 {
		t.Fatalf("expected a positive Connect duration, got %v", m.Connect)
	}
	if m.TTFB <= 0 {
		t.Fatalf("expected a positive TTFB duration, got %v", m.TTFB)
	}
	if m.Total <= 0 {
		t.Fatalf("expected a positive Total duration, got %v", m.Total)
	}
}

func TestMetricsZeroWhenMarksUnset(t *testing.T) {
	timer := Start()
	m := timer.Metrics()
	if m.Connect != 0 {
		t.Fatalf("expected Connect to stay zero when never marked, got %v", m.Connect)
	}
	if m.TTFB != 0 {
		t.Fatalf("expected TTFB to stay zero when never marked, got %v", m.TTFB)
	}
}
