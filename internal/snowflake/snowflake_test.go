package snowflake

import (
	"testing"
	"time"
)

func TestNewRejectsBadWorker(t *testing.T) {
	if _, err := New(MaxWorkerID + 1); err == nil {
		t.Error("expected an error for a worker ID above the maximum")
	}
	if _, err := New(-1); err == nil {
		t.Error("expected an error for a negative worker ID")
	}
}

func TestGenerateSnowflake(t *testing.T) {
	g, err := New(7)
	if err != nil {
		t.Fatal(err)
	}

	first, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Errorf("ids should grow: %d then %d", first, second)
	}

	parts := Extract(first)
	if parts.WorkerID != 7 {
		t.Errorf("WorkerID = %d, want 7", parts.WorkerID)
	}
	if since := time.Since(Time(first)); since < 0 || since > time.Minute {
		t.Errorf("Time() is off by %s", since)
	}
}

func TestSnowflakeIncrementOverflow(t *testing.T) {
	g, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	frozen := time.UnixMilli(1_700_000_000_000)
	g.now = func() time.Time { return frozen }

	for range maxIncrementValue + 1 {
		if _, err := g.Generate(); err != nil {
			t.Fatalf("overflowed too early: %v", err)
		}
	}
	if _, err := g.Generate(); err == nil {
		t.Error("Expected increment overflow, but there wasn't")
	}
}
