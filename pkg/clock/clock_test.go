package clock

import (
	"testing"
	"time"
)

func TestManual_NowIsPinned(t *testing.T) {
	at := time.Date(2021, 5, 23, 13, 0, 0, 0, time.UTC)
	c := NewManual(at)
	if !c.Now().Equal(at) {
		t.Fatalf("Now() = %v, want %v", c.Now(), at)
	}
	if !c.Now().Equal(c.Now()) {
		t.Fatal("Manual clock should not move on its own")
	}
}

func TestManual_SetAndAdvance(t *testing.T) {
	c := NewManual(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	c.Set(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
	got := c.Advance(36 * time.Hour)
	want := time.Date(2021, 6, 2, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) || !c.Now().Equal(want) {
		t.Fatalf("Advance: got %v, want %v", got, want)
	}
}

func TestSystem_CloseToWallClock(t *testing.T) {
	var c Clock = System{}
	if d := time.Since(c.Now()); d < 0 || d > time.Second {
		t.Fatalf("System.Now() off by %v", d)
	}
}

func TestStartAndEndOfDay(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	// 23:30 UTC on the 22nd is 01:30 on the 23rd in CEST.
	at := time.Date(2021, 5, 22, 23, 30, 0, 0, time.UTC)

	start := StartOfDay(at, loc)
	if want := time.Date(2021, 5, 23, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Fatalf("StartOfDay = %v, want %v", start, want)
	}
	end := EndOfDay(at, loc)
	if want := time.Date(2021, 5, 23, 23, 59, 59, 999000000, loc); !end.Equal(want) {
		t.Fatalf("EndOfDay = %v, want %v", end, want)
	}
}
