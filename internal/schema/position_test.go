package schema

import "testing"

func TestPositionStateTerminal(t *testing.T) {
	for _, s := range []PositionState{PositionStatePendingEntry, PositionStateActive, PositionStateTP1Hit, PositionStateTP2Hit, PositionStateTP3Hit} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []PositionState{PositionStateClosed, PositionStateCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestTPStateRoundTrip(t *testing.T) {
	for level := 1; level <= 3; level++ {
		if got := TPState(level).TPLevel(); got != level {
			t.Fatalf("level %d round-trips to %d", level, got)
		}
	}
	if TPState(0) != "" || TPState(4) != "" {
		t.Fatal("out-of-ladder levels should map to no state")
	}
	if PositionStateActive.TPLevel() != 0 {
		t.Fatal("active has no tp level")
	}
}

func TestRecomputePnL(t *testing.T) {
	long := PositionRecord{Side: SideLong, EntryPrice: 5000, Quantity: 2}
	long.RecomputePnL(5010)
	if long.UnrealizedPnL != 20 || long.LastPrice != 5010 {
		t.Fatalf("long pnl mismatch: %+v", long)
	}

	short := PositionRecord{Side: SideShort, EntryPrice: 5000, Quantity: 2}
	short.RecomputePnL(5010)
	if short.UnrealizedPnL != -20 {
		t.Fatalf("short pnl mismatch: %v", short.UnrealizedPnL)
	}
}

func TestTPPrice(t *testing.T) {
	p := PositionRecord{TP1Price: 10, TP2Price: 20, TP3Price: 30}
	for level, want := range map[int]float64{0: 0, 1: 10, 2: 20, 3: 30, 4: 0} {
		if got := p.TPPrice(level); got != want {
			t.Fatalf("level %d: got %v want %v", level, got, want)
		}
	}
}
