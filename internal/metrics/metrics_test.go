package metrics

import (
	"strings"
	"testing"
)

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	s.IncIn(10)
	s.IncIn(5)
	s.IncOut(7)
	s.IncReconnect()
	s.IncResync()

	snap := s.Snapshot()
	if snap.InMsgs != 2 || snap.InBytes != 15 {
		t.Fatalf("in counters = %+v", snap)
	}
	if snap.OutMsgs != 1 || snap.OutBytes != 7 {
		t.Fatalf("out counters = %+v", snap)
	}
	if snap.Reconnects != 1 || snap.Resyncs != 1 {
		t.Fatalf("event counters = %+v", snap)
	}
}

func TestStatsWriteText(t *testing.T) {
	var s Stats
	s.IncIn(3)
	text := s.WriteText()
	if text == "" {
		t.Fatal("expected non-empty exposition text")
	}
	if want := "gonats_in_msgs_total 1\n"; !strings.Contains(text, want) {
		t.Fatalf("text missing %q:\n%s", want, text)
	}
}
