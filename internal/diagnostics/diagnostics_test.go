package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadewadee/gonats/internal/protocol"
)

type fakeSnapshotter struct {
	snap protocol.Snapshot
}

func (f *fakeSnapshotter) Snapshot() protocol.Snapshot {
	return f.snap
}

func sampleSnapshot() protocol.Snapshot {
	return protocol.Snapshot{
		State:             protocol.StateReady,
		HasInfo:           true,
		Info:              protocol.InfoOptions{ServerID: "s1", Version: "2.10.0", Headers: true, MaxPayload: 1048576},
		SubscriptionCount: 3,
		CallbackBucketCounts: map[string]int{
			"FOO.BAR": 1,
			"":        2,
		},
	}
}

func TestBuildDump(t *testing.T) {
	snap := sampleSnapshot()
	now := time.Unix(1700000000, 0)

	d := buildDump(snap, now)

	if d.Timestamp != now.Unix() {
		t.Errorf("timestamp = %d, want %d", d.Timestamp, now.Unix())
	}
	if d.State != "ready" {
		t.Errorf("state = %q, want ready", d.State)
	}
	if d.ServerID != "s1" || d.ServerVersion != "2.10.0" {
		t.Errorf("unexpected server identity: %+v", d)
	}
	if d.SubscriptionCount != 3 {
		t.Errorf("subscription count = %d, want 3", d.SubscriptionCount)
	}
	if d.CallbackBucketCounts["FOO.BAR"] != 1 {
		t.Errorf("bucket count mismatch: %+v", d.CallbackBucketCounts)
	}
}

func TestBuildDumpOmitsServerIdentityWithoutInfo(t *testing.T) {
	snap := sampleSnapshot()
	snap.HasInfo = false

	d := buildDump(snap, time.Unix(0, 0))

	if d.ServerID != "" || d.ServerVersion != "" {
		t.Errorf("expected empty server identity without info, got %+v", d)
	}
}

func TestMarshalUnmarshalDumpRoundtrips(t *testing.T) {
	d := buildDump(sampleSnapshot(), time.Unix(1700000000, 0))

	data, err := MarshalDump(d)
	if err != nil {
		t.Fatalf("MarshalDump: %v", err)
	}

	got, err := UnmarshalDump(data)
	if err != nil {
		t.Fatalf("UnmarshalDump: %v", err)
	}

	if got.ServerID != d.ServerID || got.SubscriptionCount != d.SubscriptionCount {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, d)
	}
	if got.CallbackBucketCounts["FOO.BAR"] != 1 {
		t.Errorf("roundtrip lost callback bucket counts: %+v", got.CallbackBucketCounts)
	}
}

func TestReporterWritesDumpFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gonats-diag.msgpack")

	fake := &fakeSnapshotter{snap: sampleSnapshot()}
	r := NewReporter(fake, path, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected dump file to exist: %v", err)
	}

	d, err := UnmarshalDump(data)
	if err != nil {
		t.Fatalf("UnmarshalDump: %v", err)
	}
	if d.ServerID != "s1" {
		t.Errorf("dump ServerID = %q, want s1", d.ServerID)
	}

	r.Stop()
}

func TestReporterStopWaitsForWatchdog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gonats-diag.msgpack")

	fake := &fakeSnapshotter{snap: sampleSnapshot()}
	r := NewReporter(fake, path, time.Hour, nil)

	r.Start(context.Background())
	r.Stop()
}
