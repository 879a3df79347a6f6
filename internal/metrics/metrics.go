// Package metrics collects connection counters and exposes them as
// Prometheus-compatible text, hand-rolled rather than built on the
// client_golang SDK — a handful of atomic counters does not justify
// the dependency.
package metrics

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
)

// Stats holds the connection's running counters. The field layout
// mirrors the apcera-nats reference client's Stats struct
// (InMsgs/OutMsgs/InBytes/OutBytes/Reconnects), adapted to atomics so
// callers never need external locking.
type Stats struct {
	InMsgs     atomic.Int64
	OutMsgs    atomic.Int64
	InBytes    atomic.Int64
	OutBytes   atomic.Int64
	Reconnects atomic.Int64
	Resyncs    atomic.Int64
}

// IncIn records one inbound MSG/HMSG dispatch.
func (s *Stats) IncIn(bytes int) {
	s.InMsgs.Add(1)
	s.InBytes.Add(int64(bytes))
}

// IncOut records one outbound PUB/HPUB.
func (s *Stats) IncOut(bytes int) {
	s.OutMsgs.Add(1)
	s.OutBytes.Add(int64(bytes))
}

// IncReconnect records a completed TLS upgrade or transport restart.
func (s *Stats) IncReconnect() {
	s.Reconnects.Add(1)
}

// IncResync records one codec resynchronization event.
func (s *Stats) IncResync() {
	s.Resyncs.Add(1)
}

// Snapshot is a point-in-time copy of Stats, safe to read without
// further synchronization.
type Snapshot struct {
	InMsgs     int64
	OutMsgs    int64
	InBytes    int64
	OutBytes   int64
	Reconnects int64
	Resyncs    int64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		InMsgs:     s.InMsgs.Load(),
		OutMsgs:    s.OutMsgs.Load(),
		InBytes:    s.InBytes.Load(),
		OutBytes:   s.OutBytes.Load(),
		Reconnects: s.Reconnects.Load(),
		Resyncs:    s.Resyncs.Load(),
	}
}

// WriteText renders the counters as Prometheus text exposition format:
// a HELP/TYPE comment pair followed by the sample line, per metric.
func (s *Stats) WriteText() string {
	snap := s.Snapshot()
	var b strings.Builder

	b.WriteString("# HELP gonats_in_msgs_total Total inbound messages dispatched.\n")
	b.WriteString("# TYPE gonats_in_msgs_total counter\n")
	fmt.Fprintf(&b, "gonats_in_msgs_total %d\n", snap.InMsgs)

	b.WriteString("# HELP gonats_out_msgs_total Total outbound messages published.\n")
	b.WriteString("# TYPE gonats_out_msgs_total counter\n")
	fmt.Fprintf(&b, "gonats_out_msgs_total %d\n", snap.OutMsgs)

	b.WriteString("# HELP gonats_in_bytes_total Total inbound payload bytes.\n")
	b.WriteString("# TYPE gonats_in_bytes_total counter\n")
	fmt.Fprintf(&b, "gonats_in_bytes_total %d\n", snap.InBytes)

	b.WriteString("# HELP gonats_out_bytes_total Total outbound payload bytes.\n")
	b.WriteString("# TYPE gonats_out_bytes_total counter\n")
	fmt.Fprintf(&b, "gonats_out_bytes_total %d\n", snap.OutBytes)

	b.WriteString("# HELP gonats_reconnects_total Total TLS upgrades / transport restarts.\n")
	b.WriteString("# TYPE gonats_reconnects_total counter\n")
	fmt.Fprintf(&b, "gonats_reconnects_total %d\n", snap.Reconnects)

	b.WriteString("# HELP gonats_resyncs_total Total codec resynchronization events.\n")
	b.WriteString("# TYPE gonats_resyncs_total counter\n")
	fmt.Fprintf(&b, "gonats_resyncs_total %d\n", snap.Resyncs)

	b.WriteString("# HELP gonats_go_goroutines Number of goroutines.\n")
	b.WriteString("# TYPE gonats_go_goroutines gauge\n")
	fmt.Fprintf(&b, "gonats_go_goroutines %d\n", runtime.NumGoroutine())

	return b.String()
}
