// Package diagnostics periodically writes a msgpack-encoded snapshot
// of the protocol engine's state to disk: the INFO options, the
// subscription and callback registry sizes, and the running counters.
// The thin Marshal/Unmarshal wrapper around the msgpack codec and the
// ticker-driven watchdog goroutine both follow patterns used elsewhere
// in this codebase for binary encoding and background task lifecycles.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sadewadee/gonats/internal/protocol"
)

// Snapshotter is satisfied by *protocol.Engine.
type Snapshotter interface {
	Snapshot() protocol.Snapshot
}

// Dump is the msgpack-encoded record written to DumpPath on each tick.
type Dump struct {
	Timestamp            int64          `msgpack:"timestamp"`
	State                string         `msgpack:"state"`
	HasInfo              bool           `msgpack:"has_info"`
	ServerID             string         `msgpack:"server_id,omitempty"`
	ServerVersion        string         `msgpack:"server_version,omitempty"`
	HeadersSupported     bool           `msgpack:"headers_supported"`
	MaxPayload           int64          `msgpack:"max_payload"`
	SubscriptionCount    int            `msgpack:"subscription_count"`
	CallbackBucketCounts map[string]int `msgpack:"callback_bucket_counts"`
	InMsgs               int64          `msgpack:"in_msgs"`
	OutMsgs              int64          `msgpack:"out_msgs"`
	InBytes              int64          `msgpack:"in_bytes"`
	OutBytes             int64          `msgpack:"out_bytes"`
	Reconnects           int64          `msgpack:"reconnects"`
	Resyncs              int64          `msgpack:"resyncs"`
}

func buildDump(snap protocol.Snapshot, now time.Time) Dump {
	d := Dump{
		Timestamp:            now.Unix(),
		State:                snap.State.String(),
		HasInfo:              snap.HasInfo,
		HeadersSupported:     snap.Info.Headers,
		MaxPayload:           snap.Info.MaxPayload,
		SubscriptionCount:    snap.SubscriptionCount,
		CallbackBucketCounts: snap.CallbackBucketCounts,
		InMsgs:               snap.Stats.InMsgs,
		OutMsgs:              snap.Stats.OutMsgs,
		InBytes:              snap.Stats.InBytes,
		OutBytes:             snap.Stats.OutBytes,
		Reconnects:           snap.Stats.Reconnects,
		Resyncs:              snap.Stats.Resyncs,
	}
	if snap.HasInfo {
		d.ServerID = snap.Info.ServerID
		d.ServerVersion = snap.Info.Version
	}
	return d
}

// MarshalDump encodes a Dump to msgpack bytes.
func MarshalDump(d Dump) ([]byte, error) {
	return msgpack.Marshal(d)
}

// UnmarshalDump decodes msgpack bytes into a Dump.
func UnmarshalDump(data []byte) (Dump, error) {
	var d Dump
	err := msgpack.Unmarshal(data, &d)
	return d, err
}

// Reporter periodically snapshots an engine and writes the encoded
// result to DumpPath.
type Reporter struct {
	engine   Snapshotter
	dumpPath string
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter constructs a Reporter. interval <= 0 defaults to 30s.
func NewReporter(engine Snapshotter, dumpPath string, interval time.Duration, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		engine:   engine,
		dumpPath: dumpPath,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the watchdog goroutine: a ticker selected against a
// context.Context.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.watchdog()
}

// Stop cancels the watchdog and waits for the in-flight write, if any,
// to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Reporter) watchdog() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.writeOnce(); err != nil {
				r.logger.Error("diagnostics dump failed", "error", err)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reporter) writeOnce() error {
	snap := r.engine.Snapshot()
	dump := buildDump(snap, time.Now())

	data, err := MarshalDump(dump)
	if err != nil {
		return fmt.Errorf("diagnostics: encoding dump: %w", err)
	}

	tmp := r.dumpPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("diagnostics: writing dump: %w", err)
	}
	if err := os.Rename(tmp, r.dumpPath); err != nil {
		return fmt.Errorf("diagnostics: installing dump: %w", err)
	}
	return nil
}
