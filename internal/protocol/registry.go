package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/sadewadee/gonats/internal/wire"
)

// Handler is invoked once per dispatched MSG/HMSG frame.
type Handler func(*wire.Frame)

// catchAllSubject is the reserved callback bucket key receiving every
// dispatched frame regardless of subject.
const catchAllSubject = ""

type callbackEntry struct {
	id      string
	handler Handler
}

// registry guards the subscription table and the callback buckets
// under one lock. Dispatch traversal and mutation both acquire mu, so
// a callback added mid-dispatch never appears in the in-flight
// invocation list.
type registry struct {
	mu            sync.Mutex
	subscriptions map[string]string // subject -> sid
	callbacks     map[string][]*callbackEntry
}

func newRegistry() *registry {
	return &registry{
		subscriptions: make(map[string]string),
		callbacks:     make(map[string][]*callbackEntry),
	}
}

// subscribe records subject -> sid, rejecting a subject already
// present in the table.
func (r *registry) subscribe(subject, sid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subscriptions[subject]; exists {
		return false
	}
	r.subscriptions[subject] = sid
	return true
}

// unsubscribe removes subject from the table and reports the sid to
// unsubscribe on the wire, plus whether any callbacks remain
// registered for subject (the engine logs a warning in that case).
func (r *registry) unsubscribe(subject string) (sid string, callbacksRemain bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok = r.subscriptions[subject]
	if !ok {
		return "", false, false
	}
	delete(r.subscriptions, subject)
	callbacksRemain = bucketHasLive(r.callbacks[subject])
	return sid, callbacksRemain, true
}

func bucketHasLive(bucket []*callbackEntry) bool {
	for _, e := range bucket {
		if e.handler != nil {
			return true
		}
	}
	return false
}

// addCallback inserts fn into subject's bucket and returns its opaque id.
func (r *registry) addCallback(subject string, fn Handler) string {
	id := newToken()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[subject] = append(r.callbacks[subject], &callbackEntry{id: id, handler: fn})
	return id
}

// removeCallback tombstones the entry matching id in subject's bucket,
// preserving bucket order and the dispatch-side "skip null handler"
// invariant instead of compacting the slice.
func (r *registry) removeCallback(subject, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.callbacks[subject] {
		if e.id == id && e.handler != nil {
			e.handler = nil
			return true
		}
	}
	return false
}

// dispatchList returns the ordered, subject-bucket-before-catch-all
// invocation list for subject, skipping tombstoned entries. The
// returned slice is a snapshot safe to range over without holding mu.
func (r *registry) dispatchList(subject string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Handler
	for _, e := range r.callbacks[subject] {
		if e.handler != nil {
			out = append(out, e.handler)
		}
	}
	if subject != catchAllSubject {
		for _, e := range r.callbacks[catchAllSubject] {
			if e.handler != nil {
				out = append(out, e.handler)
			}
		}
	}
	return out
}

// subscriptionCount reports the number of active subscriptions, for
// diagnostics snapshots.
func (r *registry) subscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscriptions)
}

// callbackBucketCounts reports the number of live (non-tombstoned)
// callbacks per subject bucket, for diagnostics snapshots.
func (r *registry) callbackBucketCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int, len(r.callbacks))
	for subject, bucket := range r.callbacks {
		n := 0
		for _, e := range bucket {
			if e.handler != nil {
				n++
			}
		}
		counts[subject] = n
	}
	return counts
}

// newToken generates a short opaque identifier (sid or callback id)
// from crypto/rand, hex-encoded, matching the "opaque, unique within
// its scope" requirement without the UUID dependency pynats reaches
// for (uuid4().split("-")[0]).
func newToken() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("protocol: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
