package suggest

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the quiescence window before a keystroke-driven fetch
// is actually dispatched.
const DefaultWindow = 350 * time.Millisecond

// fetchTimeout bounds a dispatched fetch. The caller's context does not
// apply: the HTTP request that registered the keystroke is long gone by
// the time the window elapses.
const fetchTimeout = 10 * time.Second

// Debouncer coalesces rapid keystroke-driven fetches. Only the most
// recent invocation after the quiescence window reaches the network, and
// a resolved fetch is delivered only while its generation is still
// current, so a slow stale response can never overwrite a newer one.
type Debouncer struct {
	client  *Client
	window  time.Duration
	deliver func(kind Kind, items []string)

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// NewDebouncer wires a debouncer to a fetch client. deliver receives the
// winning result (possibly empty) and runs on the fetch goroutine.
func NewDebouncer(client *Client, window time.Duration, deliver func(kind Kind, items []string)) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{client: client, window: window, deliver: deliver}
}

// Type registers one keystroke. It supersedes any pending or in-flight
// fetch and schedules a new one after the quiescence window. The fetch
// is detached from ctx's cancellation and runs on its own deadline; the
// registering request has usually already returned when the timer fires.
func (d *Debouncer) Type(ctx context.Context, partial string, kind Kind) {
	ctx = context.WithoutCancel(ctx)
	d.mu.Lock()
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		items := d.client.Fetch(fctx, partial, kind)
		d.resolve(gen, kind, items)
	})
	d.mu.Unlock()
}

// resolve applies a fetch result if its generation is still the latest.
// The generation check and the delivery happen under the same lock, so a
// generation bump can never slip in between them and an older result can
// never land after a newer one. deliver must not call back into the
// debouncer.
func (d *Debouncer) resolve(gen uint64, kind Kind, items []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.deliver(kind, items)
}

// Generation returns the latest issued generation. Used to tag pending
// session caches.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}
