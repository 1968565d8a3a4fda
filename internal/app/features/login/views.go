package login

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Views holds one Controller per mounted login view, keyed by an ID kept
// in the visitor's cookie session. Idle views expire after ttl.
type Views struct {
	mu    sync.Mutex
	views map[string]*mounted
	make  func() *Controller
	ttl   time.Duration
	now   func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

type mounted struct {
	mu       sync.Mutex
	ctrl     *Controller
	lastUsed time.Time
}

// NewViews creates a registry. newController builds the controller for
// each mount. ttl defaults to 30 minutes; expired views are swept every
// ttl/2.
func NewViews(newController func() *Controller, ttl time.Duration) *Views {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	v := &Views{
		views:  make(map[string]*mounted),
		make:   newController,
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go v.cleanup(ttl / 2)
	return v
}

// Mount creates a fresh view and returns its ID. If prev names a view it
// is discarded first.
func (v *Views) Mount(prev string) string {
	id := uuid.NewString()
	v.mu.Lock()
	defer v.mu.Unlock()
	if prev != "" {
		delete(v.views, prev)
	}
	v.views[id] = &mounted{ctrl: v.make(), lastUsed: v.now()}
	return id
}

// With runs fn on the view's controller while holding that view's lock,
// so concurrent requests for one view run one at a time. It reports
// false if id is unknown or expired.
func (v *Views) With(id string, fn func(c *Controller)) bool {
	v.mu.Lock()
	m, ok := v.views[id]
	if ok && v.now().Sub(m.lastUsed) > v.ttl {
		delete(v.views, id)
		ok = false
	}
	if ok {
		m.lastUsed = v.now()
	}
	v.mu.Unlock()
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.ctrl)

	v.mu.Lock()
	m.lastUsed = v.now()
	v.mu.Unlock()
	return true
}

// Unmount discards the view.
func (v *Views) Unmount(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.views, id)
}

// Len returns the number of mounted views.
func (v *Views) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.views)
}

// Close stops the sweeper. Safe to call more than once.
func (v *Views) Close() {
	v.once.Do(func() { close(v.stopCh) })
	<-v.doneCh
}

func (v *Views) cleanup(interval time.Duration) {
	defer close(v.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stopCh:
			return
		case <-ticker.C:
			v.removeExpired()
		}
	}
}

func (v *Views) removeExpired() {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	for id, m := range v.views {
		if now.Sub(m.lastUsed) > v.ttl {
			delete(v.views, id)
		}
	}
}
