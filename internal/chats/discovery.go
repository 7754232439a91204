package chats

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/gateway"
)

// SessionLister enumerates gateway sessions.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]gateway.SessionDescriptor, error)
}

// Discovery caches the session list for a short time so that paging
// through chats does not re-enumerate sessions on every page.
type Discovery struct {
	lister SessionLister
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	names   []string
	fetched time.Time
}

// NewDiscovery creates a Discovery. A ttl of zero disables caching.
func NewDiscovery(lister SessionLister, ttl time.Duration) *Discovery {
	return &Discovery{lister: lister, ttl: ttl, now: time.Now}
}

// Sessions returns the names of the gateway sessions, without blanks or
// duplicates, in gateway order.
func (d *Discovery) Sessions(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	if d.names != nil && d.ttl > 0 && d.now().Sub(d.fetched) < d.ttl {
		names := d.names
		d.mu.Unlock()
		return names, nil
	}
	d.mu.Unlock()

	descs, err := d.lister.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(descs))
	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		if desc.Name == "" || seen[desc.Name] {
			continue
		}
		seen[desc.Name] = true
		names = append(names, desc.Name)
	}

	d.mu.Lock()
	d.names, d.fetched = names, d.now()
	d.mu.Unlock()
	return names, nil
}

// Invalidate drops the cached list.
func (d *Discovery) Invalidate() {
	d.mu.Lock()
	d.names = nil
	d.mu.Unlock()
}
