// Package blobs keeps process-local binary objects addressable by URL, the
// way a browser hands out object URLs for in-memory blobs.
package blobs

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every URL handed out by a Registry.
const Scheme = "blob:"

// Object is a registered binary resource.
type Object struct {
	Data      []byte
	MediaType string
}

// Registry maps blob URLs to objects. It is safe for concurrent use.
// Objects stay alive until revoked.
type Registry struct {
	namespace string
	onChange  func(live int)

	mu      sync.RWMutex
	objects map[string]Object
}

// NewRegistry creates a registry whose URLs look like "blob:<namespace>/<uuid>".
// onChange, if non-nil, observes the number of live objects after each change.
// It runs under the registry lock and must not call back into the registry.
func NewRegistry(namespace string, onChange func(live int)) *Registry {
	return &Registry{
		namespace: namespace,
		onChange:  onChange,
		objects:   make(map[string]Object),
	}
}

// Create registers data and returns a new URL for it. Every call yields a
// distinct URL, even for identical data.
func (r *Registry) Create(data []byte, mediaType string) string {
	url := Scheme + r.namespace + "/" + uuid.NewString()

	r.mu.Lock()
	r.objects[url] = Object{Data: data, MediaType: mediaType}
	r.notify(len(r.objects))
	r.mu.Unlock()

	return url
}

// Get returns the object behind url.
func (r *Registry) Get(url string) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[url]
	return obj, ok
}

// Revoke releases url. Revoking an unknown or already revoked URL is a no-op.
func (r *Registry) Revoke(url string) {
	if !strings.HasPrefix(url, Scheme) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[url]; ok {
		delete(r.objects, url)
		r.notify(len(r.objects))
	}
}

// RevokeAll releases every URL in urls.
func (r *Registry) RevokeAll(urls []string) {
	for _, url := range urls {
		r.Revoke(url)
	}
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

func (r *Registry) notify(live int) {
	if r.onChange != nil {
		r.onChange(live)
	}
}
