package archive

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. Local runs without object storage and
// tests use it.
type MemoryStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	missing bool
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

// SetBucketMissing makes writes fail as if the bucket did not exist.
func (m *MemoryStore) SetBucketMissing(missing bool) {
	m.mu.Lock()
	m.missing = missing
	m.mu.Unlock()
}

func (m *MemoryStore) Bucket() string { return m.bucket }

func (m *MemoryStore) Put(_ context.Context, object string, content []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing {
		return ErrBucketNotFound
	}
	m.objects[object] = append([]byte(nil), content...)
	m.types[object] = contentType
	return nil
}

func (m *MemoryStore) EnsureBucket(context.Context) error {
	m.mu.Lock()
	m.missing = false
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Object(name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[name]
	return b, m.types[name], ok
}

func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
